package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dcm-project/cloud-instance-manager/internal/logging"
	"github.com/dcm-project/cloud-instance-manager/internal/service"
	"go.uber.org/zap"
)

const problemContentType = "application/problem+json"

// Problem is an RFC 7807 error body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

var titles = map[string]string{
	service.ErrCodeNotFound:      "Resource not found",
	service.ErrCodeBadRequest:    "Invalid request",
	service.ErrCodeUnauthorized:  "Not authorised",
	service.ErrCodeTokenInvalid:  "Token invalid",
	service.ErrCodeProviderError: "Cloud provider error",
	service.ErrCodeInternal:      "Internal error",
}

// StatusFor maps a service error code to its HTTP status.
func StatusFor(code string) int {
	switch code {
	case service.ErrCodeNotFound:
		return http.StatusNotFound
	case service.ErrCodeBadRequest:
		return http.StatusBadRequest
	case service.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case service.ErrCodeTokenInvalid:
		return http.StatusForbidden
	case service.ErrCodeProviderError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// newError creates an RFC 7807 compliant error response.
func newError(errType, title, detail string, status int) Problem {
	return Problem{
		Type:   errType,
		Title:  title,
		Detail: detail,
		Status: status,
	}
}

// writeError renders err as a problem response. Internal failures are
// logged with their cause and their detail is withheld from the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := service.Code(err)
	status := StatusFor(code)
	detail := err.Error()
	if status == http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("Request failed",
			zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(errorCause(err)))
		detail = "the request could not be completed"
	}

	title, ok := titles[code]
	if !ok {
		title = titles[service.ErrCodeInternal]
	}
	problem := newError(errorType(code), title, detail, status)
	problem.Instance = r.URL.Path
	writeProblem(w, problem)
}

func badRequest(w http.ResponseWriter, r *http.Request, detail string) {
	writeError(w, r, service.NewBadRequestError(detail))
}

func writeProblem(w http.ResponseWriter, problem Problem) {
	w.Header().Set("Content-Type", problemContentType)
	w.WriteHeader(problem.Status)
	_ = json.NewEncoder(w).Encode(problem)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func errorType(code string) string {
	return strings.ReplaceAll(strings.ToLower(code), "_", "-")
}

func errorCause(err error) error {
	var svcErr *service.ServiceError
	if errors.As(err, &svcErr) && svcErr.Err != nil {
		return svcErr.Err
	}
	return err
}

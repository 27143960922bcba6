package cloud

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dcm-project/cloud-instance-manager/internal/metrics"
	"github.com/dcm-project/cloud-instance-manager/internal/store/model"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/dcm-project/cloud-instance-manager/internal/cloud"

// Resource reads one kind of catalog entry (images, flavours, instances)
// from providers.
type Resource[T any] struct {
	clients *ClientCache
	kind    string
}

func NewResource[T any](clients *ClientCache, kind string) *Resource[T] {
	return &Resource[T]{clients: clients, kind: kind}
}

func (r *Resource[T]) Kind() string {
	return r.kind
}

// GetAll lists every entry the provider exposes for this kind.
func (r *Resource[T]) GetAll(ctx context.Context, provider model.Provider) ([]T, error) {
	var items []T
	_, err := r.call(ctx, provider, "list", func(req *resty.Request) (*resty.Response, error) {
		return req.SetResult(&items).Get("/" + r.kind)
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// GetByID fetches one entry. A provider 404 yields an error matching
// ErrNotFound.
func (r *Resource[T]) GetByID(ctx context.Context, provider model.Provider, id int) (*T, error) {
	var item T
	_, err := r.call(ctx, provider, "get", func(req *resty.Request) (*resty.Response, error) {
		return req.SetPathParam("id", strconv.Itoa(id)).SetResult(&item).Get("/" + r.kind + "/{id}")
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *Resource[T]) call(ctx context.Context, provider model.Provider, operation string, send func(*resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, fmt.Sprintf("cloud.%s.%s", r.kind, operation),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.Int64("provider.id", int64(provider.ID)),
			attribute.String("provider.name", provider.Name),
			attribute.String("cloud.resource", r.kind),
		))
	defer span.End()
	start := time.Now()

	resp, err := send(r.clients.ClientFor(provider).R().SetContext(ctx))
	err = remoteError(provider, r.kind+" "+operation, resp, err)

	if resp != nil {
		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode()))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.RemoteRequestCounter.WithLabelValues(provider.Name, r.kind, operation, metrics.Outcome(err)).Inc()
	metrics.RemoteRequestDurationHistogram.WithLabelValues(provider.Name, r.kind, operation).Observe(time.Since(start).Seconds())

	return resp, err
}

func remoteError(provider model.Provider, operation string, resp *resty.Response, err error) error {
	if err != nil {
		return &RemoteError{Provider: provider.Name, Operation: operation, Err: err}
	}
	if resp == nil {
		return &RemoteError{Provider: provider.Name, Operation: operation, Err: ErrMalformedPayload}
	}
	if resp.StatusCode() == http.StatusNotFound {
		return &RemoteError{Provider: provider.Name, Operation: operation, StatusCode: http.StatusNotFound, Err: ErrNotFound}
	}
	if resp.IsError() {
		return &RemoteError{
			Provider:   provider.Name,
			Operation:  operation,
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("unexpected response: %s", resp.Status()),
		}
	}
	// resty only decodes JSON replies; anything else would leave the result
	// at its zero value without an error.
	if resp.Request != nil && resp.Request.Result != nil &&
		resp.StatusCode() != http.StatusNoContent &&
		!resty.IsJSONType(resp.Header().Get("Content-Type")) {
		return &RemoteError{
			Provider:   provider.Name,
			Operation:  operation,
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("%w: content type %q", ErrMalformedPayload, resp.Header().Get("Content-Type")),
		}
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dcm-project/cloud-instance-manager/internal/cloud"
	"github.com/dcm-project/cloud-instance-manager/internal/config"
	"github.com/dcm-project/cloud-instance-manager/internal/metrics"
	"github.com/dcm-project/cloud-instance-manager/internal/store"
	"github.com/dcm-project/cloud-instance-manager/internal/store/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TokenSettings holds the token validity window. It is read on every
// validation and may be changed while the service runs.
type TokenSettings struct {
	validFor atomic.Int64
}

func NewTokenSettings(cfg *config.TokenConfig) *TokenSettings {
	s := &TokenSettings{}
	s.SetValidDuration(time.Duration(cfg.ValidDurationS) * time.Second)
	return s
}

func (s *TokenSettings) ValidDuration() time.Duration {
	return time.Duration(s.validFor.Load())
}

func (s *TokenSettings) SetValidDuration(d time.Duration) {
	s.validFor.Store(int64(d))
}

type TokenOption func(*TokenService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		s.now = now
	}
}

// TokenService issues short-lived tokens bound to one instance member and
// validates them against an instance.
type TokenService struct {
	store    store.Store
	gateway  *cloud.Gateway
	members  *MemberService
	settings *TokenSettings
	now      func() time.Time
}

func NewTokenService(store store.Store, gateway *cloud.Gateway, members *MemberService, settings *TokenSettings, opts ...TokenOption) *TokenService {
	s := &TokenService{
		store:    store,
		gateway:  gateway,
		members:  members,
		settings: settings,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new random token for member.
func (s *TokenService) Create(ctx context.Context, member model.InstanceMember) (*model.AuthorisationToken, error) {
	token, err := s.store.AuthorisationToken().Create(ctx, model.AuthorisationToken{
		Token:            uuid.NewString(),
		InstanceMemberID: member.ID,
		CreatedAtMs:      s.now().UnixMilli(),
	})
	if err != nil {
		return nil, internalFailure("create token", err)
	}
	metrics.TokenIssuedCounter.Inc()
	return token, nil
}

// Issue creates a token for the caller's membership on the instance.
func (s *TokenService) Issue(ctx context.Context, instanceID, callerID uint) (*TokenView, error) {
	_, member, err := s.members.Authorize(ctx, instanceID, callerID)
	if err != nil {
		return nil, err
	}

	token, err := s.Create(ctx, *member)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("Issued authorisation token", zap.Uint("instance_id", instanceID), zap.Uint("member_id", member.ID))
	return &TokenView{
		Token:     token.Token,
		ExpiresAt: time.UnixMilli(token.CreatedAtMs).Add(s.settings.ValidDuration()),
	}, nil
}

// Validate checks, in order, that the token exists, belongs to a member of
// instanceID and is still fresh, then returns the instance's live network
// endpoint and account.
func (s *TokenService) Validate(ctx context.Context, instanceID uint, token string) (*InstanceAuthorisation, error) {
	auth, err := s.validate(ctx, instanceID, token)
	metrics.TokenValidationCounter.WithLabelValues(validationResult(err)).Inc()
	return auth, err
}

func (s *TokenService) validate(ctx context.Context, instanceID uint, token string) (*InstanceAuthorisation, error) {
	if token == "" {
		return nil, NewNotFoundError("token not found")
	}
	authToken, err := s.store.AuthorisationToken().GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrAuthorisationTokenNotFound) {
			return nil, NewNotFoundError("token not found")
		}
		return nil, internalFailure("retrieve token", err)
	}

	member := authToken.InstanceMember
	if member.InstanceID == nil {
		return nil, NewNotFoundError("token member has no instance")
	}
	instance, err := s.store.Instance().Get(ctx, *member.InstanceID)
	if err != nil {
		return nil, instanceLookupFailure(*member.InstanceID, err)
	}

	if instance.ID != instanceID {
		zap.L().Info("Rejected token for another instance",
			zap.Uint("requested_instance_id", instanceID), zap.Uint("token_instance_id", instance.ID))
		return nil, NewTokenInvalidError(ErrTokenInstanceMismatch)
	}
	if authToken.Expired(s.now(), s.settings.ValidDuration()) {
		return nil, NewTokenInvalidError(ErrTokenExpired)
	}

	remote, err := s.gateway.Instances.GetByID(ctx, instance.Plan.Provider, instance.CloudID)
	if err != nil {
		return nil, remoteFailure(err, fmt.Sprintf("instance %d not found at provider", instance.ID))
	}

	return &InstanceAuthorisation{
		Member: ModelToMember(&member),
		Network: Network{
			Hostname:  remote.Hostname,
			Protocols: remote.Protocols,
		},
		Account: remote.Account,
	}, nil
}

func validationResult(err error) string {
	switch {
	case err == nil:
		return "valid"
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenInstanceMismatch):
		return "instance_mismatch"
	default:
		return "rejected"
	}
}

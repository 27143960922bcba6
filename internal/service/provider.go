package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dcm-project/cloud-instance-manager/internal/cloud"
	"github.com/dcm-project/cloud-instance-manager/internal/store"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 100
	maxPageSize     = 100
)

// ProviderService handles business logic for provider management.
type ProviderService struct {
	store   store.Store
	gateway *cloud.Gateway
}

// NewProviderService creates a new ProviderService with the given store.
func NewProviderService(store store.Store, gateway *cloud.Gateway) *ProviderService {
	return &ProviderService{store: store, gateway: gateway}
}

func (s *ProviderService) CreateProvider(ctx context.Context, req *ProviderRequest) (*ProviderView, error) {
	if err := validateProvider(req); err != nil {
		return nil, err
	}

	created, err := s.store.Provider().Create(ctx, ProviderToModel(req))
	if err != nil {
		return nil, internalFailure("create provider", err)
	}

	zap.L().Info("Created provider", zap.String("name", created.Name), zap.Uint("id", created.ID))
	view := ModelToProvider(created)
	return &view, nil
}

// GetProvider retrieves a provider by ID. Returns ErrCodeNotFound if not found.
func (s *ProviderService) GetProvider(ctx context.Context, providerID uint) (*ProviderView, error) {
	provider, err := s.store.Provider().Get(ctx, providerID)
	if err != nil {
		return nil, providerLookupFailure(providerID, err)
	}
	view := ModelToProvider(provider)
	return &view, nil
}

// ListProviders returns providers with offset page tokens. An empty
// NextPageToken means the last page was returned.
func (s *ProviderService) ListProviders(ctx context.Context, name string, requestedPageSize int, pageToken string) (*ListResult, error) {
	pageSize := requestedPageSize
	if pageSize < 0 {
		return nil, NewBadRequestError("max_page_size must not be negative")
	}
	if pageSize == 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	offset := 0
	if pageToken != "" {
		decoded, err := decodePageToken(pageToken)
		if err != nil {
			return nil, NewBadRequestError("invalid page_token")
		}
		offset = decoded
	}

	var filter *store.ProviderFilter
	if name != "" {
		filter = &store.ProviderFilter{Name: &name}
	}

	// One extra row tells whether another page exists.
	providers, err := s.store.Provider().List(ctx, filter, &store.Pagination{Limit: pageSize + 1, Offset: offset})
	if err != nil {
		return nil, internalFailure("list providers", err)
	}

	var nextPageToken string
	if len(providers) > pageSize {
		providers = providers[:pageSize]
		nextPageToken = encodePageToken(offset + pageSize)
	}

	result := make([]ProviderView, len(providers))
	for i := range providers {
		result[i] = ModelToProvider(&providers[i])
	}

	return &ListResult{
		Providers:     result,
		NextPageToken: nextPageToken,
	}, nil
}

func encodePageToken(offset int) string {
	return base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}

func decodePageToken(token string) (int, error) {
	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return 0, err
	}
	offset, err := strconv.Atoi(string(decoded))
	if err != nil {
		return 0, err
	}
	if offset < 0 {
		return 0, fmt.Errorf("negative offset %d", offset)
	}
	return offset, nil
}

// UpdateProvider updates an existing provider. A changed URL drops the
// provider's cached client.
func (s *ProviderService) UpdateProvider(ctx context.Context, providerID uint, update *ProviderRequest) (*ProviderView, error) {
	if err := validateProvider(update); err != nil {
		return nil, err
	}

	existing, err := s.store.Provider().Get(ctx, providerID)
	if err != nil {
		return nil, providerLookupFailure(providerID, err)
	}

	urlChanged := existing.URL != update.URL
	existing.Name = update.Name
	existing.Description = update.Description
	existing.URL = update.URL

	updated, err := s.store.Provider().Update(ctx, *existing)
	if err != nil {
		return nil, providerLookupFailure(providerID, err)
	}
	if urlChanged {
		s.gateway.Clients().Forget(providerID)
	}

	zap.L().Info("Updated provider", zap.String("name", updated.Name), zap.Uint("id", updated.ID))
	view := ModelToProvider(updated)
	return &view, nil
}

// DeleteProvider removes a provider by ID. Returns ErrCodeNotFound if not found.
func (s *ProviderService) DeleteProvider(ctx context.Context, providerID uint) error {
	if err := s.store.Provider().Delete(ctx, providerID); err != nil {
		return providerLookupFailure(providerID, err)
	}
	s.gateway.Clients().Forget(providerID)

	zap.L().Info("Deleted provider", zap.Uint("id", providerID))
	return nil
}

// ListImages reads the provider's image catalog through.
func (s *ProviderService) ListImages(ctx context.Context, providerID uint) ([]cloud.Image, error) {
	provider, err := s.store.Provider().Get(ctx, providerID)
	if err != nil {
		return nil, providerLookupFailure(providerID, err)
	}
	images, err := s.gateway.Images.GetAll(ctx, *provider)
	if err != nil {
		return nil, remoteFailure(err, "image catalog not found")
	}
	return images, nil
}

// ListFlavours reads the provider's flavour catalog through.
func (s *ProviderService) ListFlavours(ctx context.Context, providerID uint) ([]cloud.Flavour, error) {
	provider, err := s.store.Provider().Get(ctx, providerID)
	if err != nil {
		return nil, providerLookupFailure(providerID, err)
	}
	flavours, err := s.gateway.Flavours.GetAll(ctx, *provider)
	if err != nil {
		return nil, remoteFailure(err, "flavour catalog not found")
	}
	return flavours, nil
}

func validateProvider(req *ProviderRequest) error {
	if req == nil || strings.TrimSpace(req.Name) == "" {
		return NewBadRequestError("provider name is required")
	}
	if strings.TrimSpace(req.URL) == "" {
		return NewBadRequestError("provider url is required")
	}
	return nil
}

func providerLookupFailure(providerID uint, err error) error {
	if errors.Is(err, store.ErrProviderNotFound) {
		return NewNotFoundError(fmt.Sprintf("provider %d not found", providerID))
	}
	return internalFailure("retrieve provider", err)
}

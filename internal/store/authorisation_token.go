package store

import (
	"context"
	"errors"

	"github.com/dcm-project/cloud-instance-manager/internal/store/model"
	"gorm.io/gorm"
)

var (
	ErrAuthorisationTokenNotFound = errors.New("authorisation token not found")
)

type AuthorisationToken interface {
	Create(ctx context.Context, token model.AuthorisationToken) (*model.AuthorisationToken, error)
	GetByToken(ctx context.Context, token string) (*model.AuthorisationToken, error)
}

type AuthorisationTokenStore struct {
	db *gorm.DB
}

var _ AuthorisationToken = (*AuthorisationTokenStore)(nil)

func NewAuthorisationToken(db *gorm.DB) AuthorisationToken {
	return &AuthorisationTokenStore{db: db}
}

func (s *AuthorisationTokenStore) Create(ctx context.Context, token model.AuthorisationToken) (*model.AuthorisationToken, error) {
	if err := s.db.WithContext(ctx).Omit("InstanceMember").Create(&token).Error; err != nil {
		return nil, err
	}
	return s.GetByToken(ctx, token.Token)
}

func (s *AuthorisationTokenStore) GetByToken(ctx context.Context, token string) (*model.AuthorisationToken, error) {
	if token == "" {
		return nil, ErrAuthorisationTokenNotFound
	}
	var authToken model.AuthorisationToken
	err := s.db.WithContext(ctx).
		Preload("InstanceMember.User").
		Where("token = ?", token).
		First(&authToken).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAuthorisationTokenNotFound
		}
		return nil, err
	}
	return &authToken, nil
}

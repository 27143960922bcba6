package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/dcm-project/cloud-instance-manager/internal/store"
	"github.com/dcm-project/cloud-instance-manager/internal/store/model"
)

type UserService struct {
	store store.Store
}

func NewUserService(store store.Store) *UserService {
	return &UserService{store: store}
}

func (s *UserService) GetUser(ctx context.Context, userID uint) (*model.User, error) {
	user, err := s.store.User().Get(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, NewNotFoundError(fmt.Sprintf("user %d not found", userID))
		}
		return nil, internalFailure("retrieve user", err)
	}
	return user, nil
}

// SaveUser inserts or overwrites the user with the caller supplied id.
func (s *UserService) SaveUser(ctx context.Context, user model.User) (*model.User, error) {
	if user.ID == 0 {
		return nil, NewBadRequestError("user id is required")
	}
	saved, err := s.store.User().Save(ctx, user)
	if err != nil {
		return nil, internalFailure("save user", err)
	}
	return saved, nil
}

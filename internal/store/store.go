package store

import (
	"context"

	"gorm.io/gorm"
)

// Pagination contains options for paginated queries.
type Pagination struct {
	Limit  int
	Offset int
}

type Store interface {
	Close() error
	Ping(ctx context.Context) error
	Provider() Provider
	Plan() Plan
	Instance() Instance
	InstanceMember() InstanceMember
	User() User
	AuthorisationToken() AuthorisationToken
	ReconciliationRun() ReconciliationRun
}

type DataStore struct {
	db                 *gorm.DB
	provider           Provider
	plan               Plan
	instance           Instance
	instanceMember     InstanceMember
	user               User
	authorisationToken AuthorisationToken
	reconciliationRun  ReconciliationRun
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		db:                 db,
		provider:           NewProvider(db),
		plan:               NewPlan(db),
		instance:           NewInstance(db),
		instanceMember:     NewInstanceMember(db),
		user:               NewUser(db),
		authorisationToken: NewAuthorisationToken(db),
		reconciliationRun:  NewReconciliationRun(db),
	}
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *DataStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *DataStore) Provider() Provider {
	return s.provider
}

func (s *DataStore) Plan() Plan {
	return s.plan
}

func (s *DataStore) Instance() Instance {
	return s.instance
}

func (s *DataStore) InstanceMember() InstanceMember {
	return s.instanceMember
}

func (s *DataStore) User() User {
	return s.user
}

func (s *DataStore) AuthorisationToken() AuthorisationToken {
	return s.authorisationToken
}

func (s *DataStore) ReconciliationRun() ReconciliationRun {
	return s.reconciliationRun
}

package service

import (
	"time"

	"github.com/dcm-project/cloud-instance-manager/internal/store/model"
)

// ModelToProvider converts a database model to an API response type
func ModelToProvider(m *model.Provider) ProviderView {
	return ProviderView{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		URL:         m.URL,
		CreateTime:  ptrTime(m.CreateTime),
		UpdateTime:  ptrTime(m.UpdateTime),
	}
}

// ProviderToModel converts an API request to a database model
func ProviderToModel(req *ProviderRequest) model.Provider {
	return model.Provider{
		Name:        req.Name,
		Description: req.Description,
		URL:         req.URL,
	}
}

func PlanToModel(req *PlanRequest) model.Plan {
	return model.Plan{
		Name:        req.Name,
		Description: req.Description,
		ProviderID:  req.ProviderID,
		ImageID:     req.ImageID,
		FlavourID:   req.FlavourID,
	}
}

func ModelToUser(m *model.User) UserView {
	return UserView{
		ID:        m.ID,
		FirstName: m.FirstName,
		LastName:  m.LastName,
		Email:     m.Email,
	}
}

func UserToModel(req *UserRequest) model.User {
	return model.User{
		ID:        req.ID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	}
}

func ModelToMember(m *model.InstanceMember) MemberView {
	return MemberView{
		ID:        m.ID,
		Role:      m.Role,
		User:      ModelToUser(&m.User),
		CreatedAt: m.CreateTime,
	}
}

func ModelToMembers(members []model.InstanceMember) []MemberView {
	views := make([]MemberView, len(members))
	for i := range members {
		views[i] = ModelToMember(&members[i])
	}
	return views
}

// Helper functions for pointer conversions

func ptrTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func ptrString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

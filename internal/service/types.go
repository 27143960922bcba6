package service

import (
	"time"

	"github.com/dcm-project/cloud-instance-manager/internal/cloud"
	"github.com/dcm-project/cloud-instance-manager/internal/store/model"
)

type ProviderView struct {
	ID          uint       `json:"id"`
	Name        string     `json:"name"`
	Description *string    `json:"description,omitempty"`
	URL         string     `json:"url"`
	CreateTime  *time.Time `json:"createTime,omitempty"`
	UpdateTime  *time.Time `json:"updateTime,omitempty"`
}

type ProviderRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	URL         string  `json:"url"`
}

// PlanView is a plan with its image and flavour resolved against the
// provider catalog. Image or Flavour is nil when the provider no longer
// offers it.
type PlanView struct {
	ID          uint           `json:"id"`
	Name        string         `json:"name"`
	Description *string        `json:"description,omitempty"`
	Provider    ProviderView   `json:"provider"`
	Image       *cloud.Image   `json:"image"`
	Flavour     *cloud.Flavour `json:"flavour"`
}

type PlanRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	ProviderID  uint    `json:"providerId"`
	ImageID     int     `json:"imageId"`
	FlavourID   int     `json:"flavourId"`
}

type UserView struct {
	ID        uint    `json:"id"`
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Email     string  `json:"email"`
}

type UserRequest = UserView

type MemberView struct {
	ID        uint                     `json:"id"`
	Role      model.InstanceMemberRole `json:"role"`
	User      UserView                 `json:"user"`
	CreatedAt time.Time                `json:"createdAt"`
}

type MemberCreateRequest struct {
	User UserRequest              `json:"user"`
	Role model.InstanceMemberRole `json:"role"`
}

type MemberUpdateRequest struct {
	ID   uint                     `json:"id"`
	Role model.InstanceMemberRole `json:"role"`
}

// InstanceView merges the local record with the provider's live state.
type InstanceView struct {
	ID          uint             `json:"id"`
	CloudID     int              `json:"cloudId"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	Hostname    string           `json:"hostname"`
	Protocols   []cloud.Protocol `json:"protocols"`
	Image       *cloud.Image     `json:"image"`
	Flavour     *cloud.Flavour   `json:"flavour"`
	Plan        PlanView         `json:"plan"`
	State       cloud.State      `json:"state"`
	Members     []MemberView     `json:"members"`
}

type InstanceCreateRequest struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	PlanID      uint          `json:"planId"`
	Account     cloud.Account `json:"account"`
}

type InstanceUpdateRequest struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type TokenView struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Network struct {
	Hostname  string           `json:"hostname"`
	Protocols []cloud.Protocol `json:"protocols"`
}

// InstanceAuthorisation is the result of a successful token validation.
type InstanceAuthorisation struct {
	Member  MemberView     `json:"member"`
	Network Network        `json:"network"`
	Account *cloud.Account `json:"account,omitempty"`
}

type ListResult struct {
	Providers     []ProviderView
	NextPageToken string
}

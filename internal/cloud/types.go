package cloud

import (
	"time"
)

// Protocol is a network service exposed by an instance.
type Protocol struct {
	Name         string `json:"name"`
	Port         int    `json:"port"`
	InternalPort int    `json:"internalPort,omitempty"`
}

type Image struct {
	ID              int        `json:"id"`
	Name            string     `json:"name"`
	EnvironmentType string     `json:"environmentType,omitempty"`
	Description     string     `json:"description,omitempty"`
	Protocols       []Protocol `json:"protocols,omitempty"`
}

type Flavour struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CPU         int    `json:"cpu"`
	Memory      int    `json:"memory"`
}

type State struct {
	Status  string  `json:"status"`
	Message string  `json:"message,omitempty"`
	CPU     float64 `json:"cpu"`
	Memory  float64 `json:"memory"`
}

// Account is the system account a provider creates for the instance owner.
type Account struct {
	UserID    uint   `json:"userId"`
	Username  string `json:"username"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty"`
	UID       int    `json:"uid,omitempty"`
	GID       int    `json:"gid,omitempty"`
	HomePath  string `json:"homePath,omitempty"`
}

// Instance is a provider's live view of an instance. Providers report state
// as flat fields; use State to read them together.
type Instance struct {
	ID            int        `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	Hostname      string     `json:"hostname"`
	ComputeID     string     `json:"computeId,omitempty"`
	Status        string     `json:"status"`
	StatusMessage string     `json:"statusMessage,omitempty"`
	CurrentCPU    float64    `json:"currentCPU"`
	CurrentMemory float64    `json:"currentMemory"`
	CreatedAt     *time.Time `json:"createdAt,omitempty"`
	UpdatedAt     *time.Time `json:"updatedAt,omitempty"`
	Protocols     []Protocol `json:"protocols"`
	Image         *Image     `json:"image,omitempty"`
	Flavour       *Flavour   `json:"flavour,omitempty"`
	Account       *Account   `json:"account,omitempty"`
}

func (i Instance) State() State {
	return State{
		Status:  i.Status,
		Message: i.StatusMessage,
		CPU:     i.CurrentCPU,
		Memory:  i.CurrentMemory,
	}
}

type CommandType string

const (
	CommandStart    CommandType = "START"
	CommandShutdown CommandType = "SHUTDOWN"
	CommandReboot   CommandType = "REBOOT"
)

func (t CommandType) IsValid() bool {
	switch t {
	case CommandStart, CommandShutdown, CommandReboot:
		return true
	}
	return false
}

type Command struct {
	Type CommandType `json:"type"`
}

type InstanceCreator struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	ImageID     int     `json:"imageId"`
	FlavourID   int     `json:"flavourId"`
	Account     Account `json:"account"`
}

type InstanceUpdator struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

package cloud

import (
	"context"
	"strconv"

	"github.com/dcm-project/cloud-instance-manager/internal/store/model"
	"github.com/go-resty/resty/v2"
)

// InstanceResource adds the instance lifecycle calls to the read-only
// catalog operations.
type InstanceResource struct {
	*Resource[Instance]
}

func NewInstanceResource(clients *ClientCache) *InstanceResource {
	return &InstanceResource{Resource: NewResource[Instance](clients, "instances")}
}

func (r *InstanceResource) Create(ctx context.Context, provider model.Provider, creator InstanceCreator) (*Instance, error) {
	var created Instance
	_, err := r.call(ctx, provider, "create", func(req *resty.Request) (*resty.Response, error) {
		return req.SetBody(creator).SetResult(&created).Post("/instances")
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *InstanceResource) Update(ctx context.Context, provider model.Provider, updator InstanceUpdator) (*Instance, error) {
	var updated Instance
	_, err := r.call(ctx, provider, "update", func(req *resty.Request) (*resty.Response, error) {
		return req.SetPathParam("id", strconv.Itoa(updator.ID)).
			SetBody(updator).
			SetResult(&updated).
			Put("/instances/{id}")
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes the instance upstream. An instance the provider no longer
// knows counts as deleted.
func (r *InstanceResource) Delete(ctx context.Context, provider model.Provider, id int) (bool, error) {
	_, err := r.call(ctx, provider, "delete", func(req *resty.Request) (*resty.Response, error) {
		return req.SetPathParam("id", strconv.Itoa(id)).Delete("/instances/{id}")
	})
	if err != nil {
		if IsNotFound(err) {
			return true, nil
		}
		return false, err
	}
	return true, nil
}

func (r *InstanceResource) GetState(ctx context.Context, provider model.Provider, id int) (*State, error) {
	var state State
	_, err := r.call(ctx, provider, "state", func(req *resty.Request) (*resty.Response, error) {
		return req.SetPathParam("id", strconv.Itoa(id)).SetResult(&state).Get("/instances/{id}/state")
	})
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// ExecuteAction asks the provider to run command. The returned instance
// reflects the transition the provider started, e.g. REBOOTING.
func (r *InstanceResource) ExecuteAction(ctx context.Context, provider model.Provider, id int, command Command) (*Instance, error) {
	var instance Instance
	_, err := r.call(ctx, provider, "action", func(req *resty.Request) (*resty.Response, error) {
		return req.SetPathParam("id", strconv.Itoa(id)).
			SetBody(command).
			SetResult(&instance).
			Post("/instances/{id}/actions")
	})
	if err != nil {
		return nil, err
	}
	return &instance, nil
}

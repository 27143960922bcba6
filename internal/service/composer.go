package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dcm-project/cloud-instance-manager/internal/cloud"
	"github.com/dcm-project/cloud-instance-manager/internal/store/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Composer builds instance and plan views from local records and the live
// state held by their providers. Remote state is fetched on every call.
type Composer struct {
	gateway *cloud.Gateway
}

func NewComposer(gateway *cloud.Gateway) *Composer {
	return &Composer{gateway: gateway}
}

// providerCatalog is everything fetched from one provider for a batch.
type providerCatalog struct {
	instances map[int]cloud.Instance
	images    map[int]cloud.Image
	flavours  map[int]cloud.Flavour
}

// ComposeMany composes a batch with one listing per resource kind per
// distinct provider. Providers are queried concurrently and independently:
// instances of healthy providers are always returned, and failed providers
// are reported together as a PROVIDER_ERROR next to the partial result.
// Instances missing upstream are left out.
func (c *Composer) ComposeMany(ctx context.Context, instances model.InstanceList) ([]InstanceView, error) {
	plans := distinctPlans(instances)
	providers := distinctProviders(plans)

	catalogs, failures := c.fetchCatalogs(ctx, providers, true)

	planViews := make(map[uint]PlanView, len(plans))
	for _, plan := range plans {
		if catalog, ok := catalogs[plan.ProviderID]; ok {
			planViews[plan.ID] = planView(plan, catalog)
		}
	}

	views := make([]InstanceView, 0, len(instances))
	for _, instance := range instances {
		catalog, ok := catalogs[instance.Plan.ProviderID]
		if !ok {
			continue
		}
		remote, ok := catalog.instances[instance.CloudID]
		if !ok {
			zap.L().Warn("Instance missing at provider",
				zap.Uint("instance_id", instance.ID),
				zap.Int("cloud_id", instance.CloudID),
				zap.String("provider", instance.Plan.Provider.Name))
			continue
		}
		views = append(views, Stitch(instance, remote, planViews[instance.PlanID]))
	}

	if len(failures) > 0 {
		return views, NewProviderError(
			fmt.Sprintf("%d cloud provider(s) unavailable", len(failures)),
			errors.Join(failures...))
	}
	return views, nil
}

// ComposeOne fetches the remote instance, image and flavour concurrently.
func (c *Composer) ComposeOne(ctx context.Context, instance model.Instance) (*InstanceView, error) {
	provider := instance.Plan.Provider
	var (
		remote  *cloud.Instance
		image   *cloud.Image
		flavour *cloud.Flavour
	)

	// errgroup.Group without a context: siblings are not cancelled.
	var g errgroup.Group
	g.Go(func() error {
		var err error
		remote, err = c.gateway.Instances.GetByID(ctx, provider, instance.CloudID)
		if err != nil {
			return remoteFailure(err, fmt.Sprintf("instance %d not found at provider", instance.ID))
		}
		return nil
	})
	g.Go(func() error {
		var err error
		image, err = optional(c.gateway.Images.GetByID(ctx, provider, instance.Plan.ImageID))
		return err
	})
	g.Go(func() error {
		var err error
		flavour, err = optional(c.gateway.Flavours.GetByID(ctx, provider, instance.Plan.FlavourID))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	view := Stitch(instance, *remote, newPlanView(instance.Plan, image, flavour))
	return &view, nil
}

// ConvertPlan resolves one plan's image and flavour by id.
func (c *Composer) ConvertPlan(ctx context.Context, plan model.Plan) (PlanView, error) {
	var (
		image   *cloud.Image
		flavour *cloud.Flavour
	)

	var g errgroup.Group
	g.Go(func() error {
		var err error
		image, err = optional(c.gateway.Images.GetByID(ctx, plan.Provider, plan.ImageID))
		return err
	})
	g.Go(func() error {
		var err error
		flavour, err = optional(c.gateway.Flavours.GetByID(ctx, plan.Provider, plan.FlavourID))
		return err
	})
	if err := g.Wait(); err != nil {
		return PlanView{}, err
	}
	return newPlanView(plan, image, flavour), nil
}

// ConvertPlans resolves a set of plans with one catalog listing per
// provider. Unlike ComposeMany it fails as a whole.
func (c *Composer) ConvertPlans(ctx context.Context, plans model.PlanList) ([]PlanView, error) {
	catalogs, failures := c.fetchCatalogs(ctx, distinctProviders(plans), false)
	if len(failures) > 0 {
		return nil, NewProviderError(
			fmt.Sprintf("%d cloud provider(s) unavailable", len(failures)),
			errors.Join(failures...))
	}

	views := make([]PlanView, len(plans))
	for i, plan := range plans {
		views[i] = planView(plan, catalogs[plan.ProviderID])
	}
	return views, nil
}

// Stitch merges a local instance with its remote counterpart. The remote
// image and flavour win over the plan's when the provider reports them.
func Stitch(instance model.Instance, remote cloud.Instance, plan PlanView) InstanceView {
	image := remote.Image
	if image == nil {
		image = plan.Image
	}
	flavour := remote.Flavour
	if flavour == nil {
		flavour = plan.Flavour
	}
	return InstanceView{
		ID:          instance.ID,
		CloudID:     instance.CloudID,
		Name:        remote.Name,
		Description: remote.Description,
		CreatedAt:   instance.CreateTime,
		Hostname:    remote.Hostname,
		Protocols:   remote.Protocols,
		Image:       image,
		Flavour:     flavour,
		Plan:        plan,
		State:       remote.State(),
		Members:     ModelToMembers(instance.Members),
	}
}

// fetchCatalogs queries every provider concurrently. Each branch runs to
// completion; a failed provider is absent from the returned map and its
// error is collected instead.
func (c *Composer) fetchCatalogs(ctx context.Context, providers []model.Provider, withInstances bool) (map[uint]*providerCatalog, []error) {
	type result struct {
		catalog *providerCatalog
		err     error
	}
	results := make([]result, len(providers))

	var wg sync.WaitGroup
	for i, provider := range providers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			catalog, err := c.fetchCatalog(ctx, provider, withInstances)
			results[i] = result{catalog: catalog, err: err}
		}()
	}
	wg.Wait()

	catalogs := make(map[uint]*providerCatalog, len(providers))
	var failures []error
	for i, r := range results {
		if r.err != nil {
			zap.L().Error("Failed to fetch provider catalog",
				zap.String("provider", providers[i].Name), zap.Error(r.err))
			failures = append(failures, r.err)
			continue
		}
		catalogs[providers[i].ID] = r.catalog
	}
	return catalogs, failures
}

func (c *Composer) fetchCatalog(ctx context.Context, provider model.Provider, withInstances bool) (*providerCatalog, error) {
	var (
		instances []cloud.Instance
		images    []cloud.Image
		flavours  []cloud.Flavour
	)

	var g errgroup.Group
	if withInstances {
		g.Go(func() error {
			var err error
			instances, err = c.gateway.Instances.GetAll(ctx, provider)
			return err
		})
	}
	g.Go(func() error {
		var err error
		images, err = c.gateway.Images.GetAll(ctx, provider)
		return err
	})
	g.Go(func() error {
		var err error
		flavours, err = c.gateway.Flavours.GetAll(ctx, provider)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	catalog := &providerCatalog{
		instances: make(map[int]cloud.Instance, len(instances)),
		images:    make(map[int]cloud.Image, len(images)),
		flavours:  make(map[int]cloud.Flavour, len(flavours)),
	}
	for _, i := range instances {
		catalog.instances[i.ID] = i
	}
	for _, i := range images {
		catalog.images[i.ID] = i
	}
	for _, f := range flavours {
		catalog.flavours[f.ID] = f
	}
	return catalog, nil
}

func planView(plan model.Plan, catalog *providerCatalog) PlanView {
	var (
		image   *cloud.Image
		flavour *cloud.Flavour
	)
	if catalog != nil {
		if i, ok := catalog.images[plan.ImageID]; ok {
			image = &i
		}
		if f, ok := catalog.flavours[plan.FlavourID]; ok {
			flavour = &f
		}
	}
	return newPlanView(plan, image, flavour)
}

func newPlanView(plan model.Plan, image *cloud.Image, flavour *cloud.Flavour) PlanView {
	return PlanView{
		ID:          plan.ID,
		Name:        plan.Name,
		Description: plan.Description,
		Provider:    ModelToProvider(&plan.Provider),
		Image:       image,
		Flavour:     flavour,
	}
}

// optional turns a remote 404 into a nil result and any other failure into
// a PROVIDER_ERROR.
func optional[T any](item *T, err error) (*T, error) {
	if err == nil {
		return item, nil
	}
	if cloud.IsNotFound(err) {
		return nil, nil
	}
	return nil, remoteFailure(err, "")
}

func distinctPlans(instances model.InstanceList) model.PlanList {
	seen := make(map[uint]bool)
	var plans model.PlanList
	for _, instance := range instances {
		if seen[instance.PlanID] {
			continue
		}
		seen[instance.PlanID] = true
		plans = append(plans, instance.Plan)
	}
	return plans
}

func distinctProviders(plans model.PlanList) []model.Provider {
	seen := make(map[uint]bool)
	var providers []model.Provider
	for _, plan := range plans {
		if seen[plan.ProviderID] {
			continue
		}
		seen[plan.ProviderID] = true
		providers = append(providers, plan.Provider)
	}
	return providers
}

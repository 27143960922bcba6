package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dcm-project/cloud-instance-manager/internal/cloud"
	"github.com/dcm-project/cloud-instance-manager/internal/events"
	"github.com/dcm-project/cloud-instance-manager/internal/metrics"
	"github.com/dcm-project/cloud-instance-manager/internal/store"
	"github.com/dcm-project/cloud-instance-manager/internal/store/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Result summarises one reconciliation sweep.
type Result struct {
	DeletedCount       int    `json:"deletedCount"`
	DeletedInstanceIDs []uint `json:"deletedInstanceIds"`
}

// Job soft-deletes local instances whose remote counterpart no longer
// exists. Concurrent callers of RunOnce share the sweep in flight.
type Job struct {
	store     store.Store
	gateway   *cloud.Gateway
	publisher events.Publisher
	group     singleflight.Group
	now       func() time.Time
}

func NewJob(store store.Store, gateway *cloud.Gateway, publisher events.Publisher) *Job {
	return &Job{
		store:     store,
		gateway:   gateway,
		publisher: publisher,
		now:       time.Now,
	}
}

// RunOnce sweeps once. The sweep is shared with other callers, so it runs
// detached from ctx's cancellation; remote calls stay bounded by the client
// timeout.
func (j *Job) RunOnce(ctx context.Context) (*Result, error) {
	v, err, shared := j.group.Do("reconcile", func() (any, error) {
		return j.run(context.WithoutCancel(ctx))
	})
	if shared {
		zap.L().Debug("Joined reconciliation already in flight")
	}
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

// ListRuns returns the most recent sweeps first.
func (j *Job) ListRuns(ctx context.Context, limit int) (model.ReconciliationRunList, error) {
	return j.store.ReconciliationRun().List(ctx, limit)
}

func (j *Job) run(ctx context.Context) (*Result, error) {
	started := j.now()
	result, err := j.sweep(ctx)
	metrics.ReconciliationRunCounter.WithLabelValues(metrics.Outcome(err)).Inc()

	run := model.ReconciliationRun{
		StartedAt:  started,
		FinishedAt: j.now(),
	}
	if err != nil {
		message := err.Error()
		run.Error = &message
	} else {
		run.DeletedCount = result.DeletedCount
		run.DeletedInstanceIDs = result.DeletedInstanceIDs
	}
	if _, recErr := j.store.ReconciliationRun().Create(ctx, run); recErr != nil {
		zap.L().Warn("Failed to record reconciliation run", zap.Error(recErr))
	}

	if err != nil {
		zap.L().Error("Reconciliation failed", zap.Error(err))
		return nil, err
	}
	zap.L().Info("Reconciliation finished",
		zap.Int("deleted", result.DeletedCount), zap.Duration("took", run.FinishedAt.Sub(started)))
	return result, nil
}

func (j *Job) sweep(ctx context.Context) (*Result, error) {
	instances, err := j.store.Instance().List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}

	remote, err := j.remoteInstanceIDs(ctx, distinctProviders(instances))
	if err != nil {
		return nil, err
	}

	result := &Result{DeletedInstanceIDs: []uint{}}
	for _, instance := range instances {
		if _, ok := remote[instance.Plan.ProviderID][instance.CloudID]; ok {
			continue
		}
		if err := j.store.Instance().MarkDeleted(ctx, instance.ID); err != nil {
			if errors.Is(err, store.ErrInstanceNotFound) {
				continue
			}
			return nil, fmt.Errorf("mark instance %d deleted: %w", instance.ID, err)
		}

		zap.L().Info("Instance no longer exists at provider",
			zap.Uint("instance_id", instance.ID), zap.Int("cloud_id", instance.CloudID),
			zap.String("provider", instance.Plan.Provider.Name))
		result.DeletedCount++
		result.DeletedInstanceIDs = append(result.DeletedInstanceIDs, instance.ID)
		metrics.ReconciledInstanceCounter.Inc()
		j.publish(ctx, instance)
	}
	return result, nil
}

// remoteInstanceIDs fetches the instance ids of every provider
// concurrently. The first failure aborts the sweep.
func (j *Job) remoteInstanceIDs(ctx context.Context, providers []model.Provider) (map[uint]map[int]struct{}, error) {
	ids := make([]map[int]struct{}, len(providers))

	g, gctx := errgroup.WithContext(ctx)
	for i, provider := range providers {
		g.Go(func() error {
			instances, err := j.gateway.Instances.GetAll(gctx, provider)
			if err != nil {
				return fmt.Errorf("list instances of provider '%s': %w", provider.Name, err)
			}
			set := make(map[int]struct{}, len(instances))
			for _, instance := range instances {
				set[instance.ID] = struct{}{}
			}
			ids[i] = set
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byProvider := make(map[uint]map[int]struct{}, len(providers))
	for i, provider := range providers {
		byProvider[provider.ID] = ids[i]
	}
	return byProvider, nil
}

func (j *Job) publish(ctx context.Context, instance model.Instance) {
	event := events.Event{
		Type:       events.InstanceReconciled,
		InstanceID: instance.ID,
		CloudID:    instance.CloudID,
		PlanID:     instance.PlanID,
		OccurredAt: j.now().UTC(),
	}
	if err := j.publisher.Publish(ctx, event); err != nil {
		zap.L().Warn("Failed to publish instance event", zap.String("subject", event.Subject()), zap.Error(err))
	}
}

func distinctProviders(instances model.InstanceList) []model.Provider {
	seen := make(map[uint]struct{})
	var providers []model.Provider
	for _, instance := range instances {
		provider := instance.Plan.Provider
		if _, ok := seen[provider.ID]; ok {
			continue
		}
		seen[provider.ID] = struct{}{}
		providers = append(providers, provider)
	}
	return providers
}

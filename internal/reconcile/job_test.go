package reconcile_test

import (
	"context"
	"net/http"
	"sync"

	"github.com/dcm-project/cloud-instance-manager/internal/cloud"
	"github.com/dcm-project/cloud-instance-manager/internal/events"
	"github.com/dcm-project/cloud-instance-manager/internal/reconcile"
	"github.com/dcm-project/cloud-instance-manager/internal/store"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Job", func() {
	var (
		dataStore store.Store
		recorder  *events.Recorder
		job       *reconcile.Job
		ctx       context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		dataStore = newTestStore()
		DeferCleanup(dataStore.Close)
		recorder = &events.Recorder{}
		job = reconcile.NewJob(dataStore, newTestGateway(), recorder)
	})

	It("soft-deletes only the instance that vanished upstream", func() {
		a := newFixture(ctx, dataStore, "a")
		b := newFixture(ctx, dataStore, "b")
		a.addInstance(ctx, dataStore, 5)
		a.addInstance(ctx, dataStore, 6)
		vanished := a.addInstance(ctx, dataStore, 7)
		// Same cloud id at another provider must survive.
		b.addInstance(ctx, dataStore, 7)
		a.mock.RemoveInstance(7)

		result, err := job.RunOnce(ctx)

		Expect(err).NotTo(HaveOccurred())
		Expect(result.DeletedCount).To(Equal(1))
		Expect(result.DeletedInstanceIDs).To(ConsistOf(vanished.ID))

		live, err := dataStore.Instance().List(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(live).To(HaveLen(3))
		_, err = dataStore.Instance().Get(ctx, vanished.ID)
		Expect(err).To(MatchError(store.ErrInstanceNotFound))

		reconciled := recorder.OfType(events.InstanceReconciled)
		Expect(reconciled).To(HaveLen(1))
		Expect(reconciled[0].InstanceID).To(Equal(vanished.ID))
	})

	It("is a no-op when everything still exists", func() {
		a := newFixture(ctx, dataStore, "a")
		a.addInstance(ctx, dataStore, 5)

		result, err := job.RunOnce(ctx)

		Expect(err).NotTo(HaveOccurred())
		Expect(result.DeletedCount).To(BeZero())
		Expect(result.DeletedInstanceIDs).To(BeEmpty())
		Expect(recorder.Events()).To(BeEmpty())
	})

	It("does not touch anything when a provider fails", func() {
		a := newFixture(ctx, dataStore, "a")
		b := newFixture(ctx, dataStore, "b")
		a.addInstance(ctx, dataStore, 5)
		b.addInstance(ctx, dataStore, 6)
		a.mock.RemoveInstance(5)
		b.mock.FailWith(http.StatusServiceUnavailable)

		_, err := job.RunOnce(ctx)

		Expect(err).To(HaveOccurred())
		live, err := dataStore.Instance().List(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(live).To(HaveLen(2))

		runs, err := job.ListRuns(ctx, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(runs).To(HaveLen(1))
		Expect(runs[0].Error).NotTo(BeNil())
		Expect(runs[0].DeletedCount).To(BeZero())
	})

	It("does not touch anything when a provider answers with a non-JSON page", func() {
		a := newFixture(ctx, dataStore, "a")
		a.addInstance(ctx, dataStore, 5)
		a.mock.ReplyRaw("text/html", "<html>maintenance</html>")

		result, err := job.RunOnce(ctx)

		Expect(err).To(MatchError(cloud.ErrMalformedPayload))
		Expect(result).To(BeNil())
		live, err := dataStore.Instance().List(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(live).To(HaveLen(1))
		Expect(recorder.Events()).To(BeEmpty())
	})

	It("finishes the sweep even if the caller has gone away", func() {
		a := newFixture(ctx, dataStore, "a")
		gone := a.addInstance(ctx, dataStore, 5)
		a.mock.RemoveInstance(5)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		result, err := job.RunOnce(cancelled)

		Expect(err).NotTo(HaveOccurred())
		Expect(result.DeletedInstanceIDs).To(ConsistOf(gone.ID))
	})

	It("records every run, most recent first", func() {
		a := newFixture(ctx, dataStore, "a")
		gone := a.addInstance(ctx, dataStore, 5)
		a.mock.RemoveInstance(5)

		_, err := job.RunOnce(ctx)
		Expect(err).NotTo(HaveOccurred())
		_, err = job.RunOnce(ctx)
		Expect(err).NotTo(HaveOccurred())

		runs, err := job.ListRuns(ctx, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(runs).To(HaveLen(2))
		Expect(runs[0].DeletedCount).To(BeZero())
		Expect(runs[1].DeletedCount).To(Equal(1))
		Expect([]uint(runs[1].DeletedInstanceIDs)).To(ConsistOf(gone.ID))
		Expect(runs[1].Error).To(BeNil())
	})

	It("deletes each vanished instance once under concurrent runs", func() {
		a := newFixture(ctx, dataStore, "a")
		gone := a.addInstance(ctx, dataStore, 5)
		a.addInstance(ctx, dataStore, 6)
		a.mock.RemoveInstance(5)

		var wg sync.WaitGroup
		for range 4 {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				_, err := job.RunOnce(ctx)
				Expect(err).NotTo(HaveOccurred())
			}()
		}
		wg.Wait()

		reconciled := recorder.OfType(events.InstanceReconciled)
		Expect(reconciled).To(HaveLen(1))
		Expect(reconciled[0].InstanceID).To(Equal(gone.ID))
	})
})

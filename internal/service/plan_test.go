package service_test

import (
	"context"
	"net/http"

	"github.com/dcm-project/cloud-instance-manager/internal/cloud"
	"github.com/dcm-project/cloud-instance-manager/internal/cloud/cloudtest"
	"github.com/dcm-project/cloud-instance-manager/internal/service"
	"github.com/dcm-project/cloud-instance-manager/internal/store"
	"github.com/dcm-project/cloud-instance-manager/internal/store/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("PlanService", func() {
	var (
		dataStore store.Store
		mock      *cloudtest.Provider
		provider  *model.Provider
		plans     *service.PlanService
		ctx       context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		dataStore = newTestStore()
		DeferCleanup(dataStore.Close)
		mock, provider = newMockProvider(ctx, dataStore, "plans")
		gateway := newTestGateway()
		plans = service.NewPlanService(dataStore, gateway, service.NewComposer(gateway))
	})

	request := func() *service.PlanRequest {
		return &service.PlanRequest{Name: "small-ubuntu", ProviderID: provider.ID, ImageID: imageID, FlavourID: flavourID}
	}

	It("creates a plan resolved against the catalog", func() {
		created, err := plans.CreatePlan(ctx, request())

		Expect(err).NotTo(HaveOccurred())
		Expect(created.Provider.ID).To(Equal(provider.ID))
		Expect(created.Image.Name).To(Equal("ubuntu"))
		Expect(created.Flavour.Name).To(Equal("small"))
	})

	It("rejects images and flavours the provider does not offer", func() {
		req := request()
		req.ImageID = 99
		_, err := plans.CreatePlan(ctx, req)
		Expect(err).To(HaveServiceCode(service.ErrCodeBadRequest))

		req = request()
		req.FlavourID = 99
		_, err = plans.CreatePlan(ctx, req)
		Expect(err).To(HaveServiceCode(service.ErrCodeBadRequest))

		req = request()
		req.ProviderID = 99
		_, err = plans.CreatePlan(ctx, req)
		Expect(err).To(HaveServiceCode(service.ErrCodeBadRequest))
	})

	It("updates a plan and filters listings", func() {
		created, err := plans.CreatePlan(ctx, request())
		Expect(err).NotTo(HaveOccurred())

		mock.AddImage(cloud.Image{ID: 3, Name: "fedora"})
		req := request()
		req.ImageID = 3
		_, err = plans.UpdatePlan(ctx, created.ID, req)
		Expect(err).NotTo(HaveOccurred())

		listed, err := plans.ListPlans(ctx, &store.PlanFilter{ProviderID: &provider.ID})
		Expect(err).NotTo(HaveOccurred())
		Expect(listed).To(HaveLen(1))
		Expect(listed[0].Image.Name).To(Equal("fedora"))

		other := 7
		listed, err = plans.ListPlans(ctx, &store.PlanFilter{ImageID: &other})
		Expect(err).NotTo(HaveOccurred())
		Expect(listed).To(BeEmpty())
	})

	It("renders an image the provider withdrew as nil", func() {
		stored, err := dataStore.Plan().Create(ctx, model.Plan{Name: "stale", ProviderID: provider.ID, ImageID: 99, FlavourID: flavourID})
		Expect(err).NotTo(HaveOccurred())

		view, err := plans.GetPlan(ctx, stored.ID)

		Expect(err).NotTo(HaveOccurred())
		Expect(view.Image).To(BeNil())
		Expect(view.Flavour).NotTo(BeNil())
	})

	It("deletes plans", func() {
		created, err := plans.CreatePlan(ctx, request())
		Expect(err).NotTo(HaveOccurred())

		Expect(plans.DeletePlan(ctx, created.ID)).To(Succeed())
		_, err = plans.GetPlan(ctx, created.ID)
		Expect(err).To(HaveServiceCode(service.ErrCodeNotFound))
	})

	It("fails when the provider is unreachable", func() {
		mock.FailWith(http.StatusServiceUnavailable)

		_, err := plans.CreatePlan(ctx, request())

		Expect(err).To(HaveServiceCode(service.ErrCodeProviderError))
	})
})

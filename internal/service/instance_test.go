package service_test

import (
	"context"
	"net/http"

	"github.com/dcm-project/cloud-instance-manager/internal/cloud"
	"github.com/dcm-project/cloud-instance-manager/internal/cloud/cloudtest"
	"github.com/dcm-project/cloud-instance-manager/internal/events"
	"github.com/dcm-project/cloud-instance-manager/internal/service"
	"github.com/dcm-project/cloud-instance-manager/internal/store"
	"github.com/dcm-project/cloud-instance-manager/internal/store/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("InstanceService", func() {
	var (
		dataStore store.Store
		mock      *cloudtest.Provider
		plan      *model.Plan
		recorder  *events.Recorder
		members   *service.MemberService
		instances *service.InstanceService
		ctx       context.Context
	)

	account := cloud.Account{UserID: 1, Username: "alice", Email: "alice@example.com", FirstName: "Alice"}

	BeforeEach(func() {
		ctx = context.Background()
		dataStore = newTestStore()
		DeferCleanup(dataStore.Close)

		var provider *model.Provider
		mock, provider = newMockProvider(ctx, dataStore, "instances")
		plan = newPlan(ctx, dataStore, provider)

		gateway := newTestGateway()
		users := service.NewUserService(dataStore)
		members = service.NewMemberService(dataStore, users)
		recorder = &events.Recorder{}
		instances = service.NewInstanceService(dataStore, gateway, service.NewComposer(gateway), members, users, recorder)
	})

	create := func() *service.InstanceView {
		view, err := instances.CreateInstance(ctx, &service.InstanceCreateRequest{
			Name:    "web",
			PlanID:  plan.ID,
			Account: account,
		})
		Expect(err).NotTo(HaveOccurred())
		return view
	}

	Describe("CreateInstance", func() {
		It("provisions remotely and records the account user as owner", func() {
			view := create()

			Expect(view.CloudID).To(Equal(1001))
			Expect(view.Name).To(Equal("web"))
			Expect(view.State.Status).To(Equal("BUILDING"))
			Expect(view.Plan.ID).To(Equal(plan.ID))
			Expect(view.Image).NotTo(BeNil())
			Expect(view.Flavour).NotTo(BeNil())
			Expect(view.Members).To(HaveLen(1))
			Expect(view.Members[0].Role).To(Equal(model.RoleOwner))
			Expect(view.Members[0].User.ID).To(Equal(account.UserID))

			owner, err := dataStore.InstanceMember().GetOwner(ctx, view.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(owner.User.Email).To(Equal(account.Email))

			created := recorder.OfType(events.InstanceCreated)
			Expect(created).To(HaveLen(1))
			Expect(created[0].InstanceID).To(Equal(view.ID))
			Expect(created[0].CloudID).To(Equal(1001))
		})

		It("rejects an unknown plan", func() {
			_, err := instances.CreateInstance(ctx, &service.InstanceCreateRequest{
				Name:    "web",
				PlanID:  999,
				Account: account,
			})

			Expect(err).To(HaveServiceCode(service.ErrCodeBadRequest))
			Expect(mock.Hits(http.MethodPost, "/instances")).To(BeZero())
		})

		It("requires a name", func() {
			_, err := instances.CreateInstance(ctx, &service.InstanceCreateRequest{PlanID: plan.ID, Account: account})

			Expect(err).To(HaveServiceCode(service.ErrCodeBadRequest))
		})

		It("records nothing when the provider fails", func() {
			mock.FailWith(http.StatusServiceUnavailable)

			_, err := instances.CreateInstance(ctx, &service.InstanceCreateRequest{
				Name:    "web",
				PlanID:  plan.ID,
				Account: account,
			})

			Expect(err).To(HaveServiceCode(service.ErrCodeProviderError))
			listed, err := dataStore.Instance().List(ctx, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(listed).To(BeEmpty())
			Expect(recorder.Events()).To(BeEmpty())
		})

		It("still records the instance when the catalog cannot be read", func() {
			mock.FailPathWith("/images", http.StatusInternalServerError)

			view := create()

			Expect(view.CloudID).To(Equal(1001))
			Expect(view.Plan.Image).To(BeNil())
			Expect(view.Plan.Flavour).NotTo(BeNil())
			_, ok := mock.Instance(1001)
			Expect(ok).To(BeTrue())
			listed, err := dataStore.Instance().List(ctx, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(listed).To(HaveLen(1))
			Expect(listed[0].CloudID).To(Equal(1001))
		})

		It("only lets a user create instances they own", func() {
			_, err := instances.CreateInstanceForUser(ctx, 2, &service.InstanceCreateRequest{
				Name:    "web",
				PlanID:  plan.ID,
				Account: account,
			})

			Expect(err).To(HaveServiceCode(service.ErrCodeBadRequest))

			view, err := instances.CreateInstanceForUser(ctx, account.UserID, &service.InstanceCreateRequest{
				Name:    "web",
				PlanID:  plan.ID,
				Account: account,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Members[0].User.ID).To(Equal(account.UserID))
		})
	})

	Describe("reads", func() {
		It("lists and gets live instances", func() {
			view := create()

			listed, err := instances.ListInstances(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(listed).To(HaveLen(1))
			Expect(listed[0].Hostname).To(Equal("instance-1001.cloud.test"))

			got, err := instances.GetInstance(ctx, view.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.CloudID).To(Equal(view.CloudID))
		})

		It("scopes reads to the user's memberships", func() {
			view := create()
			_, err := dataStore.User().Save(ctx, model.User{ID: 2, Email: "bob@example.com"})
			Expect(err).NotTo(HaveOccurred())

			mine, err := instances.ListInstancesForUser(ctx, account.UserID)
			Expect(err).NotTo(HaveOccurred())
			Expect(mine).To(HaveLen(1))

			theirs, err := instances.ListInstancesForUser(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(theirs).To(BeEmpty())

			_, err = instances.GetInstanceForUser(ctx, view.ID, 2)
			Expect(err).To(HaveServiceCode(service.ErrCodeNotFound))

			_, err = instances.ListInstancesForUser(ctx, 77)
			Expect(err).To(HaveServiceCode(service.ErrCodeNotFound))
		})

		It("returns the provider's state", func() {
			view := create()

			state, err := instances.GetInstanceState(ctx, view.ID)

			Expect(err).NotTo(HaveOccurred())
			Expect(state.Status).To(Equal("BUILDING"))
		})
	})

	Describe("UpdateInstance", func() {
		It("renames the instance at the provider", func() {
			view := create()

			updated, err := instances.UpdateInstance(ctx, view.ID, &service.InstanceUpdateRequest{
				ID:          view.ID,
				Name:        "api",
				Description: "renamed",
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Name).To(Equal("api"))
			remote, ok := mock.Instance(view.CloudID)
			Expect(ok).To(BeTrue())
			Expect(remote.Description).To(Equal("renamed"))
			Expect(recorder.OfType(events.InstanceUpdated)).To(HaveLen(1))
		})

		It("rejects a body id that differs from the path", func() {
			view := create()

			_, err := instances.UpdateInstance(ctx, view.ID, &service.InstanceUpdateRequest{ID: view.ID + 1, Name: "api"})

			Expect(err).To(HaveServiceCode(service.ErrCodeBadRequest))
			Expect(mock.Hits(http.MethodPut, "/instances/{id}")).To(BeZero())
		})

		It("only lets the owner update", func() {
			view := create()
			instance, err := dataStore.Instance().Get(ctx, view.ID)
			Expect(err).NotTo(HaveOccurred())
			_, err = members.AddMember(ctx, instance, model.User{ID: 2, Email: "bob@example.com"}, model.RoleUser)
			Expect(err).NotTo(HaveOccurred())

			_, err = instances.UpdateInstanceForUser(ctx, view.ID, 2, &service.InstanceUpdateRequest{ID: view.ID, Name: "api"})
			Expect(err).To(HaveServiceCode(service.ErrCodeUnauthorized))

			_, err = instances.UpdateInstanceForUser(ctx, view.ID, account.UserID, &service.InstanceUpdateRequest{ID: view.ID, Name: "api"})
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("DeleteInstance", func() {
		It("deletes remotely and soft-deletes locally", func() {
			view := create()

			Expect(instances.DeleteInstance(ctx, view.ID)).To(Succeed())

			_, ok := mock.Instance(view.CloudID)
			Expect(ok).To(BeFalse())
			_, err := instances.GetInstance(ctx, view.ID)
			Expect(err).To(HaveServiceCode(service.ErrCodeNotFound))

			all, err := dataStore.Instance().List(ctx, &store.InstanceFilter{IncludeDeleted: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
			Expect(all[0].Deleted).To(BeTrue())
			Expect(recorder.OfType(events.InstanceDeleted)).To(HaveLen(1))
		})

		It("treats an instance already gone upstream as deleted", func() {
			view := create()
			mock.RemoveInstance(view.CloudID)

			Expect(instances.DeleteInstance(ctx, view.ID)).To(Succeed())
		})

		It("keeps the local record when the provider fails", func() {
			view := create()
			mock.FailWith(http.StatusInternalServerError)

			err := instances.DeleteInstance(ctx, view.ID)

			Expect(err).To(HaveServiceCode(service.ErrCodeProviderError))
			_, err = dataStore.Instance().Get(ctx, view.ID)
			Expect(err).NotTo(HaveOccurred())
		})

		It("only lets the owner delete", func() {
			view := create()
			instance, err := dataStore.Instance().Get(ctx, view.ID)
			Expect(err).NotTo(HaveOccurred())
			_, err = members.AddMember(ctx, instance, model.User{ID: 2, Email: "bob@example.com"}, model.RoleUser)
			Expect(err).NotTo(HaveOccurred())

			Expect(instances.DeleteInstanceForUser(ctx, view.ID, 2)).To(HaveServiceCode(service.ErrCodeUnauthorized))
			Expect(instances.DeleteInstanceForUser(ctx, view.ID, account.UserID)).To(Succeed())
		})
	})

	Describe("ExecuteAction", func() {
		It("forwards the command to the provider", func() {
			view := create()

			rebooted, err := instances.ExecuteAction(ctx, view.ID, cloud.Command{Type: cloud.CommandReboot})

			Expect(err).NotTo(HaveOccurred())
			Expect(rebooted.State.Status).To(Equal("REBOOTING"))
		})

		It("rejects an unknown command before calling out", func() {
			view := create()

			_, err := instances.ExecuteAction(ctx, view.ID, cloud.Command{Type: "HIBERNATE"})

			Expect(err).To(HaveServiceCode(service.ErrCodeBadRequest))
			Expect(mock.Hits(http.MethodPost, "/instances/{id}/actions")).To(BeZero())
		})

		It("lets users act but not guests", func() {
			view := create()
			instance, err := dataStore.Instance().Get(ctx, view.ID)
			Expect(err).NotTo(HaveOccurred())
			_, err = members.AddMember(ctx, instance, model.User{ID: 2, Email: "bob@example.com"}, model.RoleUser)
			Expect(err).NotTo(HaveOccurred())
			_, err = members.AddMember(ctx, instance, model.User{ID: 3, Email: "carol@example.com"}, model.RoleGuest)
			Expect(err).NotTo(HaveOccurred())

			_, err = instances.ExecuteActionForUser(ctx, view.ID, 2, cloud.Command{Type: cloud.CommandShutdown})
			Expect(err).NotTo(HaveOccurred())

			_, err = instances.ExecuteActionForUser(ctx, view.ID, 3, cloud.Command{Type: cloud.CommandStart})
			Expect(err).To(HaveServiceCode(service.ErrCodeUnauthorized))
		})
	})
})

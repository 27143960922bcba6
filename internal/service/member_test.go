package service_test

import (
	"context"

	"github.com/dcm-project/cloud-instance-manager/internal/service"
	"github.com/dcm-project/cloud-instance-manager/internal/store"
	"github.com/dcm-project/cloud-instance-manager/internal/store/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("MemberService", func() {
	var (
		dataStore store.Store
		members   *service.MemberService
		instance  *model.Instance
		owner     model.User
		guest     model.User
		ctx       context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		dataStore = newTestStore()
		DeferCleanup(dataStore.Close)
		members = service.NewMemberService(dataStore, service.NewUserService(dataStore))

		mock, provider := newMockProvider(ctx, dataStore, "members")
		plan := newPlan(ctx, dataStore, provider)
		owner = model.User{ID: 1, Email: "owner@example.com"}
		guest = model.User{ID: 4, Email: "guest@example.com"}
		instance = newInstance(ctx, dataStore, mock, plan, 7, owner)
	})

	ownerMember := func() model.InstanceMember {
		owners := instance.Owners()
		Expect(owners).To(HaveLen(1))
		return owners[0]
	}

	addGuest := func() *service.MemberView {
		created, err := members.CreateMember(ctx, instance.ID, owner.ID, &service.MemberCreateRequest{
			User: service.UserRequest{ID: guest.ID, Email: guest.Email},
			Role: model.RoleGuest,
		})
		Expect(err).NotTo(HaveOccurred())
		return created
	}

	Describe("AddMember", func() {
		It("is idempotent on user and role", func() {
			first, err := members.AddMember(ctx, instance, guest, model.RoleGuest)
			Expect(err).NotTo(HaveOccurred())
			second, err := members.AddMember(ctx, instance, guest, model.RoleGuest)
			Expect(err).NotTo(HaveOccurred())

			Expect(second.ID).To(Equal(first.ID))
			listed, err := dataStore.InstanceMember().ListForInstance(ctx, instance.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(listed).To(HaveLen(2))
		})
	})

	Describe("the membership scenario", func() {
		It("keeps the owner and removes the guest", func() {
			created := addGuest()

			err := members.RemoveMember(ctx, instance.ID, owner.ID, ownerMember().ID)
			Expect(err).To(HaveServiceCode(service.ErrCodeBadRequest))

			Expect(members.RemoveMember(ctx, instance.ID, owner.ID, created.ID)).To(Succeed())

			listed, err := members.ListMembers(ctx, instance.ID, owner.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(listed).To(HaveLen(1))
			Expect(listed[0].Role).To(Equal(model.RoleOwner))
			Expect(listed[0].User.ID).To(Equal(owner.ID))
		})
	})

	Describe("CreateMember", func() {
		It("rejects the OWNER role", func() {
			_, err := members.CreateMember(ctx, instance.ID, owner.ID, &service.MemberCreateRequest{
				User: service.UserRequest{ID: guest.ID},
				Role: model.RoleOwner,
			})

			Expect(err).To(HaveServiceCode(service.ErrCodeBadRequest))
			Expect(instance.Owners()).To(HaveLen(1))
		})

		It("rejects an unknown role", func() {
			_, err := members.CreateMember(ctx, instance.ID, owner.ID, &service.MemberCreateRequest{
				User: service.UserRequest{ID: guest.ID},
				Role: "ADMIN",
			})

			Expect(err).To(HaveServiceCode(service.ErrCodeBadRequest))
		})

		It("requires the caller to own the instance", func() {
			addGuest()

			_, err := members.CreateMember(ctx, instance.ID, guest.ID, &service.MemberCreateRequest{
				User: service.UserRequest{ID: 9},
				Role: model.RoleUser,
			})

			Expect(err).To(HaveServiceCode(service.ErrCodeUnauthorized))
		})

		It("distinguishes a missing instance from a missing membership", func() {
			_, err := members.CreateMember(ctx, 999, owner.ID, &service.MemberCreateRequest{
				User: service.UserRequest{ID: guest.ID},
				Role: model.RoleUser,
			})
			Expect(err).To(HaveServiceCode(service.ErrCodeNotFound))

			_, err = members.ListMembers(ctx, instance.ID, 42)
			Expect(err).To(HaveServiceCode(service.ErrCodeUnauthorized))
		})
	})

	Describe("UpdateMemberRole", func() {
		It("changes a non-owner role", func() {
			created := addGuest()

			updated, err := members.UpdateMemberRole(ctx, instance.ID, owner.ID, created.ID, &service.MemberUpdateRequest{
				ID:   created.ID,
				Role: model.RoleUser,
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(updated.ID).To(Equal(created.ID))
			Expect(updated.Role).To(Equal(model.RoleUser))
		})

		It("rejects promotion to OWNER", func() {
			created := addGuest()

			_, err := members.UpdateMemberRole(ctx, instance.ID, owner.ID, created.ID, &service.MemberUpdateRequest{
				ID:   created.ID,
				Role: model.RoleOwner,
			})

			Expect(err).To(HaveServiceCode(service.ErrCodeBadRequest))
		})

		It("never changes the owner", func() {
			ownerID := ownerMember().ID

			_, err := members.UpdateMemberRole(ctx, instance.ID, owner.ID, ownerID, &service.MemberUpdateRequest{
				ID:   ownerID,
				Role: model.RoleGuest,
			})

			Expect(err).To(HaveServiceCode(service.ErrCodeBadRequest))
			stored, err := dataStore.InstanceMember().Get(ctx, ownerID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Role).To(Equal(model.RoleOwner))
		})

		It("rejects a body id that differs from the path", func() {
			created := addGuest()

			_, err := members.UpdateMemberRole(ctx, instance.ID, owner.ID, created.ID, &service.MemberUpdateRequest{
				ID:   created.ID + 1,
				Role: model.RoleUser,
			})

			Expect(err).To(HaveServiceCode(service.ErrCodeBadRequest))
		})

		It("reports an unknown member as not found", func() {
			_, err := members.UpdateMemberRole(ctx, instance.ID, owner.ID, 999, &service.MemberUpdateRequest{
				ID:   999,
				Role: model.RoleUser,
			})

			Expect(err).To(HaveServiceCode(service.ErrCodeNotFound))
		})
	})
})

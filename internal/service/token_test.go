package service_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dcm-project/cloud-instance-manager/internal/cloud/cloudtest"
	"github.com/dcm-project/cloud-instance-manager/internal/config"
	"github.com/dcm-project/cloud-instance-manager/internal/service"
	"github.com/dcm-project/cloud-instance-manager/internal/store"
	"github.com/dcm-project/cloud-instance-manager/internal/store/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var _ = Describe("TokenService", func() {
	var (
		dataStore store.Store
		mock      *cloudtest.Provider
		tokens    *service.TokenService
		settings  *service.TokenSettings
		clock     *fakeClock
		instanceA *model.Instance
		instanceB *model.Instance
		owner     model.User
		ctx       context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		dataStore = newTestStore()
		DeferCleanup(dataStore.Close)

		var provider *model.Provider
		mock, provider = newMockProvider(ctx, dataStore, "tokens")
		plan := newPlan(ctx, dataStore, provider)
		owner = model.User{ID: 1, Email: "owner@example.com"}
		instanceA = newInstance(ctx, dataStore, mock, plan, 7, owner)
		instanceB = newInstance(ctx, dataStore, mock, plan, 8, owner)

		clock = &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
		settings = service.NewTokenSettings(&config.TokenConfig{ValidDurationS: 60})
		members := service.NewMemberService(dataStore, service.NewUserService(dataStore))
		tokens = service.NewTokenService(dataStore, newTestGateway(), members, settings, service.WithClock(clock.Now))
	})

	It("round-trips a freshly created token", func() {
		member := instanceA.Owners()[0]
		token, err := tokens.Create(ctx, member)
		Expect(err).NotTo(HaveOccurred())
		Expect(token.Token).NotTo(BeEmpty())

		auth, err := tokens.Validate(ctx, instanceA.ID, token.Token)

		Expect(err).NotTo(HaveOccurred())
		Expect(auth.Member.ID).To(Equal(member.ID))
		Expect(auth.Network.Hostname).To(Equal("host.test"))
		Expect(auth.Network.Protocols).To(HaveLen(1))
		Expect(auth.Account.UserID).To(Equal(owner.ID))
	})

	It("issues unique tokens", func() {
		first, err := tokens.Issue(ctx, instanceA.ID, owner.ID)
		Expect(err).NotTo(HaveOccurred())
		second, err := tokens.Issue(ctx, instanceA.ID, owner.ID)
		Expect(err).NotTo(HaveOccurred())

		Expect(first.Token).NotTo(Equal(second.Token))
		Expect(first.ExpiresAt).To(BeTemporally("==", clock.Now().Add(time.Minute)))
	})

	It("expires after the configured duration", func() {
		settings.SetValidDuration(time.Second)
		issued, err := tokens.Issue(ctx, instanceA.ID, owner.ID)
		Expect(err).NotTo(HaveOccurred())

		clock.Advance(1100 * time.Millisecond)
		_, err = tokens.Validate(ctx, instanceA.ID, issued.Token)

		Expect(err).To(HaveServiceCode(service.ErrCodeTokenInvalid))
		Expect(errors.Is(err, service.ErrTokenExpired)).To(BeTrue())
	})

	It("accepts a token exactly at the end of its window", func() {
		settings.SetValidDuration(time.Second)
		issued, err := tokens.Issue(ctx, instanceA.ID, owner.ID)
		Expect(err).NotTo(HaveOccurred())

		clock.Advance(time.Second)
		_, err = tokens.Validate(ctx, instanceA.ID, issued.Token)

		Expect(err).NotTo(HaveOccurred())
	})

	It("is scoped to its instance before expiry is considered", func() {
		issued, err := tokens.Issue(ctx, instanceA.ID, owner.ID)
		Expect(err).NotTo(HaveOccurred())
		clock.Advance(time.Hour)

		_, err = tokens.Validate(ctx, instanceB.ID, issued.Token)

		Expect(err).To(HaveServiceCode(service.ErrCodeTokenInvalid))
		Expect(errors.Is(err, service.ErrTokenInstanceMismatch)).To(BeTrue())
		Expect(errors.Is(err, service.ErrTokenExpired)).To(BeFalse())
	})

	It("reports unknown tokens as not found", func() {
		_, err := tokens.Validate(ctx, instanceA.ID, "no-such-token")

		Expect(err).To(HaveServiceCode(service.ErrCodeNotFound))
	})

	It("rejects an empty token even when fresh tokens exist", func() {
		_, err := tokens.Create(ctx, instanceA.Owners()[0])
		Expect(err).NotTo(HaveOccurred())

		auth, err := tokens.Validate(ctx, instanceA.ID, "")

		Expect(auth).To(BeNil())
		Expect(err).To(HaveServiceCode(service.ErrCodeNotFound))
	})

	It("only issues tokens to members", func() {
		_, err := tokens.Issue(ctx, instanceA.ID, 99)

		Expect(err).To(HaveServiceCode(service.ErrCodeUnauthorized))
	})

	It("rejects tokens of soft-deleted instances", func() {
		issued, err := tokens.Issue(ctx, instanceA.ID, owner.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(dataStore.Instance().MarkDeleted(ctx, instanceA.ID)).To(Succeed())

		_, err = tokens.Validate(ctx, instanceA.ID, issued.Token)

		Expect(err).To(HaveServiceCode(service.ErrCodeNotFound))
	})

	It("surfaces an unreachable provider", func() {
		issued, err := tokens.Issue(ctx, instanceA.ID, owner.ID)
		Expect(err).NotTo(HaveOccurred())
		mock.FailWith(http.StatusBadGateway)

		_, err = tokens.Validate(ctx, instanceA.ID, issued.Token)

		Expect(err).To(HaveServiceCode(service.ErrCodeProviderError))
	})
})

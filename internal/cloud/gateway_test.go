package cloud_test

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dcm-project/cloud-instance-manager/internal/cloud"
	"github.com/dcm-project/cloud-instance-manager/internal/cloud/cloudtest"
	"github.com/dcm-project/cloud-instance-manager/internal/store/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Gateway", func() {
	var (
		mock     *cloudtest.Provider
		gateway  *cloud.Gateway
		provider model.Provider
		ctx      context.Context
	)

	BeforeEach(func() {
		mock = cloudtest.NewProvider()
		mock.AddImage(cloud.Image{ID: 1, Name: "ubuntu", Protocols: []cloud.Protocol{{Name: "SSH", Port: 22}}})
		mock.AddFlavour(cloud.Flavour{ID: 2, Name: "small", CPU: 1, Memory: 1024})
		mock.AddInstance(cloud.Instance{ID: 7, Name: "seven", Hostname: "seven.test", Status: "ACTIVE"})

		gateway = cloud.NewGateway(cloud.NewClientCache(5 * time.Second))
		provider = model.Provider{ID: 1, Name: "mock", URL: mock.URL()}
		ctx = context.Background()
	})

	AfterEach(func() {
		mock.Close()
	})

	Describe("catalog reads", func() {
		It("lists images and flavours", func() {
			images, err := gateway.Images.GetAll(ctx, provider)
			Expect(err).NotTo(HaveOccurred())
			Expect(images).To(HaveLen(1))
			Expect(images[0].Protocols[0].Port).To(Equal(22))

			flavours, err := gateway.Flavours.GetAll(ctx, provider)
			Expect(err).NotTo(HaveOccurred())
			Expect(flavours[0].Memory).To(Equal(1024))
		})

		It("gets one entry by id", func() {
			instance, err := gateway.Instances.GetByID(ctx, provider, 7)

			Expect(err).NotTo(HaveOccurred())
			Expect(instance.Hostname).To(Equal("seven.test"))
			Expect(instance.State().Status).To(Equal("ACTIVE"))
		})

		It("reports a missing entry as ErrNotFound", func() {
			_, err := gateway.Instances.GetByID(ctx, provider, 99)

			Expect(errors.Is(err, cloud.ErrNotFound)).To(BeTrue())
			var remoteErr *cloud.RemoteError
			Expect(errors.As(err, &remoteErr)).To(BeTrue())
			Expect(remoteErr.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("propagates provider failures", func() {
			mock.FailWith(http.StatusInternalServerError)

			_, err := gateway.Instances.GetAll(ctx, provider)

			var remoteErr *cloud.RemoteError
			Expect(errors.As(err, &remoteErr)).To(BeTrue())
			Expect(remoteErr.StatusCode).To(Equal(http.StatusInternalServerError))
			Expect(cloud.IsNotFound(err)).To(BeFalse())
		})

		It("rejects a successful reply that is not JSON", func() {
			mock.ReplyRaw("text/html", "<html>down for maintenance</html>")

			instances, err := gateway.Instances.GetAll(ctx, provider)

			Expect(instances).To(BeNil())
			Expect(errors.Is(err, cloud.ErrMalformedPayload)).To(BeTrue())
			var remoteErr *cloud.RemoteError
			Expect(errors.As(err, &remoteErr)).To(BeTrue())
			Expect(remoteErr.StatusCode).To(Equal(http.StatusOK))
		})

		It("rejects a JSON reply that does not decode", func() {
			mock.ReplyRaw("application/json", "{not json")

			_, err := gateway.Images.GetAll(ctx, provider)

			var remoteErr *cloud.RemoteError
			Expect(errors.As(err, &remoteErr)).To(BeTrue())
		})

		It("gives up on a provider slower than the client timeout", func() {
			mock.SetLatency(2 * time.Second)
			slow := cloud.NewGateway(cloud.NewClientCache(100 * time.Millisecond))

			start := time.Now()
			_, err := slow.Images.GetAll(ctx, provider)

			Expect(time.Since(start)).To(BeNumerically("<", time.Second))
			var remoteErr *cloud.RemoteError
			Expect(errors.As(err, &remoteErr)).To(BeTrue())
			Expect(remoteErr.StatusCode).To(BeZero())
		})

		It("propagates transport failures", func() {
			mock.Close()

			_, err := gateway.Images.GetAll(ctx, provider)

			var remoteErr *cloud.RemoteError
			Expect(errors.As(err, &remoteErr)).To(BeTrue())
			Expect(remoteErr.StatusCode).To(BeZero())
		})
	})

	Describe("instance lifecycle", func() {
		It("creates, updates and acts on an instance", func() {
			created, err := gateway.Instances.Create(ctx, provider, cloud.InstanceCreator{
				Name:      "new",
				ImageID:   1,
				FlavourID: 2,
				Account:   cloud.Account{UserID: 3, Username: "jdoe"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(created.ID).NotTo(BeZero())
			Expect(created.Account.Username).To(Equal("jdoe"))

			updated, err := gateway.Instances.Update(ctx, provider, cloud.InstanceUpdator{ID: created.ID, Name: "renamed"})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Name).To(Equal("renamed"))

			rebooting, err := gateway.Instances.ExecuteAction(ctx, provider, created.ID, cloud.Command{Type: cloud.CommandReboot})
			Expect(err).NotTo(HaveOccurred())
			Expect(rebooting.Status).To(Equal("REBOOTING"))

			state, err := gateway.Instances.GetState(ctx, provider, created.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(state.Status).To(Equal("REBOOTING"))
		})

		It("treats a missing instance as deleted", func() {
			deleted, err := gateway.Instances.Delete(ctx, provider, 7)
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).To(BeTrue())

			deleted, err = gateway.Instances.Delete(ctx, provider, 7)
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).To(BeTrue())
		})

		It("fails a delete the provider rejects", func() {
			mock.FailWith(http.StatusBadGateway)

			deleted, err := gateway.Instances.Delete(ctx, provider, 7)

			Expect(err).To(HaveOccurred())
			Expect(deleted).To(BeFalse())
		})
	})
})

package hk_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nvstream/adk-core/hk"
)

var _ = Describe("Housekeeper", func() {
	var h *hk.Housekeeper

	BeforeEach(func() {
		h = hk.New()
		go h.Run()
	})

	AfterEach(func() {
		h.Stop()
	})

	It("fires a registered request after its initial delay", func() {
		fired := make(chan struct{}, 1)
		h.Reg("once", func() time.Duration {
			fired <- struct{}{}
			return 0 // unregister after firing
		}, 10*time.Millisecond)

		Eventually(fired).Should(Receive())
	})

	It("reschedules a request using its own returned interval", func() {
		count := make(chan struct{}, 8)
		h.Reg("repeating", func() time.Duration {
			count <- struct{}{}
			return 10 * time.Millisecond
		}, 10*time.Millisecond)

		Eventually(count).Should(Receive())
		Eventually(count).Should(Receive())
	})

	It("stops firing a request once Unreg is called", func() {
		count := 0
		h.Reg("cancelable", func() time.Duration {
			count++
			return 10 * time.Millisecond
		}, 5*time.Millisecond)

		Eventually(func() int { return count }).Should(BeNumerically(">=", 1))
		h.Unreg("cancelable")
		after := count
		time.Sleep(50 * time.Millisecond)
		Expect(count).To(BeNumerically("<=", after+1))
	})
})

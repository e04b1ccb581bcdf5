package bot

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Gate", func() {
	var (
		gate *Gate
		now  time.Time
	)

	BeforeEach(func() {
		now = time.Date(2025, 8, 28, 12, 0, 0, 0, time.UTC)
		gate = NewGate()
		gate.now = func() time.Time { return now }
	})

	It("should grant the first acquisition", func() {
		Expect(gate.TryAcquire(7)).To(BeTrue())
	})

	It("should reject a second acquisition by the same user", func() {
		Expect(gate.TryAcquire(7)).To(BeTrue())
		Expect(gate.TryAcquire(7)).To(BeFalse())
	})

	It("should keep different users independent", func() {
		Expect(gate.TryAcquire(7)).To(BeTrue())
		Expect(gate.TryAcquire(8)).To(BeTrue())
	})

	It("should grant again after a release", func() {
		Expect(gate.TryAcquire(7)).To(BeTrue())
		gate.Release(7)
		Expect(gate.TryAcquire(7)).To(BeTrue())
	})

	It("should tolerate releasing a user who holds nothing", func() {
		gate.Release(7)
		Expect(gate.TryAcquire(7)).To(BeTrue())
	})

	When("a hold outlives the stale window", func() {
		BeforeEach(func() {
			Expect(gate.TryAcquire(7)).To(BeTrue())
			now = now.Add(defaultStaleAfter + time.Second)
		})

		It("should reclaim the hold", func() {
			Expect(gate.TryAcquire(7)).To(BeTrue())
		})

		It("should treat the reclaimed hold as fresh", func() {
			Expect(gate.TryAcquire(7)).To(BeTrue())
			Expect(gate.TryAcquire(7)).To(BeFalse())
		})
	})

	When("a hold is just inside the stale window", func() {
		It("should still reject", func() {
			Expect(gate.TryAcquire(7)).To(BeTrue())
			now = now.Add(defaultStaleAfter - time.Second)
			Expect(gate.TryAcquire(7)).To(BeFalse())
		})
	})
})

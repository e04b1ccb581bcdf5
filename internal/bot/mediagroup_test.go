package bot

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Collector", func() {
	var (
		collector *Collector

		mu      sync.Mutex
		flushed map[string][][]GroupItem
	)

	flushes := func(groupID string) [][]GroupItem {
		mu.Lock()
		defer mu.Unlock()
		return flushed[groupID]
	}

	item := func(fileID string) GroupItem {
		return GroupItem{ChatID: testChatID, From: alice, FileID: fileID}
	}

	BeforeEach(func() {
		flushed = make(map[string][][]GroupItem)
		collector = NewCollectorWithDebounce(20*time.Millisecond, func(groupID string, items []GroupItem) {
			mu.Lock()
			defer mu.Unlock()
			flushed[groupID] = append(flushed[groupID], items)
		})
	})

	It("should report whether an item opened a new group", func() {
		Expect(collector.Add("g1", item("a"))).To(BeTrue())
		Expect(collector.Add("g1", item("b"))).To(BeFalse())
		Expect(collector.Add("g2", item("c"))).To(BeTrue())
	})

	It("should flush the accumulated batch exactly once, in arrival order", func() {
		collector.Add("g1", item("a"))
		collector.Add("g1", item("b"))
		collector.Add("g1", item("c"))

		Eventually(func() [][]GroupItem { return flushes("g1") }).Should(HaveLen(1))
		Consistently(func() [][]GroupItem { return flushes("g1") }, 100*time.Millisecond).Should(HaveLen(1))

		batch := flushes("g1")[0]
		Expect(batch).To(HaveLen(3))
		Expect(batch[0].FileID).To(Equal("a"))
		Expect(batch[1].FileID).To(Equal("b"))
		Expect(batch[2].FileID).To(Equal("c"))
	})

	It("should extend the window on each arrival", func() {
		collector.Add("g1", item("a"))
		for i := 0; i < 3; i++ {
			time.Sleep(10 * time.Millisecond)
			collector.Add("g1", item("late"))
			Expect(flushes("g1")).To(BeEmpty())
		}
		Eventually(func() [][]GroupItem { return flushes("g1") }).Should(HaveLen(1))
		Expect(flushes("g1")[0]).To(HaveLen(4))
	})

	It("should keep concurrent groups separate", func() {
		collector.Add("g1", item("a"))
		collector.Add("g2", item("b"))
		collector.Add("g1", item("c"))

		Eventually(func() [][]GroupItem { return flushes("g1") }).Should(HaveLen(1))
		Eventually(func() [][]GroupItem { return flushes("g2") }).Should(HaveLen(1))
		Expect(flushes("g1")[0]).To(HaveLen(2))
		Expect(flushes("g2")[0]).To(HaveLen(1))
	})

	It("should accept the same group id again after its flush", func() {
		collector.Add("g1", item("a"))
		Eventually(func() [][]GroupItem { return flushes("g1") }).Should(HaveLen(1))

		Expect(collector.Add("g1", item("b"))).To(BeTrue())
		Eventually(func() [][]GroupItem { return flushes("g1") }).Should(HaveLen(2))
		Expect(flushes("g1")[1]).To(HaveLen(1))
	})
})

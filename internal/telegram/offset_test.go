package telegram

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("OffsetStore", func() {
	var (
		path  string
		store *OffsetStore
	)

	BeforeEach(func() {
		path = filepath.Join(GinkgoT().TempDir(), "offset.db")
		var err error
		store, err = NewOffsetStore(path)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if store != nil {
			store.Close()
		}
	})

	It("should report zero before anything is saved", func() {
		offset, err := store.Offset()
		Expect(err).NotTo(HaveOccurred())
		Expect(offset).To(BeZero())
	})

	It("should round-trip an offset", func() {
		Expect(store.SetOffset(123456789)).To(Succeed())
		offset, err := store.Offset()
		Expect(err).NotTo(HaveOccurred())
		Expect(offset).To(Equal(int64(123456789)))
	})

	It("should overwrite a previous offset", func() {
		Expect(store.SetOffset(10)).To(Succeed())
		Expect(store.SetOffset(11)).To(Succeed())
		offset, err := store.Offset()
		Expect(err).NotTo(HaveOccurred())
		Expect(offset).To(Equal(int64(11)))
	})

	It("should survive a close and reopen", func() {
		Expect(store.SetOffset(42)).To(Succeed())
		Expect(store.Close()).To(Succeed())

		var err error
		store, err = NewOffsetStore(path)
		Expect(err).NotTo(HaveOccurred())
		offset, err := store.Offset()
		Expect(err).NotTo(HaveOccurred())
		Expect(offset).To(Equal(int64(42)))
	})
})

package receipt

import (
	"errors"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

var _ = Describe("BoltDB", func() {
	var (
		tmpDir string
		dbPath string
		db     *BoltDB
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		dbPath = filepath.Join(tmpDir, "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	newReceipt := func(id string, day int) *Receipt {
		return &Receipt{
			ID:          id,
			MessageID:   "msg-" + id,
			Vendor:      VendorUber,
			Total:       decimal.RequireFromString("23.45"),
			Tip:         decimal.RequireFromString("3.00"),
			Date:        time.Date(2024, 10, day, 0, 0, 0, 0, time.UTC),
			ParsedBy:    ParsedByRegex,
			Fingerprint: "fp-" + id,
			StartLocation: &Location{
				Address: "123 Main St",
				City:    "Philadelphia",
				State:   "PA",
				Country: "US",
			},
		}
	}

	Describe("SaveReceipt", func() {
		var (
			receipt *Receipt
			err     error
		)

		BeforeEach(func() {
			receipt = newReceipt("test-id", 12)
		})

		JustBeforeEach(func() {
			err = db.SaveReceipt(receipt)
		})

		When("saving succeeds", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should round-trip the decimal amounts and location", func() {
				got, err := db.GetReceipt("test-id")
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Total.StringFixed(2)).To(Equal("23.45"))
				Expect(got.Tip.StringFixed(2)).To(Equal("3.00"))
				Expect(got.StartLocation.City).To(Equal("Philadelphia"))
				Expect(got.Date).To(Equal(receipt.Date))
			})

			It("should index the message id", func() {
				seen, err := db.HasMessage("msg-test-id")
				Expect(err).NotTo(HaveOccurred())
				Expect(seen).To(BeTrue())
			})

			It("should index the fingerprint", func() {
				got, err := db.FindByFingerprint("fp-test-id")
				Expect(err).NotTo(HaveOccurred())
				Expect(got.ID).To(Equal("test-id"))
			})
		})

		When("the receipt has no ID", func() {
			BeforeEach(func() {
				receipt.ID = ""
			})

			It("should return an error", func() {
				Expect(err).To(HaveOccurred())
			})
		})

		When("an existing receipt is replaced", func() {
			JustBeforeEach(func() {
				Expect(err).NotTo(HaveOccurred())
				replacement := newReceipt("test-id", 12)
				replacement.MessageID = "msg-other"
				replacement.Fingerprint = "fp-other"
				err = db.SaveReceipt(replacement)
			})

			It("should drop the old index entries", func() {
				Expect(err).NotTo(HaveOccurred())

				seen, _ := db.HasMessage("msg-test-id")
				Expect(seen).To(BeFalse())
				_, err := db.FindByFingerprint("fp-test-id")
				Expect(errors.Is(err, ErrNotFound)).To(BeTrue())

				seen, _ = db.HasMessage("msg-other")
				Expect(seen).To(BeTrue())
			})
		})
	})

	Describe("GetReceipt", func() {
		When("the receipt does not exist", func() {
			It("should return ErrNotFound", func() {
				_, err := db.GetReceipt("missing")
				Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
			})
		})
	})

	Describe("ListReceipts", func() {
		When("the database is empty", func() {
			It("should return an empty list", func() {
				receipts, err := db.ListReceipts()
				Expect(err).NotTo(HaveOccurred())
				Expect(receipts).To(BeEmpty())
			})
		})

		When("receipts exist", func() {
			BeforeEach(func() {
				Expect(db.SaveReceipt(newReceipt("a", 1))).To(Succeed())
				Expect(db.SaveReceipt(newReceipt("b", 20))).To(Succeed())
				Expect(db.SaveReceipt(newReceipt("c", 10))).To(Succeed())
			})

			It("should return newest trips first", func() {
				receipts, err := db.ListReceipts()
				Expect(err).NotTo(HaveOccurred())
				Expect(receipts).To(HaveLen(3))
				Expect(receipts[0].ID).To(Equal("b"))
				Expect(receipts[1].ID).To(Equal("c"))
				Expect(receipts[2].ID).To(Equal("a"))
			})
		})
	})

	Describe("DeleteReceipt", func() {
		BeforeEach(func() {
			Expect(db.SaveReceipt(newReceipt("gone", 5))).To(Succeed())
		})

		It("should remove the receipt and its index entries", func() {
			Expect(db.DeleteReceipt("gone")).To(Succeed())

			_, err := db.GetReceipt("gone")
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
			seen, _ := db.HasMessage("msg-gone")
			Expect(seen).To(BeFalse())
			_, err = db.FindByFingerprint("fp-gone")
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})

		It("should return ErrNotFound for an unknown id", func() {
			err := db.DeleteReceipt("missing")
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})
	})

	Describe("reopening the file", func() {
		It("should keep stored receipts", func() {
			Expect(db.SaveReceipt(newReceipt("kept", 3))).To(Succeed())
			Expect(db.Close()).To(Succeed())

			var err error
			db, err = NewBoltDB(dbPath)
			Expect(err).NotTo(HaveOccurred())

			seen, err := db.HasMessage("msg-kept")
			Expect(err).NotTo(HaveOccurred())
			Expect(seen).To(BeTrue())
		})
	})
})

package ingest

import (
	"context"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/ride-receipts/internal/parsing"
	"github.com/zombor/ride-receipts/internal/receipt"
)

const syncUberBody = `Total $23.45
Tip $3.00
Thanks for riding with Uber. Trip on October 12, 2024
9:10 AM 123 Main St, Philadelphia, PA
9:32 AM 55 Market St, Philadelphia, PA
Report an issue`

const syncLyftBody = `Your ride with Sam on March 3, 2024
Pickup 8:05 PM
100 Broad St, Philadelphia, PA
Drop-off 8:30 PM
200 Walnut St, Philadelphia, PA
Tip $2.00
Total $18.20`

var _ = Describe("Sync against a real store", func() {
	var (
		db      *receipt.BoltDB
		service *receipt.Service
		source  *mockSource
		runner  *Runner
	)

	BeforeEach(func() {
		var err error
		db, err = receipt.NewBoltDB(filepath.Join(GinkgoT().TempDir(), "sync.db"))
		Expect(err).NotTo(HaveOccurred())
		service = receipt.NewService(db, nil)

		received := time.Date(2024, 10, 12, 20, 0, 0, 0, time.UTC)
		source = newMockSource()
		source.lists["label:Rideshare/Uber"] = []string{"m1", "m2"}
		source.lists["label:Rideshare/Lyft"] = []string{"m3"}
		source.messages["m1"] = &receipt.Message{ID: "m1", Subject: "Your Saturday trip with Uber", ReceivedAt: received, Body: syncUberBody}
		source.messages["m2"] = &receipt.Message{ID: "m2", Subject: "[Fwd] Your Saturday trip with Uber", ReceivedAt: received, Body: syncUberBody}
		source.messages["m3"] = &receipt.Message{ID: "m3", Subject: "Your ride with Sam on March 3", ReceivedAt: time.Date(2024, 3, 3, 22, 0, 0, 0, time.UTC), Body: syncLyftBody}

		cfg := parsing.DefaultConfig()
		cfg.Policy = parsing.PolicyRegexOnly
		orchestrator, err := parsing.NewOrchestrator(cfg, nil)
		Expect(err).NotTo(HaveOccurred())

		runner = NewRunner(Config{
			Queries: map[receipt.Vendor]string{
				receipt.VendorUber: "label:Rideshare/Uber",
				receipt.VendorLyft: "label:Rideshare/Lyft",
			},
		}, source, orchestrator, service, nil, nil)
	})

	AfterEach(func() {
		db.Close()
	})

	It("should store each trip once", func() {
		result, err := runner.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Accepted).To(Equal(2))
		Expect(result.Duplicates).To(Equal(1))

		receipts, err := db.ListReceipts()
		Expect(err).NotTo(HaveOccurred())
		Expect(receipts).To(HaveLen(2))
		Expect(receipts[0].MessageID).To(Equal("m1"))
		Expect(receipts[0].Total.StringFixed(2)).To(Equal("23.45"))
		Expect(receipts[0].Fingerprint).NotTo(BeEmpty())
		Expect(receipts[1].Vendor).To(Equal(receipt.VendorLyft))
	})

	It("should skip stored messages on the next run", func() {
		_, err := runner.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		source.gets = nil

		result, err := runner.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Accepted).To(BeZero())
		Expect(result.Skipped).To(Equal(2))
		Expect(source.gets).To(Equal([]string{"m2"}))
	})
})

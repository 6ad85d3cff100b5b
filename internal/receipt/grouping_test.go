package receipt

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

var _ = Describe("GroupByReservation", func() {
	var (
		receipts []*Receipt
		groups   []Group
	)

	rail := func(id, reservation, total string, refund bool, day int) *Receipt {
		return &Receipt{
			ID:            id,
			Vendor:        VendorAmtrak,
			Total:         decimal.RequireFromString(total),
			Date:          time.Date(2024, 10, day, 0, 0, 0, 0, time.UTC),
			ReservationID: reservation,
			IsRefund:      refund,
		}
	}

	JustBeforeEach(func() {
		groups = GroupByReservation(receipts)
	})

	When("a purchase has refunds", func() {
		BeforeEach(func() {
			receipts = []*Receipt{
				rail("refund-2", "AB1234", "-20.00", true, 8),
				rail("purchase", "AB1234", "89.00", false, 1),
				rail("refund-1", "AB1234", "-45.00", true, 5),
			}
		})

		It("should file the refunds under the purchase", func() {
			Expect(groups).To(HaveLen(1))
			Expect(groups[0].Receipt.ID).To(Equal("purchase"))
			Expect(groups[0].Refunds).To(HaveLen(2))
			Expect(groups[0].Refunds[0].ID).To(Equal("refund-1"))
		})

		It("should net the refunds off the purchase", func() {
			Expect(groups[0].RefundAmount.StringFixed(2)).To(Equal("65.00"))
			Expect(groups[0].NetTotal.StringFixed(2)).To(Equal("24.00"))
		})
	})

	When("a refund has no purchase on file", func() {
		BeforeEach(func() {
			receipts = []*Receipt{rail("orphan", "ZZ9999", "-10.00", true, 3)}
		})

		It("should stand alone", func() {
			Expect(groups).To(HaveLen(1))
			Expect(groups[0].Refunds).To(BeEmpty())
			Expect(groups[0].NetTotal.StringFixed(2)).To(Equal("-10.00"))
		})
	})

	When("receipts are not rail or have no reservation", func() {
		BeforeEach(func() {
			receipts = []*Receipt{
				{ID: "ride", Vendor: VendorUber, Total: decimal.RequireFromString("12.00")},
				rail("loose", "", "30.00", false, 2),
			}
		})

		It("should list each on its own, rides first", func() {
			Expect(groups).To(HaveLen(2))
			Expect(groups[0].Receipt.ID).To(Equal("ride"))
			Expect(groups[1].Receipt.ID).To(Equal("loose"))
			Expect(groups[1].RefundAmount.IsZero()).To(BeTrue())
		})
	})
})

var _ = Describe("Totals", func() {
	It("should sum totals and tips", func() {
		total, tips := Totals([]*Receipt{
			{Total: decimal.RequireFromString("10.50"), Tip: decimal.RequireFromString("2.00")},
			{Total: decimal.RequireFromString("-4.25"), Tip: decimal.Zero},
		})
		Expect(total.StringFixed(2)).To(Equal("6.25"))
		Expect(tips.StringFixed(2)).To(Equal("2.00"))
	})

	It("should return zero for no receipts", func() {
		total, tips := Totals(nil)
		Expect(total.IsZero()).To(BeTrue())
		Expect(tips.IsZero()).To(BeTrue())
	})
})

package receipt

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Group is a display row: a receipt plus any rail refunds filed under the same reservation
type Group struct {
	Receipt      *Receipt        `json:"receipt"`
	Refunds      []*Receipt      `json:"refunds,omitempty"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
	NetTotal     decimal.Decimal `json:"net_total"`
}

// GroupByReservation pairs rail purchases with their refunds by reservation id.
// Non-rail receipts, rail receipts without a reservation id, and refunds with no
// matching purchase are returned as standalone groups.
func GroupByReservation(receipts []*Receipt) []Group {
	groups := make([]Group, 0, len(receipts))

	var order []string
	byReservation := make(map[string][]*Receipt)
	var rail []Group

	for _, r := range receipts {
		switch {
		case !r.Vendor.IsRail():
			groups = append(groups, standalone(r))
		case r.ReservationID == "":
			rail = append(rail, standalone(r))
		default:
			if _, ok := byReservation[r.ReservationID]; !ok {
				order = append(order, r.ReservationID)
			}
			byReservation[r.ReservationID] = append(byReservation[r.ReservationID], r)
		}
	}

	for _, id := range order {
		members := byReservation[id]
		sort.SliceStable(members, func(i, j int) bool {
			if members[i].IsRefund != members[j].IsRefund {
				return !members[i].IsRefund
			}
			return members[i].Date.Before(members[j].Date)
		})

		if members[0].IsRefund {
			// Refunds only, no purchase on file
			for _, r := range members {
				rail = append(rail, standalone(r))
			}
			continue
		}

		g := Group{Receipt: members[0], RefundAmount: decimal.Zero}
		for _, r := range members[1:] {
			if !r.IsRefund {
				rail = append(rail, standalone(r))
				continue
			}
			g.Refunds = append(g.Refunds, r)
			g.RefundAmount = g.RefundAmount.Add(r.Total.Abs())
		}
		g.NetTotal = g.Receipt.Total.Sub(g.RefundAmount)
		rail = append(rail, g)
	}

	return append(groups, rail...)
}

func standalone(r *Receipt) Group {
	return Group{Receipt: r, RefundAmount: decimal.Zero, NetTotal: r.Total}
}

// Totals sums the totals and tips of the given receipts
func Totals(receipts []*Receipt) (total, tips decimal.Decimal) {
	total, tips = decimal.Zero, decimal.Zero
	for _, r := range receipts {
		total = total.Add(r.Total)
		tips = tips.Add(r.Tip)
	}
	return total, tips
}

package receipt

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ParseAddress", func() {
	DescribeTable("splitting addresses",
		func(raw string, expected *Location) {
			Expect(ParseAddress(raw)).To(Equal(expected))
		},
		Entry("full address with country", "123 Main St, Philadelphia, PA 19107, US",
			&Location{Address: "123 Main St", City: "Philadelphia", State: "PA", Country: "US"}),
		Entry("foreign country", "10 Queen St W, Toronto, ON M5H 2N2, Canada",
			&Location{Address: "10 Queen St W", City: "Toronto", State: "ON", Country: "Canada"}),
		Entry("three segments", "55 Market St, Philadelphia, PA",
			&Location{Address: "55 Market St", City: "Philadelphia", State: "PA", Country: "US"}),
		Entry("city and state only", "Philadelphia, PA",
			&Location{Address: "", City: "Philadelphia", State: "PA", Country: "US"}),
		Entry("no state code", "1 Airport Rd, Terminal B, Arrivals",
			&Location{Address: "1 Airport Rd", City: "Terminal B", State: "", Country: "US"}),
		Entry("single segment", "Somewhere downtown", nil),
		Entry("empty", "", nil),
		Entry("whitespace", "   ", nil),
	)
})

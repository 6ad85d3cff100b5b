package receipt

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"github.com/shopspring/decimal"
)

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		parser      *mockParser
		server      *Server
		auth        BasicAuth
		ghttpServer *ghttp.Server
	)

	BeforeEach(func() {
		db = newMockDB()
		parser = &mockParser{result: &Receipt{
			Total:    decimal.RequireFromString("12.00"),
			Date:     time.Date(2024, 10, 12, 0, 0, 0, 0, time.UTC),
			ParsedBy: ParsedByRegex,
		}}
		auth = BasicAuth{}
	})

	JustBeforeEach(func() {
		service := NewServiceWithDeps(db, parser, &mockIDGenerator{id: "new-id"}, &mockTimeSource{now: time.Now()})
		server = NewServerWithMux(service, auth, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.Handler().ServeHTTP)
	})

	AfterEach(func() {
		ghttpServer.Close()
	})

	do := func(method, path string, body any) *http.Response {
		var reader io.Reader
		if body != nil {
			data, err := json.Marshal(body)
			Expect(err).NotTo(HaveOccurred())
			reader = bytes.NewReader(data)
		}
		req, err := http.NewRequest(method, ghttpServer.URL()+path, reader)
		Expect(err).NotTo(HaveOccurred())
		if auth.Username != "" {
			req.SetBasicAuth(auth.Username, auth.Password)
		}
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	Describe("GET /api/receipts", func() {
		BeforeEach(func() {
			db.receipts["id1"] = &Receipt{ID: "id1", Vendor: VendorUber}
			db.receipts["id2"] = &Receipt{ID: "id2", Vendor: VendorLyft}
		})

		It("should return all receipts as JSON", func() {
			resp := do(http.MethodGet, "/api/receipts", nil)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))

			var receipts []*Receipt
			Expect(json.NewDecoder(resp.Body).Decode(&receipts)).To(Succeed())
			Expect(receipts).To(HaveLen(2))
		})
	})

	Describe("GET /api/receipts/{id}", func() {
		It("should return 404 for an unknown receipt", func() {
			resp := do(http.MethodGet, "/api/receipts/missing", nil)
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("PATCH /api/receipts/{id}", func() {
		BeforeEach(func() {
			db.receipts["id1"] = &Receipt{ID: "id1"}
		})

		It("should update the annotations", func() {
			resp := do(http.MethodPatch, "/api/receipts/id1", map[string]any{"category": "Client A", "billed": true})
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(db.receipts["id1"].Category).To(Equal("Client A"))
			Expect(db.receipts["id1"].Billed).To(BeTrue())
		})

		It("should return 404 for an unknown receipt", func() {
			resp := do(http.MethodPatch, "/api/receipts/missing", map[string]any{"billed": true})
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("DELETE /api/receipts/{id}", func() {
		BeforeEach(func() {
			db.receipts["id1"] = &Receipt{ID: "id1"}
		})

		It("should delete the receipt", func() {
			resp := do(http.MethodDelete, "/api/receipts/id1", nil)
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(db.receipts).To(BeEmpty())
		})
	})

	Describe("POST /api/receipts/parse", func() {
		var body map[string]any

		BeforeEach(func() {
			body = map[string]any{
				"vendor":      "uber",
				"message_id":  "msg-9",
				"subject":     "Your trip with Uber",
				"received_at": "2024-10-12T20:00:00Z",
				"body":        "Total $12.00\nOctober 12, 2024",
			}
		})

		It("should store a new receipt", func() {
			resp := do(http.MethodPost, "/api/receipts/parse", body)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var r Receipt
			Expect(json.NewDecoder(resp.Body).Decode(&r)).To(Succeed())
			Expect(r.ID).To(Equal("new-id"))
			Expect(r.Vendor).To(Equal(VendorUber))
			Expect(r.MessageID).To(Equal("msg-9"))
		})

		When("the record is a duplicate", func() {
			BeforeEach(func() {
				parser.err = ErrDuplicate
			})

			It("should return 409", func() {
				resp := do(http.MethodPost, "/api/receipts/parse", body)
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusConflict))
			})
		})

		When("nothing can be extracted", func() {
			BeforeEach(func() {
				parser.err = NewExtractionError(VendorUber, ParsedByRegex, "no total found")
			})

			It("should return 422", func() {
				resp := do(http.MethodPost, "/api/receipts/parse", body)
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
			})
		})

		When("the vendor is unknown", func() {
			BeforeEach(func() {
				body["vendor"] = "Bolt"
			})

			It("should return 400", func() {
				resp := do(http.MethodPost, "/api/receipts/parse", body)
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("GET /api/summary", func() {
		BeforeEach(func() {
			db.receipts["a"] = &Receipt{ID: "a", Total: decimal.RequireFromString("5.00"), Tip: decimal.Zero}
		})

		It("should return the totals", func() {
			resp := do(http.MethodGet, "/api/summary", nil)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var s Summary
			Expect(json.NewDecoder(resp.Body).Decode(&s)).To(Succeed())
			Expect(s.Count).To(Equal(1))
			Expect(s.Total.StringFixed(2)).To(Equal("5.00"))
		})
	})

	Describe("OPTIONS preflight", func() {
		It("should answer with no content", func() {
			resp := do(http.MethodOptions, "/api/receipts", nil)
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Methods")).To(ContainSubstring("PATCH"))
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "admin", Password: "secret"}
		})

		It("should accept valid credentials", func() {
			resp := do(http.MethodGet, "/api/receipts", nil)
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("should reject a wrong password", func() {
			req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/receipts", nil)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("admin:wrong")))
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Ride Receipts"))
		})

		It("should reject a missing header", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/receipts")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})
	})
})

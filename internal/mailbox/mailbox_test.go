package mailbox

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

func TestMailbox(t *testing.T) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	RegisterFailHandler(Fail)
	RunSpecs(t, "Mailbox Suite")
}

func encode(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

var _ = Describe("Gmail", func() {
	var (
		server *ghttp.Server
		source *Gmail
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		var err error
		source, err = NewGmail(context.Background(),
			option.WithEndpoint(server.URL()+"/"),
			option.WithoutAuthentication(),
		)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("List", func() {
		BeforeEach(func() {
			server.AppendHandlers(
				ghttp.CombineHandlers(
					ghttp.VerifyRequest(http.MethodGet, "/gmail/v1/users/me/messages"),
					ghttp.VerifyFormKV("q", "label:Rideshare/Uber"),
					ghttp.VerifyFormKV("maxResults", "500"),
					ghttp.RespondWithJSONEncoded(http.StatusOK, &gmail.ListMessagesResponse{
						Messages:      []*gmail.Message{{Id: "m1"}, {Id: "m2"}},
						NextPageToken: "page-2",
					}),
				),
				ghttp.CombineHandlers(
					ghttp.VerifyRequest(http.MethodGet, "/gmail/v1/users/me/messages"),
					ghttp.VerifyFormKV("pageToken", "page-2"),
					ghttp.RespondWithJSONEncoded(http.StatusOK, &gmail.ListMessagesResponse{
						Messages: []*gmail.Message{{Id: "m3"}},
					}),
				),
			)
		})

		It("should follow every page", func() {
			ids, err := source.List(context.Background(), "label:Rideshare/Uber")
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(Equal([]string{"m1", "m2", "m3"}))
			Expect(server.ReceivedRequests()).To(HaveLen(2))
		})
	})

	Describe("List failing", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusForbidden, `{"error":{"code":403,"message":"quota"}}`))
		})

		It("should return an error naming the query", func() {
			_, err := source.List(context.Background(), "label:Amtrak")
			Expect(err).To(MatchError(ContainSubstring("label:Amtrak")))
		})
	})

	Describe("Get", func() {
		var (
			msg *gmail.Message
		)

		BeforeEach(func() {
			msg = &gmail.Message{
				Id:           "m1",
				InternalDate: time.Date(2024, 10, 12, 20, 0, 0, 0, time.UTC).UnixMilli(),
				Payload: &gmail.MessagePart{
					MimeType: "multipart/alternative",
					Headers: []*gmail.MessagePartHeader{
						{Name: "From", Value: "Uber Receipts <noreply@uber.com>"},
						{Name: "Subject", Value: "Your Saturday trip with Uber"},
					},
					Parts: []*gmail.MessagePart{
						{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: encode("<p>Total $23.45</p>")}},
						{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: encode("Total $23.45\nOctober 12, 2024")}},
					},
				},
			}
		})

		JustBeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodGet, "/gmail/v1/users/me/messages/m1"),
				ghttp.VerifyFormKV("format", "full"),
				ghttp.RespondWithJSONEncoded(http.StatusOK, msg),
			))
		})

		It("should read the plain-text body and subject", func() {
			m, err := source.Get(context.Background(), "m1")
			Expect(err).NotTo(HaveOccurred())
			Expect(m.ID).To(Equal("m1"))
			Expect(m.Subject).To(Equal("Your Saturday trip with Uber"))
			Expect(m.Body).To(Equal("Total $23.45\nOctober 12, 2024"))
		})

		It("should take the received time from the server", func() {
			m, err := source.Get(context.Background(), "m1")
			Expect(err).NotTo(HaveOccurred())
			Expect(m.ReceivedAt).To(Equal(time.Date(2024, 10, 12, 20, 0, 0, 0, time.UTC)))
		})

		When("the plain part is nested", func() {
			BeforeEach(func() {
				msg.Payload.Parts = []*gmail.MessagePart{{
					MimeType: "multipart/related",
					Parts: []*gmail.MessagePart{
						{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: encode("Fare: $15.00")}},
					},
				}}
			})

			It("should find it", func() {
				m, err := source.Get(context.Background(), "m1")
				Expect(err).NotTo(HaveOccurred())
				Expect(m.Body).To(Equal("Fare: $15.00"))
			})
		})

		When("the only attachment is not a readable PDF", func() {
			BeforeEach(func() {
				msg.Payload.Parts = []*gmail.MessagePart{
					{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: encode("<p>see attached</p>")}},
					{MimeType: "application/pdf", Filename: "eTicket.pdf", Body: &gmail.MessagePartBody{AttachmentId: "att1"}},
				}
				server.AppendHandlers(ghttp.CombineHandlers(
					ghttp.VerifyRequest(http.MethodGet, "/gmail/v1/users/me/messages/m1/attachments/att1"),
					ghttp.RespondWithJSONEncoded(http.StatusOK, &gmail.MessagePartBody{Data: encode("not a pdf")}),
				))
			})

			It("should fetch the attachment and report no text", func() {
				_, err := source.Get(context.Background(), "m1")
				Expect(err).To(MatchError(ContainSubstring("no text body")))
				Expect(server.ReceivedRequests()).To(HaveLen(2))
			})
		})
	})
})

var _ = Describe("decode", func() {
	It("should accept padded and unpadded data", func() {
		for _, data := range []string{
			base64.URLEncoding.EncodeToString([]byte("ab")),
			base64.RawURLEncoding.EncodeToString([]byte("ab")),
		} {
			raw, err := decode(data)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(raw)).To(Equal("ab"))
		}
	})
})

var _ = Describe("LoadTokenSource", func() {
	var (
		dir         string
		credentials string
		token       string
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		credentials = filepath.Join(dir, "credentials.json")
		token = filepath.Join(dir, "token.json")
		Expect(os.WriteFile(credentials, []byte(`{"installed":{"client_id":"id","client_secret":"secret","redirect_uris":["http://localhost"],"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token"}}`), 0600)).To(Succeed())
	})

	It("should build a token source from saved files", func() {
		Expect(os.WriteFile(token, []byte(`{"access_token":"a","refresh_token":"r","token_type":"Bearer"}`), 0600)).To(Succeed())
		ts, err := LoadTokenSource(context.Background(), credentials, token)
		Expect(err).NotTo(HaveOccurred())
		Expect(ts).NotTo(BeNil())
	})

	It("should fail without a token file", func() {
		_, err := LoadTokenSource(context.Background(), credentials, token)
		Expect(err).To(MatchError(ContainSubstring("opening token")))
	})

	It("should reject an empty token", func() {
		Expect(os.WriteFile(token, []byte(`{}`), 0600)).To(Succeed())
		_, err := LoadTokenSource(context.Background(), credentials, token)
		Expect(err).To(MatchError(ContainSubstring("no tokens")))
	})

	It("should fail on unreadable credentials", func() {
		Expect(os.WriteFile(credentials, []byte(`not json`), 0600)).To(Succeed())
		_, err := LoadTokenSource(context.Background(), credentials, token)
		Expect(err).To(MatchError(ContainSubstring("parsing credentials")))
	})
})

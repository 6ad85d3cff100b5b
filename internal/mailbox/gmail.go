// Package mailbox reads receipt emails from Gmail
package mailbox

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/zombor/ride-receipts/internal/receipt"
)

const (
	userID   = "me"
	pageSize = 500
)

// DefaultQueries are the label searches for each vendor
var DefaultQueries = map[receipt.Vendor]string{
	receipt.VendorUber:   "label:Rideshare/Uber",
	receipt.VendorLyft:   "label:Rideshare/Lyft",
	receipt.VendorCurb:   "label:Rideshare/Curb",
	receipt.VendorAmtrak: "label:Amtrak",
}

// Gmail is a message source backed by the Gmail API
type Gmail struct {
	svc    *gmail.Service
	logger *slog.Logger
}

// NewGmail creates a Gmail source. Pass option.WithTokenSource for user credentials.
func NewGmail(ctx context.Context, opts ...option.ClientOption) (*Gmail, error) {
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gmail service: %w", err)
	}
	return &Gmail{svc: svc, logger: slog.Default()}, nil
}

// List returns the ids of all messages matching query, following every page
func (g *Gmail) List(ctx context.Context, query string) ([]string, error) {
	var ids []string
	pageToken := ""
	for {
		call := g.svc.Users.Messages.List(userID).Q(query).MaxResults(pageSize).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("listing %q: %w", query, err)
		}
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}
		g.logger.Debug("Listed messages", "query", query, "count", len(ids))

		pageToken = resp.NextPageToken
		if pageToken == "" {
			return ids, nil
		}
	}
}

// Get fetches a message with its plain-text body. Messages without a
// text/plain part fall back to the text of their PDF attachments.
func (g *Gmail) Get(ctx context.Context, id string) (*receipt.Message, error) {
	m, err := g.svc.Users.Messages.Get(userID, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("getting message %s: %w", id, err)
	}
	if m.Payload == nil {
		return nil, fmt.Errorf("message %s has no payload", id)
	}

	body, err := plainText(m.Payload)
	if err != nil {
		return nil, fmt.Errorf("message %s: %w", id, err)
	}
	if body == "" {
		body, err = g.attachmentText(ctx, id, m.Payload)
		if err != nil {
			return nil, fmt.Errorf("message %s: %w", id, err)
		}
	}
	if body == "" {
		return nil, fmt.Errorf("message %s has no text body", id)
	}

	return &receipt.Message{
		ID:         m.Id,
		Subject:    header(m.Payload, "Subject"),
		ReceivedAt: time.UnixMilli(m.InternalDate).UTC(),
		Body:       body,
	}, nil
}

func (g *Gmail) attachmentText(ctx context.Context, id string, payload *gmail.MessagePart) (string, error) {
	var texts []string
	for _, part := range pdfParts(payload) {
		data := ""
		if part.Body != nil {
			data = part.Body.Data
		}
		if data == "" && part.Body != nil && part.Body.AttachmentId != "" {
			att, err := g.svc.Users.Messages.Attachments.Get(userID, id, part.Body.AttachmentId).Context(ctx).Do()
			if err != nil {
				return "", fmt.Errorf("getting attachment %s: %w", part.Filename, err)
			}
			data = att.Data
		}
		raw, err := decode(data)
		if err != nil {
			return "", fmt.Errorf("decoding attachment %s: %w", part.Filename, err)
		}
		text, err := pdfText(raw)
		if err != nil {
			g.logger.Warn("Skipping unreadable PDF", "message_id", id, "file", part.Filename, "error", err)
			continue
		}
		texts = append(texts, text)
	}
	return strings.Join(texts, "\n"), nil
}

// plainText returns the first text/plain part, searching nested multiparts
func plainText(part *gmail.MessagePart) (string, error) {
	if part.MimeType == "text/plain" && part.Filename == "" && part.Body != nil && part.Body.Data != "" {
		raw, err := decode(part.Body.Data)
		if err != nil {
			return "", fmt.Errorf("decoding body: %w", err)
		}
		return string(raw), nil
	}
	for _, p := range part.Parts {
		text, err := plainText(p)
		if err != nil || text != "" {
			return text, err
		}
	}
	return "", nil
}

func pdfParts(part *gmail.MessagePart) []*gmail.MessagePart {
	var parts []*gmail.MessagePart
	if part.MimeType == "application/pdf" || strings.HasSuffix(strings.ToLower(part.Filename), ".pdf") {
		parts = append(parts, part)
	}
	for _, p := range part.Parts {
		parts = append(parts, pdfParts(p)...)
	}
	return parts
}

func header(part *gmail.MessagePart, name string) string {
	for _, h := range part.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// decode reads Gmail's base64url data, which may or may not be padded
func decode(data string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
}

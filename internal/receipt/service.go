package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IDGenerator generates unique IDs for receipts
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates random UUIDs
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Parser defines the interface for turning one message into a new receipt.
// It returns ErrDuplicate when the record matches one in known.
type Parser interface {
	ParseAgainst(ctx context.Context, vendor Vendor, msg *Message, known []*Receipt) (*Receipt, error)
}

// Annotation holds the caller-owned fields of a receipt; nil fields are left unchanged
type Annotation struct {
	Category *string `json:"category"`
	Billed   *bool   `json:"billed"`
}

// Summary totals the stored receipts
type Summary struct {
	Count    int             `json:"count"`
	Total    decimal.Decimal `json:"total"`
	Tips     decimal.Decimal `json:"tips"`
	Unbilled decimal.Decimal `json:"unbilled"`
}

// Service handles receipt operations
type Service struct {
	db          DB
	parser      Parser
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source.
// parser may be nil when single-message parsing is not needed.
func NewService(db DB, parser Parser) *Service {
	return &Service{
		db:          db,
		parser:      parser,
		idGenerator: &defaultIDGenerator{},
		timeSource:  &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, parser Parser, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		parser:      parser,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// Accept stores a newly parsed receipt, assigning its ID and timestamps
func (s *Service) Accept(receipt *Receipt) (*Receipt, error) {
	now := s.timeSource.Now()
	receipt.ID = s.idGenerator.Generate()
	receipt.CreatedAt = now
	receipt.UpdatedAt = now

	if err := s.db.SaveReceipt(receipt); err != nil {
		return nil, fmt.Errorf("saving receipt to database: %w", err)
	}
	return receipt, nil
}

// ParseMessage parses a single message against every stored receipt and stores
// the result. A message already stored, or a record already known, returns
// ErrDuplicate.
func (s *Service) ParseMessage(ctx context.Context, vendor Vendor, msg *Message) (*Receipt, error) {
	if s.parser == nil {
		return nil, fmt.Errorf("no parser configured")
	}

	if msg.ID != "" {
		seen, err := s.db.HasMessage(msg.ID)
		if err != nil {
			return nil, fmt.Errorf("checking message: %w", err)
		}
		if seen {
			return nil, fmt.Errorf("message %s already stored: %w", msg.ID, ErrDuplicate)
		}
	}

	known, err := s.db.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}

	receipt, err := s.parser.ParseAgainst(ctx, vendor, msg, known)
	if err != nil {
		if !errors.Is(err, ErrDuplicate) {
			slog.Debug("Message not parsed", "vendor", vendor, "message_id", msg.ID, "error", err)
		}
		return nil, err
	}

	return s.Accept(receipt)
}

// HasMessage reports whether a receipt from the message is already stored
func (s *Service) HasMessage(messageID string) (bool, error) {
	seen, err := s.db.HasMessage(messageID)
	if err != nil {
		return false, fmt.Errorf("checking message: %w", err)
	}
	return seen, nil
}

// GetReceipt retrieves a receipt by ID
func (s *Service) GetReceipt(id string) (*Receipt, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	return receipt, nil
}

// ListReceipts returns all receipts
func (s *Service) ListReceipts() ([]*Receipt, error) {
	receipts, err := s.db.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	return receipts, nil
}

// DeleteReceipt removes a receipt
func (s *Service) DeleteReceipt(id string) error {
	if err := s.db.DeleteReceipt(id); err != nil {
		return fmt.Errorf("deleting receipt from database: %w", err)
	}
	return nil
}

// Annotate updates the category and billing status of a receipt
func (s *Service) Annotate(id string, a Annotation) (*Receipt, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt for annotation: %w", err)
	}

	if a.Category != nil {
		receipt.Category = *a.Category
	}
	if a.Billed != nil {
		receipt.Billed = *a.Billed
	}
	receipt.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveReceipt(receipt); err != nil {
		return nil, fmt.Errorf("updating receipt %s: %w", id, err)
	}
	return receipt, nil
}

// Groups returns the stored receipts grouped for display
func (s *Service) Groups() ([]Group, error) {
	receipts, err := s.ListReceipts()
	if err != nil {
		return nil, err
	}
	return GroupByReservation(receipts), nil
}

// Summary totals the stored receipts
func (s *Service) Summary() (*Summary, error) {
	receipts, err := s.ListReceipts()
	if err != nil {
		return nil, err
	}

	total, tips := Totals(receipts)
	unbilled := decimal.Zero
	for _, r := range receipts {
		if !r.Billed {
			unbilled = unbilled.Add(r.Total)
		}
	}

	return &Summary{
		Count:    len(receipts),
		Total:    total,
		Tips:     tips,
		Unbilled: unbilled,
	}, nil
}

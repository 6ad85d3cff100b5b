package receipt

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const (
	receiptBucketName     = "receipts"
	messageBucketName     = "messages"
	fingerprintBucketName = "fingerprints"
)

// DB defines the interface for the known-record store
type DB interface {
	// SaveReceipt inserts or replaces a receipt and its message/fingerprint index entries
	SaveReceipt(receipt *Receipt) error

	// GetReceipt retrieves a receipt by ID
	GetReceipt(id string) (*Receipt, error)

	// ListReceipts returns all receipts, newest trip first
	ListReceipts() ([]*Receipt, error)

	// DeleteReceipt removes a receipt and its index entries
	DeleteReceipt(id string) error

	// HasMessage reports whether a receipt was already accepted from the message
	HasMessage(messageID string) (bool, error)

	// FindByFingerprint returns the receipt stored under a content fingerprint
	FindByFingerprint(fingerprint string) (*Receipt, error)

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{receiptBucketName, messageBucketName, fingerprintBucketName} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveReceipt saves a receipt to the database
func (b *BoltDB) SaveReceipt(receipt *Receipt) error {
	if receipt.ID == "" {
		return fmt.Errorf("receipt id is required")
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(receiptBucketName))

		// Drop index entries of the version being replaced
		if old := bucket.Get([]byte(receipt.ID)); old != nil {
			var prev Receipt
			if err := json.Unmarshal(old, &prev); err == nil {
				if err := deleteIndexes(tx, &prev); err != nil {
					return err
				}
			}
		}

		data, err := json.Marshal(receipt)
		if err != nil {
			return fmt.Errorf("marshaling receipt: %w", err)
		}
		if err := bucket.Put([]byte(receipt.ID), data); err != nil {
			return err
		}
		if receipt.MessageID != "" {
			if err := tx.Bucket([]byte(messageBucketName)).Put([]byte(receipt.MessageID), []byte(receipt.ID)); err != nil {
				return err
			}
		}
		if receipt.Fingerprint != "" {
			if err := tx.Bucket([]byte(fingerprintBucketName)).Put([]byte(receipt.Fingerprint), []byte(receipt.ID)); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetReceipt retrieves a receipt by ID
func (b *BoltDB) GetReceipt(id string) (*Receipt, error) {
	var receipt *Receipt
	err := b.db.View(func(tx *bbolt.Tx) error {
		var err error
		receipt, err = getReceipt(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// ListReceipts returns all receipts
func (b *BoltDB) ListReceipts() ([]*Receipt, error) {
	receipts := make([]*Receipt, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(receiptBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var receipt Receipt
			if err := json.Unmarshal(v, &receipt); err != nil {
				return fmt.Errorf("unmarshaling receipt: %w", err)
			}
			receipts = append(receipts, &receipt)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(receipts, func(i, j int) bool {
		return receipts[i].Date.After(receipts[j].Date)
	})
	return receipts, nil
}

// DeleteReceipt removes a receipt from the database
func (b *BoltDB) DeleteReceipt(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		receipt, err := getReceipt(tx, id)
		if err != nil {
			return err
		}
		if err := deleteIndexes(tx, receipt); err != nil {
			return err
		}
		return tx.Bucket([]byte(receiptBucketName)).Delete([]byte(id))
	})
}

// HasMessage reports whether a message has already produced a receipt
func (b *BoltDB) HasMessage(messageID string) (bool, error) {
	var found bool
	err := b.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket([]byte(messageBucketName)).Get([]byte(messageID)) != nil
		return nil
	})
	return found, err
}

// FindByFingerprint retrieves a receipt by its content fingerprint
func (b *BoltDB) FindByFingerprint(fingerprint string) (*Receipt, error) {
	var receipt *Receipt
	err := b.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket([]byte(fingerprintBucketName)).Get([]byte(fingerprint))
		if id == nil {
			return fmt.Errorf("fingerprint %s: %w", fingerprint, ErrNotFound)
		}
		var err error
		receipt, err = getReceipt(tx, string(id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}

func getReceipt(tx *bbolt.Tx, id string) (*Receipt, error) {
	data := tx.Bucket([]byte(receiptBucketName)).Get([]byte(id))
	if data == nil {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	var receipt Receipt
	if err := json.Unmarshal(data, &receipt); err != nil {
		return nil, fmt.Errorf("unmarshaling receipt: %w", err)
	}
	return &receipt, nil
}

func deleteIndexes(tx *bbolt.Tx, receipt *Receipt) error {
	if receipt.MessageID != "" {
		if err := tx.Bucket([]byte(messageBucketName)).Delete([]byte(receipt.MessageID)); err != nil {
			return err
		}
	}
	if receipt.Fingerprint != "" {
		fps := tx.Bucket([]byte(fingerprintBucketName))
		// Only drop the entry if it still points at this receipt
		if id := fps.Get([]byte(receipt.Fingerprint)); id != nil && string(id) == receipt.ID {
			if err := fps.Delete([]byte(receipt.Fingerprint)); err != nil {
				return err
			}
		}
	}
	return nil
}

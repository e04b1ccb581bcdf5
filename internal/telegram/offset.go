package telegram

import (
	"encoding/binary"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	stateBucket = "state"
	offsetKey   = "update_offset"
)

// OffsetStore persists the last confirmed getUpdates offset so a restarted
// bot does not replay already-handled updates.
type OffsetStore struct {
	db *bbolt.DB
}

// NewOffsetStore opens (creating if needed) the offset database at path.
func NewOffsetStore(path string) (*OffsetStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening offset store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(stateBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating state bucket: %w", err)
	}

	return &OffsetStore{db: db}, nil
}

// Offset returns the stored offset, zero when none has been saved yet.
func (s *OffsetStore) Offset() (int64, error) {
	var offset int64
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(stateBucket)).Get([]byte(offsetKey))
		if len(data) == 8 {
			offset = int64(binary.BigEndian.Uint64(data))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("reading offset: %w", err)
	}
	return offset, nil
}

// SetOffset stores the offset.
func (s *OffsetStore) SetOffset(offset int64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data := make([]byte, 8)
		binary.BigEndian.PutUint64(data, uint64(offset))
		return tx.Bucket([]byte(stateBucket)).Put([]byte(offsetKey), data)
	})
}

// Close closes the offset database.
func (s *OffsetStore) Close() error {
	return s.db.Close()
}

// Package history keeps a short log of finished listening sessions.
package history

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"go.detai.dev/companion/internal/types"
)

// DefaultTTL is how long a transcript is kept.
const DefaultTTL = 7 * 24 * time.Hour

// ErrClosed is returned after Close.
var ErrClosed = errors.New("history: store closed")

var keyPrefix = []byte("transcript/")

// Options configures a Store.
type Options struct {
	// Dir is the badger directory. Ignored when InMemory is set.
	Dir string
	// InMemory keeps everything in memory.
	InMemory bool
	// TTL is the retention per record. Zero means DefaultTTL.
	TTL time.Duration
}

// Store is a badger-backed transcript log ordered by session start.
type Store struct {
	db  *badger.DB
	ttl time.Duration
}

// Open opens or creates the store.
func Open(opts Options) (*Store, error) {
	bopts := badger.DefaultOptions(opts.Dir).WithLogger(nil)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{db: db, ttl: ttl}, nil
}

// Append stores rec, assigning an ID when it has none.
func (s *Store) Append(rec types.TranscriptRecord) error {
	if s.db.IsClosed() {
		return ErrClosed
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(recordKey(rec), val).WithTTL(s.ttl)
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("store transcript: %w", err)
	}
	slog.Debug("transcript recorded", "id", rec.ID, "chars", len(rec.Text))
	return nil
}

// Recent returns up to limit records, newest first. A non-positive limit
// returns everything.
func (s *Store) Recent(limit int) ([]types.TranscriptRecord, error) {
	if s.db.IsClosed() {
		return nil, ErrClosed
	}

	recs := []types.TranscriptRecord{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = keyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts from the largest key under the prefix.
		seek := append(append([]byte{}, keyPrefix...), 0xff)
		for it.Seek(seek); it.ValidForPrefix(keyPrefix); it.Next() {
			if limit > 0 && len(recs) >= limit {
				break
			}
			var rec types.TranscriptRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("decode transcript %q: %w", it.Item().Key(), err)
			}
			recs = append(recs, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// Close flushes and closes the store.
func (s *Store) Close() error {
	if s.db.IsClosed() {
		return nil
	}
	return s.db.Close()
}

// recordKey orders records by start time, then ID.
func recordKey(rec types.TranscriptRecord) []byte {
	key := make([]byte, 0, len(keyPrefix)+8+1+len(rec.ID))
	key = append(key, keyPrefix...)
	key = binary.BigEndian.AppendUint64(key, uint64(rec.StartedAt.UnixNano()))
	key = append(key, '/')
	key = append(key, rec.ID...)
	return key
}

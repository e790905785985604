package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var ErrNotFound = errors.New("storage: not found")

const (
	bucketTranscripts   = "transcripts"
	bucketLeaveRequests = "leave_requests"
)

type BoltStore struct {
	db *bolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}
	s := &BoltStore{db: db}
	if err := s.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *BoltStore) ensureBuckets() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketTranscripts, bucketLeaveRequests} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Ping reports whether the database file is still usable.
func (s *BoltStore) Ping() error {
	return s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(bucketTranscripts)) == nil {
			return errors.New("storage: transcripts bucket missing")
		}
		return nil
	})
}

func (s *BoltStore) SaveTranscript(_ context.Context, conversationID string, data []byte) error {
	return s.put(bucketTranscripts, conversationID, data)
}

func (s *BoltStore) LoadTranscript(_ context.Context, conversationID string) ([]byte, error) {
	return s.get(bucketTranscripts, conversationID)
}

func (s *BoltStore) ListTranscriptIDs(_ context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}
	out := make([]string, 0, limit)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketTranscripts)).Cursor()
		for k, _ := c.Last(); k != nil && len(out) < limit; k, _ = c.Prev() {
			out = append(out, string(k))
		}
		return nil
	})
	return out, err
}

func (s *BoltStore) SaveLeaveRequest(_ context.Context, requestID string, data []byte) error {
	return s.put(bucketLeaveRequests, requestID, data)
}

func (s *BoltStore) LoadLeaveRequest(_ context.Context, requestID string) ([]byte, error) {
	return s.get(bucketLeaveRequests, requestID)
}

// ListLeaveRequests returns newest-first payloads; limit <= 0 returns all of them.
func (s *BoltStore) ListLeaveRequests(_ context.Context, limit int) ([][]byte, error) {
	var out [][]byte
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketLeaveRequests)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			out = append(out, append([]byte(nil), v...))
		}
		return nil
	})
	return out, err
}

func (s *BoltStore) put(bucket, key string, data []byte) error {
	if key == "" {
		return errors.New("storage: empty key")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucket)).Put([]byte(key), data)
	})
}

func (s *BoltStore) get(bucket, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucket)).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		out = append([]byte(nil), v...)
		return nil
	})
	return out, err
}

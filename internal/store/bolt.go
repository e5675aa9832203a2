package store

import (
	"bytes"
	"errors"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucket = []byte("messages")

	ErrBucketNotFound = errors.New("bucket not found")
)

// BoltStore keeps messages in a single bolt database file.
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 250 * time.Millisecond})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Deliver(topic string, payload []byte) error {
	k, v, err := record(topic, payload)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return ErrBucketNotFound
		}
		return b.Put(k, v)
	})
}

func (s *BoltStore) Messages(topic string, f func(Message) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return ErrBucketNotFound
		}

		prefix := topicPrefix(topic)
		c := b.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			m, err := decodeValue(v)
			if err != nil {
				return err
			}
			if err = f(m); err != nil {
				return err
			}
		}
		return nil
	})
}

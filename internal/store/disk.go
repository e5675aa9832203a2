package store

import (
	"github.com/dgraph-io/badger"
)

// DiskStore keeps messages in a badger database.
type DiskStore struct {
	db *badger.DB
}

func NewDiskStore(dir string) (*DiskStore, error) {
	opts := badger.DefaultOptions
	opts.Dir, opts.ValueDir = dir, dir
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &DiskStore{db: db}, nil
}

func (s *DiskStore) Close() error {
	return s.db.Close()
}

func (s *DiskStore) Deliver(topic string, payload []byte) error {
	k, v, err := record(topic, payload)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k, v)
	})
}

func (s *DiskStore) Messages(topic string, f func(Message) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := topicPrefix(topic)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			val, err := it.Item().Value()
			if err != nil {
				return err
			}

			m, err := decodeValue(val)
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

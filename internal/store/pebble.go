package store

import (
	"github.com/cockroachdb/pebble"
)

// PebbleStore keeps messages in a pebble database.
type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(dir string) (*PebbleStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}

	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error {
	return s.db.Close()
}

func (s *PebbleStore) Deliver(topic string, payload []byte) error {
	k, v, err := record(topic, payload)
	if err != nil {
		return err
	}
	return s.db.Set(k, v, pebble.Sync)
}

func (s *PebbleStore) Messages(topic string, f func(Message) error) error {
	dbIt, err := s.db.NewIter(prefixIterOptions(topicPrefix(topic)))
	if err != nil {
		return err
	}

	for dbIt.First(); dbIt.Valid(); dbIt.Next() {
		m, err := decodeValue(dbIt.Value())
		if err == nil {
			err = f(m)
		}
		if err != nil {
			dbIt.Close()
			return err
		}
	}

	return dbIt.Close()
}

func keyUpperBound(b []byte) []byte {
	end := make([]byte, len(b))
	copy(end, b)
	for i := len(end) - 1; i >= 0; i-- {
		end[i] = end[i] + 1
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil // no upper-bound
}

func prefixIterOptions(prefix []byte) *pebble.IterOptions {
	return &pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	}
}

// Package store archives received application messages so they can be listed later.
package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/RoanBrand/mqttc/internal/config"
	"github.com/RoanBrand/mqttc/internal/model"
)

var ErrCorruptRecord = errors.New("corrupt message record")

// Message is one archived application message.
type Message struct {
	Topic    string
	Payload  []byte
	Received time.Time
}

// Store records messages per topic, oldest first.
type Store interface {
	Deliver(topic string, payload []byte) error
	Messages(topic string, f func(Message) error) error
	Close() error
}

// Open returns the store selected by c, or nil for store type none.
func Open(c *config.Config) (Store, error) {
	var (
		s   Store
		err error
	)

	switch c.Store.Type {
	case config.StoreNone:
		return nil, nil
	case config.StoreBadger, config.StorePebble, config.StoreBolt:
		if err = os.MkdirAll(c.Store.Dir, 0755); err != nil {
			return nil, fmt.Errorf("unable to open %s store: %w", c.Store.Type, err)
		}
	}

	switch c.Store.Type {
	case config.StoreBadger:
		s, err = wrap(NewDiskStore(filepath.Join(c.Store.Dir, "badger")))
	case config.StorePebble:
		s, err = wrap(NewPebbleStore(filepath.Join(c.Store.Dir, "pebble")))
	case config.StoreBolt:
		s, err = wrap(NewBoltStore(filepath.Join(c.Store.Dir, "mqttc.db")))
	case config.StoreRedis:
		s, err = wrap(NewRedisStore(c.Store.RedisAddr, c.Store.RedisKey))
	}
	if err != nil {
		return nil, fmt.Errorf("unable to open %s store: %w", c.Store.Type, err)
	}
	return s, nil
}

// wrap keeps typed nil pointers out of the Store interface.
func wrap[T Store](s T, err error) (Store, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Keys are 'm', topic, 0, then a time ordered UUID.
// Topics cannot contain 0, so the prefix of one topic never matches another.
func topicPrefix(topic string) []byte {
	k := make([]byte, 0, 2+len(topic)+16)
	k = append(k, 'm')
	k = append(k, topic...)
	return append(k, 0)
}

func newKey(topic string) ([]byte, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	return append(topicPrefix(topic), id[:]...), nil
}

// Values are the receive time in unix nanoseconds followed by the message as a QoS 0 PUBLISH.
func encodeValue(m Message) ([]byte, error) {
	p := model.Publish{Topic: m.Topic, Payload: m.Payload}
	b, err := p.Encode()
	if err != nil {
		return nil, err
	}

	v := make([]byte, 8, 8+len(b))
	binary.BigEndian.PutUint64(v, uint64(m.Received.UnixNano()))
	return append(v, b...), nil
}

func decodeValue(v []byte) (Message, error) {
	if len(v) < 8 {
		return Message{}, ErrCorruptRecord
	}
	p, _, err := model.DecodePublish(v[8:])
	if err != nil {
		return Message{}, errors.Join(ErrCorruptRecord, err)
	}
	return Message{
		Topic:    p.Topic,
		Payload:  p.Payload,
		Received: time.Unix(0, int64(binary.BigEndian.Uint64(v))),
	}, nil
}

// record builds the key and value for a message received now.
func record(topic string, payload []byte) ([]byte, []byte, error) {
	k, err := newKey(topic)
	if err != nil {
		return nil, nil, err
	}
	v, err := encodeValue(Message{Topic: topic, Payload: payload, Received: time.Now()})
	if err != nil {
		return nil, nil, err
	}
	return k, v, nil
}

package store

import (
	"context"

	"github.com/go-redis/redis/v8"
)

// RedisStore appends messages to one redis list per topic.
type RedisStore struct {
	db     *redis.Client
	prefix string
}

func NewRedisStore(addr, prefix string) (*RedisStore, error) {
	db := redis.NewClient(&redis.Options{Addr: addr})
	if _, err := db.Ping(context.TODO()).Result(); err != nil {
		db.Close()
		return nil, err
	}
	return &RedisStore{db: db, prefix: prefix}, nil
}

func (s *RedisStore) Close() error {
	return s.db.Close()
}

func (s *RedisStore) key(topic string) string {
	return s.prefix + ":" + topic
}

func (s *RedisStore) Deliver(topic string, payload []byte) error {
	_, v, err := record(topic, payload)
	if err != nil {
		return err
	}
	return s.db.RPush(context.Background(), s.key(topic), v).Err()
}

func (s *RedisStore) Messages(topic string, f func(Message) error) error {
	vals, err := s.db.LRange(context.Background(), s.key(topic), 0, -1).Result()
	if err != nil {
		return err
	}

	for _, v := range vals {
		m, err := decodeValue([]byte(v))
		if err != nil {
			return err
		}
		if err = f(m); err != nil {
			return err
		}
	}
	return nil
}

package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/petasbytes/chatloop/message"
)

// DefaultRedisTTL is how long an untouched conversation is kept.
const DefaultRedisTTL = 24 * time.Hour

// RedisStore keeps each conversation as a Redis list of JSON messages under
// <Prefix><id>. Every Save refreshes the TTL.
type RedisStore struct {
	client *redis.Client
	Prefix string
	TTL    time.Duration
}

// NewRedisStore connects to the Redis at url (redis://...) and checks it answers.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("memory: parse redis url: %w", err)
	}
	opts.MaxRetries = 3
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("memory: connect to redis: %w", err)
	}
	return &RedisStore{client: client, Prefix: "conversation:", TTL: DefaultRedisTTL}, nil
}

func (s *RedisStore) key(id string) (string, error) {
	if err := validateID(id); err != nil {
		return "", err
	}
	return s.Prefix + id, nil
}

// Load reads the conversation id. An unknown id is an empty history.
func (s *RedisStore) Load(ctx context.Context, id string) ([]message.Message, error) {
	key, err := s.key(id)
	if err != nil {
		return nil, err
	}
	items, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("memory: load %s: %w", id, err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	msgs := make([]message.Message, 0, len(items))
	for _, item := range items {
		var m message.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("memory: decode %s: %w", id, err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// Save replaces the stored list in one MULTI/EXEC so readers never see a
// partial conversation.
func (s *RedisStore) Save(ctx context.Context, id string, msgs []message.Message) error {
	key, err := s.key(id)
	if err != nil {
		return err
	}
	values := make([]any, 0, len(msgs))
	for _, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("memory: encode %s: %w", id, err)
		}
		values = append(values, b)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			pipe.RPush(ctx, key, values...)
			if s.TTL > 0 {
				pipe.Expire(ctx, key, s.TTL)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("memory: save %s: %w", id, err)
	}
	return nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

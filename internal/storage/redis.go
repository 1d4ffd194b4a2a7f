package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Redis keeps each result in a hash with fields meta and data, expiring with the result.
type Redis struct {
	client *redis.Client
	keyNS  string
}

func NewRedis(redisURL string) (*Redis, error) {
	if redisURL == "" {
		return nil, errors.New("redis results backend needs a redis url")
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	c := redis.NewClient(opt)
	if err := c.Ping(context.Background()).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{client: c, keyNS: "pdftools"}, nil
}

func (s *Redis) key(id string) string { return fmt.Sprintf("%s:result:%s", s.keyNS, id) }

func (s *Redis) Backend() string { return "redis" }

func (s *Redis) Put(ctx context.Context, r *Result, data []byte) error {
	if err := checkID(r.ID); err != nil {
		return fmt.Errorf("invalid result id %q", r.ID)
	}
	ttl := time.Until(r.Expires)
	if ttl <= 0 {
		return fmt.Errorf("result %s already expired", r.ID)
	}
	if r.Size == 0 {
		r.Size = int64(len(data))
	}
	meta, err := json.Marshal(r)
	if err != nil {
		return err
	}
	k := s.key(r.ID)
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, k, "meta", meta, "data", data)
		p.Expire(ctx, k, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store result: %w", err)
	}
	return nil
}

func (s *Redis) Get(ctx context.Context, id string) (*Result, []byte, error) {
	if err := checkID(id); err != nil {
		return nil, nil, err
	}
	res, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("load result: %w", err)
	}
	if len(res) == 0 {
		return nil, nil, ErrNotFound
	}
	var r Result
	if err := json.Unmarshal([]byte(res["meta"]), &r); err != nil {
		return nil, nil, fmt.Errorf("decode result metadata: %w", err)
	}
	return &r, []byte(res["data"]), nil
}

func (s *Redis) Delete(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	return s.client.Del(ctx, s.key(id)).Err()
}

func (s *Redis) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func (s *Redis) Close() error { return s.client.Close() }

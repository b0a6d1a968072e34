package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kingrea/ideaboard/internal/idea"
)

// RedisConfig addresses the redis backend.
type RedisConfig struct {
	Address     string
	Password    string
	DB          int
	KeyPrefix   string
	DialTimeout time.Duration
}

const defaultDialTimeout = 5 * time.Second

// RedisStore keeps every idea as a JSON field of one hash and announces
// writes on a pub/sub channel so other boards refresh.
type RedisStore struct {
	client *redis.Client
	prefix string
	opts   options
}

// OpenRedis connects and pings the server.
func OpenRedis(ctx context.Context, cfg RedisConfig, opts ...Option) (*RedisStore, error) {
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Address,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: timeout,
	})
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("store: connect redis %s: %w", cfg.Address, err)
	}
	return NewRedisFromClient(client, cfg.KeyPrefix, opts...), nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client, prefix string, opts ...Option) *RedisStore {
	if prefix == "" {
		prefix = "ideaboard"
	}
	return &RedisStore{client: client, prefix: prefix, opts: buildOptions(opts)}
}

func (s *RedisStore) hashKey() string {
	return s.prefix + ":ideas"
}

func (s *RedisStore) channel() string {
	return s.prefix + ":ideas:changed"
}

// Subscribe implements Store. Each subscription owns a redis pub/sub
// connection and re-reads the hash whenever a change is announced.
func (s *RedisStore) Subscribe(ctx context.Context, project string) (Subscription, error) {
	pubsub := s.client.Subscribe(ctx, s.channel())
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return Subscription{}, fmt.Errorf("store: subscribe %s: %w", s.channel(), err)
	}
	initial, err := s.List(ctx, project)
	if err != nil {
		_ = pubsub.Close()
		return Subscription{}, err
	}
	sub := newSubscriber(project, s.opts.capacity, s.opts.logger)
	sub.deliver(initial)

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer sub.close()
		defer func() {
			_ = pubsub.Close()
		}()
		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-messages:
				if !ok {
					return
				}
				items, err := s.List(ctx, project)
				if err != nil {
					if ctx.Err() == nil {
						s.opts.logf("store: refresh after change: %v", err)
					}
					continue
				}
				sub.deliver(items)
			}
		}
	}()
	return Subscription{Snapshots: sub.channel(), cancel: cancel}, nil
}

// List implements Store. Ideas are ordered by creation time, then id.
func (s *RedisStore) List(ctx context.Context, project string) ([]idea.Idea, error) {
	fields, err := s.client.HGetAll(ctx, s.hashKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", s.hashKey(), err)
	}
	items := make([]idea.Idea, 0, len(fields))
	for id, raw := range fields {
		item, err := decodeIdea(raw)
		if err != nil {
			s.opts.logf("store: skip malformed idea %s: %v", id, err)
			continue
		}
		if inScope(item, project) {
			items = append(items, item)
		}
	}
	sortIdeas(items)
	return items, nil
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, item idea.Idea) (idea.Idea, error) {
	var existing *idea.Idea
	if item.ID != "" {
		current, err := s.get(ctx, item.ID)
		switch {
		case err == nil:
			existing = &current
		case !errors.Is(err, ErrNotFound):
			return idea.Idea{}, persistenceError("put", item.ID, err)
		}
	}
	stored, err := s.opts.prepare(item, existing)
	if err != nil {
		return idea.Idea{}, err
	}
	if err := s.write(ctx, stored); err != nil {
		return idea.Idea{}, persistenceError("put", stored.ID, err)
	}
	return stored, nil
}

// Update implements Store. Concurrent writers race with last-write-wins.
func (s *RedisStore) Update(ctx context.Context, id string, patch idea.Patch) error {
	current, err := s.get(ctx, id)
	if err != nil {
		return persistenceError("update", id, err)
	}
	updated := patch.Apply(current)
	updated.UpdatedAt = s.opts.now().UTC()
	if err := s.write(ctx, updated); err != nil {
		return persistenceError("update", id, err)
	}
	return nil
}

// Close releases the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) get(ctx context.Context, id string) (idea.Idea, error) {
	raw, err := s.client.HGet(ctx, s.hashKey(), id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return idea.Idea{}, ErrNotFound
		}
		return idea.Idea{}, err
	}
	return decodeIdea(raw)
}

func (s *RedisStore) write(ctx context.Context, item idea.Idea) error {
	encoded, err := json.Marshal(item)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.hashKey(), item.ID, encoded)
	pipe.Publish(ctx, s.channel(), item.ID)
	_, err = pipe.Exec(ctx)
	return err
}

func decodeIdea(raw string) (idea.Idea, error) {
	var item idea.Idea
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		return idea.Idea{}, err
	}
	return item, nil
}

func sortIdeas(items []idea.Idea) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
}

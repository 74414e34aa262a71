package draftstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"

	"bilimpoz/testbuilder-service/internal/models"
)

// RedisStore keeps drafts as JSON strings in Redis
type RedisStore struct {
	client *redis.Client
	keys   Keys
	ttl    time.Duration
}

// NewRedisStore creates a store writing under prefix. A zero ttl keeps drafts
// until they are deleted.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, keys: Keys{Prefix: prefix}, ttl: ttl}
}

// NewRedisClient parses redisURL and verifies the server answers
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Redis 7 does not know the maint_notifications handshake
	opts.MaintNotificationsConfig = &maintnotifications.Config{
		Mode: maintnotifications.ModeDisabled,
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func (s *RedisStore) fail(op, key string, err error) error {
	return &Error{Op: op, Key: key, Err: errors.Join(ErrUnavailable, err)}
}

func (s *RedisStore) put(ctx context.Context, op, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return &Error{Op: op, Key: key, Err: err}
	}
	if err := s.client.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		return s.fail(op, key, err)
	}
	return nil
}

func (s *RedisStore) get(ctx context.Context, op, key string, v interface{}) (bool, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, s.fail(op, key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, &Error{Op: op, Key: key, Err: err}
	}
	return true, nil
}

func (s *RedisStore) del(ctx context.Context, op, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return s.fail(op, key, err)
	}
	return nil
}

func (s *RedisStore) SaveTest(ctx context.Context, test *models.Test) error {
	return s.put(ctx, "save test", s.keys.Test(test.ID), test)
}

func (s *RedisStore) LoadTest(ctx context.Context, id string) (*models.Test, bool, error) {
	var test models.Test
	ok, err := s.get(ctx, "load test", s.keys.Test(id), &test)
	if !ok || err != nil {
		return nil, false, err
	}
	return &test, true, nil
}

func (s *RedisStore) DeleteTest(ctx context.Context, id string) error {
	return s.del(ctx, "delete test", s.keys.Test(id))
}

func (s *RedisStore) SaveQuestion(ctx context.Context, id string, qType models.QuestionType, data *models.QuestionData) error {
	return s.put(ctx, "save question", s.keys.Question(id, qType), data)
}

func (s *RedisStore) LoadQuestion(ctx context.Context, id string, qType models.QuestionType) (*models.QuestionData, bool, error) {
	var data models.QuestionData
	ok, err := s.get(ctx, "load question", s.keys.Question(id, qType), &data)
	if !ok || err != nil {
		return nil, false, err
	}
	return &data, true, nil
}

func (s *RedisStore) DeleteQuestion(ctx context.Context, id string, qType models.QuestionType) error {
	return s.del(ctx, "delete question", s.keys.Question(id, qType))
}

func (s *RedisStore) SaveMembership(ctx context.Context, testID string, members []models.MemberRef) error {
	if members == nil {
		members = []models.MemberRef{}
	}
	return s.put(ctx, "save membership", s.keys.Membership(testID), members)
}

func (s *RedisStore) LoadMembership(ctx context.Context, testID string) ([]models.MemberRef, error) {
	var members []models.MemberRef
	if _, err := s.get(ctx, "load membership", s.keys.Membership(testID), &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (s *RedisStore) DeleteMembership(ctx context.Context, testID string) error {
	return s.del(ctx, "delete membership", s.keys.Membership(testID))
}

func (s *RedisStore) SetStatusFlag(ctx context.Context, testID string, status models.Status) error {
	return s.put(ctx, "set status", s.keys.Status(testID), status)
}

func (s *RedisStore) GetStatusFlag(ctx context.Context, testID string) (models.Status, bool, error) {
	var status models.Status
	ok, err := s.get(ctx, "get status", s.keys.Status(testID), &status)
	return status, ok, err
}

func (s *RedisStore) ClearStatusFlag(ctx context.Context, testID string) error {
	return s.del(ctx, "clear status", s.keys.Status(testID))
}

func (s *RedisStore) SaveRemovals(ctx context.Context, testID string, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	return s.put(ctx, "save removals", s.keys.Removals(testID), ids)
}

func (s *RedisStore) LoadRemovals(ctx context.Context, testID string) ([]string, error) {
	var ids []string
	if _, err := s.get(ctx, "load removals", s.keys.Removals(testID), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *RedisStore) DeleteRemovals(ctx context.Context, testID string) error {
	return s.del(ctx, "delete removals", s.keys.Removals(testID))
}

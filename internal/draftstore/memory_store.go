package draftstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"bilimpoz/testbuilder-service/internal/models"
)

// MemoryStore keeps drafts as JSON documents in a map. Values are encoded on
// write so callers never share memory with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	keys    Keys
	records map[string][]byte
	// capacity limits the number of records, zero means unlimited
	capacity int
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: Keys{Prefix: "draft"}, records: map[string][]byte{}}
}

// NewMemoryStoreWithCapacity creates a store that rejects writes beyond capacity records
func NewMemoryStoreWithCapacity(capacity int) *MemoryStore {
	s := NewMemoryStore()
	s.capacity = capacity
	return s
}

// Len returns the number of stored records
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Keys returns the stored keys
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.records))
	for k := range s.records {
		out = append(out, k)
	}
	return out
}

func (s *MemoryStore) put(op, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return &Error{Op: op, Key: key, Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[key]; !exists && s.capacity > 0 && len(s.records) >= s.capacity {
		return &Error{Op: op, Key: key, Err: fmt.Errorf("quota of %d records exceeded", s.capacity)}
	}
	s.records[key] = raw
	return nil
}

func (s *MemoryStore) get(op, key string, v interface{}) (bool, error) {
	s.mu.RLock()
	raw, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, &Error{Op: op, Key: key, Err: err}
	}
	return true, nil
}

func (s *MemoryStore) del(key string) {
	s.mu.Lock()
	delete(s.records, key)
	s.mu.Unlock()
}

func (s *MemoryStore) SaveTest(_ context.Context, test *models.Test) error {
	return s.put("save test", s.keys.Test(test.ID), test)
}

func (s *MemoryStore) LoadTest(_ context.Context, id string) (*models.Test, bool, error) {
	var test models.Test
	ok, err := s.get("load test", s.keys.Test(id), &test)
	if !ok || err != nil {
		return nil, false, err
	}
	return &test, true, nil
}

func (s *MemoryStore) DeleteTest(_ context.Context, id string) error {
	s.del(s.keys.Test(id))
	return nil
}

func (s *MemoryStore) SaveQuestion(_ context.Context, id string, qType models.QuestionType, data *models.QuestionData) error {
	return s.put("save question", s.keys.Question(id, qType), data)
}

func (s *MemoryStore) LoadQuestion(_ context.Context, id string, qType models.QuestionType) (*models.QuestionData, bool, error) {
	var data models.QuestionData
	ok, err := s.get("load question", s.keys.Question(id, qType), &data)
	if !ok || err != nil {
		return nil, false, err
	}
	return &data, true, nil
}

func (s *MemoryStore) DeleteQuestion(_ context.Context, id string, qType models.QuestionType) error {
	s.del(s.keys.Question(id, qType))
	return nil
}

func (s *MemoryStore) SaveMembership(_ context.Context, testID string, members []models.MemberRef) error {
	if members == nil {
		members = []models.MemberRef{}
	}
	return s.put("save membership", s.keys.Membership(testID), members)
}

func (s *MemoryStore) LoadMembership(_ context.Context, testID string) ([]models.MemberRef, error) {
	var members []models.MemberRef
	if _, err := s.get("load membership", s.keys.Membership(testID), &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (s *MemoryStore) DeleteMembership(_ context.Context, testID string) error {
	s.del(s.keys.Membership(testID))
	return nil
}

func (s *MemoryStore) SetStatusFlag(_ context.Context, testID string, status models.Status) error {
	return s.put("set status", s.keys.Status(testID), status)
}

func (s *MemoryStore) GetStatusFlag(_ context.Context, testID string) (models.Status, bool, error) {
	var status models.Status
	ok, err := s.get("get status", s.keys.Status(testID), &status)
	return status, ok, err
}

func (s *MemoryStore) ClearStatusFlag(_ context.Context, testID string) error {
	s.del(s.keys.Status(testID))
	return nil
}

func (s *MemoryStore) SaveRemovals(_ context.Context, testID string, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	return s.put("save removals", s.keys.Removals(testID), ids)
}

func (s *MemoryStore) LoadRemovals(_ context.Context, testID string) ([]string, error) {
	var ids []string
	if _, err := s.get("load removals", s.keys.Removals(testID), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *MemoryStore) DeleteRemovals(_ context.Context, testID string) error {
	s.del(s.keys.Removals(testID))
	return nil
}

package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"bilimpoz/testbuilder-service/internal/draftstore"
	"bilimpoz/testbuilder-service/internal/identity"
	"bilimpoz/testbuilder-service/internal/models"
	"bilimpoz/testbuilder-service/internal/repository"
	"bilimpoz/testbuilder-service/internal/schema"
	"bilimpoz/testbuilder-service/pkg/logger"
)

var errRemoteDown = errors.New("remote store unavailable")

type remoteQuestion struct {
	testID  string
	payload models.QuestionPayload
	deleted bool
}

// fakeRemote is an in-memory remote store that counts every call
type fakeRemote struct {
	mu        sync.Mutex
	tests     map[string]*models.RemoteTest
	statuses  map[string]models.Status
	questions map[string]*remoteQuestion
	calls     map[RemoteOp]int

	failTestCreate bool
	failStatus     bool
	failQuestion   func(p *models.QuestionPayload) bool
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		tests:     make(map[string]*models.RemoteTest),
		statuses:  make(map[string]models.Status),
		questions: make(map[string]*remoteQuestion),
		calls:     make(map[RemoteOp]int),
	}
}

func (f *fakeRemote) count(op RemoteOp) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeRemote) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeRemote) liveQuestions(testID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, q := range f.questions {
		if q.testID == testID && !q.deleted {
			n++
		}
	}
	return n
}

func (f *fakeRemote) status(testID string) (models.Status, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.statuses[testID]
	return s, ok
}

// seed stores a durable test with questions as if it had been saved before
func (f *fakeRemote) seed(questions ...*models.Question) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := identity.NewDurableID()
	f.tests[id] = &models.RemoteTest{ID: id, OwnerID: "teacher-1", Name: "Seeded", Language: models.LanguageRU}
	for i, q := range questions {
		f.questions[q.ID] = &remoteQuestion{
			testID:  id,
			payload: models.QuestionPayload{Type: q.Type, Position: i, Data: *q.QuestionData.Clone()},
		}
	}
	return id
}

func (f *fakeRemote) CreateTest(_ context.Context, in models.TestInput) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[OpTestCreate]++
	if f.failTestCreate {
		return "", errRemoteDown
	}
	id := identity.NewDurableID()
	now := time.Now()
	f.tests[id] = &models.RemoteTest{
		ID:          id,
		OwnerID:     in.OwnerID,
		Name:        in.Name,
		Description: in.Description,
		Language:    in.Language,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return id, nil
}

func (f *fakeRemote) UpdateTest(_ context.Context, id string, in models.TestInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[OpTestUpdate]++
	t, ok := f.tests[id]
	if !ok {
		return repository.ErrTestNotFound
	}
	t.Name = in.Name
	t.Description = in.Description
	t.Language = in.Language
	return nil
}

func (f *fakeRemote) SetTestStatus(_ context.Context, id string, status models.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[OpStatusUpdate]++
	if f.failStatus {
		return errRemoteDown
	}
	f.statuses[id] = status
	return nil
}

func (f *fakeRemote) GetTest(_ context.Context, id string) (*models.RemoteTest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tests[id]
	if !ok {
		return nil, repository.ErrTestNotFound
	}
	out := *t
	out.Questions = nil

	type positioned struct {
		pos int
		q   *models.Question
	}
	var live []positioned
	for qid, rq := range f.questions {
		if rq.testID != id || rq.deleted {
			continue
		}
		live = append(live, positioned{
			pos: rq.payload.Position,
			q:   &models.Question{ID: qid, Type: rq.payload.Type, QuestionData: *rq.payload.Data.Clone()},
		})
	}
	sort.Slice(live, func(i, j int) bool { return live[i].pos < live[j].pos })
	for _, p := range live {
		out.Questions = append(out.Questions, p.q)
	}
	return &out, nil
}

func (f *fakeRemote) CreateQuestion(_ context.Context, testID string, p *models.QuestionPayload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[OpQuestionCreate]++
	if f.failQuestion != nil && f.failQuestion(p) {
		return "", errRemoteDown
	}
	if _, ok := f.tests[testID]; !ok {
		return "", repository.ErrTestNotFound
	}
	id := identity.NewDurableID()
	f.questions[id] = &remoteQuestion{testID: testID, payload: *p}
	return id, nil
}

func (f *fakeRemote) UpdateQuestion(_ context.Context, testID, questionID string, p *models.QuestionPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[OpQuestionUpdate]++
	if f.failQuestion != nil && f.failQuestion(p) {
		return errRemoteDown
	}
	q, ok := f.questions[questionID]
	if !ok || q.deleted || q.testID != testID {
		return repository.ErrQuestionNotFound
	}
	q.payload = *p
	return nil
}

func (f *fakeRemote) DeleteQuestion(_ context.Context, testID, questionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[OpQuestionDelete]++
	if q, ok := f.questions[questionID]; ok && q.testID == testID {
		q.deleted = true
	}
	return nil
}

type fixture struct {
	remote    *fakeRemote
	drafts    *draftstore.MemoryStore
	editor    *EditorService
	promotion *PromotionService
}

func newFixture() *fixture {
	remote := newFakeRemote()
	drafts := draftstore.NewMemoryStore()
	ids := identity.NewAllocator()
	log := logger.NewDiscardLogger()
	return &fixture{
		remote:    remote,
		drafts:    drafts,
		editor:    NewEditorService(remote, drafts, schema.NewRegistry(), ids, log),
		promotion: NewPromotionService(remote, remote, drafts, ids, log, nil),
	}
}

func validData(text string) models.QuestionData {
	return models.QuestionData{
		Question:  text,
		Answers:   []models.Answer{{Value: "2", IsCorrect: true}, {Value: "3"}},
		Points:    1,
		TimeLimit: 60,
	}
}

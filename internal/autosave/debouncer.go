// Package autosave writes question edits to the draft store after a quiet
// period, so bursts of keystrokes become a single write.
package autosave

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"bilimpoz/testbuilder-service/internal/draftstore"
	"bilimpoz/testbuilder-service/internal/models"
	"bilimpoz/testbuilder-service/pkg/logger"
	"bilimpoz/testbuilder-service/pkg/metrics"
)

// DefaultWindow is the debounce window used when none is configured
const DefaultWindow = 500 * time.Millisecond

const summaryLength = 80

// Summary is what a question list needs to render an edited question
type Summary struct {
	TestID string              `json:"testId"`
	ID     string              `json:"id"`
	Type   models.QuestionType `json:"type"`
	Text   string              `json:"text"`
}

// Options configures a Debouncer. OnSummary runs synchronously inside Edit;
// OnError runs after a failed write.
type Options struct {
	Window    time.Duration
	OnSummary func(Summary)
	OnError   func(questionID string, err error)
}

type pendingEdit struct {
	testID   string
	question *models.Question
	timer    *time.Timer
}

// Debouncer holds at most one pending write per question
type Debouncer struct {
	store   draftstore.Store
	opts    Options
	logger  *logger.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	pending map[string]*pendingEdit

	// writeMu keeps writes in the order their edits were taken
	writeMu sync.Mutex
}

func NewDebouncer(store draftstore.Store, opts Options, log *logger.Logger, m *metrics.Metrics) *Debouncer {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	return &Debouncer{
		store:   store,
		opts:    opts,
		logger:  log,
		metrics: m,
		pending: make(map[string]*pendingEdit),
	}
}

// Edit schedules q to be written and returns its summary. An edit of the
// same question within the window replaces the pending one and restarts
// the window.
func (d *Debouncer) Edit(testID string, q *models.Question) Summary {
	edit := &pendingEdit{testID: testID, question: q.Clone()}
	id := q.ID

	d.mu.Lock()
	if prev, ok := d.pending[id]; ok {
		prev.timer.Stop()
	}
	edit.timer = time.AfterFunc(d.opts.Window, func() {
		d.fire(id, edit)
	})
	d.pending[id] = edit
	d.mu.Unlock()

	summary := Summarize(testID, q)
	if d.opts.OnSummary != nil {
		d.opts.OnSummary(summary)
	}
	return summary
}

// Summarize returns the list summary of q
func Summarize(testID string, q *models.Question) Summary {
	text := strings.Join(strings.Fields(q.Question), " ")
	if r := []rune(text); len(r) > summaryLength {
		text = string(r[:summaryLength]) + "…"
	}
	return Summary{TestID: testID, ID: q.ID, Type: q.Type, Text: text}
}

func (d *Debouncer) fire(id string, edit *pendingEdit) {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	d.mu.Lock()
	current, ok := d.pending[id]
	if !ok || current != edit {
		d.mu.Unlock()
		return
	}
	delete(d.pending, id)
	d.mu.Unlock()

	_ = d.write(context.Background(), edit)
}

func (d *Debouncer) write(ctx context.Context, edit *pendingEdit) error {
	q := edit.question
	err := d.store.SaveQuestion(ctx, q.ID, q.Type, &q.QuestionData)
	d.metrics.RecordAutosave(err)
	if err != nil {
		d.logger.WithTestID(edit.testID).WithFields(logrus.Fields{
			"question_id": q.ID,
		}).WithError(err).Error("autosave write failed")
		if d.opts.OnError != nil {
			d.opts.OnError(q.ID, err)
		}
	}
	return err
}

// take removes and returns the pending edits that match keep
func (d *Debouncer) take(keep func(*pendingEdit) bool) []*pendingEdit {
	d.mu.Lock()
	defer d.mu.Unlock()

	var edits []*pendingEdit
	for id, edit := range d.pending {
		if !keep(edit) {
			continue
		}
		edit.timer.Stop()
		delete(d.pending, id)
		edits = append(edits, edit)
	}
	return edits
}

func (d *Debouncer) flush(ctx context.Context, keep func(*pendingEdit) bool) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	var errs []error
	for _, edit := range d.take(keep) {
		if err := d.write(ctx, edit); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Flush writes every pending edit now
func (d *Debouncer) Flush(ctx context.Context) error {
	return d.flush(ctx, func(*pendingEdit) bool { return true })
}

// FlushTest writes the pending edits of one test now
func (d *Debouncer) FlushTest(ctx context.Context, testID string) error {
	return d.flush(ctx, func(e *pendingEdit) bool { return e.testID == testID })
}

// Cancel drops the pending write of a question, if any
func (d *Debouncer) Cancel(questionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if edit, ok := d.pending[questionID]; ok {
		edit.timer.Stop()
		delete(d.pending, questionID)
	}
}

// Pending returns the number of edits waiting for their window to close
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

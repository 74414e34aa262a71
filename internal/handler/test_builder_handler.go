package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"bilimpoz/testbuilder-service/internal/autosave"
	"bilimpoz/testbuilder-service/internal/draftstore"
	"bilimpoz/testbuilder-service/internal/models"
	"bilimpoz/testbuilder-service/internal/schema"
	"bilimpoz/testbuilder-service/internal/service"
	"bilimpoz/testbuilder-service/pkg/helpers"
	"bilimpoz/testbuilder-service/pkg/logger"
)

const ownerHeader = "X-User-Id"

// Editor is the local editing side of the engine
type Editor interface {
	CreateDraftTest(ctx context.Context, in models.TestInput) (*models.Test, error)
	AddDraftQuestion(ctx context.Context, testID string, qType models.QuestionType) (*models.Question, error)
	RemoveDraftQuestion(ctx context.Context, testID, questionID string) error
	LoadForEditing(ctx context.Context, id string) (*service.EditingSession, error)
	QuestionRef(ctx context.Context, testID, questionID string) (models.MemberRef, error)
}

// Promoter pushes tests to the remote store
type Promoter interface {
	Save(ctx context.Context, test *models.Test, questions []*models.Question) (*service.SaveResult, error)
	Publish(ctx context.Context, test *models.Test, questions []*models.Question) (*service.PublishResult, error)
}

// Autosaver queues debounced question writes
type Autosaver interface {
	Edit(testID string, q *models.Question) autosave.Summary
	Cancel(questionID string)
}

type TestBuilderHandler struct {
	editor    Editor
	promoter  Promoter
	autosaver Autosaver
	registry  *schema.Registry
	inflight  *InFlightGuard
	logger    *logger.Logger
}

func NewTestBuilderHandler(editor Editor, promoter Promoter, autosaver Autosaver, registry *schema.Registry, log *logger.Logger) *TestBuilderHandler {
	return &TestBuilderHandler{
		editor:    editor,
		promoter:  promoter,
		autosaver: autosaver,
		registry:  registry,
		inflight:  NewInFlightGuard(),
		logger:    log,
	}
}

// RegisterRoutes mounts the editor API under /api/v1. Every route needs the
// owner header.
func (h *TestBuilderHandler) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(RequireOwner)
	api.HandleFunc("/tests", h.CreateTest).Methods(http.MethodPost)
	api.HandleFunc("/tests/{id}", h.GetTest).Methods(http.MethodGet)
	api.HandleFunc("/tests/{id}/questions", h.AddQuestion).Methods(http.MethodPost)
	api.HandleFunc("/tests/{id}/questions/{questionId}", h.EditQuestion).Methods(http.MethodPut)
	api.HandleFunc("/tests/{id}/questions/{questionId}", h.RemoveQuestion).Methods(http.MethodDelete)
	api.HandleFunc("/tests/{id}/save", h.SaveTest).Methods(http.MethodPost)
	api.HandleFunc("/tests/{id}/publish", h.PublishTest).Methods(http.MethodPost)
}

type createTestRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Language    models.Language `json:"language"`
	Section     models.Section  `json:"section"`
}

type addQuestionRequest struct {
	Type models.QuestionType `json:"type"`
}

type promoteRequest struct {
	Test      *models.Test       `json:"test"`
	Questions []*models.Question `json:"questions"`
}

type promoteFailure struct {
	Success    bool               `json:"success"`
	Error      string             `json:"error"`
	SavedCount int                `json:"savedCount"`
	Total      int                `json:"total"`
	Test       *models.Test       `json:"test,omitempty"`
	Questions  []*models.Question `json:"questions,omitempty"`
}

type publishValidationResponse struct {
	Success  bool                     `json:"success"`
	Errors   []schema.ValidationError `json:"errors"`
	Messages []string                 `json:"messages"`
}

// CreateTest handles POST /api/v1/tests
func (h *TestBuilderHandler) CreateTest(w http.ResponseWriter, r *http.Request) {
	ownerID := r.Header.Get(ownerHeader)

	var req createTestRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	test, err := h.editor.CreateDraftTest(r.Context(), models.TestInput{
		Name:        req.Name,
		Description: req.Description,
		Language:    req.Language,
		Section:     req.Section,
		OwnerID:     ownerID,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, test)
}

// GetTest handles GET /api/v1/tests/{id}
func (h *TestBuilderHandler) GetTest(w http.ResponseWriter, r *http.Request) {
	session, err := h.editor.LoadForEditing(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// AddQuestion handles POST /api/v1/tests/{id}/questions
func (h *TestBuilderHandler) AddQuestion(w http.ResponseWriter, r *http.Request) {
	var req addQuestionRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	q, err := h.editor.AddDraftQuestion(r.Context(), mux.Vars(r)["id"], req.Type)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

// EditQuestion handles PUT /api/v1/tests/{id}/questions/{questionId}. The
// write is debounced; the response carries the list summary. The type of a
// question is fixed by its membership entry.
func (h *TestBuilderHandler) EditQuestion(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var q models.Question
	if err := decodeJSONBody(r, &q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	q.ID = vars["questionId"]

	ref, err := h.editor.QuestionRef(r.Context(), vars["id"], q.ID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if q.Type == "" {
		q.Type = ref.Type
	}
	if q.Type != ref.Type {
		helpers.WriteValidationErrorResponse(w, map[string]string{
			"type": fmt.Sprintf("The type field must stay %s", ref.Type),
		})
		return
	}

	if err := h.registry.ValidateShape(&q); err != nil {
		helpers.WriteValidationErrorResponse(w, helpers.FieldErrors(err))
		return
	}

	summary := h.autosaver.Edit(vars["id"], &q)
	writeJSON(w, http.StatusAccepted, summary)
}

// RemoveQuestion handles DELETE /api/v1/tests/{id}/questions/{questionId}
func (h *TestBuilderHandler) RemoveQuestion(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	h.autosaver.Cancel(vars["questionId"])

	if err := h.editor.RemoveDraftQuestion(r.Context(), vars["id"], vars["questionId"]); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SaveTest handles POST /api/v1/tests/{id}/save
func (h *TestBuilderHandler) SaveTest(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	req, ok := h.decodePromoteRequest(w, r, id)
	if !ok {
		return
	}
	if !h.inflight.Acquire(id) {
		writeError(w, http.StatusConflict, "a save or publish of this test is already in progress")
		return
	}
	defer h.inflight.Release(id)

	result, err := h.promoter.Save(r.Context(), req.Test, req.Questions)
	if err != nil {
		h.writePromoteError(w, err, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// PublishTest handles POST /api/v1/tests/{id}/publish
func (h *TestBuilderHandler) PublishTest(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	req, ok := h.decodePromoteRequest(w, r, id)
	if !ok {
		return
	}
	if !h.inflight.Acquire(id) {
		writeError(w, http.StatusConflict, "a save or publish of this test is already in progress")
		return
	}
	defer h.inflight.Release(id)

	result, err := h.promoter.Publish(r.Context(), req.Test, req.Questions)
	if err != nil {
		h.writePromoteError(w, err, result)
		return
	}
	if len(result.Errors) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, publishValidationResponse{
			Errors:   result.Errors,
			Messages: schema.Messages(result.Errors),
		})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// decodePromoteRequest reads {test, questions} and checks their shape
func (h *TestBuilderHandler) decodePromoteRequest(w http.ResponseWriter, r *http.Request, id string) (*promoteRequest, bool) {
	var req promoteRequest
	if err := decodeJSONBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}

	if req.Test == nil {
		session, err := h.editor.LoadForEditing(r.Context(), id)
		if err != nil {
			h.writeServiceError(w, err)
			return nil, false
		}
		req.Test = session.Test
	}
	if req.Test.ID == "" {
		req.Test.ID = id
	}
	if req.Test.ID != id {
		writeError(w, http.StatusBadRequest, "test id does not match the path")
		return nil, false
	}
	req.Test.OwnerID = r.Header.Get(ownerHeader)

	fields := helpers.FieldErrors(h.registry.ValidateTest(req.Test))
	for i, q := range req.Questions {
		if q == nil {
			continue
		}
		for field, msg := range helpers.FieldErrors(h.registry.ValidateShape(q)) {
			fields = helpers.MergeValidationErrors(fields, map[string]string{
				fmt.Sprintf("questions[%d].%s", i, field): msg,
			})
		}
	}
	if len(fields) > 0 {
		helpers.WriteValidationErrorResponse(w, fields)
		return nil, false
	}
	return &req, true
}

func (h *TestBuilderHandler) writePromoteError(w http.ResponseWriter, err error, result interface{}) {
	failure := promoteFailure{Error: err.Error()}
	switch res := result.(type) {
	case *service.SaveResult:
		if res != nil {
			failure.SavedCount, failure.Total, failure.Test, failure.Questions = res.SavedCount, res.Total, res.Test, res.Questions
		}
	case *service.PublishResult:
		if res != nil {
			failure.SavedCount, failure.Total, failure.Test, failure.Questions = res.SavedCount, res.Total, res.Test, res.Questions
		}
	}

	var partial *service.PartialSaveError
	var remote *service.RemoteCallError
	var local *draftstore.Error
	switch {
	case errors.As(err, &local):
		h.logger.WithError(err).Error("draft store failure")
		writeJSON(w, http.StatusInternalServerError, failure)
	case errors.As(err, &partial):
		failure.Error = fmt.Sprintf("saved %d of %d questions", partial.Saved, partial.Total)
		writeJSON(w, http.StatusBadGateway, failure)
	case errors.As(err, &remote):
		writeJSON(w, http.StatusBadGateway, failure)
	default:
		h.writeServiceError(w, err)
	}
}

func (h *TestBuilderHandler) writeServiceError(w http.ResponseWriter, err error) {
	var local *draftstore.Error
	switch {
	case errors.Is(err, service.ErrTestNotFound):
		writeError(w, http.StatusNotFound, "test not found")
	case errors.Is(err, service.ErrQuestionNotInTest):
		writeError(w, http.StatusNotFound, "question not found in test")
	case errors.Is(err, schema.ErrUnknownType):
		helpers.WriteValidationErrorResponse(w, map[string]string{"type": err.Error()})
	case errors.Is(err, service.ErrInvalidTest):
		fields := helpers.FieldErrors(err)
		if _, plain := fields["_"]; plain {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		helpers.WriteValidationErrorResponse(w, fields)
	case errors.As(err, &local):
		h.logger.WithError(err).Error("draft store failure")
		writeError(w, http.StatusInternalServerError, "draft storage is unavailable")
	default:
		h.logger.WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeJSONBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return io.EOF
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("failed to decode body: %w", err)
	}
	if dec.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": strings.TrimSpace(message)})
}

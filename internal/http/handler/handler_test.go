package handler

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"legalcase/internal/model"
	"legalcase/internal/realtime"
	"legalcase/internal/repository"
	"legalcase/internal/service"
	serviceMocks "legalcase/internal/service/mocks"
)

type testServices struct {
	cases          *serviceMocks.MockCaseService
	documents      *serviceMocks.MockDocumentService
	questionnaires *serviceMocks.MockQuestionnaireService
	formValues     *serviceMocks.MockFormValueService
	eventLog       *serviceMocks.MockEventLogService
}

func newTestApp(t *testing.T) (*fiber.App, *testServices, sqlmock.Sqlmock) {
	t.Helper()

	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svcs := &testServices{
		cases:          new(serviceMocks.MockCaseService),
		documents:      new(serviceMocks.MockDocumentService),
		questionnaires: new(serviceMocks.MockQuestionnaireService),
		formValues:     new(serviceMocks.MockFormValueService),
		eventLog:       new(serviceMocks.MockEventLogService),
	}

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	RegisterRoutes(app, db, Services{
		Cases:          svcs.cases,
		Documents:      svcs.documents,
		Questionnaires: svcs.questionnaires,
		FormValues:     svcs.formValues,
		EventLog:       svcs.eventLog,
	}, realtime.NewHub(0))

	return app, svcs, dbMock
}

func jsonRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealth(t *testing.T) {
	app, _, dbMock := newTestApp(t)

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db down"))

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
	})
}

func TestCreateCase(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		app, svcs, _ := newTestApp(t)

		created := model.NewCase("client-1", "profile-1", "Visa application", "desc")
		created.DrainEvents()
		svcs.cases.On("Create", mock.Anything, "Visa application", "desc", "profile-1", "client-1").
			Return(created, nil)

		resp, _ := app.Test(jsonRequest(http.MethodPost, "/cases", map[string]string{
			"title":       "Visa application",
			"description": "desc",
			"profile_id":  "profile-1",
			"client_id":   "client-1",
		}))

		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var body model.Case
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, created.ID, body.ID)
		assert.Equal(t, model.StatusDocumentationInProgress, body.Status)
		svcs.cases.AssertExpectations(t)
	})

	t.Run("missing fields", func(t *testing.T) {
		app, svcs, _ := newTestApp(t)

		resp, _ := app.Test(jsonRequest(http.MethodPost, "/cases", map[string]string{
			"title": "Visa application",
		}))

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		svcs.cases.AssertNotCalled(t, "Create")
	})
}

func TestGetCase(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		app, svcs, _ := newTestApp(t)

		found := model.NewCase("client-1", "profile-1", "Visa application", "desc")
		found.DrainEvents()
		svcs.cases.On("Get", mock.Anything, found.ID).Return(found, nil)

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/cases/"+found.ID, nil))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("not found", func(t *testing.T) {
		app, svcs, _ := newTestApp(t)

		svcs.cases.On("Get", mock.Anything, "missing").Return(nil, service.ErrCaseNotFound)

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/cases/missing", nil))

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "CASE_NOT_FOUND", body.Error.Code)
	})
}

func TestListCases(t *testing.T) {
	t.Run("by profile", func(t *testing.T) {
		app, svcs, _ := newTestApp(t)

		svcs.cases.On("ListByProfile", mock.Anything, "profile-1", 5, 10).
			Return(&service.CaseListResult{Items: []model.Case{}, Total: 0}, nil)

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/cases?profile_id=profile-1&limit=5&offset=10", nil))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		svcs.cases.AssertExpectations(t)
	})

	t.Run("missing filter", func(t *testing.T) {
		app, _, _ := newTestApp(t)

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/cases", nil))

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestLifecycleRoutes(t *testing.T) {
	t.Run("submit uses header actor", func(t *testing.T) {
		app, svcs, _ := newTestApp(t)

		submitted := model.NewCase("client-1", "profile-1", "t", "d")
		submitted.DrainEvents()
		svcs.cases.On("Submit", mock.Anything, "case-1", "user-9").Return(submitted, nil)

		req := httptest.NewRequest(http.MethodPost, "/cases/case-1/submit", nil)
		req.Header.Set("X-User-Id", "user-9")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		svcs.cases.AssertExpectations(t)
	})

	t.Run("guard violation maps to 400", func(t *testing.T) {
		app, svcs, _ := newTestApp(t)

		svcs.cases.On("Submit", mock.Anything, "case-1", "system").
			Return(nil, &model.InvalidStateError{
				Op:       "submit case",
				Status:   model.StatusDocumentationInProgress,
				Expected: string(model.StatusFinalReview),
			})

		resp, _ := app.Test(httptest.NewRequest(http.MethodPost, "/cases/case-1/submit", nil))

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "INVALID_STATE", body.Error.Code)
		assert.Contains(t, body.Error.Message, "FINAL_REVIEW")
	})

	t.Run("hold with reason", func(t *testing.T) {
		app, svcs, _ := newTestApp(t)

		held := model.NewCase("client-1", "profile-1", "t", "d")
		held.DrainEvents()
		svcs.cases.On("PutOnHold", mock.Anything, "case-1", "client unreachable").Return(held, nil)

		resp, _ := app.Test(jsonRequest(http.MethodPost, "/cases/case-1/hold", map[string]string{
			"reason": "client unreachable",
		}))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		svcs.cases.AssertExpectations(t)
	})
}

func TestUploadDocuments(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		app, svcs, _ := newTestApp(t)

		svcs.documents.On("UploadDocuments", mock.Anything, "case-1", []string{"s1", "s2"}).
			Return([]string{"doc-1", "doc-2"}, nil)

		resp, _ := app.Test(jsonRequest(http.MethodPost, "/cases/case-1/documents", map[string]any{
			"storage_ids": []string{"s1", "s2"},
		}))

		assert.Equal(t, http.StatusAccepted, resp.StatusCode)

		var body map[string][]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, []string{"doc-1", "doc-2"}, body["document_ids"])
	})

	t.Run("empty storage ids", func(t *testing.T) {
		app, svcs, _ := newTestApp(t)

		resp, _ := app.Test(jsonRequest(http.MethodPost, "/cases/case-1/documents", map[string]any{
			"storage_ids": []string{},
		}))

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		svcs.documents.AssertNotCalled(t, "UploadDocuments")
	})
}

func TestDocumentStatus(t *testing.T) {
	app, svcs, _ := newTestApp(t)

	svcs.documents.On("GetDocument", mock.Anything, "case-1", "doc-1").
		Return(&model.Document{
			ID:       "doc-1",
			Status:   model.DocumentComplete,
			Category: model.CategorySupporting,
			Type:     "IDENTITY",
		}, nil)

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/cases/case-1/documents/doc-1/status", nil))

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	assert.Equal(t, "COMPLETE", body["status"])
	assert.Equal(t, "IDENTITY", body["type"])
}

func TestSubmitQuestionnaire(t *testing.T) {
	app, svcs, _ := newTestApp(t)

	svcs.questionnaires.On("Submit", mock.Anything, mock.MatchedBy(func(sub service.QuestionnaireSubmission) bool {
		return sub.CaseID == "case-1" && sub.QuestionnaireID == "q-1"
	})).Return(&service.QuestionnaireResult{
		QuestionnaireID: "q-1",
		CaseID:          "case-1",
		Status:          "COMPLETED",
	}, nil)

	resp, _ := app.Test(jsonRequest(http.MethodPost, "/cases/case-1/questionnaires", map[string]any{
		"questionnaire_id":   "q-1",
		"questionnaire_name": "Intake",
		"responses":          map[string]string{"q1": "yes"},
	}))

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	svcs.questionnaires.AssertExpectations(t)
}

func TestRecordFormValues(t *testing.T) {
	t.Run("bulk", func(t *testing.T) {
		app, svcs, _ := newTestApp(t)

		svcs.formValues.On("RecordValues", mock.Anything, "case-1", "form-1", "Main", "page-1", "Personal",
			map[string]string{"name": "Ada"}).
			Return([]service.FormValueRecord{{CaseID: "case-1", FormID: "form-1", InputID: "name"}}, nil)

		resp, _ := app.Test(jsonRequest(http.MethodPost, "/cases/case-1/form-records", map[string]any{
			"form_id":   "form-1",
			"form_name": "Main",
			"page_id":   "page-1",
			"page_name": "Personal",
			"values":    map[string]string{"name": "Ada"},
		}))

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		svcs.formValues.AssertExpectations(t)
	})

	t.Run("single input", func(t *testing.T) {
		app, svcs, _ := newTestApp(t)

		svcs.formValues.On("RecordInputValue", mock.Anything, "case-1", "form-1", "", "page-1", "", "email", "text", "a@b.c").
			Return(&service.FormValueRecord{CaseID: "case-1", FormID: "form-1", InputID: "email"}, nil)

		resp, _ := app.Test(jsonRequest(http.MethodPost, "/cases/case-1/form-records/input", map[string]string{
			"form_id":     "form-1",
			"page_id":     "page-1",
			"input_id":    "email",
			"input_type":  "text",
			"input_value": "a@b.c",
		}))

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	})

	t.Run("missing form id", func(t *testing.T) {
		app, _, _ := newTestApp(t)

		resp, _ := app.Test(jsonRequest(http.MethodPost, "/cases/case-1/form-records", map[string]any{
			"values": map[string]string{"name": "Ada"},
		}))

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestReplayFormValues(t *testing.T) {
	app, svcs, _ := newTestApp(t)

	svcs.formValues.On("Replay", mock.Anything, "case-1", "form-1").
		Return(&service.FormReplay{
			Inputs: map[string]map[string]string{"form-1": {"name": "Ada"}},
		}, nil)

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/cases/case-1/form-records/form-1/replay", nil))

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body service.FormReplay
	json.NewDecoder(resp.Body).Decode(&body)
	assert.Equal(t, "Ada", body.Inputs["form-1"]["name"])
}

func TestCaseEvents(t *testing.T) {
	t.Run("all events", func(t *testing.T) {
		app, svcs, _ := newTestApp(t)

		svcs.eventLog.On("CaseEvents", mock.Anything, "case-1").
			Return([]repository.EventLogEntry{{ID: "row-1", EventType: "CaseCreated"}}, nil)

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/cases/case-1/events", nil))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("filtered by type", func(t *testing.T) {
		app, svcs, _ := newTestApp(t)

		svcs.eventLog.On("CaseEventsByType", mock.Anything, "case-1", "FormValueRecorded").
			Return([]repository.EventLogEntry{}, nil)

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/cases/case-1/events?type=FormValueRecorded", nil))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		svcs.eventLog.AssertExpectations(t)
	})
}

func TestStreamRejectsUnknownCase(t *testing.T) {
	app, svcs, _ := newTestApp(t)

	svcs.cases.On("Get", mock.Anything, "missing").Return(nil, service.ErrCaseNotFound)

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/cases/missing/stream", nil))

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// brokenWriter simulates a client that went away: every write fails.
type brokenWriter struct{}

func (brokenWriter) Write(p []byte) (int, error) { return 0, errors.New("connection reset") }

func TestStreamEvents_HeartbeatDetectsGoneClient(t *testing.T) {
	hb := make(chan time.Time, 1)
	hb <- time.Now()
	msgs := make(chan realtime.Message)

	done := make(chan struct{})
	go func() {
		streamEvents(bufio.NewWriter(brokenWriter{}), msgs, hb)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream loop kept running after a failed heartbeat write")
	}
}

func TestStreamEvents_WritesHeartbeatAndMessages(t *testing.T) {
	var buf bytes.Buffer
	hb := make(chan time.Time)
	msgs := make(chan realtime.Message, 1)

	done := make(chan struct{})
	go func() {
		streamEvents(bufio.NewWriter(&buf), msgs, hb)
		close(done)
	}()

	hb <- time.Now()
	msgs <- realtime.Message{Name: "caseUpdate", Data: map[string]string{"id": "case-1"}}
	close(msgs)
	<-done

	out := buf.String()
	assert.Contains(t, out, ": ping")
	assert.Contains(t, out, "event: caseUpdate")
	assert.Contains(t, out, `"id":"case-1"`)
}

func TestDeleteCase(t *testing.T) {
	app, svcs, _ := newTestApp(t)

	svcs.cases.On("Delete", mock.Anything, "case-1").Return(nil)

	resp, _ := app.Test(httptest.NewRequest(http.MethodDelete, "/cases/case-1", nil))

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	svcs.cases.AssertExpectations(t)
}

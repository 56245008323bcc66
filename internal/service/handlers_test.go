package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"legalcase/internal/model"
)

type stubAnalysisService struct {
	checked []string
}

func (s *stubAnalysisService) CheckAndTrigger(ctx context.Context, caseID string) (bool, error) {
	s.checked = append(s.checked, caseID)
	return false, nil
}

func (s *stubAnalysisService) ShouldAnalyze(ctx context.Context, c *model.Case) (bool, error) {
	return false, nil
}

func (s *stubAnalysisService) LastAnalysisTime(ctx context.Context, caseID string) (*time.Time, error) {
	return nil, nil
}

func TestHandlers_OnCompletionCallsTrigger(t *testing.T) {
	c := model.NewCase("client-1", "profile-1", "title", "desc")
	c.DrainEvents()
	repo := caseRepoReturning(c)

	trigger := &stubAnalysisService{}
	h := NewCaseEventHandlers(repo, &stubPublisher{}, trigger, NewLogNotificationService())

	ev := model.DocumentCompleted{EventMeta: model.EventMeta{ID: "e1", Case: c.ID, At: time.Now()}}
	assert.NoError(t, h.onCompletion(context.Background(), ev))
	assert.Equal(t, []string{c.ID}, trigger.checked)
}

func TestHandlers_AnalysisInitiatedSettlesOutcome(t *testing.T) {
	c := model.NewCase("client-1", "profile-1", "title", "desc")
	c.Status = model.StatusAnalyzing
	c.DrainEvents()
	pct := 100
	c.AddQuestionnaireDocument(&model.Document{ID: "q1", Title: "Questionnaire", Status: model.DocumentComplete, CompletionPercentage: &pct})

	repo := caseRepoReturning(c)
	pub := &stubPublisher{}
	h := NewCaseEventHandlers(repo, pub, &stubAnalysisService{}, NewLogNotificationService())

	ev := model.LlmAnalysisInitiated{EventMeta: model.EventMeta{ID: "e1", Case: c.ID, At: time.Now()}}
	assert.NoError(t, h.onAnalysisInitiated(context.Background(), ev))

	assert.Equal(t, model.StatusDocumentationComplete, c.Status)
	assert.Len(t, pub.byType(model.EventLlmAnalysisCompleted), 1)
	assert.Len(t, pub.byType(model.EventDocumentationComplete), 1)
}

func TestHandlers_AnalysisInitiatedIncompleteDocumentation(t *testing.T) {
	c := model.NewCase("client-1", "profile-1", "title", "desc")
	c.Status = model.StatusAnalyzing
	c.DrainEvents()

	repo := caseRepoReturning(c)
	pub := &stubPublisher{}
	h := NewCaseEventHandlers(repo, pub, &stubAnalysisService{}, NewLogNotificationService())

	ev := model.LlmAnalysisInitiated{EventMeta: model.EventMeta{ID: "e1", Case: c.ID, At: time.Now()}}
	assert.NoError(t, h.onAnalysisInitiated(context.Background(), ev))

	assert.Equal(t, model.StatusDocumentationInProgress, c.Status, "no questionnaire means documentation is not complete")
	assert.Empty(t, pub.byType(model.EventDocumentationComplete))
}

func TestHandlers_WorkerSaveWaitsForCaseLock(t *testing.T) {
	c := model.NewCase("client-1", "profile-1", "title", "desc")
	c.Status = model.StatusAutoFilling
	c.DrainEvents()

	repo := caseRepoReturning(c)
	h := NewCaseEventHandlers(repo, &stubPublisher{}, &stubAnalysisService{}, NewLogNotificationService())

	release := lockCase(c.ID)

	ev := model.AutoFillingInitiated{EventMeta: model.EventMeta{ID: "e1", Case: c.ID, At: time.Now()}}
	done := make(chan error, 1)
	go func() { done <- h.onAutoFillingInitiated(context.Background(), ev) }()

	select {
	case <-done:
		t.Fatal("handler saved while another save cycle held the case lock")
	case <-time.After(50 * time.Millisecond):
	}

	release()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not run after the case lock was released")
	}
	assert.Equal(t, model.StatusFinalReview, c.Status)
}

func TestHandlers_AutoFillingInitiatedCompletesRun(t *testing.T) {
	c := model.NewCase("client-1", "profile-1", "title", "desc")
	c.Status = model.StatusAutoFilling
	c.DrainEvents()

	repo := caseRepoReturning(c)
	pub := &stubPublisher{}
	h := NewCaseEventHandlers(repo, pub, &stubAnalysisService{}, NewLogNotificationService())

	ev := model.AutoFillingInitiated{EventMeta: model.EventMeta{ID: "e1", Case: c.ID, At: time.Now()}}
	assert.NoError(t, h.onAutoFillingInitiated(context.Background(), ev))

	assert.Equal(t, model.StatusFinalReview, c.Status)
	assert.Len(t, pub.byType(model.EventAutoFillingCompleted), 1)
}

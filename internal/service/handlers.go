package service

import (
	"context"
	"log"

	"legalcase/internal/events"
	"legalcase/internal/model"
	"legalcase/internal/repository"
)

// CaseEventHandlers wires the domain event reactions: document completions
// feed the analysis trigger, analysis and auto-filling runs settle their
// outcome asynchronously, and lifecycle events produce notifications.
type CaseEventHandlers struct {
	repo          repository.CaseRepository
	publisher     EventPublisher
	analysis      AnalysisService
	notifications NotificationService
}

func NewCaseEventHandlers(repo repository.CaseRepository, publisher EventPublisher, analysis AnalysisService, notifications NotificationService) *CaseEventHandlers {
	return &CaseEventHandlers{
		repo:          repo,
		publisher:     publisher,
		analysis:      analysis,
		notifications: notifications,
	}
}

// Register subscribes every handler on the registry. Handlers that only
// notify run inline; the ones that drive a new save cycle run on the dispatch
// worker.
func (h *CaseEventHandlers) Register(reg *events.Registry) {
	reg.Subscribe(model.EventCaseCreated, h.onCaseCreated)
	reg.Subscribe(model.EventDocumentCompleted, h.onCompletion)
	reg.Subscribe(model.EventQuestionnaireCompleted, h.onCompletion)
	reg.SubscribeAsync(model.EventLlmAnalysisInitiated, h.onAnalysisInitiated)
	reg.Subscribe(model.EventLlmAnalysisCompleted, h.onAnalysisCompleted)
	reg.Subscribe(model.EventDocumentationComplete, h.onDocumentationComplete)
	reg.SubscribeAsync(model.EventAutoFillingInitiated, h.onAutoFillingInitiated)
	reg.Subscribe(model.EventCasePutOnHold, h.onCasePutOnHold)
	reg.Subscribe(model.EventCaseResumed, h.onCaseResumed)
	reg.Subscribe(model.EventCaseSubmitted, h.onCaseSubmitted)
	reg.Subscribe(model.EventCaseApproved, h.onCaseApproved)
	reg.Subscribe(model.EventCaseDenied, h.onCaseDenied)
}

func (h *CaseEventHandlers) onCaseCreated(ctx context.Context, ev model.DomainEvent) error {
	if e, ok := ev.(model.CaseCreated); ok {
		h.notifications.NotifyCaseCreated(e.ProfileID, e.CaseID(), e.CaseTitle)
	}
	return nil
}

// onCompletion reacts to both DocumentCompleted and QuestionnaireCompleted:
// each completed document is a chance to start a case-level analysis run,
// subject to the trigger policy's rate limit.
func (h *CaseEventHandlers) onCompletion(ctx context.Context, ev model.DomainEvent) error {
	triggered, err := h.analysis.CheckAndTrigger(ctx, ev.CaseID())
	if err != nil {
		return err
	}
	if !triggered {
		log.Printf("analysis not triggered for case %s", ev.CaseID())
	}
	return nil
}

// onAnalysisInitiated runs the case-level analysis and settles its outcome.
// The reload-save takes the case lock so it cannot clobber a classification
// callback saving the same case.
func (h *CaseEventHandlers) onAnalysisInitiated(ctx context.Context, ev model.DomainEvent) error {
	unlock := lockCase(ev.CaseID())
	defer unlock()

	c, err := h.repo.FindByID(ctx, ev.CaseID())
	if err != nil {
		return err
	}
	c.CompleteLlmAnalysis(true, "Analysis completed successfully")
	if err := h.repo.Save(ctx, c); err != nil {
		return err
	}
	return h.publisher.PublishAll(ctx, c)
}

func (h *CaseEventHandlers) onAnalysisCompleted(ctx context.Context, ev model.DomainEvent) error {
	e, ok := ev.(model.LlmAnalysisCompleted)
	if !ok {
		return nil
	}
	h.notifications.NotifyAnalysisCompleted(e.CaseID(), e.Successful, e.ResultSummary)

	c, err := h.repo.FindByID(ctx, e.CaseID())
	if err != nil {
		return err
	}
	if c.Status == model.StatusDocumentationComplete {
		h.notifications.NotifyReviewReady(e.CaseID())
	}
	return nil
}

func (h *CaseEventHandlers) onDocumentationComplete(ctx context.Context, ev model.DomainEvent) error {
	// Auto-filling stays a manual step; just tell the reviewer the case is
	// ready.
	h.notifications.NotifyReviewReady(ev.CaseID())
	return nil
}

// onAutoFillingInitiated completes the auto-filling run, serialized with the
// other per-case save cycles.
func (h *CaseEventHandlers) onAutoFillingInitiated(ctx context.Context, ev model.DomainEvent) error {
	unlock := lockCase(ev.CaseID())
	defer unlock()

	c, err := h.repo.FindByID(ctx, ev.CaseID())
	if err != nil {
		return err
	}
	if err := c.CompleteAutoFilling(); err != nil {
		return err
	}
	if err := h.repo.Save(ctx, c); err != nil {
		return err
	}
	return h.publisher.PublishAll(ctx, c)
}

func (h *CaseEventHandlers) onCasePutOnHold(ctx context.Context, ev model.DomainEvent) error {
	if e, ok := ev.(model.CasePutOnHold); ok {
		h.notifications.NotifyCaseOnHold(e.CaseID(), e.Reason)
	}
	return nil
}

func (h *CaseEventHandlers) onCaseResumed(ctx context.Context, ev model.DomainEvent) error {
	h.notifications.NotifyCaseResumed(ev.CaseID())
	return nil
}

func (h *CaseEventHandlers) onCaseSubmitted(ctx context.Context, ev model.DomainEvent) error {
	if e, ok := ev.(model.CaseSubmitted); ok {
		h.notifications.NotifySubmission(e.CaseID(), e.SubmittedBy)
	}
	return nil
}

func (h *CaseEventHandlers) onCaseApproved(ctx context.Context, ev model.DomainEvent) error {
	if e, ok := ev.(model.CaseApproved); ok {
		h.notifications.NotifyCaseApproved(e.CaseID(), e.ApprovedBy, e.Comments)
	}
	return nil
}

func (h *CaseEventHandlers) onCaseDenied(ctx context.Context, ev model.DomainEvent) error {
	if e, ok := ev.(model.CaseDenied); ok {
		h.notifications.NotifyCaseDenied(e.CaseID(), e.DeniedBy, e.Reason)
	}
	return nil
}

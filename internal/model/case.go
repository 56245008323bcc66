package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CaseStatus is the lifecycle state of a legal case. Status only changes
// through the named operations on Case, never by direct assignment.
type CaseStatus string

const (
	StatusDraft                   CaseStatus = "DRAFT"
	StatusDocumentationInProgress CaseStatus = "DOCUMENTATION_IN_PROGRESS"
	StatusAnalyzing               CaseStatus = "ANALYZING"
	StatusDocumentationComplete   CaseStatus = "DOCUMENTATION_COMPLETE"
	StatusReviewPending           CaseStatus = "REVIEW_PENDING"
	StatusReadyToFill             CaseStatus = "READY_TO_FILL"
	StatusAutoFilling             CaseStatus = "AUTO_FILLING"
	StatusOnHold                  CaseStatus = "ON_HOLD"
	StatusFinalReview             CaseStatus = "FINAL_REVIEW"
	StatusSubmitted               CaseStatus = "SUBMITTED"
	StatusApproved                CaseStatus = "APPROVED"
	StatusDenied                  CaseStatus = "DENIED"
)

// ErrDocumentNotFound is returned by operations that reference a document the
// case does not own (it may have been replaced by a later upload).
var ErrDocumentNotFound = errors.New("document not found in case")

// InvalidStateError reports a lifecycle operation called from a state its
// precondition disallows. The operation leaves the case untouched.
type InvalidStateError struct {
	Op       string
	Status   CaseStatus
	Expected string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s: case status is %s, expected %s", e.Op, e.Status, e.Expected)
}

// Case is the aggregate root for one legal matter. It owns the document
// collection and buffers domain events alongside each state change; the buffer
// is drained exactly once per save cycle by the caller.
type Case struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	ClientID    string      `json:"client_id"`
	ProfileID   string      `json:"profile_id"`
	Status      CaseStatus  `json:"status"`
	Documents   []*Document `json:"documents"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	CreatedBy   string      `json:"created_by,omitempty"`
	UpdatedBy   string      `json:"updated_by,omitempty"`

	events []DomainEvent
}

// NewCase creates a case and immediately advances it from DRAFT to
// DOCUMENTATION_IN_PROGRESS, buffering the CaseCreated event.
func NewCase(clientID, profileID, title, description string) *Case {
	c := &Case{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		ClientID:    clientID,
		ProfileID:   profileID,
		Status:      StatusDocumentationInProgress,
		CreatedAt:   time.Now().UTC(),
	}
	c.register(CaseCreated{EventMeta: newMeta(c.ID), ProfileID: profileID, CaseTitle: title})
	return c
}

func (c *Case) register(e DomainEvent) {
	c.events = append(c.events, e)
}

// DrainEvents returns the buffered events in registration order and clears
// the buffer. Each save cycle drains at most once.
func (c *Case) DrainEvents() []DomainEvent {
	evs := c.events
	c.events = nil
	return evs
}

// PendingEvents returns the buffered events without clearing them.
func (c *Case) PendingEvents() []DomainEvent {
	return c.events
}

// FindDocument returns the owned document with the given id, or nil.
func (c *Case) FindDocument(documentID string) *Document {
	for _, d := range c.Documents {
		if d.ID == documentID {
			return d
		}
	}
	return nil
}

// RemoveDocumentsByStorageID drops every owned document sharing the storage
// reference. Re-upload is a replacement, never a duplication.
func (c *Case) RemoveDocumentsByStorageID(storageID string) int {
	kept := c.Documents[:0]
	removed := 0
	for _, d := range c.Documents {
		if d.StorageID == storageID {
			removed++
			continue
		}
		kept = append(kept, d)
	}
	c.Documents = kept
	return removed
}

// AddDocument attaches a document without touching its category.
func (c *Case) AddDocument(d *Document) {
	c.Documents = append(c.Documents, d)
}

// AddQuestionnaireDocument attaches a document stamped QUESTIONNAIRE.
func (c *Case) AddQuestionnaireDocument(d *Document) {
	d.Category = CategoryQuestionnaire
	c.Documents = append(c.Documents, d)
}

// AddProfileDocument attaches a document stamped PROFILE.
func (c *Case) AddProfileDocument(d *Document) {
	d.Category = CategoryProfile
	c.Documents = append(c.Documents, d)
}

// AddSupportingDocument attaches a document stamped SUPPORTING_DOCUMENT.
func (c *Case) AddSupportingDocument(d *Document) {
	d.Category = CategorySupporting
	c.Documents = append(c.Documents, d)
}

// QuestionnaireDocuments returns the owned questionnaire documents.
func (c *Case) QuestionnaireDocuments() []*Document {
	return c.documentsByCategory(CategoryQuestionnaire)
}

// ProfileDocuments returns the owned profile documents.
func (c *Case) ProfileDocuments() []*Document {
	return c.documentsByCategory(CategoryProfile)
}

// SupportingDocuments returns the owned supporting documents.
func (c *Case) SupportingDocuments() []*Document {
	return c.documentsByCategory(CategorySupporting)
}

func (c *Case) documentsByCategory(cat DocumentCategory) []*Document {
	var out []*Document
	for _, d := range c.Documents {
		if d.Category == cat {
			out = append(out, d)
		}
	}
	return out
}

// MarkDocumentComplete sets the document's status to COMPLETE and buffers
// DocumentCompleted.
func (c *Case) MarkDocumentComplete(documentID, documentName string) error {
	d := c.FindDocument(documentID)
	if d == nil {
		return ErrDocumentNotFound
	}
	d.Status = DocumentComplete
	c.register(DocumentCompleted{
		EventMeta:    newMeta(c.ID),
		DocumentID:   documentID,
		DocumentName: documentName,
	})
	return nil
}

// MarkQuestionnaireComplete is MarkDocumentComplete scoped to questionnaire
// documents; it buffers QuestionnaireCompleted.
func (c *Case) MarkQuestionnaireComplete(questionnaireID, questionnaireName string) error {
	for _, d := range c.QuestionnaireDocuments() {
		if d.ID == questionnaireID {
			d.Status = DocumentComplete
			c.register(QuestionnaireCompleted{
				EventMeta:         newMeta(c.ID),
				QuestionnaireID:   questionnaireID,
				QuestionnaireName: questionnaireName,
			})
			return nil
		}
	}
	return ErrDocumentNotFound
}

// HasCompletedDocumentsForAnalysis reports whether any owned document is
// complete. This is the minimal trigger signal; the time-based rate limit
// lives in the analysis service.
func (c *Case) HasCompletedDocumentsForAnalysis() bool {
	for _, d := range c.Documents {
		if d.IsComplete() {
			return true
		}
	}
	return false
}

// InitiateLlmAnalysis moves the case to ANALYZING and buffers
// LlmAnalysisInitiated.
func (c *Case) InitiateLlmAnalysis(analysisType string) {
	c.Status = StatusAnalyzing
	c.register(LlmAnalysisInitiated{EventMeta: newMeta(c.ID), AnalysisType: analysisType})
}

// CompleteLlmAnalysis settles the analysis outcome: DOCUMENTATION_COMPLETE
// when everything required is in, otherwise back to
// DOCUMENTATION_IN_PROGRESS. DocumentationComplete is buffered after
// LlmAnalysisCompleted when the former branch was taken.
func (c *Case) CompleteLlmAnalysis(successful bool, resultSummary string) {
	if c.IsAllDocumentationComplete() {
		c.Status = StatusDocumentationComplete
	} else {
		c.Status = StatusDocumentationInProgress
	}
	c.register(LlmAnalysisCompleted{
		EventMeta:     newMeta(c.ID),
		AnalysisType:  "document_analysis",
		Successful:    successful,
		ResultSummary: resultSummary,
	})
	if c.Status == StatusDocumentationComplete {
		c.register(DocumentationComplete{EventMeta: newMeta(c.ID)})
	}
}

// IsAllDocumentationComplete is true iff the case has at least one
// questionnaire document, every questionnaire document is complete, and every
// required supporting document is complete (vacuously true when none are
// required).
func (c *Case) IsAllDocumentationComplete() bool {
	questionnaires := c.QuestionnaireDocuments()
	if len(questionnaires) == 0 {
		return false
	}
	for _, q := range questionnaires {
		if !q.IsComplete() {
			return false
		}
	}
	for _, s := range c.SupportingDocuments() {
		if s.IsRequired() && !s.IsComplete() {
			return false
		}
	}
	return true
}

// InitiateAutoFilling moves the case to AUTO_FILLING. Allowed only from
// DOCUMENTATION_COMPLETE or READY_TO_FILL.
func (c *Case) InitiateAutoFilling() error {
	if c.Status != StatusDocumentationComplete && c.Status != StatusReadyToFill {
		return &InvalidStateError{
			Op:       "initiate auto-filling",
			Status:   c.Status,
			Expected: "DOCUMENTATION_COMPLETE or READY_TO_FILL",
		}
	}
	c.Status = StatusAutoFilling
	c.register(AutoFillingInitiated{EventMeta: newMeta(c.ID)})
	return nil
}

// PutOnHold pauses the case from any state.
func (c *Case) PutOnHold(reason string) {
	c.Status = StatusOnHold
	c.register(CasePutOnHold{EventMeta: newMeta(c.ID), Reason: reason})
}

// ResumeFromHold returns an on-hold case to AUTO_FILLING.
func (c *Case) ResumeFromHold() error {
	if c.Status != StatusOnHold {
		return &InvalidStateError{Op: "resume from hold", Status: c.Status, Expected: string(StatusOnHold)}
	}
	c.Status = StatusAutoFilling
	c.register(CaseResumed{EventMeta: newMeta(c.ID)})
	return nil
}

// CompleteAutoFilling moves an auto-filling case into FINAL_REVIEW.
func (c *Case) CompleteAutoFilling() error {
	if c.Status != StatusAutoFilling {
		return &InvalidStateError{Op: "complete auto-filling", Status: c.Status, Expected: string(StatusAutoFilling)}
	}
	c.Status = StatusFinalReview
	c.register(AutoFillingCompleted{EventMeta: newMeta(c.ID)})
	return nil
}

// SubmitCase submits a case that has passed final review.
func (c *Case) SubmitCase(submittedBy string) error {
	if c.Status != StatusFinalReview {
		return &InvalidStateError{Op: "submit case", Status: c.Status, Expected: string(StatusFinalReview)}
	}
	c.Status = StatusSubmitted
	c.register(CaseSubmitted{EventMeta: newMeta(c.ID), SubmittedBy: submittedBy})
	return nil
}

// ApproveCase approves a submitted case. APPROVED is terminal.
func (c *Case) ApproveCase(approvedBy, comments string) error {
	if c.Status != StatusSubmitted {
		return &InvalidStateError{Op: "approve case", Status: c.Status, Expected: string(StatusSubmitted)}
	}
	c.Status = StatusApproved
	c.register(CaseApproved{EventMeta: newMeta(c.ID), ApprovedBy: approvedBy, Comments: comments})
	return nil
}

// DenyCase denies a submitted case. DENIED is terminal.
func (c *Case) DenyCase(deniedBy, reason string) error {
	if c.Status != StatusSubmitted {
		return &InvalidStateError{Op: "deny case", Status: c.Status, Expected: string(StatusSubmitted)}
	}
	c.Status = StatusDenied
	c.register(CaseDenied{EventMeta: newMeta(c.ID), DeniedBy: deniedBy, Reason: reason})
	return nil
}

// RecordFormValue buffers a FormValueRecorded event for one field input. It
// never changes case state.
func (c *Case) RecordFormValue(formID, formName, pageID, pageName, inputID, inputType, inputValue string) {
	c.register(FormValueRecorded{
		EventMeta:  newMeta(c.ID),
		FormID:     formID,
		FormName:   formName,
		PageID:     pageID,
		PageName:   pageName,
		InputID:    inputID,
		InputType:  inputType,
		InputValue: inputValue,
		FormValues: map[string]string{inputID: inputValue},
	})
}

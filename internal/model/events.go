package model

import (
	"time"

	"github.com/google/uuid"
)

// Event type discriminators as stored in the event log. The analysis trigger
// policy and the form-value replay both filter the log by these names, so they
// must stay stable.
const (
	EventCaseCreated            = "CaseCreated"
	EventDocumentCompleted      = "DocumentCompleted"
	EventQuestionnaireCompleted = "QuestionnaireCompleted"
	EventFormValueRecorded      = "FormValueRecorded"
	EventLlmAnalysisInitiated   = "LlmAnalysisInitiated"
	EventLlmAnalysisCompleted   = "LlmAnalysisCompleted"
	EventDocumentationComplete  = "DocumentationComplete"
	EventAutoFillingInitiated   = "AutoFillingInitiated"
	EventAutoFillingCompleted   = "AutoFillingCompleted"
	EventCasePutOnHold          = "CasePutOnHold"
	EventCaseResumed            = "CaseResumed"
	EventCaseSubmitted          = "CaseSubmitted"
	EventCaseApproved           = "CaseApproved"
	EventCaseDenied             = "CaseDenied"
)

// DomainEvent is an immutable record of something that happened to a case.
// Concrete events are plain payload structs embedding EventMeta; the payload
// is what gets serialized into the event log.
type DomainEvent interface {
	EventID() string
	CaseID() string
	EventType() string
	OccurredAt() time.Time
}

// EventMeta carries the identity shared by every domain event. It is set once
// at construction and never modified.
type EventMeta struct {
	ID   string    `json:"event_id"`
	Case string    `json:"case_id"`
	At   time.Time `json:"occurred_at"`
}

func newMeta(caseID string) EventMeta {
	return EventMeta{ID: uuid.NewString(), Case: caseID, At: time.Now().UTC()}
}

func (m EventMeta) EventID() string       { return m.ID }
func (m EventMeta) CaseID() string        { return m.Case }
func (m EventMeta) OccurredAt() time.Time { return m.At }

type CaseCreated struct {
	EventMeta
	ProfileID string `json:"profile_id"`
	CaseTitle string `json:"case_title"`
}

func (CaseCreated) EventType() string { return EventCaseCreated }

type DocumentCompleted struct {
	EventMeta
	DocumentID   string `json:"document_id"`
	DocumentName string `json:"document_name"`
}

func (DocumentCompleted) EventType() string { return EventDocumentCompleted }

type QuestionnaireCompleted struct {
	EventMeta
	QuestionnaireID   string `json:"questionnaire_id"`
	QuestionnaireName string `json:"questionnaire_name"`
}

func (QuestionnaireCompleted) EventType() string { return EventQuestionnaireCompleted }

// FormValueRecorded captures a single field input for later replay. FormValues
// keeps the inputID->value pair in map form so replay can fold records without
// re-parsing the individual fields.
type FormValueRecorded struct {
	EventMeta
	FormID     string            `json:"form_id"`
	FormName   string            `json:"form_name"`
	PageID     string            `json:"page_id"`
	PageName   string            `json:"page_name"`
	InputID    string            `json:"input_id"`
	InputType  string            `json:"input_type"`
	InputValue string            `json:"input_value"`
	FormValues map[string]string `json:"form_values"`
}

func (FormValueRecorded) EventType() string { return EventFormValueRecorded }

type LlmAnalysisInitiated struct {
	EventMeta
	AnalysisType string `json:"analysis_type"`
}

func (LlmAnalysisInitiated) EventType() string { return EventLlmAnalysisInitiated }

type LlmAnalysisCompleted struct {
	EventMeta
	AnalysisType  string `json:"analysis_type"`
	Successful    bool   `json:"successful"`
	ResultSummary string `json:"result_summary"`
}

func (LlmAnalysisCompleted) EventType() string { return EventLlmAnalysisCompleted }

type DocumentationComplete struct {
	EventMeta
}

func (DocumentationComplete) EventType() string { return EventDocumentationComplete }

type AutoFillingInitiated struct {
	EventMeta
}

func (AutoFillingInitiated) EventType() string { return EventAutoFillingInitiated }

type AutoFillingCompleted struct {
	EventMeta
}

func (AutoFillingCompleted) EventType() string { return EventAutoFillingCompleted }

type CasePutOnHold struct {
	EventMeta
	Reason string `json:"reason"`
}

func (CasePutOnHold) EventType() string { return EventCasePutOnHold }

type CaseResumed struct {
	EventMeta
}

func (CaseResumed) EventType() string { return EventCaseResumed }

type CaseSubmitted struct {
	EventMeta
	SubmittedBy string `json:"submitted_by"`
}

func (CaseSubmitted) EventType() string { return EventCaseSubmitted }

type CaseApproved struct {
	EventMeta
	ApprovedBy string `json:"approved_by"`
	Comments   string `json:"comments"`
}

func (CaseApproved) EventType() string { return EventCaseApproved }

type CaseDenied struct {
	EventMeta
	DeniedBy string `json:"denied_by"`
	Reason   string `json:"reason"`
}

func (CaseDenied) EventType() string { return EventCaseDenied }

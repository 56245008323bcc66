package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"time"

	"legalcase/internal/model"
	"legalcase/internal/repository"
)

// FormValueRecord is the service-level view of one recorded form value,
// reconstructed from the event log.
type FormValueRecord struct {
	ID         string            `json:"id,omitempty"`
	CaseID     string            `json:"case_id"`
	FormID     string            `json:"form_id"`
	FormName   string            `json:"form_name,omitempty"`
	PageID     string            `json:"page_id"`
	PageName   string            `json:"page_name,omitempty"`
	InputID    string            `json:"input_id,omitempty"`
	InputType  string            `json:"input_type,omitempty"`
	InputValue string            `json:"input_value,omitempty"`
	FormValues map[string]string `json:"form_values,omitempty"`
	RecordedAt time.Time         `json:"recorded_at"`
	RecordedBy string            `json:"recorded_by,omitempty"`
	EventID    string            `json:"event_id"`
}

// FormReplay is the reconstruction of a case's form state from the log:
// records grouped by form and page, plus the latest value per input folded in
// occurrence order.
type FormReplay struct {
	Forms  map[string]map[string][]FormValueRecord `json:"forms"`
	Inputs map[string]map[string]string            `json:"inputs"`
}

// FormValueService records form field values as domain events and replays
// them. Values are never stored as mutable rows; the event log is the single
// source of truth.
type FormValueService interface {
	// RecordValues records one event per entry in values. When the case has
	// finished documentation it also advances it into auto-filling.
	RecordValues(ctx context.Context, caseID, formID, formName, pageID, pageName string, values map[string]string) ([]FormValueRecord, error)

	// RecordInputValue records a single typed field input.
	RecordInputValue(ctx context.Context, caseID, formID, formName, pageID, pageName, inputID, inputType, inputValue string) (*FormValueRecord, error)

	// AllRecords returns every recorded form value for the case in occurrence
	// order.
	AllRecords(ctx context.Context, caseID string) ([]FormValueRecord, error)

	// ClearRecords logically clears a form's records. Log entries are never
	// physically deleted; callers ignore cleared groups on future replays.
	ClearRecords(ctx context.Context, caseID, formID string) error

	// Replay rebuilds the form projections from the ordered log. formID
	// restricts the replay to one form when non-empty.
	Replay(ctx context.Context, caseID, formID string) (*FormReplay, error)
}

type formValueService struct {
	repo      repository.CaseRepository
	eventLog  repository.EventLogRepository
	publisher EventPublisher
}

// NewFormValueService constructs a new FormValueService.
func NewFormValueService(repo repository.CaseRepository, eventLog repository.EventLogRepository, publisher EventPublisher) FormValueService {
	return &formValueService{repo: repo, eventLog: eventLog, publisher: publisher}
}

func (s *formValueService) RecordValues(ctx context.Context, caseID, formID, formName, pageID, pageName string, values map[string]string) ([]FormValueRecord, error) {
	if caseID == "" {
		return nil, ErrIDRequired
	}
	c, err := s.loadCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	for inputID, inputValue := range values {
		c.RecordFormValue(formID, formName, pageID, pageName, inputID, "unknown", inputValue)
	}
	s.maybeStartAutoFilling(c)

	recorded := formValueRecordsFromEvents(c.PendingEvents(), caseID)
	if len(recorded) == 0 {
		return nil, ErrFormRecording
	}

	if err := s.persistAndPublish(ctx, c); err != nil {
		return nil, err
	}
	return recorded, nil
}

func (s *formValueService) RecordInputValue(ctx context.Context, caseID, formID, formName, pageID, pageName, inputID, inputType, inputValue string) (*FormValueRecord, error) {
	if caseID == "" {
		return nil, ErrIDRequired
	}
	c, err := s.loadCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	c.RecordFormValue(formID, formName, pageID, pageName, inputID, inputType, inputValue)
	s.maybeStartAutoFilling(c)

	recorded := formValueRecordsFromEvents(c.PendingEvents(), caseID)
	if len(recorded) == 0 {
		return nil, ErrFormRecording
	}

	if err := s.persistAndPublish(ctx, c); err != nil {
		return nil, err
	}
	return &recorded[0], nil
}

// maybeStartAutoFilling advances a case that has finished documentation into
// auto-filling as soon as form values start arriving.
func (s *formValueService) maybeStartAutoFilling(c *model.Case) {
	if c.Status == model.StatusDocumentationComplete || c.Status == model.StatusReadyToFill {
		if err := c.InitiateAutoFilling(); err != nil {
			log.Printf("auto-filling not started for case %s: %v", c.ID, err)
		}
	}
}

func (s *formValueService) persistAndPublish(ctx context.Context, c *model.Case) error {
	if err := s.repo.Save(ctx, c); err != nil {
		return err
	}
	return s.publisher.PublishAll(ctx, c)
}

func (s *formValueService) AllRecords(ctx context.Context, caseID string) ([]FormValueRecord, error) {
	if err := s.requireCase(ctx, caseID); err != nil {
		return nil, err
	}
	entries, err := s.eventLog.ListByCaseAndType(ctx, caseID, model.EventFormValueRecorded)
	if err != nil {
		return nil, err
	}
	records := make([]FormValueRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, recordFromEntry(e))
	}
	return records, nil
}

func (s *formValueService) ClearRecords(ctx context.Context, caseID, formID string) error {
	if err := s.requireCase(ctx, caseID); err != nil {
		return err
	}
	// Entries are part of the permanent audit trail and stay in the log; the
	// clear is purely logical.
	log.Printf("logically clearing form %s records for case %s; log entries are retained", formID, caseID)
	return nil
}

func (s *formValueService) Replay(ctx context.Context, caseID, formID string) (*FormReplay, error) {
	records, err := s.AllRecords(ctx, caseID)
	if err != nil {
		return nil, err
	}

	replay := &FormReplay{
		Forms:  make(map[string]map[string][]FormValueRecord),
		Inputs: make(map[string]map[string]string),
	}
	for _, r := range records {
		if formID != "" && r.FormID != formID {
			continue
		}
		pages, ok := replay.Forms[r.FormID]
		if !ok {
			pages = make(map[string][]FormValueRecord)
			replay.Forms[r.FormID] = pages
		}
		pages[r.PageID] = append(pages[r.PageID], r)

		if r.InputID == "" {
			continue
		}
		inputs, ok := replay.Inputs[r.FormID]
		if !ok {
			inputs = make(map[string]string)
			replay.Inputs[r.FormID] = inputs
		}
		// Later records overwrite earlier ones; the fold order is the log's
		// occurrence order.
		inputs[r.InputID] = r.InputValue
	}
	return replay, nil
}

func (s *formValueService) loadCase(ctx context.Context, caseID string) (*model.Case, error) {
	c, err := s.repo.FindByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCaseNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *formValueService) requireCase(ctx context.Context, caseID string) error {
	if caseID == "" {
		return ErrIDRequired
	}
	exists, err := s.repo.ExistsByID(ctx, caseID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrCaseNotFound
	}
	return nil
}

func formValueRecordsFromEvents(evs []model.DomainEvent, caseID string) []FormValueRecord {
	var out []FormValueRecord
	for _, ev := range evs {
		fv, ok := ev.(model.FormValueRecorded)
		if !ok {
			continue
		}
		out = append(out, FormValueRecord{
			CaseID:     caseID,
			FormID:     fv.FormID,
			FormName:   fv.FormName,
			PageID:     fv.PageID,
			PageName:   fv.PageName,
			InputID:    fv.InputID,
			InputType:  fv.InputType,
			InputValue: fv.InputValue,
			FormValues: fv.FormValues,
			RecordedAt: fv.OccurredAt(),
			EventID:    fv.EventID(),
		})
	}
	return out
}

func recordFromEntry(e repository.EventLogEntry) FormValueRecord {
	rec := FormValueRecord{
		ID:         e.ID,
		CaseID:     e.CaseID,
		RecordedAt: e.OccurredAt,
		RecordedBy: e.CreatedBy,
		EventID:    e.EventID,
	}

	var ev model.FormValueRecorded
	if err := json.Unmarshal([]byte(e.EventData), &ev); err != nil {
		log.Printf("decode form value event %s: %v", e.EventID, err)
		return rec
	}
	rec.FormID = ev.FormID
	rec.FormName = ev.FormName
	rec.PageID = ev.PageID
	rec.PageName = ev.PageName
	rec.InputID = ev.InputID
	rec.InputType = ev.InputType
	rec.InputValue = ev.InputValue
	rec.FormValues = ev.FormValues
	return rec
}

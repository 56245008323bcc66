package service

import "log"

// NotificationService sends user-facing notifications about case progress.
// Notifications are best-effort side effects: failures are logged and never
// surfaced to the operation that produced them.
type NotificationService interface {
	NotifyCaseCreated(profileID, caseID, caseTitle string)
	NotifyAnalysisCompleted(caseID string, successful bool, resultSummary string)
	NotifyReviewReady(caseID string)
	NotifyCaseOnHold(caseID, reason string)
	NotifyCaseResumed(caseID string)
	NotifySubmission(caseID, submittedBy string)
	NotifyCaseApproved(caseID, approvedBy, comments string)
	NotifyCaseDenied(caseID, deniedBy, reason string)
}

// logNotificationService writes each notification to the application log.
// A real delivery channel (email, push) slots in behind the same interface.
type logNotificationService struct{}

// NewLogNotificationService constructs the log-backed NotificationService.
func NewLogNotificationService() NotificationService {
	return logNotificationService{}
}

func (logNotificationService) NotifyCaseCreated(profileID, caseID, caseTitle string) {
	log.Printf("notify: case %s (%q) created for profile %s", caseID, caseTitle, profileID)
}

func (logNotificationService) NotifyAnalysisCompleted(caseID string, successful bool, resultSummary string) {
	log.Printf("notify: analysis for case %s completed, successful=%t: %s", caseID, successful, resultSummary)
}

func (logNotificationService) NotifyReviewReady(caseID string) {
	log.Printf("notify: case %s is ready for review", caseID)
}

func (logNotificationService) NotifyCaseOnHold(caseID, reason string) {
	log.Printf("notify: case %s put on hold: %s", caseID, reason)
}

func (logNotificationService) NotifyCaseResumed(caseID string) {
	log.Printf("notify: case %s resumed", caseID)
}

func (logNotificationService) NotifySubmission(caseID, submittedBy string) {
	log.Printf("notify: case %s submitted by %s, approvers alerted", caseID, submittedBy)
}

func (logNotificationService) NotifyCaseApproved(caseID, approvedBy, comments string) {
	log.Printf("notify: case %s approved by %s: %s", caseID, approvedBy, comments)
}

func (logNotificationService) NotifyCaseDenied(caseID, deniedBy, reason string) {
	log.Printf("notify: case %s denied by %s: %s", caseID, deniedBy, reason)
}

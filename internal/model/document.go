package model

import "time"

// DocumentCategory determines which completeness rules apply to a document.
// It doubles as the single-table discriminator in the case_documents table.
type DocumentCategory string

const (
	CategoryQuestionnaire DocumentCategory = "QUESTIONNAIRE"
	CategoryProfile       DocumentCategory = "PROFILE"
	CategorySupporting    DocumentCategory = "SUPPORTING_DOCUMENT"
)

// DocumentStatus is the processing state of a single document.
type DocumentStatus string

const (
	DocumentPending    DocumentStatus = "PENDING"
	DocumentIncomplete DocumentStatus = "INCOMPLETE"
	DocumentComplete   DocumentStatus = "COMPLETE"
	DocumentRejected   DocumentStatus = "REJECTED"
	DocumentExpired    DocumentStatus = "EXPIRED"
)

// Document is a file attached to a case. It is a tagged union over Category:
// the variant-specific fields are only meaningful for the matching category,
// and IsComplete selects the completeness predicate by category. Reclassifying
// a document after analysis swaps the category and variant fields in place;
// the ID never changes.
type Document struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	FilePath    string `json:"file_path"`
	FileType    string `json:"file_type"`
	FileSize    int64  `json:"file_size"`
	StorageID   string `json:"storage_id"`

	// Type is the free-form classifier tag assigned by the analyzer
	// (e.g. IDENTITY, ADDRESS_PROOF, FINANCIAL, OTHER).
	Type     string           `json:"document_type"`
	Status   DocumentStatus   `json:"status"`
	Category DocumentCategory `json:"category"`

	// MetadataJSON holds the serialized key/value data extracted by the
	// analyzer, or the error detail for a rejected document.
	MetadataJSON string `json:"metadata_json,omitempty"`

	// Questionnaire variant.
	QuestionnaireType    string `json:"questionnaire_type,omitempty"`
	CompletionPercentage *int   `json:"completion_percentage,omitempty"`

	// Profile variant.
	ProfileType        string `json:"profile_type,omitempty"`
	IdentityVerified   *bool  `json:"identity_verified,omitempty"`
	VerificationMethod string `json:"verification_method,omitempty"`

	// Supporting variant.
	DocumentReference    string     `json:"document_reference,omitempty"`
	IssuingAuthority     string     `json:"issuing_authority,omitempty"`
	IssueDate            *time.Time `json:"issue_date,omitempty"`
	ExpiryDate           *time.Time `json:"expiry_date,omitempty"`
	VerificationRequired *bool      `json:"verification_required,omitempty"`
	Verified             *bool      `json:"verified,omitempty"`

	// DownloadURL is a transient presigned URL, never persisted.
	DownloadURL string `json:"download_url,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsComplete reports whether the document satisfies the completeness rules of
// its category.
func (d *Document) IsComplete() bool {
	switch d.Category {
	case CategoryQuestionnaire:
		if d.Status == DocumentComplete {
			return true
		}
		return d.CompletionPercentage != nil && *d.CompletionPercentage >= 100
	case CategoryProfile:
		if d.Status == DocumentComplete {
			return true
		}
		return d.IdentityVerified != nil && *d.IdentityVerified
	default:
		if d.Title == "" {
			return false
		}
		if d.VerificationRequired != nil && *d.VerificationRequired &&
			(d.Verified == nil || !*d.Verified) {
			return false
		}
		return !d.IsExpired()
	}
}

// IsExpired reports whether a supporting document's expiry date has passed.
// A document without an expiry date never expires.
func (d *Document) IsExpired() bool {
	return d.ExpiryDate != nil && d.ExpiryDate.Before(time.Now())
}

// IsRequired reports whether a supporting document counts toward the
// case-level documentation-complete check.
func (d *Document) IsRequired() bool {
	return d.VerificationRequired != nil && *d.VerificationRequired
}

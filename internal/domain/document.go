package domain

import (
	"strings"
	"time"
)

// DocumentStatus represents the ingestion status of a document
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusReady      DocumentStatus = "ready"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// Document is an opaque text blob submitted for ingestion.
// Immutable once stored; its passages are replaced as a whole on re-ingestion.
type Document struct {
	ID        string
	Text      string
	Metadata  Metadata
	Status    DocumentStatus
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return NewDomainError(ErrCodeValidation, "document cannot be nil")
	}
	if d.ID == "" {
		return NewDomainError(ErrCodeValidation, "document ID is required")
	}
	if strings.TrimSpace(d.Text) == "" {
		return NewDomainError(ErrCodeValidation, "document text is required")
	}
	if !isValidDocumentStatus(d.Status) {
		return NewDomainError(ErrCodeValidation, "document status is invalid: "+string(d.Status))
	}
	return nil
}

func isValidDocumentStatus(s DocumentStatus) bool {
	switch s {
	case DocumentStatusPending, DocumentStatusProcessing,
		DocumentStatusReady, DocumentStatusFailed:
		return true
	}
	return false
}

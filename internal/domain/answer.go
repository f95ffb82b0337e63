package domain

// SourceRef identifies a passage used to ground an answer.
type SourceRef struct {
	RecordID   string
	DocumentID string
	Index      int
	Text       string
	Score      float32
	Truncated  bool
}

// Answer is the outcome of a successfully answered question: generated text
// plus the passages it was grounded on. Not persisted.
type Answer struct {
	Text       string
	Grounded   bool
	Provenance []SourceRef
}

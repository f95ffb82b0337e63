package domain

// Passage is a contiguous slice of a document's text produced by chunking.
// Start and End are rune offsets into the original text.
type Passage struct {
	DocumentID string
	Index      int
	Text       string
	Start      int
	End        int
}

// Record is the persisted unit in the vector store: an embedding, the passage
// text it was computed from, and metadata.
type Record struct {
	ID        string
	Passage   Passage
	Embedding []float32
	Metadata  Metadata
}

// ScoredRecord pairs a Record with its similarity score for one query.
type ScoredRecord struct {
	Record Record
	Score  float32
}

// RetrievalResult is an ordered sequence of scored records, ranked by
// descending similarity. May be empty; never nil semantics beyond len()==0.
type RetrievalResult []ScoredRecord

// IDs returns the record identifiers in rank order.
func (r RetrievalResult) IDs() []string {
	ids := make([]string, len(r))
	for i, sr := range r {
		ids[i] = sr.Record.ID
	}
	return ids
}

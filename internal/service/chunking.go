package service

import (
	"strings"
	"unicode"

	"github.com/cognibase/cognibase/internal/domain"
)

// ChunkConfig controls how document text is split into passages.
// Sizes are in runes so a split never lands inside a codepoint.
type ChunkConfig struct {
	ChunkSize int
	Overlap   int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		ChunkSize: 1200,
		Overlap:   200,
	}
}

// Chunker splits document text into ordered, overlapping passages that cover
// the whole text with no gaps.
type Chunker struct {
	cfg ChunkConfig
}

func NewChunker(cfg ChunkConfig) *Chunker {
	if cfg.ChunkSize <= 0 {
		cfg = DefaultChunkConfig()
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = 0
	}
	if cfg.Overlap >= cfg.ChunkSize {
		cfg.Overlap = cfg.ChunkSize / 4
	}
	return &Chunker{cfg: cfg}
}

// Split produces the passages for one document. Whitespace-only input yields
// no passages and no error. Passage Start/End are rune offsets into text;
// consecutive passages overlap by at most cfg.Overlap runes.
func (c *Chunker) Split(documentID, text string) []domain.Passage {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= c.cfg.ChunkSize {
		return []domain.Passage{{
			DocumentID: documentID,
			Index:      0,
			Text:       text,
			Start:      0,
			End:        len(runes),
		}}
	}

	// Prefer cutting at a whitespace boundary, but never shrink a chunk below
	// a third of the target size to find one.
	minCut := c.cfg.ChunkSize / 3

	passages := make([]domain.Passage, 0, len(runes)/c.cfg.ChunkSize+1)
	start := 0
	for start < len(runes) {
		end := start + c.cfg.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}

		if end < len(runes) {
			cut := end
			floor := start + minCut
			for i := end; i > floor; i-- {
				if unicode.IsSpace(runes[i-1]) {
					cut = i
					break
				}
			}
			end = cut
		}

		passages = append(passages, domain.Passage{
			DocumentID: documentID,
			Index:      len(passages),
			Text:       string(runes[start:end]),
			Start:      start,
			End:        end,
		})

		if end >= len(runes) {
			break
		}

		nextStart := end - c.cfg.Overlap
		if nextStart <= start {
			nextStart = end
		}
		start = nextStart
	}

	return passages
}

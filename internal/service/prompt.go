package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cognibase/cognibase/internal/domain"
)

const (
	groundedInstruction = "Answer the question using only the sources below. " +
		"Cite sources by their number. If the sources do not contain the answer, say so."
	ungroundedInstruction = "No supporting documents were found for this question. " +
		"Answer from general knowledge only, and do not cite or invent sources."
)

// TokenCounter estimates the token count of a piece of text. It must be
// deterministic; packing decisions depend on it.
type TokenCounter func(text string) int

// EstimateTokens approximates tokens as one per four runes, rounding up.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}

// Prompt is an assembled generation prompt plus the provenance of every
// passage packed into it.
type Prompt struct {
	Text     string
	Grounded bool
	Sources  []domain.SourceRef
}

// PromptAssembler builds grounded prompts under a token budget.
type PromptAssembler struct {
	counter TokenCounter
}

func NewPromptAssembler() *PromptAssembler {
	return NewPromptAssemblerWithCounter(EstimateTokens)
}

func NewPromptAssemblerWithCounter(counter TokenCounter) *PromptAssembler {
	if counter == nil {
		counter = EstimateTokens
	}
	return &PromptAssembler{counter: counter}
}

// Assemble packs passages most-relevant-first into a context block, stopping
// before the passage that would push the whole prompt past maxContextTokens.
// If even the first passage does not fit, it is truncated and flagged. With no
// passages at all the prompt explicitly switches to the ungrounded variant.
func (a *PromptAssembler) Assemble(question string, passages []domain.ScoredRecord, maxContextTokens int) Prompt {
	if len(passages) == 0 {
		return Prompt{
			Text:     ungroundedInstruction + "\n\nQuestion: " + question,
			Grounded: false,
		}
	}

	frame := groundedInstruction + "\n\n" + "\n\nQuestion: " + question
	budget := maxContextTokens - a.counter(frame)

	var blocks []string
	var sources []domain.SourceRef
	used := 0

	for i, sr := range passages {
		block := sourceBlock(i+1, sr.Record)
		cost := a.counter(block)
		// Blocks after the first join with "\n\n"; the separator counts
		// against the budget too.
		if len(blocks) > 0 {
			cost = a.counter("\n\n" + block)
		}

		if used+cost > budget {
			if len(blocks) > 0 {
				break
			}
			// Even the top passage is over budget: truncate it to fit.
			truncated, ok := a.truncateBlock(i+1, sr.Record, budget)
			if !ok {
				break
			}
			blocks = append(blocks, truncated)
			sources = append(sources, sourceRef(sr, true))
			break
		}

		used += cost
		blocks = append(blocks, block)
		sources = append(sources, sourceRef(sr, false))
	}

	if len(blocks) == 0 {
		return Prompt{
			Text:     ungroundedInstruction + "\n\nQuestion: " + question,
			Grounded: false,
		}
	}

	text := groundedInstruction + "\n\n" + strings.Join(blocks, "\n\n") + "\n\nQuestion: " + question
	return Prompt{
		Text:     text,
		Grounded: true,
		Sources:  sources,
	}
}

func sourceBlock(number int, rec domain.Record) string {
	return fmt.Sprintf("[Source %d: %s]\n%s", number, rec.ID, rec.Passage.Text)
}

// truncateBlock shrinks the passage text until the block fits the remaining
// budget. Returns false when not even an empty passage would fit.
func (a *PromptAssembler) truncateBlock(number int, rec domain.Record, budget int) (string, bool) {
	header := fmt.Sprintf("[Source %d: %s]\n", number, rec.ID)
	headerCost := a.counter(header)
	if headerCost >= budget {
		return "", false
	}

	runes := []rune(rec.Passage.Text)
	// Four runes per token gives the upper bound for a first guess; walk down
	// from there until the estimate fits.
	limit := (budget - headerCost) * 4
	if limit > len(runes) {
		limit = len(runes)
	}
	for limit > 0 {
		candidate := header + string(runes[:limit])
		if a.counter(candidate) <= budget {
			return candidate, true
		}
		limit--
	}
	return "", false
}

func sourceRef(sr domain.ScoredRecord, truncated bool) domain.SourceRef {
	return domain.SourceRef{
		RecordID:   sr.Record.ID,
		DocumentID: sr.Record.Passage.DocumentID,
		Index:      sr.Record.Passage.Index,
		Text:       sr.Record.Passage.Text,
		Score:      sr.Score,
		Truncated:  truncated,
	}
}

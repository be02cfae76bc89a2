package conversation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hupe1980/botmesh/core"
)

// Summarizer compresses turns that fell out of retention into a short
// context string. The contract that matters is bounded prompt size with
// recency-biased retention; the concrete heuristic is an implementation
// detail and can be replaced wholesale.
type Summarizer interface {
	Summarize(turns []core.Turn) string
}

// SummarizerFunc adapts a plain function to the Summarizer interface.
type SummarizerFunc func(turns []core.Turn) string

// Summarize implements Summarizer.
func (f SummarizerFunc) Summarize(turns []core.Turn) string { return f(turns) }

// stopWords are skipped during keyword extraction.
var stopWords = map[string]bool{
	"this": true, "that": true, "with": true, "from": true, "have": true,
	"what": true, "your": true, "about": true, "would": true, "could": true,
	"there": true, "their": true, "which": true, "will": true, "been": true,
	"were": true, "they": true, "them": true, "then": true, "than": true,
	"when": true, "where": true, "please": true, "thanks": true, "just": true,
}

// KeywordSummarizer produces a short digest of older turns: message counts
// per side, the most frequent keywords and the covered timespan.
type KeywordSummarizer struct {
	// TopKeywords bounds how many keywords appear in the digest.
	TopKeywords int
}

// NewKeywordSummarizer constructs a summarizer with a five keyword digest.
func NewKeywordSummarizer() *KeywordSummarizer {
	return &KeywordSummarizer{TopKeywords: 5}
}

// Summarize implements Summarizer.
func (k *KeywordSummarizer) Summarize(turns []core.Turn) string {
	if len(turns) == 0 {
		return ""
	}

	var fromCounterparty, fromAgent int
	for _, t := range turns {
		if t.Sender == core.SenderAgent {
			fromAgent++
		} else {
			fromCounterparty++
		}
	}

	topics := k.extractKeywords(turns)
	span := timespan(turns)

	summary := fmt.Sprintf("Earlier conversation (%s): %d messages from the counterparty, %d replies from the agent.",
		span, fromCounterparty, fromAgent)
	if len(topics) > 0 {
		summary += " Topics discussed: " + strings.Join(topics, ", ") + "."
	}
	return summary
}

// extractKeywords counts words longer than three characters, skipping stop
// words, and returns the most frequent ones.
func (k *KeywordSummarizer) extractKeywords(turns []core.Turn) []string {
	counts := map[string]int{}
	for _, t := range turns {
		for _, word := range strings.Fields(strings.ToLower(t.Content)) {
			word = strings.Trim(word, ".,!?;:\"'()")
			if len(word) <= 3 || stopWords[word] {
				continue
			}
			counts[word]++
		}
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})

	limit := k.TopKeywords
	if limit <= 0 {
		limit = 5
	}
	if len(words) > limit {
		words = words[:limit]
	}
	return words
}

// timespan describes the period the turns cover in coarse human terms.
func timespan(turns []core.Turn) string {
	oldest := turns[0].Timestamp
	newest := turns[len(turns)-1].Timestamp
	hours := int(newest.Sub(oldest) / time.Hour)
	switch {
	case hours < 1:
		return "last hour"
	case hours < 24:
		return fmt.Sprintf("last %d hours", hours)
	default:
		return fmt.Sprintf("last %d days", (hours+23)/24)
	}
}

package oracle

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/credence-ai/credence/internal/domain"
)

const (
	contextBegin = "BEGIN_CONTEXT"
	contextEnd   = "END_CONTEXT"
)

// promptContext is the machine-readable payload embedded in the decision
// prompt. The rule-based oracle parses it back out; LLM oracles read it as
// part of the instructions.
type promptContext struct {
	Candidate promptFact            `json:"candidate"`
	Slot      []promptConflict      `json:"slot_conflicts"`
	Semantic  []promptConflict      `json:"semantic_conflicts"`
	Hint      domain.RevisionAction `json:"recommended_action"`
}

type promptFact struct {
	Statement  string `json:"statement"`
	Type       string `json:"type"`
	Subject    string `json:"subject"`
	Predicate  string `json:"predicate,omitempty"`
	Object     string `json:"object,omitempty"`
	Confidence int    `json:"confidence"`
}

type promptConflict struct {
	FactID    string  `json:"fact_id"`
	MatchType string  `json:"match_type"`
	Score     float64 `json:"score,omitempty"`
	Statement string  `json:"statement,omitempty"`
	Object    string  `json:"object,omitempty"`
}

// BuildDecisionPrompt renders the arbitration prompt for a candidate fact
// and its conflict report.
func BuildDecisionPrompt(candidate *domain.Fact, report *domain.ConflictReport) (string, error) {
	pc := promptContext{
		Candidate: promptFact{
			Statement:  candidate.Statement,
			Type:       string(candidate.Type),
			Subject:    candidate.Subject,
			Predicate:  candidate.Predicate,
			Object:     candidate.Object,
			Confidence: candidate.Confidence,
		},
		Slot:     toPromptConflicts(report.SlotConflicts),
		Semantic: toPromptConflicts(report.SemanticConflicts),
		Hint:     report.RecommendedAction,
	}

	payload, err := json.MarshalIndent(pc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal prompt context: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("You arbitrate belief revision for a knowledge store.\n")
	sb.WriteString("A candidate fact conflicts with existing facts. Decide one of:\n")
	sb.WriteString("- ADD: the candidate is genuinely new, keep everything\n")
	sb.WriteString("- SUPERSEDE: the candidate replaces one existing fact (set target_fact_id)\n")
	sb.WriteString("- MERGE: candidate and one existing fact should be combined (set target_fact_id and merged_fact)\n")
	sb.WriteString("- IGNORE: the candidate duplicates an existing fact (set target_fact_id)\n\n")
	sb.WriteString(contextBegin + "\n")
	sb.Write(payload)
	sb.WriteString("\n" + contextEnd + "\n\n")
	sb.WriteString("Respond with exactly one JSON object, no prose:\n")
	sb.WriteString(`{"action": "ADD|SUPERSEDE|MERGE|IGNORE", "target_fact_id": "<uuid or omit>", "reason": "<short reason>", "merged_fact": {"statement": "...", "confidence": 0-100} or omit, "confidence": 0-100}`)
	return sb.String(), nil
}

func toPromptConflicts(cs []domain.ConflictCandidate) []promptConflict {
	out := make([]promptConflict, 0, len(cs))
	for _, c := range cs {
		out = append(out, promptConflict{
			FactID:    c.FactID.String(),
			MatchType: string(c.MatchType),
			Score:     c.Score,
			Statement: c.Statement,
			Object:    c.Object,
		})
	}
	return out
}

// extractContext pulls the JSON payload back out of a decision prompt.
// Used by the rule-based oracle, which sees the same prompt an LLM would.
func extractContext(prompt string) (*promptContext, error) {
	start := strings.Index(prompt, contextBegin)
	end := strings.Index(prompt, contextEnd)
	if start < 0 || end < 0 || end <= start {
		return nil, fmt.Errorf("prompt contains no context block")
	}
	raw := prompt[start+len(contextBegin) : end]

	var pc promptContext
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &pc); err != nil {
		return nil, fmt.Errorf("unmarshal prompt context: %w", err)
	}
	return &pc, nil
}

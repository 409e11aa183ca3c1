package oracle

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/credence-ai/credence/internal/domain"
	"github.com/google/uuid"
)

// decisionWire is the JSON shape oracles are asked to return.
type decisionWire struct {
	Action       string             `json:"action"`
	TargetFactID string             `json:"target_fact_id,omitempty"`
	Reason       string             `json:"reason,omitempty"`
	MergedFact   *domain.MergedFact `json:"merged_fact,omitempty"`
	Confidence   int                `json:"confidence"`
}

// ParseDecision parses an oracle response into a Decision. It tolerates
// markdown code fences and surrounding prose but rejects anything that does
// not yield a well-formed decision; the pipeline never guesses an action
// from a malformed response.
func ParseDecision(raw string) (*domain.Decision, error) {
	cleaned := stripCodeFence(strings.TrimSpace(raw))

	// Trim any prose around the first JSON object.
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("response contains no JSON object")
	}

	var wire decisionWire
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &wire); err != nil {
		return nil, fmt.Errorf("unmarshal decision: %w", err)
	}

	action := strings.ToUpper(strings.TrimSpace(wire.Action))
	if !domain.ValidRevisionAction(action) {
		return nil, fmt.Errorf("unknown action %q", wire.Action)
	}
	if !domain.ValidConfidence(wire.Confidence) {
		return nil, fmt.Errorf("decision confidence %d out of range", wire.Confidence)
	}

	d := &domain.Decision{
		Action:     domain.RevisionAction(action),
		Reason:     strings.TrimSpace(wire.Reason),
		MergedFact: wire.MergedFact,
		Confidence: wire.Confidence,
	}

	if wire.TargetFactID != "" {
		id, err := uuid.Parse(wire.TargetFactID)
		if err != nil {
			return nil, fmt.Errorf("invalid target_fact_id %q", wire.TargetFactID)
		}
		d.TargetFactID = &id
	}

	switch d.Action {
	case domain.ActionSupersede, domain.ActionIgnore:
		if d.TargetFactID == nil {
			return nil, fmt.Errorf("%s decision requires target_fact_id", d.Action)
		}
	case domain.ActionMerge:
		if d.TargetFactID == nil {
			return nil, fmt.Errorf("MERGE decision requires target_fact_id")
		}
		if d.MergedFact == nil || strings.TrimSpace(d.MergedFact.Statement) == "" {
			return nil, fmt.Errorf("MERGE decision requires merged_fact with a statement")
		}
		if !domain.ValidConfidence(d.MergedFact.Confidence) {
			return nil, fmt.Errorf("merged fact confidence %d out of range", d.MergedFact.Confidence)
		}
	}

	return d, nil
}

// stripCodeFence removes markdown code block wrappers (```json ... ```).
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 0 {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

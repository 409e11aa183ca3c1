package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/credence-ai/credence/internal/domain"
)

// RulesOracle is a deterministic decision engine. It reads the same prompt
// an LLM would and applies fixed rules: duplicates are ignored, contested
// slots are superseded, semantic overlap is merged. Useful for tests and
// installations that want belief revision without an LLM dependency.
type RulesOracle struct{}

func NewRulesOracle() *RulesOracle {
	return &RulesOracle{}
}

func (o *RulesOracle) Complete(ctx context.Context, prompt string) (string, error) {
	pc, err := extractContext(prompt)
	if err != nil {
		return "", fmt.Errorf("rules oracle: %w", err)
	}

	wire := o.decide(pc)
	out, err := json.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("rules oracle: marshal decision: %w", err)
	}
	return string(out), nil
}

func (o *RulesOracle) decide(pc *promptContext) decisionWire {
	// Exact duplicate in the same slot: keep what we have.
	for _, c := range pc.Slot {
		if duplicateOf(c, pc.Candidate) {
			return decisionWire{
				Action:       "IGNORE",
				TargetFactID: c.FactID,
				Reason:       "duplicate of existing fact in the same slot",
				Confidence:   95,
			}
		}
	}

	// Contested slot with a different value: newer statement wins.
	if len(pc.Slot) > 0 {
		return decisionWire{
			Action:       "SUPERSEDE",
			TargetFactID: pc.Slot[0].FactID,
			Reason:       "slot holds a different value; replacing with newer statement",
			Confidence:   90,
		}
	}

	// Semantic-only overlap: merge conservatively, keeping the candidate's
	// wording and the higher confidence of the pair.
	if len(pc.Semantic) > 0 {
		best := pc.Semantic[0]
		for _, c := range pc.Semantic[1:] {
			if c.Score > best.Score {
				best = c
			}
		}
		confidence := pc.Candidate.Confidence
		if confidence == 0 {
			confidence = 70
		}
		return decisionWire{
			Action:       "MERGE",
			TargetFactID: best.FactID,
			Reason:       fmt.Sprintf("semantically equivalent (score %.2f); merging", best.Score),
			MergedFact:   mergedFromCandidate(pc, confidence),
			Confidence:   80,
		}
	}

	return decisionWire{
		Action:     "ADD",
		Reason:     "no conflicting facts",
		Confidence: 99,
	}
}

func mergedFromCandidate(pc *promptContext, confidence int) *domain.MergedFact {
	return &domain.MergedFact{
		Statement:  pc.Candidate.Statement,
		Type:       domain.FactType(pc.Candidate.Type),
		Subject:    pc.Candidate.Subject,
		Predicate:  pc.Candidate.Predicate,
		Object:     pc.Candidate.Object,
		Confidence: confidence,
	}
}

// duplicateOf matches on objects when present; slot facts without objects
// are compared by statement instead.
func duplicateOf(c promptConflict, cand promptFact) bool {
	a, b := strings.TrimSpace(c.Object), strings.TrimSpace(cand.Object)
	if a == "" && b == "" {
		s := strings.TrimSpace(c.Statement)
		return s != "" && s == strings.TrimSpace(cand.Statement)
	}
	return a != "" && a == b
}

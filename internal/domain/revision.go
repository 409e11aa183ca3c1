package domain

import (
	"time"

	"github.com/google/uuid"
)

type RevisionAction string

const (
	ActionAdd       RevisionAction = "ADD"
	ActionSupersede RevisionAction = "SUPERSEDE"
	ActionMerge     RevisionAction = "MERGE"
	ActionIgnore    RevisionAction = "IGNORE"
)

func ValidRevisionAction(a string) bool {
	switch RevisionAction(a) {
	case ActionAdd, ActionSupersede, ActionMerge, ActionIgnore:
		return true
	}
	return false
}

type MatchType string

const (
	MatchSlot     MatchType = "SLOT"
	MatchSemantic MatchType = "SEMANTIC"
)

// RevisionEvent is one entry in the append-only revision log. Events are
// never mutated or deleted after insertion.
type RevisionEvent struct {
	ID           uuid.UUID      `json:"id"`
	FactID       uuid.UUID      `json:"fact_id"`
	Action       RevisionAction `json:"action"`
	SupersededBy *uuid.UUID     `json:"superseded_by,omitempty"`
	Reason       string         `json:"reason,omitempty"`
	Confidence   int            `json:"confidence"`
	CreatedAt    time.Time      `json:"created_at"`
}

// ConflictCandidate points at an existing fact that conflicts with a
// candidate, and how the conflict was found.
type ConflictCandidate struct {
	FactID    uuid.UUID `json:"fact_id"`
	MatchType MatchType `json:"match_type"`
	Score     float64   `json:"score,omitempty"`
	Statement string    `json:"statement,omitempty"`
	Object    string    `json:"object,omitempty"`
}

// ConflictReport is the outcome of checking a candidate fact against the
// existing corpus of a memory space.
type ConflictReport struct {
	HasConflicts      bool                `json:"has_conflicts"`
	SlotConflicts     []ConflictCandidate `json:"slot_conflicts"`
	SemanticConflicts []ConflictCandidate `json:"semantic_conflicts"`
	RecommendedAction RevisionAction      `json:"recommended_action"`
}

// MergedFact carries the fields for the fact produced by a MERGE decision.
type MergedFact struct {
	Statement  string   `json:"statement"`
	Type       FactType `json:"type,omitempty"`
	Subject    string   `json:"subject,omitempty"`
	Predicate  string   `json:"predicate,omitempty"`
	Object     string   `json:"object,omitempty"`
	Confidence int      `json:"confidence"`
	Tags       []string `json:"tags,omitempty"`
}

// Decision is the oracle's verdict on how a candidate fact should be
// reconciled against the existing corpus.
type Decision struct {
	Action       RevisionAction `json:"action"`
	TargetFactID *uuid.UUID     `json:"target_fact_id,omitempty"`
	MergedFact   *MergedFact    `json:"merged_fact,omitempty"`
	Confidence   int            `json:"confidence"`
	Reason       string         `json:"reason,omitempty"`
}

// ExecutionResult describes the state transition a decision produced.
type ExecutionResult struct {
	Action         RevisionAction `json:"action"`
	Fact           *Fact          `json:"fact,omitempty"`
	InvalidatedIDs []uuid.UUID    `json:"invalidated_ids,omitempty"`
	Reason         string         `json:"reason,omitempty"`
	Confidence     int            `json:"confidence"`
}

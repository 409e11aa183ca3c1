package domain

import (
	"time"

	"github.com/google/uuid"
)

type FactType string

const (
	FactTypePreference   FactType = "preference"
	FactTypeIdentity     FactType = "identity"
	FactTypeKnowledge    FactType = "knowledge"
	FactTypeRelationship FactType = "relationship"
	FactTypeEvent        FactType = "event"
	FactTypeObservation  FactType = "observation"
	FactTypeCustom       FactType = "custom"
)

func ValidFactType(t string) bool {
	switch FactType(t) {
	case FactTypePreference, FactTypeIdentity, FactTypeKnowledge,
		FactTypeRelationship, FactTypeEvent, FactTypeObservation, FactTypeCustom:
		return true
	}
	return false
}

// FactTypes lists every recognized fact type.
func FactTypes() []FactType {
	return []FactType{
		FactTypePreference, FactTypeIdentity, FactTypeKnowledge,
		FactTypeRelationship, FactTypeEvent, FactTypeObservation, FactTypeCustom,
	}
}

const (
	MinConfidence = 0
	MaxConfidence = 100
)

func ValidConfidence(c int) bool {
	return c >= MinConfidence && c <= MaxConfidence
}

// Fact is one belief statement held in a memory space. A fact stays live
// until it is superseded; superseded facts are kept for the audit trail
// and never deleted by the revision pipeline.
type Fact struct {
	ID            uuid.UUID  `json:"id"`
	MemorySpaceID string     `json:"memory_space_id"`
	Statement     string     `json:"statement"`
	Type          FactType   `json:"type"`
	Subject       string     `json:"subject"`
	Predicate     string     `json:"predicate,omitempty"`
	Object        string     `json:"object,omitempty"`
	Confidence    int        `json:"confidence"`
	SourceType    string     `json:"source_type,omitempty"`
	Tags          []string   `json:"tags,omitempty"`
	Embedding     []float32  `json:"-"`
	ValidFrom     time.Time  `json:"valid_from"`
	ValidUntil    *time.Time `json:"valid_until,omitempty"`
	Supersedes    *uuid.UUID `json:"supersedes,omitempty"`
	SupersededBy  *uuid.UUID `json:"superseded_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Live reports whether the fact is currently considered true.
func (f *Fact) Live() bool {
	return f.ValidUntil == nil && f.SupersededBy == nil
}

// HasSlot reports whether the fact occupies a belief slot. Slot matching
// requires both subject and predicate to be present.
func (f *Fact) HasSlot() bool {
	return f.Subject != "" && f.Predicate != ""
}

// FactWithScore pairs a fact with a similarity score against a candidate.
type FactWithScore struct {
	Fact
	Score float64 `json:"score"`
}

// FactPatch is an in-place field update. Nil fields are left untouched.
// Patches never alter supersedes, superseded_by, or valid_until; those
// belong to the revision pipeline.
type FactPatch struct {
	Statement  *string   `json:"statement,omitempty"`
	Type       *FactType `json:"type,omitempty"`
	Object     *string   `json:"object,omitempty"`
	Confidence *int      `json:"confidence,omitempty"`
	SourceType *string   `json:"source_type,omitempty"`
	Tags       *[]string `json:"tags,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p FactPatch) Empty() bool {
	return p.Statement == nil && p.Type == nil && p.Object == nil &&
		p.Confidence == nil && p.SourceType == nil && p.Tags == nil
}

// FactFilter narrows list/count/search/export queries.
type FactFilter struct {
	Type              *FactType
	Subject           string
	Tags              []string
	MinConfidence     int
	IncludeSuperseded bool
	Limit             int
	Offset            int
}

// ExportResult is the payload returned by an export operation.
type ExportResult struct {
	MemorySpaceID string    `json:"memory_space_id"`
	Facts         []Fact    `json:"facts"`
	Count         int       `json:"count"`
	ExportedAt    time.Time `json:"exported_at"`
}

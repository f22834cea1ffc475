package model

import (
	"fmt"
)

// InteractionKind enumerates the supported answer-capture interactions.
type InteractionKind string

const (
	KindSingleSelect   InteractionKind = "SINGLE_SELECT"
	KindMultiSelect    InteractionKind = "MULTI_SELECT"
	KindPairedMatching InteractionKind = "PAIRED_MATCHING"
)

// Option is one entry of a flat option list.
type Option struct {
	ID   int    `json:"option_id"`
	Text string `json:"text"`
}

// PairItem is one side of a paired-matching question.
type PairItem struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// PairSpec holds the two item lists of a paired-matching question.
// Every left item must eventually map to exactly one right item.
type PairSpec struct {
	Left  []PairItem `json:"left"`
	Right []PairItem `json:"right"`
}

// Question is a single exam question as delivered to the runtime.
type Question struct {
	ID       int             `json:"id"`
	Kind     InteractionKind `json:"kind"`
	Text     string          `json:"text"`
	MediaRef string          `json:"media_ref,omitempty"`
	Options  []Option        `json:"options,omitempty"`
	Pairs    *PairSpec       `json:"pairs,omitempty"`
}

// Validate checks the data-integrity invariants a question must satisfy
// before any navigation, answer capture, or submission touches it.
// A question without a positive id is a fatal condition, not a UI state.
func (q *Question) Validate() error {
	if q.ID <= 0 {
		return fmt.Errorf("question has missing or non-positive id: %d", q.ID)
	}
	switch q.Kind {
	case KindSingleSelect, KindMultiSelect:
		if len(q.Options) == 0 {
			return fmt.Errorf("question %d has no options", q.ID)
		}
	case KindPairedMatching:
		if q.Pairs == nil || len(q.Pairs.Left) == 0 || len(q.Pairs.Right) == 0 {
			return fmt.Errorf("question %d has an empty pair spec", q.ID)
		}
	default:
		return fmt.Errorf("question %d has unknown kind %q", q.ID, q.Kind)
	}
	return nil
}

// Key returns the answer-store key for this question. The id is preferred;
// a positional fallback exists only for questions whose id is not yet known.
func (q *Question) Key(index int) string {
	if q.ID > 0 {
		return fmt.Sprintf("q:%d", q.ID)
	}
	return fmt.Sprintf("idx:%d", index)
}

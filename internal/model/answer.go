package model

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// AnswerRecord is the single canonical answer shape. Every ingestion path
// (network responses, persisted cache, request bodies) is normalized into
// this form once; downstream code never sniffs alternate field names.
type AnswerRecord struct {
	QuestionID int             `json:"question_id"`
	Kind       InteractionKind `json:"kind"`
	// OptionID is set for single-select answers, zero when unanswered.
	OptionID int `json:"option_id,omitempty"`
	// OptionIDs is set for multi-select answers; any subset is a valid
	// intermediate state.
	OptionIDs []int `json:"option_ids,omitempty"`
	// Pairs maps left-item id to right-item id. A zero value means the
	// left item is still unmapped.
	Pairs map[int]int `json:"pairs,omitempty"`
	// Disregarded marks an answer cleared after a check-answer call
	// revealed it was wrong. It is never included in a submission as-is.
	Disregarded bool `json:"disregarded,omitempty"`
}

// Answered reports whether the record carries a usable choice.
func (a *AnswerRecord) Answered() bool {
	if a == nil || a.Disregarded {
		return false
	}
	switch a.Kind {
	case KindSingleSelect:
		return a.OptionID > 0
	case KindMultiSelect:
		return len(a.OptionIDs) > 0
	case KindPairedMatching:
		return len(a.Pairs) > 0
	}
	return false
}

// PairsComplete reports whether every left item of spec maps to a
// non-zero right item. An incomplete pairing must never reach a final
// submission.
func (a *AnswerRecord) PairsComplete(spec *PairSpec) bool {
	if a == nil || spec == nil {
		return false
	}
	for _, left := range spec.Left {
		if right, ok := a.Pairs[left.ID]; !ok || right <= 0 {
			return false
		}
	}
	return true
}

// NormalizeAnswer converts a raw answer payload of any historical shape
// into the canonical AnswerRecord. Earlier clients wrote several field
// spellings for the same data; this is the single place that knows them.
func NormalizeAnswer(questionID int, kind InteractionKind, raw json.RawMessage) (*AnswerRecord, error) {
	rec := &AnswerRecord{QuestionID: questionID, Kind: kind}
	if len(raw) == 0 {
		return rec, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("answer payload for question %d: %w", questionID, err)
	}

	if v, ok := firstField(fields, "disregarded", "cleared"); ok {
		_ = json.Unmarshal(v, &rec.Disregarded)
	}

	switch kind {
	case KindSingleSelect:
		if v, ok := firstField(fields, "option_id", "optionId", "answer_id", "id"); ok {
			id, err := intish(v)
			if err != nil {
				return nil, fmt.Errorf("question %d: single-select option id: %w", questionID, err)
			}
			rec.OptionID = id
		}
	case KindMultiSelect:
		if v, ok := firstField(fields, "option_ids", "optionIds", "answer_ids", "ids"); ok {
			var rawIDs []json.RawMessage
			if err := json.Unmarshal(v, &rawIDs); err != nil {
				return nil, fmt.Errorf("question %d: multi-select option ids: %w", questionID, err)
			}
			for _, ri := range rawIDs {
				id, err := intish(ri)
				if err != nil {
					return nil, fmt.Errorf("question %d: multi-select option id: %w", questionID, err)
				}
				rec.OptionIDs = append(rec.OptionIDs, id)
			}
		}
	case KindPairedMatching:
		if v, ok := firstField(fields, "pairs", "matches", "pair_map", "pairMap"); ok {
			var rawPairs map[string]json.RawMessage
			if err := json.Unmarshal(v, &rawPairs); err != nil {
				return nil, fmt.Errorf("question %d: pair map: %w", questionID, err)
			}
			rec.Pairs = make(map[int]int, len(rawPairs))
			for k, rv := range rawPairs {
				left, err := strconv.Atoi(k)
				if err != nil {
					return nil, fmt.Errorf("question %d: pair left id %q: %w", questionID, k, err)
				}
				// null right side means "still unmapped".
				if string(rv) == "null" {
					rec.Pairs[left] = 0
					continue
				}
				right, err := intish(rv)
				if err != nil {
					return nil, fmt.Errorf("question %d: pair right id: %w", questionID, err)
				}
				rec.Pairs[left] = right
			}
		}
	default:
		return nil, fmt.Errorf("question %d: unknown interaction kind %q", questionID, kind)
	}

	return rec, nil
}

func firstField(fields map[string]json.RawMessage, names ...string) (json.RawMessage, bool) {
	for _, n := range names {
		if v, ok := fields[n]; ok && len(v) > 0 && string(v) != "null" {
			return v, true
		}
	}
	return nil, false
}

// intish accepts both JSON numbers and numeric strings, which older
// persisted records used interchangeably.
func intish(raw json.RawMessage) (int, error) {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.Atoi(s)
	}
	return 0, fmt.Errorf("not a numeric value: %s", raw)
}

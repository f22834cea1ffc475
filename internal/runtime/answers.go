package runtime

import (
	"encoding/json"

	"github.com/quizient/certlab-backend/internal/model"
	"github.com/quizient/certlab-backend/internal/records"
)

// AnswerStore holds the session's captured answers in memory and mirrors
// the whole map to the persisted record after every mutation, so a reload
// loses at most nothing.
type AnswerStore struct {
	repo records.Repository
	key  string
	// answers is keyed by question key (id-based, positional fallback).
	answers map[string]*model.AnswerRecord
	// pending holds rehydrated raw payloads that could not be normalized
	// yet because the question set was not known at load time.
	pending map[string]json.RawMessage
}

// NewAnswerStore creates a store persisting under key in repo.
func NewAnswerStore(repo records.Repository, key string) *AnswerStore {
	return &AnswerStore{
		repo:    repo,
		key:     key,
		answers: make(map[string]*model.AnswerRecord),
		pending: make(map[string]json.RawMessage),
	}
}

// Load rehydrates persisted answers as raw payloads. Normalize must run
// once the question set (and so each question's kind) is known.
func (s *AnswerStore) Load() {
	var stored map[string]json.RawMessage
	if err := s.repo.Get(s.key, &stored); err == nil && stored != nil {
		s.pending = stored
	}
}

// Normalize converts every rehydrated raw payload into the canonical
// AnswerRecord shape against the delivered question set. Unknown keys are
// dropped; they belong to questions no longer in the set.
func (s *AnswerStore) Normalize(questions []model.Question) {
	for i := range questions {
		q := &questions[i]
		key := q.Key(i)
		raw, ok := s.pending[key]
		if !ok {
			continue
		}
		rec, err := model.NormalizeAnswer(q.ID, q.Kind, raw)
		if err != nil {
			continue
		}
		s.answers[key] = rec
	}
	s.pending = make(map[string]json.RawMessage)
}

// Rekey moves the persistence target after an identity migration.
func (s *AnswerStore) Rekey(key string) {
	s.key = key
}

// Get returns the recorded answer for a question key, or nil.
func (s *AnswerStore) Get(key string) *model.AnswerRecord {
	return s.answers[key]
}

// Put records an answer and autosaves.
func (s *AnswerStore) Put(key string, rec *model.AnswerRecord) {
	s.answers[key] = rec
	s.save()
}

// Disregard clears a verified-wrong answer so it is never submitted
// as-is. Navigation is unaffected.
func (s *AnswerStore) Disregard(key string) {
	rec, ok := s.answers[key]
	if !ok {
		return
	}
	rec.OptionID = 0
	rec.OptionIDs = nil
	rec.Disregarded = true
	s.save()
}

// All returns the live answer map. Callers must treat it as read-only.
func (s *AnswerStore) All() map[string]*model.AnswerRecord {
	return s.answers
}

func (s *AnswerStore) save() {
	_ = s.repo.Set(s.key, s.answers)
}

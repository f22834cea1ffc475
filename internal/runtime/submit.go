package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/quizient/certlab-backend/internal/config"
	"github.com/quizient/certlab-backend/internal/model"
)

// maybePartialSubmit fires the best-effort checkpoint submission exactly
// once per checkpoint. The persisted flag is written before the call so a
// re-render mid-flight can never double-submit; a failed call is logged
// and never retried — the final submission captures anything missed.
func (r *Runtime) maybePartialSubmit(ctx context.Context, checkpoint int) {
	flagKey := config.RecordKey.CheckpointFlagKey(r.sc.SessionID, checkpoint)

	var done bool
	if err := r.repo.Get(flagKey, &done); err == nil && done {
		return
	}
	if err := r.repo.Set(flagKey, true); err != nil {
		r.log.Error().Err(err).Int("checkpoint", checkpoint).Msg("Persist checkpoint flag failed")
		return
	}

	req := model.SubmitRequest{
		SessionID: r.sc.SessionID,
		Answers:   r.collectRecordedAnswers(),
		Partial:   true,
	}
	if _, err := r.api.Submit(ctx, req); err != nil {
		r.log.Warn().Err(err).Int("checkpoint", checkpoint).Msg("Partial submission failed")
	}
}

// collectRecordedAnswers gathers every currently-recorded answer in
// question order, incomplete ones included — partial submissions are a
// progress snapshot, not a graded artifact.
func (r *Runtime) collectRecordedAnswers() []model.AnswerRecord {
	var out []model.AnswerRecord
	for i := range r.sc.Questions {
		q := &r.sc.Questions[i]
		if rec := r.answers.Get(q.Key(i)); rec != nil && !rec.Disregarded {
			out = append(out, *rec)
		}
	}
	if out == nil {
		out = []model.AnswerRecord{}
	}
	return out
}

// Submit performs the final submission. The full payload is validated
// before any network call: a missing question id or an incomplete pairing
// aborts with the offending question named, because an indeterminate
// 180-question payload must never leave the client. On success every
// per-session persisted record is purged and the attempt is terminal; on
// failure all local state is kept and the server's full error payload is
// persisted for inspection.
func (r *Runtime) Submit(ctx context.Context) (*model.SubmitResponse, error) {
	if r.sc.terminal {
		return nil, ErrTerminal
	}
	if r.sc.submitting {
		return nil, ErrSubmitInFlight
	}

	answers, err := r.buildFinalPayload()
	if err != nil {
		return nil, err
	}

	// Submission controls stay disabled from here until the response.
	r.sc.submitting = true
	defer func() { r.sc.submitting = false }()

	resp, err := r.api.Submit(ctx, model.SubmitRequest{
		SessionID: r.sc.SessionID,
		Answers:   answers,
	})
	if err != nil {
		r.persistSubmitError(err)
		return nil, fmt.Errorf("final submission: %w", err)
	}

	r.purgeSessionRecords()
	r.sc.terminal = true
	r.log.Info().
		Int("total_correct", resp.TotalCorrect).
		Int("total_questions", resp.TotalQuestions).
		Msg("Attempt graded")
	return resp, nil
}

// buildFinalPayload assembles one ordered entry per question — answered
// or not — enforcing the data-integrity invariants.
func (r *Runtime) buildFinalPayload() ([]model.AnswerRecord, error) {
	answers := make([]model.AnswerRecord, 0, len(r.sc.Questions))

	for i := range r.sc.Questions {
		q := &r.sc.Questions[i]
		if q.ID <= 0 {
			return nil, fmt.Errorf("cannot submit: question at index %d has missing or non-positive id", i)
		}

		entry := model.AnswerRecord{QuestionID: q.ID, Kind: q.Kind}

		switch q.Kind {
		case model.KindPairedMatching:
			// The live widget is authoritative; the stored record is only
			// a fallback when the widget is gone.
			rec := r.livePairRecord(q, i)
			if !rec.PairsComplete(q.Pairs) {
				return nil, fmt.Errorf("%w: question %d", ErrPairsIncomplete, q.ID)
			}
			entry.Pairs = rec.Pairs

		case model.KindSingleSelect:
			if rec := r.answers.Get(q.Key(i)); rec != nil && !rec.Disregarded && rec.OptionID > 0 {
				entry.OptionID = rec.OptionID
			}

		case model.KindMultiSelect:
			if rec := r.answers.Get(q.Key(i)); rec != nil && !rec.Disregarded {
				for _, id := range rec.OptionIDs {
					if id > 0 {
						entry.OptionIDs = append(entry.OptionIDs, id)
					}
				}
			}
		}

		answers = append(answers, entry)
	}

	return answers, nil
}

// persistSubmitError keeps the failed submission's full diagnostic under
// a session record so it can be rendered persistently and copied, instead
// of flashing by as a toast.
func (r *Runtime) persistSubmitError(err error) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		apiErr = &APIError{Message: err.Error()}
	}
	r.lastSubmitError = apiErr
	_ = r.repo.Set(config.RecordKey.SubmitErrorKey(r.sc.SessionID), apiErr)
}

// purgeSessionRecords erases every per-session persisted record and the
// active-session pointer after a successful final submission.
func (r *Runtime) purgeSessionRecords() {
	prefix := config.RecordKey.SessionPrefix(r.sc.SessionID)
	if keys, err := r.repo.Keys(prefix); err == nil {
		for _, key := range keys {
			_ = r.repo.Delete(key)
		}
	}
	_ = r.repo.Delete(config.RecordKey.CurrentSessionKey())
	r.lastSubmitError = nil
}

// SubmitErrorJSON renders the last submission failure for display.
func (r *Runtime) SubmitErrorJSON() string {
	if r.lastSubmitError == nil {
		return ""
	}
	raw, err := json.MarshalIndent(r.lastSubmitError, "", "  ")
	if err != nil {
		return r.lastSubmitError.Message
	}
	return string(raw)
}

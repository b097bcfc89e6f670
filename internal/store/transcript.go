package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Transcript struct {
	ID         uuid.UUID  `db:"id"`
	CallID     uuid.UUID  `db:"call_id"`
	RawText    string     `db:"raw_text"`
	Utterances Utterances `db:"utterances"`
	CreatedAt  time.Time  `db:"created_at"`
}

// CreateTranscriptParams represents parameters for storing a call transcript
type CreateTranscriptParams struct {
	CallID     uuid.UUID
	RawText    string
	Utterances Utterances
}

const sqlCreateTranscript = `
INSERT INTO transcripts (call_id, raw_text, utterances)
VALUES ($1, $2, $3)
ON CONFLICT (call_id) DO NOTHING
RETURNING *`

// CreateTranscript stores a transcript for a call. Exactly one transcript
// exists per call; replays keep the first stored transcript and return it.
func (s *Store) CreateTranscript(ctx context.Context, params CreateTranscriptParams) (Transcript, error) {
	var transcript Transcript
	err := s.db.GetContext(ctx, &transcript, sqlCreateTranscript,
		params.CallID, params.RawText, params.Utterances)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Conflict path: a transcript for this call already exists
			return s.GetTranscriptByCallID(ctx, params.CallID)
		}
		s.logger.Error(ctx, "failed to create transcript", err)
		return Transcript{}, fmt.Errorf("failed to create transcript: %w", err)
	}
	return transcript, nil
}

const sqlGetTranscriptByCallID = `
SELECT * FROM transcripts WHERE call_id = $1`

func (s *Store) GetTranscriptByCallID(ctx context.Context, callID uuid.UUID) (Transcript, error) {
	var transcript Transcript
	err := s.db.GetContext(ctx, &transcript, sqlGetTranscriptByCallID, callID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Transcript{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get transcript by call ID", err)
		return Transcript{}, fmt.Errorf("failed to get transcript by call ID: %w", err)
	}
	return transcript, nil
}

package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/logger"
	"github.com/spigell/job-matcher/internal/marketplace"
)

// SessionKey identifies a bulk refresh snapshot. Any profile edit moves
// updatedAt and therefore misses the old snapshot.
func SessionKey(candidateID string, updatedAt time.Time) string {
	return fmt.Sprintf("matches:%s:%s", candidateID, updatedAt.UTC().Format(time.RFC3339Nano))
}

// RefreshMatches serves the snapshot for the candidate's current profile from
// the session cache. On a miss it recomputes every pair, overwriting stored
// records, and stores the new snapshot. Session cache failures are ignored.
func (r *Recommender) RefreshMatches(ctx context.Context, candidate *marketplace.Candidate) (*Recommendation, error) {
	ctx, span := tracer.Start(ctx, "matching.RefreshMatches")
	defer span.End()

	key := SessionKey(candidate.ID, candidate.UpdatedAt)
	log := r.logger.With(zap.String(logger.FieldCandidate, candidate.ID), zap.String("session_key", key))

	if r.sessions != nil {
		if raw, ok := r.sessions.Get(ctx, key); ok {
			var cached Recommendation
			err := json.Unmarshal([]byte(raw), &cached)
			if err == nil {
				log.Debug("serving matches from session cache")
				return &cached, nil
			}
			log.Debug("ignoring unreadable session snapshot", zap.Error(err))
		}
	}

	jobs, err := r.loadJobs(ctx, candidate)
	if err != nil {
		return nil, err
	}

	rec, err := r.evaluate(ctx, candidate, jobs, true)
	if err != nil {
		return nil, err
	}

	if r.sessions != nil {
		raw, err := json.Marshal(rec)
		if err == nil {
			err = r.sessions.Set(ctx, key, string(raw))
		}
		if err != nil {
			log.Debug("session snapshot not stored", zap.Error(err))
		}
	}

	return rec, nil
}

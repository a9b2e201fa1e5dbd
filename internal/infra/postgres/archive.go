package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/Syxd09/code-byte-sub000/internal/domain"
)

// ArchiveStore persists finished-game analytics so a runner keeps a local
// history of its results across games.
type ArchiveStore struct {
	pool *pgxpool.Pool
}

func NewArchiveStore(pool *pgxpool.Pool) *ArchiveStore {
	return &ArchiveStore{pool: pool}
}

// ArchivedResult is one stored game outcome.
type ArchivedResult struct {
	GameCode   string
	Analytics  domain.GameAnalytics
	ArchivedAt time.Time
}

// Save stores one game's analytics as JSONB keyed by game code and
// participant; replaying the same game overwrites the previous record.
func (s *ArchiveStore) Save(ctx context.Context, gameCode string, analytics domain.GameAnalytics) error {
	data, err := json.Marshal(analytics)
	if err != nil {
		return fmt.Errorf("marshal analytics: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO game_results (game_code, participant_id, data, archived_at)
		VALUES ($1, $2, $3::jsonb, now())
		ON CONFLICT (game_code, participant_id)
		DO UPDATE SET data = EXCLUDED.data, archived_at = EXCLUDED.archived_at`,
		gameCode, analytics.Participant.ID, string(data))
	if err != nil {
		return fmt.Errorf("archive result: %w", err)
	}
	return nil
}

// List returns archived results newest first.
func (s *ArchiveStore) List(ctx context.Context, limit int) ([]ArchivedResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT game_code, data, archived_at
		FROM game_results
		ORDER BY archived_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var results []ArchivedResult
	for rows.Next() {
		var (
			result ArchivedResult
			raw    []byte
		)
		if err := rows.Scan(&result.GameCode, &raw, &result.ArchivedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if err := json.Unmarshal(raw, &result.Analytics); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

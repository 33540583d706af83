package database

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/errors"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/report"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Repository stores and reads rating history
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// SaveRating persists a rating and returns it with its id and creation time set
func (r *Repository) SaveRating(ctx context.Context, modelID string, rating report.ModelRating) (report.ModelRating, error) {
	if modelID == "" {
		return rating, errors.NewValidationError("model id is required")
	}

	rec := NewRatingRecord(modelID, rating.Name, rating.NetScore, nil)
	rating.ID = rec.ID
	rating.CreatedAt = rec.CreatedAt

	payload, err := json.Marshal(rating)
	if err != nil {
		return rating, fmt.Errorf("failed to encode rating: %w", err)
	}
	rec.Payload = payload

	stmt, err := r.db.stmt(stmtInsertRating)
	if err != nil {
		return rating, err
	}
	if _, err := stmt.ExecContext(ctx, rec.ID, rec.ModelID, rec.Name, rec.NetScore, string(rec.Payload), rec.CreatedAt.UnixNano()); err != nil {
		return rating, fmt.Errorf("failed to insert rating: %w", err)
	}
	return rating, nil
}

// GetRating returns one stored rating
func (r *Repository) GetRating(ctx context.Context, id string) (report.ModelRating, error) {
	stmt, err := r.db.stmt(stmtGetRating)
	if err != nil {
		return report.ModelRating{}, err
	}

	rec, err := scanRecord(stmt.QueryRowContext(ctx, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return report.ModelRating{}, errors.NewNotFoundError("rating", id)
	}
	if err != nil {
		return report.ModelRating{}, fmt.Errorf("failed to query rating: %w", err)
	}
	return decode(rec)
}

// ListRatings returns the history of one model, newest first
func (r *Repository) ListRatings(ctx context.Context, modelID string, limit int) ([]report.ModelRating, error) {
	if modelID == "" {
		return nil, errors.NewValidationError("model id is required")
	}
	return r.query(ctx, stmtListRatings, modelID, clampLimit(limit))
}

// TopRatings returns the latest rating of each model, best net score first
func (r *Repository) TopRatings(ctx context.Context, limit int) ([]report.ModelRating, error) {
	return r.query(ctx, stmtTopRatings, clampLimit(limit))
}

// CountRatings returns the number of stored ratings
func (r *Repository) CountRatings(ctx context.Context) (int64, error) {
	stmt, err := r.db.stmt(stmtCountRatings)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := stmt.QueryRowContext(ctx).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count ratings: %w", err)
	}
	return n, nil
}

func (r *Repository) query(ctx context.Context, key stmtKey, args ...interface{}) ([]report.ModelRating, error) {
	stmt, err := r.db.stmt(key)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ratings: %w", err)
	}
	defer errors.SafeClose(rows, "rating rows")

	ratings := make([]report.ModelRating, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rating: %w", err)
		}
		rating, err := decode(rec)
		if err != nil {
			return nil, err
		}
		ratings = append(ratings, rating)
	}
	return ratings, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (*RatingRecord, error) {
	var rec RatingRecord
	var payload string
	var created int64
	if err := s.Scan(&rec.ID, &rec.ModelID, &rec.Name, &rec.NetScore, &payload, &created); err != nil {
		return nil, err
	}
	rec.Payload = []byte(payload)
	rec.CreatedAt = time.Unix(0, created).UTC()
	return &rec, nil
}

func decode(rec *RatingRecord) (report.ModelRating, error) {
	var rating report.ModelRating
	if err := json.Unmarshal(rec.Payload, &rating); err != nil {
		return rating, fmt.Errorf("failed to decode rating %s: %w", rec.ID, err)
	}
	rating.ID = rec.ID
	rating.CreatedAt = rec.CreatedAt
	return rating, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

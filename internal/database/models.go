package database

import (
	"time"

	"github.com/google/uuid"
)

// RatingRecord is one row of the rating history. Payload holds the rating
// document exactly as it was served.
type RatingRecord struct {
	ID        string    `json:"id" db:"id"`
	ModelID   string    `json:"model_id" db:"model_id"`
	Name      string    `json:"name" db:"name"`
	NetScore  float64   `json:"net_score" db:"net_score"`
	Payload   []byte    `json:"-" db:"payload"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewRatingRecord creates a record with a generated ID
func NewRatingRecord(modelID, name string, netScore float64, payload []byte) *RatingRecord {
	return &RatingRecord{
		ID:        uuid.New().String(),
		ModelID:   modelID,
		Name:      name,
		NetScore:  netScore,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
}

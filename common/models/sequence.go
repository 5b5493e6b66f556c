package models

import "time"

// SequenceCounter is the per-(name, year) counter row behind reference numbers
// Maps to: sequence_counter table
type SequenceCounter struct {
	Name         string    `db:"name" json:"name"`
	Year         int       `db:"year" json:"year"`
	CurrentValue int64     `db:"current_value" json:"current_value"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

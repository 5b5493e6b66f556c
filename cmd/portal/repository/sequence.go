package repository

import (
	"context"
	"fmt"
)

// NextSequenceValue increments (name, year), starting at 1. The row stays
// locked until the transaction ends, so a rollback gives the value back.
func (t *pgTx) NextSequenceValue(ctx context.Context, name string, year int) (int64, error) {
	query := `
		INSERT INTO sequence_counter (name, year, last_value)
		VALUES ($1, $2, 1)
		ON CONFLICT (name, year)
		DO UPDATE SET last_value = sequence_counter.last_value + 1, updated_at = NOW()
		RETURNING last_value
	`

	var value int64
	if err := t.tx.QueryRow(ctx, query, name, year).Scan(&value); err != nil {
		return 0, fmt.Errorf("failed to increment sequence %s/%d: %w", name, year, err)
	}
	return value, nil
}

package draw

import (
	"errors"
	"fmt"

	"github.com/landrecords/portal/common/models"
)

// Errors reported by Check
var (
	ErrResultHash    = errors.New("result hash does not match its fields")
	ErrAggregateHash = errors.New("aggregate hash does not match results")
	ErrSequence      = errors.New("selected draw sequences are not 1..selectedCount")
	ErrReplay        = errors.New("replayed order differs from the recorded results")
)

// Verify reports whether the stored audit is internally consistent
func Verify(a *models.DrawAudit) bool {
	return Check(a) == nil
}

// Check recomputes every result hash and the aggregate hash, and checks that
// selected results carry the sequences 1..selectedCount exactly once.
func Check(a *models.DrawAudit) error {
	if a == nil {
		return errors.New("nil draw audit")
	}
	for _, r := range a.Results {
		h, err := ResultHash(r, a.RandomSeed)
		if err != nil {
			return err
		}
		if h != r.AuditHash {
			return fmt.Errorf("%w: application %s", ErrResultHash, r.ApplicationID)
		}
	}

	agg, err := AggregateHash(a)
	if err != nil {
		return err
	}
	if agg != a.AuditHash {
		return ErrAggregateHash
	}

	return checkSequences(a)
}

func checkSequences(a *models.DrawAudit) error {
	seen := make(map[int]bool, a.SelectedCount)
	selected := 0
	for _, r := range a.Results {
		if !r.Selected {
			if r.DrawSequence != 0 {
				return fmt.Errorf("%w: unselected application %s has sequence %d", ErrSequence, r.ApplicationID, r.DrawSequence)
			}
			continue
		}
		selected++
		if r.DrawSequence < 1 || r.DrawSequence > a.SelectedCount || seen[r.DrawSequence] {
			return fmt.Errorf("%w: application %s has sequence %d", ErrSequence, r.ApplicationID, r.DrawSequence)
		}
		seen[r.DrawSequence] = true
	}
	if selected != a.SelectedCount {
		return fmt.Errorf("%w: %d selected, want %d", ErrSequence, selected, a.SelectedCount)
	}
	return nil
}

// Replay re-shuffles pool from the stored seed and confirms the recorded
// results follow that order. pool must be the exact pool the draw ran over,
// in the order it was supplied.
func Replay(a *models.DrawAudit, pool []string) error {
	if err := Check(a); err != nil {
		return err
	}
	order := Shuffle(a.RandomSeed, pool)
	if len(order) != len(a.Results) {
		return fmt.Errorf("%w: pool has %d applications, audit has %d", ErrReplay, len(order), len(a.Results))
	}
	for i, id := range order {
		r := a.Results[i]
		if r.ApplicationID != id {
			return fmt.Errorf("%w: position %d is %s, want %s", ErrReplay, i, r.ApplicationID, id)
		}
		if r.Selected != (i < a.SelectedCount) {
			return fmt.Errorf("%w: position %d selection flag", ErrReplay, i)
		}
	}
	return nil
}

// Package history keeps the bounded list of export snapshots.
package history

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"power_dashboard/models"
)

// DefaultLimit is the number of snapshots kept per session
const DefaultLimit = 5

var ErrIndex = errors.New("snapshot index out of range")

// IndexError reports a restore request for a snapshot that does not exist
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("snapshot %d does not exist (history has %d entries)", e.Index, e.Len)
}

func (e *IndexError) Unwrap() error { return ErrIndex }

// Snapshot is a named copy of the table. Its rows are never handed out
// directly, so later table edits cannot reach it.
type Snapshot struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
	rows      []models.Reading
}

// Rows returns a copy of the snapshot rows
func (s *Snapshot) Rows() []models.Reading {
	return models.CopyReadings(s.rows)
}

// Entry describes a snapshot without its rows
type Entry struct {
	Index     int       `json:"index"`
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	RowCount  int       `json:"row_count"`
}

// History keeps the most recent snapshots, newest first
type History struct {
	limit     int
	snapshots []*Snapshot
	now       func() time.Time
}

// New creates an empty history holding at most limit snapshots
func New(limit int) *History {
	if limit < 1 {
		limit = DefaultLimit
	}
	return &History{limit: limit, now: time.Now}
}

// Insert stores a copy of rows under name at the front of the history and
// drops whatever falls past the limit. Empty rows are ignored.
func (h *History) Insert(name string, rows []models.Reading) bool {
	if len(rows) == 0 {
		return false
	}
	snap := &Snapshot{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: h.now(),
		rows:      models.CopyReadings(rows),
	}
	h.snapshots = append([]*Snapshot{snap}, h.snapshots...)
	if len(h.snapshots) > h.limit {
		h.snapshots = h.snapshots[:h.limit]
	}
	return true
}

// Get returns the snapshot at index
func (h *History) Get(index int) (*Snapshot, error) {
	if index < 0 || index >= len(h.snapshots) {
		return nil, &IndexError{Index: index, Len: len(h.snapshots)}
	}
	return h.snapshots[index], nil
}

// Restore returns a copy of the rows of the snapshot at index
func (h *History) Restore(index int) ([]models.Reading, error) {
	snap, err := h.Get(index)
	if err != nil {
		return nil, err
	}
	return snap.Rows(), nil
}

// List describes every snapshot, newest first
func (h *History) List() []Entry {
	out := make([]Entry, len(h.snapshots))
	for i, s := range h.snapshots {
		out[i] = Entry{
			Index:     i,
			ID:        s.ID.String(),
			Name:      s.Name,
			CreatedAt: s.CreatedAt,
			RowCount:  len(s.rows),
		}
	}
	return out
}

// Len returns the number of snapshots held
func (h *History) Len() int {
	return len(h.snapshots)
}

// Limit returns the capacity
func (h *History) Limit() int {
	return h.limit
}

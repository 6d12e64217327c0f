// Package store persists simulation runs.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/nvandessel/narrative-recall/internal/simulation"
)

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("run not found")

// RunSummary is the listing view of a saved run.
type RunSummary struct {
	ID        string    `json:"id"`
	Scenario  string    `json:"scenario"`
	Model     string    `json:"model"`
	Seed      uint64    `json:"seed"`
	Recalls   int       `json:"recalls"`
	Stopped   bool      `json:"stopped"`
	CreatedAt time.Time `json:"created_at"`
}

// RunEvent is one study or recall event of a run, by serial position.
type RunEvent struct {
	RunID    string `json:"run_id"`
	Type     string `json:"type"`
	Position int    `json:"position"`
	Item     int    `json:"item"`
}

// RunStore defines the interface for saving and querying simulation runs.
type RunStore interface {
	SaveRun(ctx context.Context, res *simulation.Result) error
	GetRun(ctx context.Context, id string) (*simulation.Result, error)

	// ListRuns returns summaries newest first. An empty model lists all.
	ListRuns(ctx context.Context, model string) ([]RunSummary, error)
	DeleteRun(ctx context.Context, id string) error

	// Events returns the study and recall events of a run in serial order.
	Events(ctx context.Context, id string) ([]RunEvent, error)

	Close() error
}

// EventsOf flattens a result into the rows of the events table.
func EventsOf(res *simulation.Result) []RunEvent {
	serial := res.SerialEvents()
	events := make([]RunEvent, len(serial))
	for i, ev := range serial {
		events[i] = RunEvent{RunID: res.RunID, Type: ev.Type, Position: ev.Position, Item: ev.Item}
	}
	return events
}

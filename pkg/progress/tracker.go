// Package progress tracks per-phase execution state for one run. The
// tracker's snapshot is the canonical JSON shape persisted to the run row
// on every phase boundary.
package progress

import (
	"sync"
	"time"

	"github.com/adscout/adscout/pkg/models"
)

// Snapshot is what gets written through the repository: the completed
// phase records plus the current-phase pointer.
type Snapshot struct {
	Completed    []models.PhaseRecord
	CurrentPhase int
	CurrentName  string
	Percent      int
	Message      string
}

// Tracker accumulates phase records. Safe for concurrent use: phase 4
// workers report item progress while the orchestrator owns the phase
// boundaries.
type Tracker struct {
	mu        sync.Mutex
	completed []models.PhaseRecord

	current      int
	currentName  string
	currentStart time.Time
	percent      int
	message      string
	stats        map[string]any
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// StartPhase opens a new phase. Percent is the overall progress at the
// phase start; stats accumulate until EndPhase.
func (t *Tracker) StartPhase(number int, name string, percent int, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = number
	t.currentName = name
	t.currentStart = time.Now()
	t.percent = percent
	t.message = message
	t.stats = make(map[string]any)
}

// SetMessage updates the in-phase progress message.
func (t *Tracker) SetMessage(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.message = message
}

// AddStat records a stat on the current phase. Numeric stats with the same
// key overwrite; use distinct keys for counters accumulated elsewhere.
func (t *Tracker) AddStat(key string, value any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stats == nil {
		t.stats = make(map[string]any)
	}
	t.stats[key] = value
}

// EndPhase closes the current phase with its outcome message and final
// percent, appending the record to the completed list.
func (t *Tracker) EndPhase(percent int, message string) models.PhaseRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec := models.PhaseRecord{
		Number:          t.current,
		Name:            t.currentName,
		StartedAt:       t.currentStart,
		DurationSeconds: time.Since(t.currentStart).Seconds(),
		Message:         message,
		Stats:           t.stats,
	}
	t.completed = append(t.completed, rec)
	t.percent = percent
	t.message = message
	t.stats = nil
	return rec
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	completed := make([]models.PhaseRecord, len(t.completed))
	copy(completed, t.completed)
	return Snapshot{
		Completed:    completed,
		CurrentPhase: t.current,
		CurrentName:  t.currentName,
		Percent:      t.percent,
		Message:      t.message,
	}
}

// Completed returns a copy of the completed phase records.
func (t *Tracker) Completed() []models.PhaseRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	completed := make([]models.PhaseRecord, len(t.completed))
	copy(completed, t.completed)
	return completed
}

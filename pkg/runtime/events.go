package runtime

import (
	"time"

	"github.com/bissakov/qazcode-rpa-sub000/pkg/types"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Snapshot is a throttled observation of run state for pollers, not a
// consistent cut: variables reflect the moment of capture only.
type Snapshot struct {
	PC        int                    `json:"pc"`
	NodeID    string                 `json:"node_id"`
	Status    Status                 `json:"status"`
	Variables map[string]types.Value `json:"-"`
	At        time.Time              `json:"at"`
}

// SnapshotFunc receives throttled snapshots from the executor.
type SnapshotFunc func(Snapshot)

// SnapshotInterval is the minimum spacing between snapshots.
const SnapshotInterval = 100 * time.Millisecond

package trial

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"crossvr-capture-go/internal/export"
	"crossvr-capture-go/internal/types"
)

// State describes where the recorder is in the trial lifecycle.
type State string

const (
	StateIdle         State = "idle"
	StateAccumulating State = "accumulating"
	StateExporting    State = "exporting"
)

// ErrCommitInFlight is returned when a commit or discard arrives while a
// previous commit is still writing. The in-flight commit always runs to
// completion first.
var ErrCommitInFlight = errors.New("trial: commit in progress")

type bufferSet struct {
	ped  Buffer[types.PedestrianFrame]
	veh  Buffer[types.VehicleFrame]
	gaze Buffer[types.GazeFrame]
}

func (s *bufferSet) counts() map[types.Channel]int {
	return map[types.Channel]int{
		types.ChannelPedestrian: s.ped.Len(),
		types.ChannelVehicle:    s.veh.Len(),
		types.ChannelGaze:       s.gaze.Len(),
	}
}

func (s *bufferSet) total() int {
	return s.ped.Len() + s.veh.Len() + s.gaze.Len()
}

// CommitResult reports a successful commit: the consumed trial id, the
// published directory, and the rows written per exported channel.
type CommitResult struct {
	TrialID int                   `json:"trial_id"`
	Dir     string                `json:"dir"`
	Rows    map[types.Channel]int `json:"rows"`
}

// Recorder owns the frame buffers of the currently open trial and is the
// only component allowed to mutate them. Samplers feed it through the
// Append methods on every tick; the operator surface drives Commit and
// Discard. Appends that arrive while a commit is exporting land in the
// next trial's buffers.
type Recorder struct {
	alloc *Allocator

	mu         sync.Mutex
	bufs       *bufferSet
	committing bool

	commits     int
	discards    int
	lastTrialID int
	lastErr     error

	// writeChannels is swapped out by tests to inject export failures.
	writeChannels func(dir string, snap *bufferSet) (map[types.Channel]int, error)
}

func NewRecorder(root string) *Recorder {
	r := &Recorder{
		alloc: NewAllocator(root),
		bufs:  &bufferSet{},
	}
	r.writeChannels = writeChannelFiles
	return r
}

func (r *Recorder) AppendPedestrian(f types.PedestrianFrame) {
	r.mu.Lock()
	r.bufs.ped.Append(f)
	r.mu.Unlock()
}

func (r *Recorder) AppendVehicle(f types.VehicleFrame) {
	r.mu.Lock()
	r.bufs.veh.Append(f)
	r.mu.Unlock()
}

func (r *Recorder) AppendGaze(f types.GazeFrame) {
	r.mu.Lock()
	r.bufs.gaze.Append(f)
	r.mu.Unlock()
}

// Commit exports the current trial: allocate a fresh id, write every
// non-empty channel into a staging directory, rename it into place, then
// drop the exported buffers. Either the whole trial is published under its
// numeric name and the id is consumed, or nothing is and the buffers are
// restored so the operator can retry. A trial with no samples still
// consumes an id and publishes an empty directory.
func (r *Recorder) Commit() (CommitResult, error) {
	r.mu.Lock()
	if r.committing {
		r.mu.Unlock()
		return CommitResult{}, ErrCommitInFlight
	}
	r.committing = true
	snap := r.bufs
	r.bufs = &bufferSet{}
	r.mu.Unlock()

	res, err := r.exportTrial(snap)

	r.mu.Lock()
	r.committing = false
	if err != nil {
		// Fold the snapshot back in front of anything sampled while the
		// failed commit was running, keeping temporal order intact.
		r.bufs.ped.PrependAll(snap.ped.Snapshot())
		r.bufs.veh.PrependAll(snap.veh.Snapshot())
		r.bufs.gaze.PrependAll(snap.gaze.Snapshot())
		r.lastErr = err
	} else {
		r.commits++
		r.lastTrialID = res.TrialID
		r.lastErr = nil
	}
	r.mu.Unlock()
	return res, err
}

// Discard drops the current trial's buffers without touching the
// filesystem. No trial id is consumed and no gap appears in the numbering.
func (r *Recorder) Discard() (map[types.Channel]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.committing {
		return nil, ErrCommitInFlight
	}
	counts := r.bufs.counts()
	r.bufs = &bufferSet{}
	r.discards++
	return counts, nil
}

func (r *Recorder) exportTrial(snap *bufferSet) (CommitResult, error) {
	id, err := r.alloc.NextID()
	if err != nil {
		return CommitResult{}, err
	}

	root := r.alloc.Root()
	tmp := tempTrialDir(root, id)
	_ = os.RemoveAll(tmp)
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return CommitResult{}, &export.SerializationError{Path: tmp, Err: err}
	}

	rows, err := r.writeChannels(tmp, snap)
	if err != nil {
		_ = os.RemoveAll(tmp)
		return CommitResult{}, err
	}

	final := finalTrialDir(root, id)
	if err := os.Rename(tmp, final); err != nil {
		_ = os.RemoveAll(tmp)
		return CommitResult{}, &export.SerializationError{Path: final, Err: err}
	}

	r.alloc.MarkCommitted(id)
	return CommitResult{TrialID: id, Dir: final, Rows: rows}, nil
}

// writeChannelFiles writes one file per non-empty channel. An empty
// channel produces no file: downstream treats a missing file as "channel
// not recorded".
func writeChannelFiles(dir string, snap *bufferSet) (map[types.Channel]int, error) {
	written := make(map[types.Channel]int)
	if n := snap.ped.Len(); n > 0 {
		if err := export.WriteRows(filepath.Join(dir, types.ChannelPedestrian.Filename()), rowsOf(snap.ped.Snapshot())); err != nil {
			return nil, err
		}
		written[types.ChannelPedestrian] = n
	}
	if n := snap.veh.Len(); n > 0 {
		if err := export.WriteRows(filepath.Join(dir, types.ChannelVehicle.Filename()), rowsOf(snap.veh.Snapshot())); err != nil {
			return nil, err
		}
		written[types.ChannelVehicle] = n
	}
	if n := snap.gaze.Len(); n > 0 {
		if err := export.WriteRows(filepath.Join(dir, types.ChannelGaze.Filename()), rowsOf(snap.gaze.Snapshot())); err != nil {
			return nil, err
		}
		written[types.ChannelGaze] = n
	}
	return written, nil
}

type rower interface {
	Row() []string
}

func rowsOf[T rower](recs []T) [][]string {
	rows := make([][]string, len(recs))
	for i, rec := range recs {
		rows[i] = rec.Row()
	}
	return rows
}

// State reports the lifecycle state: exporting while a commit is writing,
// accumulating once at least one sample is buffered, idle otherwise.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.committing:
		return StateExporting
	case r.bufs.total() > 0:
		return StateAccumulating
	default:
		return StateIdle
	}
}

// BufferCounts returns the current per-channel buffer depths.
func (r *Recorder) BufferCounts() map[types.Channel]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bufs.counts()
}

// Status returns a snapshot of the recorder for the operator surface. A
// failed commit stays visible in last_error until a later commit succeeds.
func (r *Recorder) Status() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()

	state := StateIdle
	switch {
	case r.committing:
		state = StateExporting
	case r.bufs.total() > 0:
		state = StateAccumulating
	}

	status := map[string]any{
		"state":          string(state),
		"export_root":    r.alloc.Root(),
		"buffers":        r.bufs.counts(),
		"commits_total":  r.commits,
		"discards_total": r.discards,
	}
	if r.lastTrialID > 0 {
		status["last_trial_id"] = r.lastTrialID
	}
	if r.lastErr != nil {
		status["last_error"] = r.lastErr.Error()
	}
	return status
}

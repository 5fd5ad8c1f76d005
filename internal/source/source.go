package source

import (
	"sync"
	"time"

	"crossvr-capture-go/internal/types"
)

// PedestrianState is the latest known pedestrian rig pose. Crossing rides
// with the pose update: the runtime flags it when the participant steps
// off the curb.
type PedestrianState struct {
	Position types.Vec3
	Rotation types.Vec3
	Crossing bool
}

// VehicleState is the latest known vehicle telemetry, measured plus the
// runtime's prediction. An all-zero Position means no vehicle is visible.
type VehicleState struct {
	Position          types.Vec3
	Velocity          types.Vec3
	PredictedTime     float64
	PredictedPosition types.Vec3
}

// GazeState is the latest eye-tracker reading. Fixation stays all-zero on
// hardware that does not report one.
type GazeState struct {
	Origin     types.Vec3
	Direction  types.Vec3
	Fixation   types.Vec3
	Confidence float64
}

// World is what the samplers read once per tick. Implementations must not
// block: each query returns the current value immediately, with ok=false
// when the source has never reported or has gone stale.
type World interface {
	Pedestrian() (PedestrianState, bool)
	Vehicle() (VehicleState, bool)
	Gaze() (GazeState, bool)
}

// Store holds the most recent state per channel. The bridge (or the
// simulator) writes, the samplers read. There is no queue: a sampler
// always sees the newest value, and missed intermediate updates are by
// contract not part of the capture.
type Store struct {
	staleAfter time.Duration
	now        func() time.Time

	mu     sync.RWMutex
	ped    PedestrianState
	pedAt  time.Time
	veh    VehicleState
	vehAt  time.Time
	gaze   GazeState
	gazeAt time.Time
}

// NewStore returns a Store whose reads report ok=false once an update is
// older than staleAfter. staleAfter <= 0 disables the staleness check.
func NewStore(staleAfter time.Duration) *Store {
	return &Store{staleAfter: staleAfter, now: time.Now}
}

func (s *Store) SetPedestrian(st PedestrianState) {
	s.mu.Lock()
	s.ped = st
	s.pedAt = s.now()
	s.mu.Unlock()
}

func (s *Store) SetVehicle(st VehicleState) {
	s.mu.Lock()
	s.veh = st
	s.vehAt = s.now()
	s.mu.Unlock()
}

func (s *Store) SetGaze(st GazeState) {
	s.mu.Lock()
	s.gaze = st
	s.gazeAt = s.now()
	s.mu.Unlock()
}

func (s *Store) Pedestrian() (PedestrianState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ped, s.fresh(s.pedAt)
}

func (s *Store) Vehicle() (VehicleState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.veh, s.fresh(s.vehAt)
}

func (s *Store) Gaze() (GazeState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gaze, s.fresh(s.gazeAt)
}

func (s *Store) fresh(at time.Time) bool {
	if at.IsZero() {
		return false
	}
	if s.staleAfter <= 0 {
		return true
	}
	return s.now().Sub(at) <= s.staleAfter
}

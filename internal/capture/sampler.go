package capture

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"crossvr-capture-go/internal/source"
	"crossvr-capture-go/internal/trial"
	"crossvr-capture-go/internal/types"
)

// Clock returns seconds on the shared session-monotonic timeline. All
// three channels stamp from the same clock so downstream joins on time
// work across files; the clock never resets between trials.
type Clock func() float64

// NewClock anchors a session clock at now.
func NewClock() Clock {
	start := time.Now()
	return func() float64 {
		return time.Since(start).Seconds()
	}
}

// Metrics counts sampler activity. Written from the tick goroutines,
// snapshotted from the operator surface.
type Metrics struct {
	pedSamples  atomic.Uint64
	vehSamples  atomic.Uint64
	gazeSamples atomic.Uint64

	pedSentinels  atomic.Uint64
	vehSentinels  atomic.Uint64
	gazeSentinels atomic.Uint64
}

func (m *Metrics) Snapshot() map[string]any {
	return map[string]any{
		"pedestrian_samples_total":   m.pedSamples.Load(),
		"vehicle_samples_total":      m.vehSamples.Load(),
		"gaze_samples_total":         m.gazeSamples.Load(),
		"pedestrian_sentinels_total": m.pedSentinels.Load(),
		"vehicle_sentinels_total":    m.vehSentinels.Load(),
		"gaze_sentinels_total":       m.gazeSentinels.Load(),
	}
}

// Sampler drives the three channel producers. Each channel runs its own
// fixed-rate ticker goroutine, reads the current world state, and appends
// one record per tick through the recorder. A source that is momentarily
// unavailable still yields a record, with zero-vector sentinel content, so
// sample counts stay proportional to elapsed wall time. The tick path
// never touches the filesystem.
type Sampler struct {
	rec      *trial.Recorder
	world    source.World
	clock    Clock
	interval time.Duration
	metrics  *Metrics
	logEvery int
}

// NewSampler builds a sampler running each channel at rateHz.
func NewSampler(rec *trial.Recorder, world source.World, clock Clock, rateHz float64, metrics *Metrics, logEvery int) *Sampler {
	if rateHz <= 0 {
		rateHz = 90
	}
	if metrics == nil {
		metrics = &Metrics{}
	}
	if logEvery < 1 {
		logEvery = 1
	}
	return &Sampler{
		rec:      rec,
		world:    world,
		clock:    clock,
		interval: time.Duration(float64(time.Second) / rateHz),
		metrics:  metrics,
		logEvery: logEvery,
	}
}

func (s *Sampler) Metrics() *Metrics {
	return s.metrics
}

// Run starts the three channel loops and blocks until ctx is cancelled.
func (s *Sampler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		s.loop(ctx, s.samplePedestrian)
	}()
	go func() {
		defer wg.Done()
		s.loop(ctx, s.sampleVehicle)
	}()
	go func() {
		defer wg.Done()
		s.loop(ctx, s.sampleGaze)
	}()
	wg.Wait()
}

func (s *Sampler) loop(ctx context.Context, sample func(t float64)) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sample(s.clock())
		}
	}
}

func (s *Sampler) samplePedestrian(t float64) {
	st, ok := s.world.Pedestrian()
	if !ok {
		s.metrics.pedSentinels.Add(1)
		s.logSentinel("pedestrian")
		st = source.PedestrianState{}
	}
	crossing := 0
	if st.Crossing {
		crossing = 1
	}
	s.rec.AppendPedestrian(types.PedestrianFrame{
		Time:     t,
		Position: st.Position,
		Rotation: st.Rotation,
		Crossing: crossing,
	})
	s.metrics.pedSamples.Add(1)
}

func (s *Sampler) sampleVehicle(t float64) {
	st, ok := s.world.Vehicle()
	if !ok {
		s.metrics.vehSentinels.Add(1)
		s.logSentinel("vehicle")
		st = source.VehicleState{}
	}
	s.rec.AppendVehicle(types.VehicleFrame{
		Time:              t,
		Position:          st.Position,
		Velocity:          st.Velocity,
		PredictedTime:     st.PredictedTime,
		PredictedPosition: st.PredictedPosition,
	})
	s.metrics.vehSamples.Add(1)
}

func (s *Sampler) sampleGaze(t float64) {
	st, ok := s.world.Gaze()
	if !ok {
		s.metrics.gazeSentinels.Add(1)
		s.logSentinel("gaze")
		st = source.GazeState{}
	}
	s.rec.AppendGaze(types.GazeFrame{
		Time:       t,
		Origin:     st.Origin,
		Direction:  st.Direction,
		Fixation:   st.Fixation,
		Confidence: st.Confidence,
	})
	s.metrics.gazeSamples.Add(1)
}

var sentinelLogCounter atomic.Uint64

func (s *Sampler) logSentinel(channel string) {
	if sentinelLogCounter.Add(1)%uint64(s.logEvery) == 0 {
		log.Printf("%s source unavailable, recording sentinel", channel)
	}
}

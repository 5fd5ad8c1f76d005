package simulator

import (
	"context"
	"math"
	"math/rand"
	"time"

	"crossvr-capture-go/internal/source"
	"crossvr-capture-go/internal/types"
)

// Simulator synthesizes a vehicle-approach scenario and feeds it into the
// world store, so the whole capture pipeline can run without the VR
// runtime. Distances are world units (cm), matching the real scene.
type Simulator struct {
	store *source.Store
	rng   *rand.Rand

	pedestrian types.Vec3
	headHeight float64
	horizon    float64 // seconds ahead for the predicted vehicle state

	startOffset float64 // vehicle spawn distance from the pedestrian, cm
	speed       float64 // cm/s along -X
	vehicleX    float64
	crossDist   float64 // gap at which the pedestrian starts to cross
	crossingY   float64 // how far the pedestrian has walked into the road
	clock       float64
}

func New(store *source.Store) *Simulator {
	s := &Simulator{
		store:       store,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		pedestrian:  types.Vec3{X: 14343, Y: 3665, Z: 13317},
		headHeight:  170,
		horizon:     0.5,
		startOffset: 9000,
		crossDist:   2500,
	}
	s.reset()
	return s
}

// Run advances the scenario at rateHz until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context, rateHz float64) {
	if rateHz <= 0 {
		rateHz = 120
	}
	interval := time.Duration(float64(time.Second) / rateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Step(interval.Seconds())
		}
	}
}

// Step advances the scenario by dt seconds and publishes the new state.
func (s *Simulator) Step(dt float64) {
	s.clock += dt
	s.vehicleX -= s.speed * dt

	// One approach done: vehicle passed well beyond the pedestrian.
	if s.vehicleX < s.pedestrian.X-2000 {
		s.reset()
	}

	gap := s.vehicleX - s.pedestrian.X
	crossing := gap > 0 && gap < s.crossDist
	if crossing {
		s.crossingY += 120 * dt // ~1.2 m/s walking pace
	}

	pedPos := s.pedestrian
	pedPos.Y += s.crossingY
	yaw := 0.0
	if crossing {
		yaw = 90
	}
	s.store.SetPedestrian(source.PedestrianState{
		Position: pedPos,
		Rotation: types.Vec3{Y: yaw},
		Crossing: crossing,
	})

	vehPos := types.Vec3{X: s.vehicleX, Y: s.pedestrian.Y - 300, Z: s.pedestrian.Z}
	vel := types.Vec3{X: -s.speed}
	s.store.SetVehicle(source.VehicleState{
		Position:          vehPos,
		Velocity:          vel,
		PredictedTime:     s.clock + s.horizon,
		PredictedPosition: types.Vec3{X: vehPos.X + vel.X*s.horizon, Y: vehPos.Y, Z: vehPos.Z},
	})

	origin := pedPos
	origin.Z += s.headHeight
	dir := normalize(types.Vec3{
		X: vehPos.X - origin.X,
		Y: vehPos.Y - origin.Y,
		Z: vehPos.Z - origin.Z,
	})
	s.store.SetGaze(source.GazeState{
		Origin:     origin,
		Direction:  dir,
		Fixation:   vehPos,
		Confidence: clamp01(0.9 + s.rng.NormFloat64()*0.05),
	})
}

// VehicleGap returns the current vehicle-to-pedestrian gap along X, cm.
func (s *Simulator) VehicleGap() float64 {
	return s.vehicleX - s.pedestrian.X
}

func (s *Simulator) reset() {
	// 30, 40 or 50 km/h in cm/s, like the experiment plan's velocity set.
	speeds := []float64{833, 1111, 1389}
	s.speed = speeds[s.rng.Intn(len(speeds))]
	s.vehicleX = s.pedestrian.X + s.startOffset
	s.crossingY = 0
}

func normalize(v types.Vec3) types.Vec3 {
	n := math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
	if n == 0 {
		return types.Vec3{}
	}
	return types.Vec3{X: v.X / n, Y: v.Y / n, Z: v.Z / n}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

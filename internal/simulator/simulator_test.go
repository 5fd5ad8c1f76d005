package simulator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"crossvr-capture-go/internal/source"
)

func TestStepPublishesAllChannels(t *testing.T) {
	store := source.NewStore(0)
	sim := New(store)

	sim.Step(0.01)

	ped, ok := store.Pedestrian()
	require.True(t, ok)
	require.NotZero(t, ped.Position.X)

	veh, ok := store.Vehicle()
	require.True(t, ok)
	require.Negative(t, veh.Velocity.X, "vehicle drives toward the pedestrian along -X")
	require.Greater(t, veh.PredictedTime, 0.0)
	require.Less(t, veh.PredictedPosition.X, veh.Position.X)

	gaze, ok := store.Gaze()
	require.True(t, ok)
	require.GreaterOrEqual(t, gaze.Confidence, 0.0)
	require.LessOrEqual(t, gaze.Confidence, 1.0)
	require.Equal(t, veh.Position, gaze.Fixation, "simulated gaze fixates the vehicle")
}

func TestVehicleApproaches(t *testing.T) {
	store := source.NewStore(0)
	sim := New(store)

	sim.Step(0.01)
	before := sim.VehicleGap()
	sim.Step(0.1)
	require.Less(t, sim.VehicleGap(), before)
}

func TestPedestrianEventuallyCrosses(t *testing.T) {
	store := source.NewStore(0)
	sim := New(store)

	for i := 0; i < 5000; i++ {
		sim.Step(0.01)
		if ped, ok := store.Pedestrian(); ok && ped.Crossing {
			require.NotZero(t, ped.Rotation.Y, "crossing pedestrian turns toward the road")
			return
		}
	}
	t.Fatal("pedestrian never started crossing")
}

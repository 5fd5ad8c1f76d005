package trial

import (
	"testing"

	"github.com/stretchr/testify/require"

	"crossvr-capture-go/internal/types"
)

func TestBufferAppendAndSnapshot(t *testing.T) {
	var b Buffer[types.PedestrianFrame]
	require.Equal(t, 0, b.Len())

	b.Append(types.PedestrianFrame{Time: 0})
	b.Append(types.PedestrianFrame{Time: 0.011})

	snap := b.Snapshot()
	require.Len(t, snap, 2)
	require.Equal(t, 0.011, snap[1].Time)

	// The snapshot is detached from later appends.
	b.Append(types.PedestrianFrame{Time: 0.022})
	require.Len(t, snap, 2)
	require.Equal(t, 3, b.Len())
}

func TestBufferClearFromEmpty(t *testing.T) {
	var b Buffer[types.GazeFrame]
	b.Clear()
	b.Clear()
	require.Equal(t, 0, b.Len())

	b.Append(types.GazeFrame{Time: 1})
	b.Clear()
	require.Equal(t, 0, b.Len())
}

func TestBufferPrependAllKeepsOrder(t *testing.T) {
	var b Buffer[types.VehicleFrame]
	b.Append(types.VehicleFrame{Time: 2})
	b.PrependAll([]types.VehicleFrame{{Time: 0}, {Time: 1}})

	snap := b.Snapshot()
	require.Len(t, snap, 3)
	require.Equal(t, 0.0, snap[0].Time)
	require.Equal(t, 1.0, snap[1].Time)
	require.Equal(t, 2.0, snap[2].Time)

	b.PrependAll(nil)
	require.Equal(t, 3, b.Len())
}

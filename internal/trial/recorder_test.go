package trial

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"crossvr-capture-go/internal/types"
)

func listEntries(t *testing.T, root string) []string {
	t.Helper()
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	require.True(t, strings.HasSuffix(content, "\n"), "file must end with newline")
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}

func TestCommitWritesAllAppendedRows(t *testing.T) {
	root := t.TempDir()
	rec := NewRecorder(root)

	for i := 0; i < 5; i++ {
		rec.AppendPedestrian(types.PedestrianFrame{Time: float64(i) * 0.011})
	}
	for i := 0; i < 4; i++ {
		rec.AppendVehicle(types.VehicleFrame{Time: float64(i) * 0.011})
	}
	for i := 0; i < 6; i++ {
		rec.AppendGaze(types.GazeFrame{Time: float64(i) * 0.011})
	}
	require.Equal(t, StateAccumulating, rec.State())

	res, err := rec.Commit()
	require.NoError(t, err)
	require.Equal(t, 1, res.TrialID)
	require.Equal(t, map[types.Channel]int{
		types.ChannelPedestrian: 5,
		types.ChannelVehicle:    4,
		types.ChannelGaze:       6,
	}, res.Rows)

	require.Len(t, readLines(t, filepath.Join(root, "1", "pedestrian.csv")), 5)
	require.Len(t, readLines(t, filepath.Join(root, "1", "vehicle.csv")), 4)
	require.Len(t, readLines(t, filepath.Join(root, "1", "gaze.csv")), 6)

	require.Equal(t, StateIdle, rec.State())
	require.Equal(t, 0, rec.BufferCounts()[types.ChannelPedestrian])
}

func TestCommitPedestrianOnlyScenario(t *testing.T) {
	root := t.TempDir()
	rec := NewRecorder(root)

	rec.AppendPedestrian(types.PedestrianFrame{Time: 0, Crossing: 0})
	rec.AppendPedestrian(types.PedestrianFrame{Time: 0.011, Crossing: 0})
	rec.AppendPedestrian(types.PedestrianFrame{Time: 0.022, Crossing: 1})

	res, err := rec.Commit()
	require.NoError(t, err)
	require.Equal(t, 1, res.TrialID)

	lines := readLines(t, filepath.Join(root, "1", "pedestrian.csv"))
	require.Len(t, lines, 3)
	fields := strings.Split(lines[2], ";")
	require.Len(t, fields, 8)
	require.Equal(t, "1", fields[7], "last field of last row is the crossing flag")

	_, err = os.Stat(filepath.Join(root, "1", "vehicle.csv"))
	require.True(t, os.IsNotExist(err), "empty vehicle buffer must produce no file")
	_, err = os.Stat(filepath.Join(root, "1", "gaze.csv"))
	require.True(t, os.IsNotExist(err), "empty gaze buffer must produce no file")
}

func TestDiscardLeavesExportRootUntouched(t *testing.T) {
	root := t.TempDir()
	rec := NewRecorder(root)

	before := listEntries(t, root)
	for i := 0; i < 10; i++ {
		rec.AppendPedestrian(types.PedestrianFrame{Time: float64(i)})
		rec.AppendGaze(types.GazeFrame{Time: float64(i)})
	}

	dropped, err := rec.Discard()
	require.NoError(t, err)
	require.Equal(t, 10, dropped[types.ChannelPedestrian])
	require.Equal(t, 0, dropped[types.ChannelVehicle])
	require.Equal(t, 10, dropped[types.ChannelGaze])

	require.Equal(t, before, listEntries(t, root))
	require.Equal(t, StateIdle, rec.State())

	// A discarded trial must not leave a gap in the numbering.
	rec.AppendVehicle(types.VehicleFrame{Time: 1})
	res, err := rec.Commit()
	require.NoError(t, err)
	require.Equal(t, 1, res.TrialID)
}

func TestEmptyCommitPublishesEmptyTrialDirectory(t *testing.T) {
	root := t.TempDir()
	rec := NewRecorder(root)

	first, err := rec.Commit()
	require.NoError(t, err)
	second, err := rec.Commit()
	require.NoError(t, err)

	require.Equal(t, 1, first.TrialID)
	require.Equal(t, 2, second.TrialID)
	require.Empty(t, second.Rows)
	require.Empty(t, listEntries(t, filepath.Join(root, "2")))
}

func TestFailedCommitPreservesBuffersAndID(t *testing.T) {
	root := t.TempDir()
	rec := NewRecorder(root)

	boom := errors.New("disk full")
	rec.writeChannels = func(dir string, snap *bufferSet) (map[types.Channel]int, error) {
		return nil, boom
	}

	for i := 0; i < 7; i++ {
		rec.AppendPedestrian(types.PedestrianFrame{Time: float64(i)})
	}

	_, err := rec.Commit()
	require.ErrorIs(t, err, boom)

	// No trial directory, not even a staging leftover.
	require.Empty(t, listEntries(t, root))
	require.Equal(t, 7, rec.BufferCounts()[types.ChannelPedestrian])
	require.Equal(t, StateAccumulating, rec.State())
	require.Contains(t, rec.Status(), "last_error")

	// Retry succeeds with the same trial id: the failure consumed nothing.
	rec.writeChannels = writeChannelFiles
	res, err := rec.Commit()
	require.NoError(t, err)
	require.Equal(t, 1, res.TrialID)
	require.Equal(t, 7, res.Rows[types.ChannelPedestrian])
	require.Len(t, readLines(t, filepath.Join(root, "1", "pedestrian.csv")), 7)
	require.NotContains(t, rec.Status(), "last_error")
}

func TestTrialIDsIncreaseAcrossDeletions(t *testing.T) {
	root := t.TempDir()
	rec := NewRecorder(root)

	rec.AppendVehicle(types.VehicleFrame{Time: 0})
	res, err := rec.Commit()
	require.NoError(t, err)
	require.Equal(t, 1, res.TrialID)

	require.NoError(t, os.RemoveAll(res.Dir))

	rec.AppendVehicle(types.VehicleFrame{Time: 1})
	res, err = rec.Commit()
	require.NoError(t, err)
	require.Equal(t, 2, res.TrialID, "deleted trial directory must not be reused")
}

func TestAppendsDuringCommitGoToNextTrial(t *testing.T) {
	root := t.TempDir()
	rec := NewRecorder(root)

	entered := make(chan struct{})
	release := make(chan struct{})
	rec.writeChannels = func(dir string, snap *bufferSet) (map[types.Channel]int, error) {
		close(entered)
		<-release
		return writeChannelFiles(dir, snap)
	}

	rec.AppendVehicle(types.VehicleFrame{Time: 0})
	rec.AppendVehicle(types.VehicleFrame{Time: 0.011})

	type outcome struct {
		res CommitResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := rec.Commit()
		done <- outcome{res, err}
	}()

	<-entered
	require.Equal(t, StateExporting, rec.State())

	// Sampled after the commit call: must not land in the committed files.
	rec.AppendVehicle(types.VehicleFrame{Time: 0.022})

	_, err := rec.Commit()
	require.ErrorIs(t, err, ErrCommitInFlight)
	_, err = rec.Discard()
	require.ErrorIs(t, err, ErrCommitInFlight)

	close(release)
	out := <-done
	require.NoError(t, out.err)
	require.Equal(t, 2, out.res.Rows[types.ChannelVehicle])
	require.Len(t, readLines(t, filepath.Join(root, "1", "vehicle.csv")), 2)
	require.Equal(t, 1, rec.BufferCounts()[types.ChannelVehicle])
}

func TestFailedCommitKeepsMidFlightAppendsInOrder(t *testing.T) {
	root := t.TempDir()
	rec := NewRecorder(root)

	entered := make(chan struct{})
	release := make(chan struct{})
	boom := errors.New("write error")
	rec.writeChannels = func(dir string, snap *bufferSet) (map[types.Channel]int, error) {
		close(entered)
		<-release
		return nil, boom
	}

	rec.AppendPedestrian(types.PedestrianFrame{Time: 0})

	done := make(chan error, 1)
	go func() {
		_, err := rec.Commit()
		done <- err
	}()

	<-entered
	rec.AppendPedestrian(types.PedestrianFrame{Time: 0.011})
	close(release)
	require.ErrorIs(t, <-done, boom)

	// Both records survive, oldest first.
	rec.writeChannels = writeChannelFiles
	res, err := rec.Commit()
	require.NoError(t, err)
	require.Equal(t, 2, res.Rows[types.ChannelPedestrian])

	lines := readLines(t, filepath.Join(root, "1", "pedestrian.csv"))
	require.True(t, strings.HasPrefix(lines[0], "0;"))
	require.True(t, strings.HasPrefix(lines[1], "0.011;"))
}

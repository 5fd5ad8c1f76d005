package types

import "strconv"

// Vec3 is a point or direction in the VR world frame, in world units (cm).
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

// Channel identifies one of the independent capture streams.
type Channel string

const (
	ChannelPedestrian Channel = "pedestrian"
	ChannelVehicle    Channel = "vehicle"
	ChannelGaze       Channel = "gaze"
)

// Channels lists all capture channels in export order.
var Channels = []Channel{ChannelPedestrian, ChannelVehicle, ChannelGaze}

// Filename returns the file name the channel is exported under inside a
// trial directory.
func (c Channel) Filename() string {
	return string(c) + ".csv"
}

// PedestrianFrame is one sampled pedestrian pose. Crossing is 0 or 1.
type PedestrianFrame struct {
	Time     float64
	Position Vec3
	Rotation Vec3
	Crossing int
}

// Row returns the frame in the fixed pedestrian column order:
// time; x_pos; y_pos; z_pos; x_rot; y_rot; z_rot; crossing
func (f PedestrianFrame) Row() []string {
	return []string{
		Ftoa(f.Time),
		Ftoa(f.Position.X), Ftoa(f.Position.Y), Ftoa(f.Position.Z),
		Ftoa(f.Rotation.X), Ftoa(f.Rotation.Y), Ftoa(f.Rotation.Z),
		strconv.Itoa(f.Crossing),
	}
}

// VehicleFrame is one sampled vehicle telemetry snapshot: the measured
// state plus the runtime's own prediction of where the vehicle will be.
// An all-zero Position means the vehicle is not visible in the scene.
type VehicleFrame struct {
	Time              float64
	Position          Vec3
	Velocity          Vec3
	PredictedTime     float64
	PredictedPosition Vec3
}

// Row returns the frame in the fixed vehicle column order:
// time; time_estimated; x_pos; y_pos; z_pos; x_est; y_est; z_est; x_vel; y_vel; z_vel
func (f VehicleFrame) Row() []string {
	return []string{
		Ftoa(f.Time),
		Ftoa(f.PredictedTime),
		Ftoa(f.Position.X), Ftoa(f.Position.Y), Ftoa(f.Position.Z),
		Ftoa(f.PredictedPosition.X), Ftoa(f.PredictedPosition.Y), Ftoa(f.PredictedPosition.Z),
		Ftoa(f.Velocity.X), Ftoa(f.Velocity.Y), Ftoa(f.Velocity.Z),
	}
}

// GazeFrame is one sampled eye-tracker reading. Fixation stays all-zero on
// hardware that reports no fixation point; downstream tooling relies on
// the column being present either way. Confidence is in [0,1].
type GazeFrame struct {
	Time       float64
	Origin     Vec3
	Direction  Vec3
	Fixation   Vec3
	Confidence float64
}

// Row returns the frame in the fixed gaze column order:
// time; x_origin; y_origin; z_origin; x_direction; y_direction; z_direction;
// x_fixation; y_fixation; z_fixation; confidence
func (f GazeFrame) Row() []string {
	return []string{
		Ftoa(f.Time),
		Ftoa(f.Origin.X), Ftoa(f.Origin.Y), Ftoa(f.Origin.Z),
		Ftoa(f.Direction.X), Ftoa(f.Direction.Y), Ftoa(f.Direction.Z),
		Ftoa(f.Fixation.X), Ftoa(f.Fixation.Y), Ftoa(f.Fixation.Z),
		Ftoa(f.Confidence),
	}
}

// Ftoa formats a float with the shortest representation that parses back
// to the exact same value. Always '.' as decimal separator, never locale
// dependent.
func Ftoa(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

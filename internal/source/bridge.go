package source

import (
	"context"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/pebbe/zmq4"
)

// Bridge subscribes to the VR runtime's state stream and keeps the Store
// current. Messages are CBOR maps shaped like:
//
//	{ "type": "pedestrian", "position": [x,y,z], "rotation": [x,y,z], "crossing": 0|1 }
//	{ "type": "vehicle", "position": [x,y,z], "velocity": [x,y,z],
//	  "predicted_time": <float>, "predicted_position": [x,y,z] }
//	{ "type": "gaze", "origin": [x,y,z], "direction": [x,y,z],
//	  "fixation": [x,y,z], "confidence": <float> }
//
// Unknown message types and malformed payloads are logged (rate limited)
// and skipped; the stream keeps running.
func RunBridge(ctx context.Context, endpoint string, store *Store, logEvery int) error {
	if logEvery < 1 {
		logEvery = 1
	}

	socket, err := zmq4.NewSocket(zmq4.SUB)
	if err != nil {
		return err
	}
	if err := socket.SetSubscribe(""); err != nil {
		_ = socket.Close()
		return err
	}
	if err := socket.Connect(endpoint); err != nil {
		_ = socket.Close()
		return err
	}

	go func() {
		defer socket.Close()

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			msg, err := socket.RecvBytes(0)
			if err != nil {
				logEveryN(logEvery, "bridge recv error: %v", err)
				continue
			}
			if err := ApplyMessage(store, msg); err != nil {
				logEveryN(logEvery, "bridge: %v", err)
			}
		}
	}()

	return nil
}

// ApplyMessage decodes one state message and applies it to the store.
func ApplyMessage(store *Store, msg []byte) error {
	var payload map[string]any
	if err := cbor.Unmarshal(msg, &payload); err != nil {
		return fmt.Errorf("decode state message: %w", err)
	}

	msgType, _ := payload["type"].(string)
	switch msgType {
	case "pedestrian":
		st, err := decodePedestrian(payload)
		if err != nil {
			return err
		}
		store.SetPedestrian(st)
	case "vehicle":
		st, err := decodeVehicle(payload)
		if err != nil {
			return err
		}
		store.SetVehicle(st)
	case "gaze":
		st, err := decodeGaze(payload)
		if err != nil {
			return err
		}
		store.SetGaze(st)
	default:
		return fmt.Errorf("ignoring message type %q", msgType)
	}
	return nil
}

func decodePedestrian(payload map[string]any) (PedestrianState, error) {
	pos, err := toVec3(payload["position"])
	if err != nil {
		return PedestrianState{}, fmt.Errorf("pedestrian position: %w", err)
	}
	rot, err := toVec3(payload["rotation"])
	if err != nil {
		return PedestrianState{}, fmt.Errorf("pedestrian rotation: %w", err)
	}
	crossing := false
	if v, ok := payload["crossing"]; ok {
		n, err := toFloat(v)
		if err != nil {
			return PedestrianState{}, fmt.Errorf("pedestrian crossing: %w", err)
		}
		crossing = n != 0
	}
	return PedestrianState{Position: pos, Rotation: rot, Crossing: crossing}, nil
}

func decodeVehicle(payload map[string]any) (VehicleState, error) {
	pos, err := toVec3(payload["position"])
	if err != nil {
		return VehicleState{}, fmt.Errorf("vehicle position: %w", err)
	}
	vel, err := toVec3(payload["velocity"])
	if err != nil {
		return VehicleState{}, fmt.Errorf("vehicle velocity: %w", err)
	}
	predTime := 0.0
	if v, ok := payload["predicted_time"]; ok {
		if predTime, err = toFloat(v); err != nil {
			return VehicleState{}, fmt.Errorf("vehicle predicted_time: %w", err)
		}
	}
	predPos := pos
	if v, ok := payload["predicted_position"]; ok {
		if predPos, err = toVec3(v); err != nil {
			return VehicleState{}, fmt.Errorf("vehicle predicted_position: %w", err)
		}
	}
	return VehicleState{
		Position:          pos,
		Velocity:          vel,
		PredictedTime:     predTime,
		PredictedPosition: predPos,
	}, nil
}

func decodeGaze(payload map[string]any) (GazeState, error) {
	origin, err := toVec3(payload["origin"])
	if err != nil {
		return GazeState{}, fmt.Errorf("gaze origin: %w", err)
	}
	dir, err := toVec3(payload["direction"])
	if err != nil {
		return GazeState{}, fmt.Errorf("gaze direction: %w", err)
	}
	st := GazeState{Origin: origin, Direction: dir}
	// Fixation is optional: trackers without fixation support leave the
	// field out and the state keeps the zero-vector sentinel.
	if v, ok := payload["fixation"]; ok {
		if st.Fixation, err = toVec3(v); err != nil {
			return GazeState{}, fmt.Errorf("gaze fixation: %w", err)
		}
	}
	if v, ok := payload["confidence"]; ok {
		conf, err := toFloat(v)
		if err != nil {
			return GazeState{}, fmt.Errorf("gaze confidence: %w", err)
		}
		st.Confidence = clamp01(conf)
	}
	return st, nil
}

// Package liveness turns a stream of per-frame eye landmark readings into a
// durable "live human" verdict for one session, using the eye-aspect-ratio
// blink heuristic.
package liveness

import (
	"math"

	"github.com/Siri-Mahalaxmi/Aarani/models"
)

const (
	// DefaultEARThreshold is the averaged eye-aspect-ratio below which the
	// eyes are considered closed for the frame.
	DefaultEARThreshold = 0.2

	// DefaultBlinkTarget is the accumulated closed-eye frame count that
	// flips the session to live.
	DefaultBlinkTarget = 3
)

// State is a snapshot of one session's liveness evidence.
type State struct {
	BlinkCount int
	IsLive     bool
}

// Tracker accumulates blink evidence for a single session. It is not safe
// for concurrent use; the session pipeline processes frames for one session
// strictly in sequence, so no locking is needed here.
type Tracker struct {
	earThreshold float64
	blinkTarget  int
	state        State
}

func NewTracker(earThreshold float64, blinkTarget int) *Tracker {
	if earThreshold <= 0 {
		earThreshold = DefaultEARThreshold
	}
	if blinkTarget <= 0 {
		blinkTarget = DefaultBlinkTarget
	}
	return &Tracker{earThreshold: earThreshold, blinkTarget: blinkTarget}
}

// Observe feeds one frame's landmark reading into the tracker and returns
// the session's current liveness verdict. A nil landmark set means no face
// was found this frame; it contributes no new evidence and leaves the state
// untouched.
//
// The blink counter increments on every closed-eye frame, not on
// open-to-closed transitions, so a sustained closed eye keeps counting.
// Once the counter reaches the target the live flag is set and never
// cleared for the remainder of the session.
func (t *Tracker) Observe(lm *models.FaceLandmarks) bool {
	if lm == nil {
		return t.state.IsLive
	}
	avg := (EyeAspectRatio(lm.LeftEye) + EyeAspectRatio(lm.RightEye)) / 2.0
	if avg < t.earThreshold {
		t.state.BlinkCount++
	}
	if t.state.BlinkCount >= t.blinkTarget {
		t.state.IsLive = true
	}
	return t.state.IsLive
}

// State returns a copy of the tracker's current evidence.
func (t *Tracker) State() State {
	return t.state
}

// EyeAspectRatio computes (|p1-p5| + |p2-p4|) / (2 * |p0-p3|) over the six
// canonical eye points. A low ratio means the eyelid is closed. A degenerate
// horizontal distance yields 0 rather than dividing by zero.
func EyeAspectRatio(eye models.EyeLandmarks) float64 {
	v1 := dist(eye[1], eye[5])
	v2 := dist(eye[2], eye[4])
	h := dist(eye[0], eye[3])
	if h == 0 {
		return 0
	}
	return (v1 + v2) / (2.0 * h)
}

func dist(a, b models.Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

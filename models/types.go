package models

import "time"

// Detection is one raw face candidate produced by the detector before
// duplicate boxes are merged. BBox is [x1, y1, x2, y2] in original image
// coordinates.
type Detection struct {
	BBox       [4]int32
	Confidence float32
}

// FaceObservation is one detected face with its identity embedding. It lives
// for the duration of a single frame.
type FaceObservation struct {
	BBox      [4]int32
	Embedding []float32
}

// Point is a 2-D landmark coordinate, normalized to [0, 1] relative to the
// image dimensions.
type Point struct {
	X float64
	Y float64
}

// EyeLandmarks holds the six canonical eye contour points in the order
// [outer corner, upper 1, upper 2, inner corner, lower 2, lower 1], so that
// points 1/5 and 2/4 form the two vertical pairs and 0/3 the horizontal pair.
type EyeLandmarks [6]Point

// FaceLandmarks is the per-frame landmark set consumed by the liveness
// tracker. Absent landmarks are represented by a nil *FaceLandmarks.
type FaceLandmarks struct {
	LeftEye  EyeLandmarks
	RightEye EyeLandmarks
}

// Match is the identity decision for a single embedding.
type Match struct {
	Name       string
	Confidence float32
}

type ProcessingTimings struct {
	RequestID   string
	ImageDecode time.Duration
	Landmarks   time.Duration
	Detect      time.Duration
	Match       time.Duration
	Total       time.Duration
}

package server

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/Siri-Mahalaxmi/Aarani/facebank"
	"github.com/Siri-Mahalaxmi/Aarani/match"
	"github.com/Siri-Mahalaxmi/Aarani/models"
)

// The fake vision engine keys its behavior off the frame width, so tests
// script a session by sending frames of particular sizes.
const (
	widthNoFace     = 100 // no faces, no landmarks
	widthAlice      = 120 // one face matching "alice" at ~0.82, open eyes
	widthClosedEyes = 140 // no faces, closed-eye landmarks
	widthBadFace    = 160 // one wrong-dimension face plus one alice face
	widthDetectErr  = 180 // detector failure
	widthEcho       = 200 // widths >= 200: one alice face with bbox {0,0,w,h}
)

// aliceNearEmbedding is a unit vector at squared L2 distance ~0.18 from the
// enrolled (1,0,0), so its confidence lands at ~0.82.
var aliceNearEmbedding = []float32{0.91, 0.41461428, 0}

type fakeEngine struct{}

func (fakeEngine) Detect(_ context.Context, img image.Image) ([]models.FaceObservation, error) {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	switch {
	case w == widthAlice:
		return []models.FaceObservation{
			{BBox: [4]int32{10, 20, 110, 120}, Embedding: aliceNearEmbedding},
		}, nil
	case w == widthBadFace:
		return []models.FaceObservation{
			{BBox: [4]int32{0, 0, 50, 50}, Embedding: []float32{1, 2}}, // wrong dim
			{BBox: [4]int32{60, 0, 110, 50}, Embedding: aliceNearEmbedding},
		}, nil
	case w == widthDetectErr:
		return nil, fmt.Errorf("inference backend unavailable")
	case w >= widthEcho:
		return []models.FaceObservation{
			{BBox: [4]int32{0, 0, int32(w), int32(h)}, Embedding: aliceNearEmbedding},
		}, nil
	default:
		return nil, nil
	}
}

func (fakeEngine) Extract(_ context.Context, img image.Image) (*models.FaceLandmarks, error) {
	switch w := img.Bounds().Dx(); {
	case w == widthClosedEyes:
		return landmarksWithEAR(0.1), nil
	case w == widthAlice || w >= widthEcho:
		return landmarksWithEAR(0.3), nil
	default:
		return nil, nil
	}
}

func landmarksWithEAR(ear float64) *models.FaceLandmarks {
	eye := models.EyeLandmarks{
		{X: 0.0, Y: 0.5},
		{X: 0.3, Y: 0.5 - ear/2},
		{X: 0.7, Y: 0.5 - ear/2},
		{X: 1.0, Y: 0.5},
		{X: 0.7, Y: 0.5 + ear/2},
		{X: 0.3, Y: 0.5 + ear/2},
	}
	return &models.FaceLandmarks{LeftEye: eye, RightEye: eye}
}

func testBank(t *testing.T) *facebank.Bank {
	t.Helper()
	ix, err := facebank.NewFlatIndex(3,
		[]float32{1, 0, 0},
		[]float32{0, 1, 0},
	)
	if err != nil {
		t.Fatal(err)
	}
	bank, err := facebank.New(ix, []string{"alice", "bob"})
	if err != nil {
		t.Fatal(err)
	}
	return bank
}

func testMatcher(t *testing.T) *match.Matcher {
	t.Helper()
	return match.NewMatcher(testBank(t), 0.4)
}

// framePNG encodes a solid PNG of the given size for the fake engine.
func framePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: 40, G: 40, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

package server

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log"
	"time"

	"github.com/disintegration/imaging"

	"github.com/Siri-Mahalaxmi/Aarani/liveness"
	"github.com/Siri-Mahalaxmi/Aarani/match"
	"github.com/Siri-Mahalaxmi/Aarani/models"
)

// FaceDetector finds faces in a frame and attaches an identity embedding to
// each. Implemented by detections.Engine; tests substitute fakes.
type FaceDetector interface {
	Detect(ctx context.Context, img image.Image) ([]models.FaceObservation, error)
}

// LandmarkExtractor returns the per-frame eye landmarks, or (nil, nil) when
// no face is visible to the landmark model.
type LandmarkExtractor interface {
	Extract(ctx context.Context, img image.Image) (*models.FaceLandmarks, error)
}

// Processor turns one raw frame into per-face match results. Each pool slot
// owns one Processor; only the goroutine holding the slot uses it, so the
// inference sessions behind Detector and Landmarks see no concurrency.
type Processor struct {
	Detector  FaceDetector
	Landmarks LandmarkExtractor
	Matcher   *match.Matcher
	Feed      *DetectionFeed

	close func()
}

// NewProcessor wires a processor; closer (may be nil) releases any inference
// resources when the pool tears the slot down.
func NewProcessor(detector FaceDetector, landmarks LandmarkExtractor, matcher *match.Matcher, feed *DetectionFeed, closer func()) *Processor {
	return &Processor{
		Detector:  detector,
		Landmarks: landmarks,
		Matcher:   matcher,
		Feed:      feed,
		close:     closer,
	}
}

func (p *Processor) Close() {
	if p.close != nil {
		p.close()
	}
}

// ProcessFrame decodes the frame, updates the session's liveness evidence,
// matches every detected face and stamps the frame's liveness verdict onto
// each result. Per-face match failures drop that face only; everything else
// is a per-frame error for the caller to report.
func (p *Processor) ProcessFrame(ctx context.Context, frame []byte, tracker *liveness.Tracker, timings *models.ProcessingTimings) ([]FaceResult, error) {
	startTotal := time.Now()

	decodeStart := time.Now()
	img, err := imaging.Decode(bytes.NewReader(frame))
	timings.ImageDecode = time.Since(decodeStart)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	landmarkStart := time.Now()
	lm, err := p.Landmarks.Extract(ctx, img)
	timings.Landmarks = time.Since(landmarkStart)
	if err != nil {
		return nil, fmt.Errorf("landmark extraction: %w", err)
	}
	isLive := tracker.Observe(lm)

	detectStart := time.Now()
	observations, err := p.Detector.Detect(ctx, img)
	timings.Detect = time.Since(detectStart)
	if err != nil {
		return nil, fmt.Errorf("face detection: %w", err)
	}

	matchStart := time.Now()
	results := make([]FaceResult, 0, len(observations))
	for _, obs := range observations {
		m, err := p.Matcher.Match(obs.Embedding)
		if err != nil {
			// Bad embedding for this face only; the rest of the
			// frame still counts.
			log.Printf("[%s] dropping face: %v", timings.RequestID, err)
			continue
		}
		results = append(results, FaceResult{
			Name:       m.Name,
			Confidence: m.Confidence,
			IsLive:     isLive,
			BBox: BBox{
				X1: obs.BBox[0],
				Y1: obs.BBox[1],
				X2: obs.BBox[2],
				Y2: obs.BBox[3],
			},
		})
		if p.Feed != nil && m.Name != match.UnknownLabel {
			p.Feed.Record(m.Name, m.Confidence, isLive)
		}
	}
	timings.Match = time.Since(matchStart)
	timings.Total = time.Since(startTotal)

	return results, nil
}

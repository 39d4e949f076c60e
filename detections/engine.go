// Package detections hosts the ONNX-backed vision collaborators: the face
// detector/embedder and the facial-landmark extractor. Each Engine owns its
// own onnxruntime sessions (sessions reuse their I/O tensors and must not be
// shared), so the server keeps one Engine per worker slot.
package detections

import (
	"context"
	"fmt"
	"image"
	"runtime"
	"time"

	"github.com/disintegration/imaging"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/Siri-Mahalaxmi/Aarani/models"
)

const (
	retryAttempts = 3
	retryDelay    = 100 * time.Millisecond
)

type ProcessingError struct {
	Message string
	Cause   error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ProcessingError) Unwrap() error { return e.Cause }

// ModelSession bundles an onnxruntime session with its pre-allocated input
// and output tensors.
type ModelSession struct {
	Session *ort.AdvancedSession
	Input   *ort.Tensor[float32]
	Outputs []*ort.Tensor[float32]
}

func (m *ModelSession) Destroy() {
	if m == nil {
		return
	}
	if m.Session != nil {
		m.Session.Destroy()
	}
	if m.Input != nil {
		m.Input.Destroy()
	}
	for _, out := range m.Outputs {
		if out != nil {
			out.Destroy()
		}
	}
}

func initSession(modelPath string, inputName string, outputNames []string, inputShape ort.Shape, outputShapes []ort.Shape) (*ModelSession, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}
	defer options.Destroy()

	options.SetIntraOpNumThreads(runtime.NumCPU())
	options.SetInterOpNumThreads(runtime.NumCPU())

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}

	outputs := make([]*ort.Tensor[float32], 0, len(outputShapes))
	arbitrary := make([]ort.ArbitraryTensor, 0, len(outputShapes))
	destroyAll := func() {
		inputTensor.Destroy()
		for _, out := range outputs {
			out.Destroy()
		}
	}
	for _, shape := range outputShapes {
		out, err := ort.NewEmptyTensor[float32](shape)
		if err != nil {
			destroyAll()
			return nil, fmt.Errorf("error creating output tensor: %w", err)
		}
		outputs = append(outputs, out)
		arbitrary = append(arbitrary, out)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{inputName},
		outputNames,
		[]ort.ArbitraryTensor{inputTensor},
		arbitrary,
		options,
	)
	if err != nil {
		destroyAll()
		return nil, fmt.Errorf("error creating session for %s: %w", modelPath, err)
	}

	return &ModelSession{Session: session, Input: inputTensor, Outputs: outputs}, nil
}

// ModelPaths points at the three ONNX artifacts an Engine needs.
type ModelPaths struct {
	Detect string
	Embed  string
	Mesh   string
}

// Engine implements the server's FaceDetector and LandmarkExtractor
// contracts on top of three ONNX models.
type Engine struct {
	detect *ModelSession
	embed  *ModelSession
	mesh   *ModelSession

	detectPre *Preprocessor
	embedPre  *Preprocessor
	meshPre   *Preprocessor
}

func NewEngine(paths ModelPaths) (*Engine, error) {
	detect, err := initSession(paths.Detect, "images", []string{"output0"},
		ort.NewShape(1, 3, DetectInputWidth, DetectInputHeight),
		[]ort.Shape{ort.NewShape(1, 5, DetectNumAnchors)})
	if err != nil {
		return nil, fmt.Errorf("init detect session: %w", err)
	}

	embed, err := initSession(paths.Embed, "input", []string{"embedding"},
		ort.NewShape(1, 3, EmbedInputSize, EmbedInputSize),
		[]ort.Shape{ort.NewShape(1, EmbedDim)})
	if err != nil {
		detect.Destroy()
		return nil, fmt.Errorf("init embed session: %w", err)
	}

	mesh, err := initSession(paths.Mesh, "input", []string{"landmarks", "score"},
		ort.NewShape(1, 3, MeshInputSize, MeshInputSize),
		[]ort.Shape{ort.NewShape(1, MeshNumPoints*3), ort.NewShape(1, 1)})
	if err != nil {
		detect.Destroy()
		embed.Destroy()
		return nil, fmt.Errorf("init mesh session: %w", err)
	}

	return &Engine{
		detect:    detect,
		embed:     embed,
		mesh:      mesh,
		detectPre: NewPreprocessor(DetectInputWidth, DetectInputHeight),
		embedPre:  NewPreprocessor(EmbedInputSize, EmbedInputSize),
		meshPre:   NewPreprocessor(MeshInputSize, MeshInputSize),
	}, nil
}

func (e *Engine) Destroy() {
	e.detect.Destroy()
	e.embed.Destroy()
	e.mesh.Destroy()
}

// Detect finds faces in img and attaches an identity embedding to each.
func (e *Engine) Detect(ctx context.Context, img image.Image) ([]models.FaceObservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resized := imaging.Resize(img, DetectInputWidth, DetectInputHeight, imaging.Linear)
	e.detectPre.Process(resized, e.detect.Input.GetData())

	if err := e.runWithRetry(ctx, e.detect); err != nil {
		return nil, &ProcessingError{Message: "face detection inference", Cause: err}
	}

	raw := decodePredictions(e.detect.Outputs[0].GetData(), img.Bounds().Dx(), img.Bounds().Dy())
	boxes := clusterBoxes(raw)

	observations := make([]models.FaceObservation, 0, len(boxes))
	for _, box := range boxes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		embedding, err := e.embedFace(ctx, img, box)
		if err != nil {
			return nil, &ProcessingError{Message: "embedding extraction", Cause: err}
		}
		observations = append(observations, models.FaceObservation{
			BBox:      box,
			Embedding: embedding,
		})
	}
	return observations, nil
}

func (e *Engine) embedFace(ctx context.Context, img image.Image, box [4]int32) ([]float32, error) {
	crop := imaging.Crop(img, image.Rect(int(box[0]), int(box[1]), int(box[2]), int(box[3])))
	aligned := imaging.Resize(crop, EmbedInputSize, EmbedInputSize, imaging.Linear)
	e.embedPre.Process(aligned, e.embed.Input.GetData())

	if err := e.runWithRetry(ctx, e.embed); err != nil {
		return nil, err
	}

	embedding := make([]float32, EmbedDim)
	copy(embedding, e.embed.Outputs[0].GetData())
	return embedding, nil
}

// Extract runs the face mesh on the full frame and returns the six canonical
// eye contour points per eye, normalized to [0, 1]. Returns (nil, nil) when
// the mesh finds no face.
func (e *Engine) Extract(ctx context.Context, img image.Image) (*models.FaceLandmarks, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resized := imaging.Resize(img, MeshInputSize, MeshInputSize, imaging.Linear)
	e.meshPre.Process(resized, e.mesh.Input.GetData())

	if err := e.runWithRetry(ctx, e.mesh); err != nil {
		return nil, &ProcessingError{Message: "landmark inference", Cause: err}
	}

	if score := e.mesh.Outputs[1].GetData()[0]; score < MeshScoreThresh {
		return nil, nil
	}

	points := e.mesh.Outputs[0].GetData()
	lm := &models.FaceLandmarks{
		LeftEye:  pickEye(points, LeftEyeMeshIndices),
		RightEye: pickEye(points, RightEyeMeshIndices),
	}
	return lm, nil
}

func pickEye(points []float32, indices [6]int) models.EyeLandmarks {
	var eye models.EyeLandmarks
	for i, idx := range indices {
		eye[i] = models.Point{
			X: float64(points[idx*3]) / MeshInputSize,
			Y: float64(points[idx*3+1]) / MeshInputSize,
		}
	}
	return eye
}

func (e *Engine) runWithRetry(ctx context.Context, m *ModelSession) error {
	var lastErr error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if lastErr = m.Session.Run(); lastErr == nil {
			return nil
		}
		if attempt < retryAttempts {
			time.Sleep(time.Duration(attempt) * retryDelay)
		}
	}
	return lastErr
}

// decodePredictions scans the detector head output ([x y w h conf] x anchors,
// coordinates normalized to the model input) and scales accepted boxes back
// to the original image size.
func decodePredictions(predictions []float32, originalWidth, originalHeight int) []models.Detection {
	detections := make([]models.Detection, 0, 32)
	for i := 0; i < DetectNumAnchors; i++ {
		confidence := predictions[4*DetectNumAnchors+i]
		if confidence < ConfThreshold {
			continue
		}
		bbox := calculateBBox(
			predictions[i],
			predictions[DetectNumAnchors+i],
			predictions[2*DetectNumAnchors+i],
			predictions[3*DetectNumAnchors+i],
			float32(originalWidth),
			float32(originalHeight),
		)
		detections = append(detections, models.Detection{BBox: bbox, Confidence: confidence})
	}
	return detections
}

func calculateBBox(cx, cy, w, h, origWidth, origHeight float32) [4]int32 {
	scaleX := origWidth / DetectInputWidth
	scaleY := origHeight / DetectInputHeight

	centerX := cx * DetectInputWidth
	centerY := cy * DetectInputHeight
	width := w * DetectInputWidth
	height := h * DetectInputHeight

	x1 := (centerX - width/2) * scaleX
	y1 := (centerY - height/2) * scaleY
	x2 := (centerX + width/2) * scaleX
	y2 := (centerY + height/2) * scaleY

	return [4]int32{
		int32(maxF32(0, x1)),
		int32(maxF32(0, y1)),
		int32(minF32(origWidth, x2)),
		int32(minF32(origHeight, y2)),
	}
}

func minF32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxF32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

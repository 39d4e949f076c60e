package detections

const (
	// Face detection model (YOLO-style single-class head).
	DetectInputWidth  = 640
	DetectInputHeight = 640
	DetectNumAnchors  = 8400
	ConfThreshold     = 0.5

	// Embedding model (ArcFace-style, aligned 112x112 crop in, 512-D out).
	EmbedInputSize = 112
	EmbedDim       = 512

	// Landmark model (face-mesh style, 192x192 in, 468 3-D points out).
	MeshInputSize   = 192
	MeshNumPoints   = 468
	MeshScoreThresh = 0.5
)

// Canonical eye contour indices in the 468-point mesh, ordered
// [outer, upper1, upper2, inner, lower2, lower1] to line up with the
// eye-aspect-ratio point pairs.
var (
	LeftEyeMeshIndices  = [6]int{362, 385, 387, 263, 373, 380}
	RightEyeMeshIndices = [6]int{33, 160, 158, 133, 153, 144}
)

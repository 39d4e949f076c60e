package server

// Wire messages for the frame session protocol. One FrameRequest per frame
// in; one FrameResponse or ErrorResponse out, in frame order.

type FrameRequest struct {
	Image string `json:"image"`
}

type BBox struct {
	X1 int32 `json:"x1"`
	Y1 int32 `json:"y1"`
	X2 int32 `json:"x2"`
	Y2 int32 `json:"y2"`
}

type FaceResult struct {
	Name       string  `json:"name"`
	Confidence float32 `json:"confidence"`
	IsLive     bool    `json:"is_live"`
	BBox       BBox    `json:"bbox"`
}

type FrameResponse struct {
	Faces []FaceResult `json:"faces"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Package server hosts the real-time session pipeline: the WebSocket frame
// protocol, per-session liveness state, the bounded processor pool and the
// small HTTP monitoring surface.
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/Siri-Mahalaxmi/Aarani/facebank"
	"github.com/Siri-Mahalaxmi/Aarani/models"
)

var debugMode = os.Getenv("DEBUG") == "true"

// Config carries the session-level tunables. Zero values fall back to the
// compiled-in defaults.
type Config struct {
	EARThreshold float64
	BlinkTarget  int
}

type Server struct {
	registry *Registry
	pool     *WorkerPool
	feed     *DetectionFeed
	bank     *facebank.Bank
}

func New(cfg Config, bank *facebank.Bank, pool *WorkerPool, feed *DetectionFeed) *Server {
	return &Server{
		registry: NewRegistry(cfg.EARThreshold, cfg.BlinkTarget),
		pool:     pool,
		feed:     feed,
		bank:     bank,
	}
}

func (s *Server) Registry() *Registry { return s.registry }

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleSession)
	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	r.HandleFunc("/metrics", s.handleMetrics).Methods("GET")
	r.HandleFunc("/api/logs", s.handleLogs).Methods("GET")
	return r
}

// handleSession drives one connection: register session state, then loop
// receive -> acquire slot -> process -> release -> respond, strictly in
// frame order. Malformed frames produce error responses without closing;
// read failure means the client went away and tears the session down.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusInternalError, "session aborted")

	sess := s.registry.Register()
	defer s.registry.Remove(sess.ID)
	log.Printf("session %s connected", sess.ID)

	ctx := r.Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			log.Printf("session %s disconnected", sess.ID)
			conn.Close(websocket.StatusNormalClosure, "")
			return
		}

		var req FrameRequest
		if err := json.Unmarshal(data, &req); err != nil {
			if !s.respond(ctx, conn, ErrorResponse{Error: "invalid message format"}) {
				return
			}
			continue
		}
		if req.Image == "" {
			if !s.respond(ctx, conn, ErrorResponse{Error: "missing image field"}) {
				return
			}
			continue
		}

		frame, err := decodeFramePayload(req.Image)
		if err != nil {
			if !s.respond(ctx, conn, ErrorResponse{Error: "invalid base64 image payload"}) {
				return
			}
			continue
		}

		proc, err := s.pool.Acquire(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !s.respond(ctx, conn, ErrorResponse{Error: "processing capacity unavailable"}) {
				return
			}
			continue
		}

		timings := &models.ProcessingTimings{RequestID: uuid.NewString()}
		results, err := proc.ProcessFrame(ctx, frame, sess.Tracker, timings)
		s.pool.Release(proc)
		logTimings(sess.ID, timings)

		if err != nil {
			if !s.respond(ctx, conn, ErrorResponse{Error: err.Error()}) {
				return
			}
			continue
		}
		if !s.respond(ctx, conn, FrameResponse{Faces: results}) {
			return
		}
	}
}

// respond writes one message back on the connection. A write failure means
// the connection is gone; the in-flight result is silently dropped and the
// caller ends the session loop.
func (s *Server) respond(ctx context.Context, conn *websocket.Conn, v interface{}) bool {
	if err := wsjson.Write(ctx, conn, v); err != nil {
		return false
	}
	return true
}

// decodeFramePayload strips an optional data-URL prefix and decodes the
// base64 frame bytes.
func decodeFramePayload(payload string) ([]byte, error) {
	if strings.HasPrefix(payload, "data:") {
		if idx := strings.IndexByte(payload, ','); idx >= 0 {
			payload = payload[idx+1:]
		}
	}
	return base64.StdEncoding.DecodeString(payload)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	response := map[string]interface{}{
		"status":         "healthy",
		"enrolled_faces": s.bank.Len(),
		"pool_size":      s.pool.Size(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	metrics := s.pool.Metrics()
	response := map[string]interface{}{
		"pool_size":        s.pool.Size(),
		"active_sessions":  s.registry.Len(),
		"workers_in_use":   metrics.InUse,
		"total_acquired":   metrics.TotalAcquired,
		"total_released":   metrics.TotalReleased,
		"acquire_failures": metrics.AcquireFailures,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleLogs(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.feed.Snapshot())
}

func logTimings(sessionID string, t *models.ProcessingTimings) {
	if debugMode {
		log.Printf("[DEBUG] Session: %s RequestID: %s - Processing times:\n"+
			"\tImage Decode: %v\n"+
			"\tLandmarks:   %v\n"+
			"\tDetect:      %v\n"+
			"\tMatch:       %v\n"+
			"\tTotal:       %v",
			sessionID,
			t.RequestID,
			t.ImageDecode,
			t.Landmarks,
			t.Detect,
			t.Match,
			t.Total)
	}
}

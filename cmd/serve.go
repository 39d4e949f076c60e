package cmd

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/Siri-Mahalaxmi/Aarani/detections"
	"github.com/Siri-Mahalaxmi/Aarani/facebank"
	"github.com/Siri-Mahalaxmi/Aarani/liveness"
	"github.com/Siri-Mahalaxmi/Aarani/match"
	"github.com/Siri-Mahalaxmi/Aarani/server"
)

type serveOptions struct {
	Addr                string
	IndexPath           string
	LabelsPath          string
	DetectModelPath     string
	EmbedModelPath      string
	MeshModelPath       string
	OrtLibPath          string
	EARThreshold        float64
	BlinkTarget         int
	ConfidenceThreshold float64
	PoolSize            int
}

var serveOpts serveOptions

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the frame session server",
	Run: func(cmd *cobra.Command, args []string) {
		runServe(cmd.Context(), serveOpts)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveOpts.Addr, "addr", "a", "127.0.0.1:8000", "Listen address")
	serveCmd.Flags().StringVar(&serveOpts.IndexPath, "index", "face_bank.index", "Path to the enrolled-embedding vector index")
	serveCmd.Flags().StringVar(&serveOpts.LabelsPath, "name-map", "name_map.json", "Path to the slot-to-name label map")
	serveCmd.Flags().StringVar(&serveOpts.DetectModelPath, "detect-model", "models/face_detect.onnx", "Face detection ONNX model")
	serveCmd.Flags().StringVar(&serveOpts.EmbedModelPath, "embed-model", "models/face_embed.onnx", "Face embedding ONNX model")
	serveCmd.Flags().StringVar(&serveOpts.MeshModelPath, "mesh-model", "models/face_mesh.onnx", "Facial landmark ONNX model")
	serveCmd.Flags().StringVar(&serveOpts.OrtLibPath, "ort-lib", "", "Path to the onnxruntime shared library (default: system loader)")
	serveCmd.Flags().Float64Var(&serveOpts.EARThreshold, "ear-threshold", liveness.DefaultEARThreshold, "Eye-aspect-ratio below which an eye counts as closed")
	serveCmd.Flags().IntVar(&serveOpts.BlinkTarget, "blink-count", liveness.DefaultBlinkTarget, "Closed-eye frames required before a session counts as live")
	serveCmd.Flags().Float64VarP(&serveOpts.ConfidenceThreshold, "threshold", "t", match.DefaultConfidenceThreshold, "Minimum confidence for accepting an identity match")
	serveCmd.Flags().IntVarP(&serveOpts.PoolSize, "workers", "w", server.DefaultPoolSize, "Number of frame processor workers")

	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context, opts serveOptions) {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if opts.OrtLibPath != "" {
		ort.SetSharedLibraryPath(opts.OrtLibPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		log.Fatalf("Failed to initialize ONNX environment: %v", err)
	}
	defer ort.DestroyEnvironment()

	// Both identity artifacts load once and stay read-only; any
	// inconsistency between them refuses startup.
	bank, err := facebank.Load(opts.IndexPath, opts.LabelsPath)
	if err != nil {
		log.Fatalf("Failed to load face bank: %v", err)
	}
	log.Printf("Loaded face bank: %d enrolled embeddings", bank.Len())

	matcher := match.NewMatcher(bank, float32(opts.ConfidenceThreshold))
	feed := server.NewDetectionFeed()

	modelPaths := detections.ModelPaths{
		Detect: opts.DetectModelPath,
		Embed:  opts.EmbedModelPath,
		Mesh:   opts.MeshModelPath,
	}
	pool, err := server.NewWorkerPool(opts.PoolSize, func() (*server.Processor, error) {
		engine, err := detections.NewEngine(modelPaths)
		if err != nil {
			return nil, err
		}
		return server.NewProcessor(engine, engine, matcher, feed, engine.Destroy), nil
	})
	if err != nil {
		log.Fatalf("Failed to create worker pool: %v", err)
	}
	defer pool.Destroy()

	cfg := server.Config{
		EARThreshold: opts.EARThreshold,
		BlinkTarget:  opts.BlinkTarget,
	}
	srv := server.New(cfg, bank, pool, feed)

	httpSrv := &http.Server{
		Handler:      srv.Router(),
		Addr:         opts.Addr,
		WriteTimeout: 60 * time.Second,
		ReadTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s", httpSrv.Addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		log.Fatalf("Server error: %v", err)
	case <-ctx.Done():
		log.Printf("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown: %v", err)
		}
	}
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/overlay-eye/internal/config"
	"github.com/ironsheep/overlay-eye/internal/detector"
	"github.com/ironsheep/overlay-eye/internal/diag"
	"github.com/ironsheep/overlay-eye/internal/eval"
	"github.com/ironsheep/overlay-eye/internal/geometry"
	"github.com/ironsheep/overlay-eye/internal/httpapi"
	"github.com/ironsheep/overlay-eye/internal/imaging"
	"github.com/ironsheep/overlay-eye/internal/llm"
	"github.com/ironsheep/overlay-eye/internal/logger"
	"github.com/ironsheep/overlay-eye/internal/ocr/tesseract"
	"github.com/ironsheep/overlay-eye/internal/pipeline"
	"github.com/ironsheep/overlay-eye/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const usage = `overlay-eye - locate UI elements on screenshots

Usage:
  overlay-eye [mcp]                      MCP server over stdin/stdout (default)
  overlay-eye locate [flags] <image> [task]
  overlay-eye eval [flags]
  overlay-eye http [-addr host:port]

Options:
  --version, -v    Print version information
  --help, -h       Print this help message

Environment variables (also read from .env):
  LLAMA_API_URL, LLAMA_MODEL, LLM_TIMEOUT      Vision model endpoint
  USE_OWLVIT, USE_OWLVIT_ONNX, OWLVIT_*        Object detector backends
  HF_TOKEN                                     Inference service token
  OCR_LANGUAGE, OCR_UPSCALE                    Tesseract settings
  MIN_SIDE_PX, MAX_BOX_FRAC, MAX_BOX_AREA_FRAC Box validation
  LOG_PATH, SKIP_RESET_LOG                     Diagnostic JSONL log
  OVERLAY_EYE_LOG_LEVEL=debug                  Enable debug logging
`

func main() {
	cmd := "mcp"
	var args []string
	if len(os.Args) > 1 {
		cmd, args = os.Args[1], os.Args[2:]
	}

	switch cmd {
	case "--version", "-v", "version":
		fmt.Printf("overlay-eye %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		return
	case "--help", "-h", "help":
		fmt.Print(usage)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}
	log := logger.New(cfg.LogLevel)
	log.WithFields(logrus.Fields{
		"version": Version,
		"commit":  GitCommit,
		"command": cmd,
	}).Debug("overlay-eye starting")

	rec, err := diag.Open(cfg.LogPath, cfg.LogSessionID, cfg.LogRunID, !cfg.SkipResetLog)
	if err != nil {
		log.WithError(err).Warn("diagnostic log disabled")
		rec = diag.Discard()
	}
	defer rec.Close()

	app := newApp(cfg, log, rec)
	defer app.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "mcp", "serve":
		err = app.serveMCP(ctx)
	case "locate":
		err = app.locate(ctx, args)
	case "eval":
		err = app.evaluate(ctx, args)
	case "http":
		err = app.serveHTTP(ctx, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.WithError(err).Error(cmd + " failed")
		stop()
		rec.Close()
		os.Exit(1)
	}
}

// app holds the wired components shared by every command.
type app struct {
	cfg      *config.Config
	log      *logrus.Logger
	diag     *diag.Recorder
	cache    *imaging.ImageCache
	detector *detector.Adapter
	pipeline *pipeline.Orchestrator
}

func newApp(cfg *config.Config, log *logrus.Logger, rec *diag.Recorder) *app {
	det := detector.NewAdapter(detector.Options{
		Enabled:     cfg.DetectorEnabled,
		PreferONNX:  cfg.DetectorPreferONNX,
		Model:       cfg.DetectorModel,
		ONNXPath:    cfg.DetectorONNXPath,
		NamesPath:   cfg.DetectorNamesPath,
		PipelineURL: cfg.DetectorPipelineURL,
		Token:       cfg.HFToken,
		MinScore:    cfg.DetectorMinScore,
		Timeout:     cfg.DetectorTimeout,
	}, detector.NewHandleCache(), log)

	vision := llm.NewClient(llm.Options{
		URL:       cfg.LLMURL,
		Model:     cfg.LLMModel,
		MaxTokens: cfg.LLMMaxTokens,
		Timeout:   cfg.LLMTimeout,
		Logger:    log,
		Diag:      rec,
	})

	orch := pipeline.New(pipeline.Options{
		Detector:    det,
		LLM:         vision,
		OCR:         tesseract.New(cfg.OCRLanguage, cfg.OCRUpscale, log),
		Policy:      cfg.Policy(),
		OCRMaxChars: cfg.OCRMaxChars,
		Sink:        pipeline.MultiSink{pipeline.LogSink(log), pipeline.DiagSink(rec)},
	})

	return &app{
		cfg:      cfg,
		log:      log,
		diag:     rec,
		cache:    imaging.NewImageCache(),
		detector: det,
		pipeline: orch,
	}
}

func (a *app) close() {
	if err := a.detector.Cache().Reset(); err != nil {
		a.log.WithError(err).Warn("failed to release detector backends")
	}
}

func (a *app) newSession(display geometry.Display) *pipeline.Session {
	return pipeline.NewSession(a.pipeline, pipeline.SessionOptions{
		AutoHide: a.cfg.OverlayTimeout,
		Display:  display,
		Buffer:   8,
		Diag:     a.diag,
		Logger:   a.log,
	})
}

func (a *app) serveMCP(ctx context.Context) error {
	session := a.newSession(geometry.Display{})
	defer session.Close()
	go func() {
		// Nothing renders MCP results; keep the stream drained.
		for range session.Results() {
		}
	}()

	srv := server.New(server.Options{
		Runner:  a.pipeline,
		Session: session,
		Cache:   a.cache,
		Diag:    a.diag,
		Logger:  a.log,
	})
	return srv.Run(ctx)
}

func (a *app) locate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("locate", flag.ContinueOnError)
	width := fs.Int("width", 0, "logical display width")
	height := fs.Int("height", 0, "logical display height")
	ratio := fs.Float64("ratio", 1.0, "device pixel ratio")
	annotate := fs.String("annotate", "", "write an annotated copy of the screenshot to this PNG path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New("locate: image path required")
	}
	task := ""
	if fs.NArg() > 1 {
		task = fs.Arg(1)
	}

	img, err := a.cache.Load(fs.Arg(0))
	if err != nil {
		return err
	}
	out := a.pipeline.Run(ctx, img, task)

	result := map[string]interface{}{"outcome": out}
	if out.Found && *width > 0 && *height > 0 {
		box, decision := geometry.ScaleToDisplay(out.Detection.Box, out.ImageSize, geometry.Display{LogicalW: *width, LogicalH: *height, PixelRatio: *ratio})
		result["display_box"] = box
		result["scale"] = decision
	}
	if *annotate != "" && out.Found {
		outline := imaging.Outline{Box: out.Detection.Box, Color: imaging.PredictionColor, Label: out.Detection.Label}
		if err := imaging.SavePNG(*annotate, imaging.Annotate(img, []imaging.Outline{outline}, 3)); err != nil {
			return err
		}
	}
	return printJSON(result)
}

func (a *app) evaluate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("eval", flag.ContinueOnError)
	dataset := fs.String("dataset", "regression_dataset", "folder with images and labels.json")
	out := fs.String("out", "artifacts/regression_results.json", "where to save results")
	artifacts := fs.String("artifacts", "", "folder for annotated screenshots (disabled when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ds, err := eval.LoadDataset(*dataset)
	if err != nil {
		return err
	}
	h := eval.New(eval.Options{
		Runner:       a.pipeline,
		Cache:        a.cache,
		ArtifactsDir: *artifacts,
		Diag:         a.diag,
		Logger:       a.log,
	})
	summary, err := h.Run(ctx, ds)
	if err != nil {
		return err
	}
	if err := eval.WriteSummary(*out, summary); err != nil {
		return err
	}
	return printJSON(summary)
}

func (a *app) serveHTTP(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("http", flag.ContinueOnError)
	addr := fs.String("addr", a.cfg.HTTPAddr, "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	session := a.newSession(geometry.Display{})
	defer session.Close()
	hub := httpapi.NewHub(a.log)
	go hub.Run(ctx)
	go hub.Pump(session.Results())

	httpapi.Version = Version
	srv := &http.Server{
		Addr: *addr,
		Handler: httpapi.NewRouter(httpapi.Options{
			Session: session,
			Hub:     hub,
			Logger:  a.log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.WithField("addr", *addr).Info("http api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

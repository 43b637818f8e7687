package httpapi

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/overlay-eye/internal/geometry"
	"github.com/ironsheep/overlay-eye/internal/imaging"
	"github.com/ironsheep/overlay-eye/internal/logger"
	"github.com/ironsheep/overlay-eye/internal/pipeline"
)

// Defaults for Options.
const (
	DefaultMaxUploadBytes = 32 << 20
	DefaultRequestTimeout = 3 * time.Minute
)

// Version is reported by /health.
var Version = "dev"

// Options wires the router.
type Options struct {
	Session        *pipeline.Session
	Hub            *Hub
	MaxUploadBytes int64
	RequestTimeout time.Duration
	Logger         *logrus.Logger
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// LocateResponse is the body of a successful POST /v1/locate.
type LocateResponse struct {
	pipeline.Outcome
	DisplayBox *geometry.Box           `json:"display_box,omitempty"`
	Scale      *geometry.ScaleDecision `json:"scale,omitempty"`
}

var upgrader = websocket.Upgrader{
	// The overlay renderer is a local process, not a browser page.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// NewRouter builds the gin engine.
func NewRouter(opts Options) http.Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}

	r := gin.New()
	r.Use(
		gin.Recovery(),
		requestLogger(opts.Logger),
		requestSizeLimiter(opts.MaxUploadBytes),
	)

	r.GET("/health", healthCheck(opts))
	v1 := r.Group("/v1")
	v1.POST("/locate", locate(opts))
	v1.GET("/overlay/ws", overlayFeed(opts))

	return r
}

func healthCheck(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{
			"status":  "available",
			"version": Version,
			"time":    time.Now().UTC().Format(time.RFC3339),
		}
		if opts.Session != nil {
			body["busy"] = opts.Session.Busy()
			body["shown"] = opts.Session.Shown()
		}
		if opts.Hub != nil {
			body["overlay_clients"] = opts.Hub.ClientCount()
		}
		c.JSON(http.StatusOK, body)
	}
}

func locate(opts Options) gin.HandlerFunc {
	log := opts.Logger
	return func(c *gin.Context) {
		if opts.Session == nil {
			respondError(c, log, http.StatusServiceUnavailable, "no localization pipeline configured", nil)
			return
		}

		img, err := readUpload(c)
		if err != nil {
			respondError(c, log, http.StatusBadRequest, "invalid image upload", err)
			return
		}
		display, err := parseDisplay(c)
		if err != nil {
			respondError(c, log, http.StatusBadRequest, "invalid display", err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), opts.RequestTimeout)
		defer cancel()

		start := time.Now()
		out, ok := opts.Session.Run(ctx, img, c.PostForm("task"))
		if !ok {
			respondError(c, log, http.StatusConflict, "busy", errors.New("a localization run is already in flight"))
			return
		}

		log.WithFields(logrus.Fields{
			"run_id":             out.RunID,
			"found":              out.Found,
			"stage":              out.Stage,
			"processing_time_ms": time.Since(start).Milliseconds(),
		}).Info("locate completed")

		resp := LocateResponse{Outcome: out}
		if out.Found && display != nil {
			box, decision := geometry.ScaleToDisplay(out.Detection.Box, out.ImageSize, *display)
			resp.DisplayBox = &box
			resp.Scale = &decision
		}
		c.JSON(http.StatusOK, resp)
	}
}

func readUpload(c *gin.Context) (image.Image, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		return nil, err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return imaging.Decode(data)
}

// parseDisplay returns nil when no display was described.
func parseDisplay(c *gin.Context) (*geometry.Display, error) {
	w, h := c.PostForm("logical_width"), c.PostForm("logical_height")
	if w == "" && h == "" {
		return nil, nil
	}

	var d geometry.Display
	var err error
	if d.LogicalW, err = strconv.Atoi(w); err != nil || d.LogicalW <= 0 {
		return nil, fmt.Errorf("logical_width must be a positive integer, got %q", w)
	}
	if d.LogicalH, err = strconv.Atoi(h); err != nil || d.LogicalH <= 0 {
		return nil, fmt.Errorf("logical_height must be a positive integer, got %q", h)
	}
	d.PixelRatio = 1.0
	if r := c.PostForm("pixel_ratio"); r != "" {
		if d.PixelRatio, err = strconv.ParseFloat(r, 64); err != nil || d.PixelRatio <= 0 {
			return nil, fmt.Errorf("pixel_ratio must be a positive number, got %q", r)
		}
	}
	return &d, nil
}

func overlayFeed(opts Options) gin.HandlerFunc {
	log := opts.Logger
	return func(c *gin.Context) {
		if opts.Hub == nil {
			respondError(c, log, http.StatusServiceUnavailable, "no overlay feed configured", nil)
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.WithError(err).Warn("websocket upgrade failed")
			return
		}

		opts.Hub.Register(conn)
		defer opts.Hub.Unregister(conn)

		// Clients only listen; reading detects the close.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.WithError(err).Debug("overlay client read failed")
				}
				return
			}
		}
	}
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func requestLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          c.ClientIP(),
		}).Debug("http request")
	}
}

func respondError(c *gin.Context, log *logrus.Logger, code int, message string, err error) {
	entry := log.WithFields(logrus.Fields{
		"status_code": code,
		"path":        c.Request.URL.Path,
	})
	body := ErrorResponse{Error: http.StatusText(code), Message: message}
	if err != nil {
		entry = entry.WithError(err)
		body.Message = fmt.Sprintf("%s: %v", message, err)
	}
	entry.Warn("request failed")
	c.AbortWithStatusJSON(code, body)
}

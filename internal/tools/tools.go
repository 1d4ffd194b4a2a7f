// Package tools exposes the PDF tools as multipart HTTP endpoints.
package tools

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/local/pdftools/internal/filetype"
	"github.com/local/pdftools/internal/limiter"
	"github.com/local/pdftools/internal/metrics"
	"github.com/local/pdftools/internal/storage"
)

const (
	// multipart parts above this size spill to temp files
	formMemory = 32 << 20

	defaultMaxUpload = 100 << 20
)

// Options configures the tool endpoints.
type Options struct {
	Limiter        *limiter.Limiter
	Store          storage.Store // nil disables deliver=link
	MaxUploadBytes int64
	MaxRenderPages int
	DefaultDPI     int
	ResultTTL      time.Duration
	// TrustProxy takes the client address from X-Forwarded-For. Only set it
	// behind a proxy that overwrites the header.
	TrustProxy bool
}

// Service serves the tool API.
type Service struct {
	opts   Options
	detect *filetype.Detector
}

func New(opts Options) *Service {
	if opts.Limiter == nil {
		// without Redis the limiter cannot fail to build
		opts.Limiter, _ = limiter.New(limiter.Options{MaxInflight: 4})
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUpload
	}
	if opts.MaxRenderPages <= 0 {
		opts.MaxRenderPages = 200
	}
	if opts.ResultTTL <= 0 {
		opts.ResultTTL = time.Hour
	}
	return &Service{opts: opts, detect: filetype.New()}
}

func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/info", s.tool("info", s.handleInfo))
	mux.HandleFunc("POST /api/merge", s.tool("merge", s.handleMerge))
	mux.HandleFunc("POST /api/split", s.tool("split", s.handleSplit))
	mux.HandleFunc("POST /api/extract", s.tool("extract", s.handleExtract))
	mux.HandleFunc("POST /api/rotate", s.tool("rotate", s.handleRotate))
	mux.HandleFunc("POST /api/remove-pages", s.tool("remove-pages", s.handleRemovePages))
	mux.HandleFunc("POST /api/compress", s.tool("compress", s.handleCompress))
	mux.HandleFunc("POST /api/page-numbers", s.tool("page-numbers", s.handlePageNumbers))
	mux.HandleFunc("POST /api/watermark", s.tool("watermark", s.handleWatermark))
	mux.HandleFunc("POST /api/annotate", s.tool("annotate", s.handleAnnotate))
	mux.HandleFunc("POST /api/edit-text", s.tool("edit-text", s.handleEditText))
	mux.HandleFunc("POST /api/text-items", s.tool("text-items", s.handleTextItems))
	mux.HandleFunc("POST /api/extract-text", s.tool("extract-text", s.handleExtractText))
	mux.HandleFunc("POST /api/pdf-to-images", s.tool("pdf-to-images", s.handlePDFToImages))
	mux.HandleFunc("POST /api/images-to-pdf", s.tool("images-to-pdf", s.handleImagesToPDF))
	mux.HandleFunc("GET /api/results/{id}", s.handleResult)
}

// call is the state of one tool request.
type call struct {
	tool    string
	id      string
	r       *http.Request
	start   time.Time
	bytesIn int
	log     zerolog.Logger
}

// output is what a tool produces: a file or, with json set, a JSON document.
type output struct {
	name        string
	contentType string
	data        []byte
	json        any
}

// clientIP is the key for per-client rate limits.
func (s *Service) clientIP(r *http.Request) string {
	if s.opts.TrustProxy {
		fwd, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
		if fwd = strings.TrimSpace(fwd); fwd != "" {
			return fwd
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Service) tool(name string, fn func(*call) (*output, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := &call{tool: name, id: uuid.NewString(), r: r, start: time.Now()}
		c.log = log.With().Str("tool", name).Str("request_id", c.id).Logger()
		w.Header().Set("X-Request-ID", c.id)

		if ok, err := s.opts.Limiter.AllowClient(r.Context(), s.clientIP(r)); err != nil {
			c.log.Warn().Err(err).Msg("rate limit check failed; allowing request")
		} else if !ok {
			metrics.IncRejected("rate")
			s.fail(w, c, errRateLimited)
			return
		}
		release, ok := s.opts.Limiter.Allow(name)
		if !ok {
			metrics.IncRejected("busy")
			s.fail(w, c, errBusy)
			return
		}
		defer release()
		metrics.IncInflight(name)
		defer metrics.DecInflight(name)

		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
		if err := r.ParseMultipartForm(formMemory); err != nil {
			s.fail(w, c, formError(err))
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		out, err := fn(c)
		if err != nil {
			s.fail(w, c, err)
			return
		}
		n, err := s.respond(w, c, out)
		if err != nil {
			s.fail(w, c, err)
			return
		}
		dur := time.Since(c.start)
		metrics.ObserveTool(name, "ok", dur)
		metrics.AddBytes(name, c.bytesIn, n)
		c.log.Info().Int("bytes_in", c.bytesIn).Int("bytes_out", n).Dur("dur", dur).Msg("tool completed")
	}
}

func formError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
		if tooLarge == nil {
			tooLarge = &http.MaxBytesError{}
		}
		return tooLarge
	}
	return badRequest("invalid multipart form: %v", err)
}

func (s *Service) fail(w http.ResponseWriter, c *call, err error) {
	status := statusFor(err)
	dur := time.Since(c.start)
	metrics.ObserveTool(c.tool, resultLabel(status), dur)
	ev := c.log.Warn()
	if status >= 500 {
		ev = c.log.Error()
	}
	ev.Err(err).Int("status", status).Dur("dur", dur).Msg("tool failed")
	writeError(w, status, err)
}

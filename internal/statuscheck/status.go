// Package statuscheck reports the readiness of the services the PDF tools
// depend on.
package statuscheck

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"time"

	"github.com/local/pdftools/internal/pdfops"
	"github.com/local/pdftools/internal/render"
)

// Pinger is anything that can report whether its backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ResultStore is the part of the results store the checker needs.
type ResultStore interface {
	Pinger
	Backend() string
}

// Checker aggregates health checks for the status endpoint.
type Checker struct {
	redis   Pinger
	results ResultStore
	timeout time.Duration

	once     sync.Once
	sample   []byte
	buildErr error
}

// Options configures the Checker. Nil components are reported as disabled.
type Options struct {
	Redis   Pinger
	Results ResultStore
	Timeout time.Duration
}

// Status represents the readiness of a subsystem.
type Status struct {
	OK      bool   `json:"ok"`
	Enabled bool   `json:"enabled"`
	Message string `json:"message"`
}

// Summary bundles all subsystem statuses.
type Summary struct {
	OK      bool   `json:"ok"`
	Redis   Status `json:"redis"`
	Results Status `json:"results"`
	MuPDF   Status `json:"mupdf"`
	PDFCPU  Status `json:"pdfcpu"`
}

func New(opts Options) *Checker {
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	return &Checker{redis: opts.Redis, results: opts.Results, timeout: opts.Timeout}
}

// Summary returns the current status snapshot. OK is false when any enabled
// subsystem is down.
func (c *Checker) Summary(ctx context.Context) Summary {
	s := Summary{
		Redis:   c.checkRedis(ctx),
		Results: c.checkResults(ctx),
		MuPDF:   c.checkMuPDF(),
		PDFCPU:  c.checkPDFCPU(),
	}
	s.OK = true
	for _, st := range []Status{s.Redis, s.Results, s.MuPDF, s.PDFCPU} {
		if st.Enabled && !st.OK {
			s.OK = false
		}
	}
	return s
}

func (c *Checker) checkRedis(ctx context.Context) Status {
	if c.redis == nil {
		return Status{OK: true, Message: "Not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.redis.Ping(ctx); err != nil {
		return Status{Enabled: true, Message: trimError(err)}
	}
	return Status{OK: true, Enabled: true, Message: "Connected"}
}

func (c *Checker) checkResults(ctx context.Context) Status {
	if c.results == nil {
		return Status{OK: true, Message: "Result links disabled"}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.results.Ping(ctx); err != nil {
		return Status{Enabled: true, Message: fmt.Sprintf("%s: %s", c.results.Backend(), trimError(err))}
	}
	return Status{OK: true, Enabled: true, Message: c.results.Backend() + " available"}
}

// sampleDoc builds a one page document used by the engine probes.
func (c *Checker) sampleDoc() ([]byte, error) {
	c.once.Do(func() {
		img := image.NewGray(image.Rect(0, 0, 16, 16))
		img.Set(8, 8, color.Black)
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			c.buildErr = err
			return
		}
		c.sample, c.buildErr = pdfops.ImagesToPDF([][]byte{buf.Bytes()})
	})
	return c.sample, c.buildErr
}

func (c *Checker) checkPDFCPU() Status {
	doc, err := c.sampleDoc()
	if err != nil {
		return Status{Enabled: true, Message: trimError(err)}
	}
	if _, err := pdfops.Info(doc); err != nil {
		return Status{Enabled: true, Message: trimError(err)}
	}
	return Status{OK: true, Enabled: true, Message: "Available"}
}

func (c *Checker) checkMuPDF() Status {
	data, err := c.sampleDoc()
	if err != nil {
		return Status{Enabled: true, Message: trimError(err)}
	}
	doc, err := render.Open(data)
	if err != nil {
		return Status{Enabled: true, Message: trimError(err)}
	}
	defer doc.Close()
	if _, err := doc.PageImage(1, render.Options{DPI: 18}); err != nil {
		return Status{Enabled: true, Message: trimError(err)}
	}
	return Status{OK: true, Enabled: true, Message: "Available"}
}

func trimError(err error) string {
	if err == nil {
		return ""
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	msg := err.Error()
	if len(msg) > 120 {
		return msg[:120]
	}
	return msg
}

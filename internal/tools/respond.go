package tools

import (
	"archive/zip"
	"bytes"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/local/pdftools/internal/metrics"
	"github.com/local/pdftools/internal/storage"
)

const (
	pdfType  = "application/pdf"
	zipType  = "application/zip"
	textType = "text/plain; charset=utf-8"
)

// linkResponse is returned instead of the file when deliver=link.
type linkResponse struct {
	ResultID    string    `json:"result_id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	DownloadURL string    `json:"download_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (s *Service) respond(w http.ResponseWriter, c *call, out *output) (int, error) {
	if out.json != nil {
		return writeJSON(w, http.StatusOK, out.json)
	}
	switch c.r.FormValue("deliver") {
	case "", "download":
		return writeAttachment(w, out.name, out.contentType, out.data)
	case "link":
		return s.storeResult(w, c, out)
	default:
		return 0, badRequest("deliver must be download or link")
	}
}

func (s *Service) storeResult(w http.ResponseWriter, c *call, out *output) (int, error) {
	if s.opts.Store == nil {
		return 0, badRequest("result links are not enabled")
	}
	res := storage.NewResult(out.name, out.contentType, s.opts.ResultTTL)
	if err := s.opts.Store.Put(c.r.Context(), res, out.data); err != nil {
		return 0, fmt.Errorf("store result: %w", err)
	}
	metrics.IncStored(s.opts.Store.Backend())
	c.log.Info().Str("result_id", res.ID).Str("backend", s.opts.Store.Backend()).Msg("stored result")
	return writeJSON(w, http.StatusCreated, linkResponse{
		ResultID:    res.ID,
		Name:        res.Name,
		Size:        int64(len(out.data)),
		DownloadURL: "/api/results/" + res.ID,
		ExpiresAt:   res.Expires,
	})
}

func writeAttachment(w http.ResponseWriter, name, contentType string, data []byte) (int, error) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	return w.Write(data)
}

func (s *Service) handleResult(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if s.opts.Store == nil || !storage.ValidID(id) {
		writeError(w, http.StatusNotFound, storage.ErrNotFound)
		return
	}
	res, data, err := s.opts.Store.Get(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	_, _ = writeAttachment(w, res.Name, res.ContentType, data)
}

type zipEntry struct {
	name string
	data []byte
}

func zipArchive(entries []zipEntry) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		f, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: zip.Deflate, Modified: time.Now()})
		if err != nil {
			return nil, fmt.Errorf("zip %s: %w", e.name, err)
		}
		if _, err := f.Write(e.data); err != nil {
			return nil, fmt.Errorf("zip %s: %w", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return buf.Bytes(), nil
}

// baseName derives an output file stem from an upload name.
func baseName(upload string) string {
	name := strings.TrimSuffix(filepath.Base(upload), filepath.Ext(upload))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ' || r == '.':
			return '_'
		}
		return -1
	}, name)
	if name == "" || name == "_" {
		return "document"
	}
	return name
}

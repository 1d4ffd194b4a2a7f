// Package pdfops implements the PDF tools on top of pdfcpu. Every operation
// takes the input document as a byte buffer and returns the output buffer.
package pdfops

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog/log"

	"github.com/local/pdftools/internal/geom"
)

// PageInfo describes one page. Box is the crop box (media box when no crop
// box is set) in PDF user space; Width and Height are its unrotated size.
type PageInfo struct {
	Number   int       `json:"number"`
	Width    float64   `json:"width"`
	Height   float64   `json:"height"`
	Rotation int       `json:"rotation"`
	Box      geom.Rect `json:"box"`
}

// Viewport returns the rendering viewport of the page at the given scale.
func (p PageInfo) Viewport(scale float64) (geom.Viewport, error) {
	return geom.NewViewport(p.Box, p.Rotation, scale)
}

// DocumentInfo is the in-memory summary of a loaded document.
type DocumentInfo struct {
	PageCount int        `json:"page_count"`
	Version   string     `json:"version"`
	Encrypted bool       `json:"encrypted"`
	Pages     []PageInfo `json:"pages"`
}

// Page returns the info for 1-based page n.
func (d *DocumentInfo) Page(n int) (PageInfo, error) {
	if n < 1 || n > len(d.Pages) {
		return PageInfo{}, invalid("page", "page %d out of range (document has %d pages)", n, d.PageCount)
	}
	return d.Pages[n-1], nil
}

func newConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

func readContext(data []byte) (*model.Context, error) {
	if len(data) == 0 {
		return nil, invalid("file", "empty document")
	}
	ctx, err := api.ReadContext(bytes.NewReader(data), newConfig())
	if err != nil {
		return nil, docErr("read pdf", err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, docErr("validate pdf", err)
	}
	return ctx, nil
}

// PageCount returns the number of pages in data.
func PageCount(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, invalid("file", "empty document")
	}
	n, err := api.PageCount(bytes.NewReader(data), newConfig())
	if err != nil {
		return 0, docErr("page count", err)
	}
	return n, nil
}

// Info loads data and reports page count, page geometry and rotation.
func Info(data []byte) (*DocumentInfo, error) {
	ctx, err := readContext(data)
	if err != nil {
		return nil, err
	}

	info := &DocumentInfo{
		PageCount: ctx.PageCount,
		Version:   ctx.VersionString(),
		Encrypted: ctx.Encrypt != nil,
		Pages:     make([]PageInfo, 0, ctx.PageCount),
	}
	for i := 1; i <= ctx.PageCount; i++ {
		_, _, inh, err := ctx.PageDict(i, false)
		if err != nil {
			return nil, docErr(fmt.Sprintf("page %d", i), err)
		}
		if inh == nil || inh.MediaBox == nil {
			return nil, docErr(fmt.Sprintf("page %d", i), fmt.Errorf("missing media box"))
		}
		box := inh.MediaBox
		if inh.CropBox != nil {
			box = inh.CropBox
		}
		rect := geom.Rect{X0: box.LL.X, Y0: box.LL.Y, X1: box.UR.X, Y1: box.UR.Y}.Normalize()
		rot, err := geom.NormalizeRotation(inh.Rotate)
		if err != nil {
			log.Warn().Int("page", i).Int("rotate", inh.Rotate).Msg("ignoring invalid page rotation")
			rot = 0
		}
		info.Pages = append(info.Pages, PageInfo{
			Number:   i,
			Width:    rect.Width(),
			Height:   rect.Height(),
			Rotation: rot,
			Box:      rect,
		})
	}
	return info, nil
}

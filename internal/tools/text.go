package tools

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/local/pdftools/internal/geom"
	"github.com/local/pdftools/internal/pagerange"
	"github.com/local/pdftools/internal/pdfops"
	"github.com/local/pdftools/internal/render"
	"github.com/local/pdftools/internal/textlayout"
)

// blockOut is a text block with, when a scale was given, its box in
// viewport pixels for overlaying an editor on a rendered page.
type blockOut struct {
	textlayout.Block
	Viewport *geom.Rect `json:"viewport,omitempty"`
}

type textItemsResponse struct {
	PageCount    int               `json:"page_count"`
	HasTextLayer bool              `json:"has_text_layer"`
	Pages        []pdfops.PageInfo `json:"pages"`
	Blocks       []blockOut        `json:"blocks"`
}

func (s *Service) handleTextItems(c *call) (*output, error) {
	in, err := s.pdf(c)
	if err != nil {
		return nil, err
	}
	scale, err := c.float("scale", 0)
	if err != nil {
		return nil, err
	}
	if scale < 0 || scale > 20 {
		return nil, badRequest("scale must be within (0, 20]")
	}
	info, err := pdfops.Info(in.data)
	if err != nil {
		return nil, err
	}
	ranges, err := c.ranges("pages", info.PageCount, false)
	if err != nil {
		return nil, err
	}
	pages := pagerange.Unique(ranges)

	blocks, err := textlayout.Extract(bytes.NewReader(in.data), int64(len(in.data)), pages, textlayout.DefaultOptions())
	if err != nil {
		return nil, &pdfops.DocumentError{Op: "text items", Err: err}
	}

	resp := textItemsResponse{PageCount: info.PageCount, Blocks: make([]blockOut, 0, len(blocks))}
	if resp.Pages, err = pageInfos(info, pages); err != nil {
		return nil, err
	}
	if probe, err := render.HasTextLayer(in.data, 0); err != nil {
		c.log.Warn().Err(err).Msg("text layer probe failed")
	} else {
		resp.HasTextLayer = probe.HasText
	}
	for _, b := range blocks {
		out := blockOut{Block: b}
		if scale > 0 {
			pi, err := info.Page(b.Page)
			if err != nil {
				return nil, err
			}
			vp, err := pi.Viewport(scale)
			if err != nil {
				return nil, err
			}
			r := vp.RectToViewport(geom.Rect{X0: b.X, Y0: b.Y, X1: b.X + b.Width, Y1: b.Y + b.Height})
			out.Viewport = &r
		}
		resp.Blocks = append(resp.Blocks, out)
	}
	return &output{json: resp}, nil
}

func pageInfos(info *pdfops.DocumentInfo, pages []int) ([]pdfops.PageInfo, error) {
	out := make([]pdfops.PageInfo, 0, len(pages))
	for _, p := range pages {
		pi, err := info.Page(p)
		if err != nil {
			return nil, err
		}
		out = append(out, pi)
	}
	return out, nil
}

type pageText struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

func (s *Service) handleExtractText(c *call) (*output, error) {
	in, err := s.pdf(c)
	if err != nil {
		return nil, err
	}
	format := c.str("format")
	if format == "" {
		format = "txt"
	}
	if format != "txt" && format != "json" {
		return nil, badRequest("format must be txt or json")
	}
	clean := c.boolean("clean")

	doc, err := render.Open(in.data)
	if err != nil {
		return nil, &pdfops.DocumentError{Op: "extract text", Err: err}
	}
	defer doc.Close()
	ranges, err := c.ranges("pages", doc.PageCount(), false)
	if err != nil {
		return nil, err
	}

	var texts []pageText
	for _, p := range pagerange.Unique(ranges) {
		t, err := doc.PageText(p, clean)
		if err != nil {
			return nil, &pdfops.DocumentError{Op: "extract text", Err: err}
		}
		texts = append(texts, pageText{Page: p, Text: t})
	}
	if format == "json" {
		return &output{json: map[string]any{"pages": texts}}, nil
	}
	var sb strings.Builder
	for i, t := range texts {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "=== Page %d ===\n%s", t.Page, t.Text)
	}
	return &output{name: in.base() + ".txt", contentType: textType, data: []byte(sb.String())}, nil
}

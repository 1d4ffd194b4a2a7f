package pdfops

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/rs/zerolog/log"

	"github.com/local/pdftools/internal/geom"
	"github.com/local/pdftools/internal/pagerange"
)

const (
	DefaultFont     = "Helvetica"
	DefaultFontSize = 12
	DefaultColor    = "#000000"
	DefaultMargin   = 20.0
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Positions accepted by stamps, in pdfcpu anchor notation.
var Positions = []string{"tl", "tc", "tr", "l", "c", "r", "bl", "bc", "br"}

func validPosition(p string) bool {
	for _, v := range Positions {
		if v == p {
			return true
		}
	}
	return false
}

// style is the subset of pdfcpu stamp parameters used by the tools.
type style struct {
	Font       string
	FontSize   int
	Position   string
	DX, DY     float64
	Scale      float64
	ScaleAbs   bool
	Rotation   float64
	Color      string
	Background string
	Opacity    float64
}

func (s style) description() string {
	scale := "1 abs"
	if s.Scale > 0 {
		mode := "rel"
		if s.ScaleAbs {
			mode = "abs"
		}
		scale = fmt.Sprintf("%s %s", fmtFloat(s.Scale), mode)
	}
	parts := []string{}
	if s.Font != "" {
		parts = append(parts, "fontname:"+s.Font)
	}
	if s.FontSize > 0 {
		parts = append(parts, fmt.Sprintf("points:%d", s.FontSize))
	}
	parts = append(parts,
		"position:"+s.Position,
		fmt.Sprintf("offset:%s %s", fmtFloat(s.DX), fmtFloat(s.DY)),
		"scalefactor:"+scale,
		"rotation:"+fmtFloat(s.Rotation),
	)
	if s.Color != "" {
		parts = append(parts, "fillcolor:"+s.Color)
	}
	if s.Background != "" {
		parts = append(parts, "backgroundcolor:"+s.Background)
	}
	parts = append(parts, "opacity:"+fmtFloat(s.Opacity))
	return strings.Join(parts, ", ")
}

func fmtFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func textStamp(text string, s style, onTop bool) (*model.Watermark, error) {
	wm, err := api.TextWatermark(text, s.description(), onTop, false, types.POINTS)
	if err != nil {
		return nil, docErr("text stamp", err)
	}
	return wm, nil
}

// GroupByPage buckets items by page keeping their relative order, and
// returns the pages in ascending order.
func GroupByPage[T any](items []T, page func(T) int) (map[int][]T, []int) {
	groups := make(map[int][]T)
	for _, it := range items {
		p := page(it)
		groups[p] = append(groups[p], it)
	}
	pages := make([]int, 0, len(groups))
	for p := range groups {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return groups, pages
}

// displayed converts a user space point of page p to the upright frame the
// page is displayed in: origin bottom left of the visible page, rotation applied.
func displayed(p PageInfo, x, y float64) (float64, float64, error) {
	vp, err := p.Viewport(1)
	if err != nil {
		return 0, 0, err
	}
	v := vp.ToViewport(x, y)
	return v.X, vp.Height() - v.Y, nil
}

func displayedRect(p PageInfo, r geom.Rect) (geom.Rect, error) {
	vp, err := p.Viewport(1)
	if err != nil {
		return geom.Rect{}, err
	}
	v := vp.RectToViewport(r)
	h := vp.Height()
	return geom.Rect{X0: v.X0, Y0: h - v.Y1, X1: v.X1, Y1: h - v.Y0}, nil
}

// PageNumberOptions controls page numbering.
type PageNumberOptions struct {
	Position string
	Format   string
	Start    int
	FontSize int
	Margin   float64
	Color    string
	Pages    []pagerange.Range
}

// FormatPageNumber renders format replacing {n} and {total}.
func FormatPageNumber(format string, n, total int) string {
	if format == "" {
		format = "{n}"
	}
	r := strings.NewReplacer("{n}", strconv.Itoa(n), "{total}", strconv.Itoa(total))
	return r.Replace(format)
}

func marginOffset(pos string, margin float64) (float64, float64) {
	var dx, dy float64
	switch {
	case strings.HasPrefix(pos, "t"):
		dy = -margin
	case strings.HasPrefix(pos, "b"):
		dy = margin
	}
	switch {
	case strings.HasSuffix(pos, "l"):
		dx = margin
	case strings.HasSuffix(pos, "r"):
		dx = -margin
	}
	return dx, dy
}

// AddPageNumbers stamps sequential numbers on the selected pages. The first
// selected page shows Start, {total} is the last number shown.
func AddPageNumbers(data []byte, opts PageNumberOptions) ([]byte, error) {
	if opts.Position == "" {
		opts.Position = "bc"
	}
	if !validPosition(opts.Position) {
		return nil, invalid("position", "unknown position %q", opts.Position)
	}
	if opts.Start == 0 {
		opts.Start = 1
	}
	if opts.Start < 0 {
		return nil, invalid("start", "must be positive")
	}
	if opts.FontSize <= 0 {
		opts.FontSize = DefaultFontSize
	}
	if opts.Margin <= 0 {
		opts.Margin = DefaultMargin
	}
	if opts.Color == "" {
		opts.Color = DefaultColor
	}
	if !hexColor.MatchString(opts.Color) {
		return nil, invalid("color", "expected #RRGGBB")
	}

	n, err := PageCount(data)
	if err != nil {
		return nil, err
	}
	if opts.Pages == nil {
		opts.Pages = pagerange.All(n)
	}
	if err := checkRanges(opts.Pages, n); err != nil {
		return nil, err
	}

	pages := pagerange.Unique(opts.Pages)
	total := opts.Start + len(pages) - 1
	dx, dy := marginOffset(opts.Position, opts.Margin)
	st := style{
		Font:     DefaultFont,
		FontSize: opts.FontSize,
		Position: opts.Position,
		DX:       dx,
		DY:       dy,
		Color:    opts.Color,
		Opacity:  1,
	}

	m := make(map[int]*model.Watermark, len(pages))
	for i, p := range pages {
		wm, err := textStamp(FormatPageNumber(opts.Format, opts.Start+i, total), st, true)
		if err != nil {
			return nil, err
		}
		m[p] = wm
	}

	var buf bytes.Buffer
	if err := api.AddWatermarksMap(bytes.NewReader(data), &buf, m, newConfig()); err != nil {
		return nil, docErr("add page numbers", err)
	}
	return buf.Bytes(), nil
}

// TextWatermarkOptions controls a text watermark.
type TextWatermarkOptions struct {
	Text     string
	FontSize int
	Color    string
	Opacity  float64
	Rotation float64
	Position string
	Behind   bool
	Pages    []pagerange.Range
}

// ImageWatermarkOptions controls an image watermark. Scale is relative to the page.
type ImageWatermarkOptions struct {
	Scale    float64
	Opacity  float64
	Rotation float64
	Position string
	Behind   bool
	Pages    []pagerange.Range
}

func watermarkPages(data []byte, ranges []pagerange.Range) ([]string, error) {
	n, err := PageCount(data)
	if err != nil {
		return nil, err
	}
	if ranges == nil {
		ranges = pagerange.All(n)
	}
	if err := checkRanges(ranges, n); err != nil {
		return nil, err
	}
	return pagerange.Selection(ranges), nil
}

func checkOpacity(o float64) (float64, error) {
	if o == 0 {
		return 0.5, nil
	}
	if o < 0 || o > 1 {
		return 0, invalid("opacity", "must be within (0, 1]")
	}
	return o, nil
}

// AddTextWatermark stamps (or, with Behind, underlays) text on the selected pages.
func AddTextWatermark(data []byte, opts TextWatermarkOptions) ([]byte, error) {
	if strings.TrimSpace(opts.Text) == "" {
		return nil, invalid("text", "watermark text is required")
	}
	if opts.Position == "" {
		opts.Position = "c"
	}
	if !validPosition(opts.Position) {
		return nil, invalid("position", "unknown position %q", opts.Position)
	}
	if opts.FontSize <= 0 {
		opts.FontSize = 48
	}
	if opts.Color == "" {
		opts.Color = "#808080"
	}
	if !hexColor.MatchString(opts.Color) {
		return nil, invalid("color", "expected #RRGGBB")
	}
	op, err := checkOpacity(opts.Opacity)
	if err != nil {
		return nil, err
	}
	sel, err := watermarkPages(data, opts.Pages)
	if err != nil {
		return nil, err
	}

	wm, err := textStamp(opts.Text, style{
		Font:     DefaultFont,
		FontSize: opts.FontSize,
		Position: opts.Position,
		Rotation: opts.Rotation,
		Color:    opts.Color,
		Opacity:  op,
	}, !opts.Behind)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := api.AddWatermarks(bytes.NewReader(data), &buf, sel, wm, newConfig()); err != nil {
		return nil, docErr("add watermark", err)
	}
	return buf.Bytes(), nil
}

// AddImageWatermark stamps img (PNG or JPEG bytes) on the selected pages.
func AddImageWatermark(data, img []byte, opts ImageWatermarkOptions) ([]byte, error) {
	if len(img) == 0 {
		return nil, invalid("image", "watermark image is required")
	}
	if opts.Position == "" {
		opts.Position = "c"
	}
	if !validPosition(opts.Position) {
		return nil, invalid("position", "unknown position %q", opts.Position)
	}
	if opts.Scale == 0 {
		opts.Scale = 0.5
	}
	if opts.Scale < 0 || opts.Scale > 1 {
		return nil, invalid("scale", "must be within (0, 1]")
	}
	op, err := checkOpacity(opts.Opacity)
	if err != nil {
		return nil, err
	}
	sel, err := watermarkPages(data, opts.Pages)
	if err != nil {
		return nil, err
	}
	img, ext, err := normalizeImage(img)
	if err != nil {
		return nil, err
	}

	path, cleanup, err := writeTemp("pdfwm-*"+ext, img)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	desc := style{Position: opts.Position, Scale: opts.Scale, Rotation: opts.Rotation, Opacity: op}.description()
	wm, err := api.ImageWatermark(path, desc, !opts.Behind, false, types.POINTS)
	if err != nil {
		return nil, docErr("image stamp", err)
	}
	var buf bytes.Buffer
	if err := api.AddWatermarks(bytes.NewReader(data), &buf, sel, wm, newConfig()); err != nil {
		return nil, docErr("add image watermark", err)
	}
	return buf.Bytes(), nil
}

// Annotation places Text with its lower left corner at (X, Y) in PDF user space.
type Annotation struct {
	Page     int     `json:"page"`
	Text     string  `json:"text"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	FontSize int     `json:"font_size"`
	Color    string  `json:"color,omitempty"`
}

// Annotate draws every annotation onto its page in a single pass.
func Annotate(data []byte, annotations []Annotation) ([]byte, error) {
	if len(annotations) == 0 {
		return nil, invalid("annotations", "nothing to add")
	}
	info, err := Info(data)
	if err != nil {
		return nil, err
	}

	groups, pages := GroupByPage(annotations, func(a Annotation) int { return a.Page })
	m := make(map[int][]*model.Watermark, len(pages))
	for _, p := range pages {
		pi, err := info.Page(p)
		if err != nil {
			return nil, err
		}
		for _, a := range groups[p] {
			if strings.TrimSpace(a.Text) == "" {
				continue
			}
			wm, err := annotationStamp(pi, a)
			if err != nil {
				return nil, err
			}
			m[p] = append(m[p], wm)
		}
	}
	if len(m) == 0 {
		return nil, invalid("annotations", "all annotations are empty")
	}

	var buf bytes.Buffer
	if err := api.AddWatermarksSliceMap(bytes.NewReader(data), &buf, m, newConfig()); err != nil {
		return nil, docErr("annotate", err)
	}
	log.Debug().Int("annotations", len(annotations)).Int("pages", len(m)).Msg("annotated document")
	return buf.Bytes(), nil
}

func annotationStamp(p PageInfo, a Annotation) (*model.Watermark, error) {
	if a.FontSize <= 0 {
		a.FontSize = DefaultFontSize
	}
	if a.Color == "" {
		a.Color = DefaultColor
	}
	if !hexColor.MatchString(a.Color) {
		return nil, invalid("color", "expected #RRGGBB")
	}
	dx, dy, err := displayed(p, a.X, a.Y)
	if err != nil {
		return nil, err
	}
	return textStamp(a.Text, style{
		Font:     DefaultFont,
		FontSize: a.FontSize,
		Position: "bl",
		DX:       dx,
		DY:       dy,
		Color:    a.Color,
		Opacity:  1,
	}, true)
}

// TextEdit covers the rectangle (X, Y, Width, Height) in PDF user space and
// writes Text in its place. An empty Text only erases.
type TextEdit struct {
	Page       int     `json:"page"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Text       string  `json:"text"`
	FontSize   int     `json:"font_size"`
	Color      string  `json:"color,omitempty"`
	Background string  `json:"background,omitempty"`
}

// coverScale is the pixel density of generated cover images per point.
const coverScale = 4

// EditText applies edits grouped by page: each edit draws an opaque box over
// the original area, then the replacement text on top of it.
func EditText(data []byte, edits []TextEdit) ([]byte, error) {
	if len(edits) == 0 {
		return nil, invalid("edits", "nothing to change")
	}
	info, err := Info(data)
	if err != nil {
		return nil, err
	}

	var cleanups []func()
	defer func() {
		for _, c := range cleanups {
			c()
		}
	}()

	groups, pages := GroupByPage(edits, func(e TextEdit) int { return e.Page })
	m := make(map[int][]*model.Watermark, len(pages))
	for _, p := range pages {
		pi, err := info.Page(p)
		if err != nil {
			return nil, err
		}
		for _, e := range groups[p] {
			stamps, cleanup, err := editStamps(pi, e)
			if cleanup != nil {
				cleanups = append(cleanups, cleanup)
			}
			if err != nil {
				return nil, err
			}
			m[p] = append(m[p], stamps...)
		}
	}

	var buf bytes.Buffer
	if err := api.AddWatermarksSliceMap(bytes.NewReader(data), &buf, m, newConfig()); err != nil {
		return nil, docErr("edit text", err)
	}
	return buf.Bytes(), nil
}

func editStamps(p PageInfo, e TextEdit) ([]*model.Watermark, func(), error) {
	if e.Width <= 0 || e.Height <= 0 {
		return nil, nil, invalid("edits", "page %d: width and height must be positive", e.Page)
	}
	if e.Background == "" {
		e.Background = "#FFFFFF"
	}
	if e.Color == "" {
		e.Color = DefaultColor
	}
	if !hexColor.MatchString(e.Background) || !hexColor.MatchString(e.Color) {
		return nil, nil, invalid("color", "expected #RRGGBB")
	}
	if e.FontSize <= 0 {
		e.FontSize = int(math.Max(1, math.Round(e.Height*0.8)))
	}

	r, err := displayedRect(p, geom.Rect{X0: e.X, Y0: e.Y, X1: e.X + e.Width, Y1: e.Y + e.Height})
	if err != nil {
		return nil, nil, err
	}
	cover, err := solidPNG(e.Background, r.Width(), r.Height())
	if err != nil {
		return nil, nil, err
	}
	path, cleanup, err := writeTemp("pdfcover-*.png", cover)
	if err != nil {
		return nil, nil, err
	}

	desc := style{
		Position: "bl",
		DX:       r.X0,
		DY:       r.Y0,
		Scale:    1.0 / coverScale,
		ScaleAbs: true,
		Opacity:  1,
	}.description()
	box, err := api.ImageWatermark(path, desc, true, false, types.POINTS)
	if err != nil {
		return nil, cleanup, docErr("cover stamp", err)
	}
	stamps := []*model.Watermark{box}

	if strings.TrimSpace(e.Text) != "" {
		txt, err := textStamp(e.Text, style{
			Font:     DefaultFont,
			FontSize: e.FontSize,
			Position: "bl",
			DX:       r.X0,
			DY:       r.Y0,
			Color:    e.Color,
			Opacity:  1,
		}, true)
		if err != nil {
			return nil, cleanup, err
		}
		stamps = append(stamps, txt)
	}
	return stamps, cleanup, nil
}

func parseHex(s string) color.RGBA {
	v, _ := strconv.ParseUint(strings.TrimPrefix(s, "#"), 16, 32)
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}

// solidPNG renders a w x h point rectangle at coverScale pixels per point.
func solidPNG(hex string, w, h float64) ([]byte, error) {
	pw := int(math.Max(1, math.Round(w*coverScale)))
	ph := int(math.Max(1, math.Round(h*coverScale)))
	img := image.NewRGBA(image.Rect(0, 0, pw, ph))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: parseHex(hex)}, image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode cover: %w", err)
	}
	return buf.Bytes(), nil
}

func writeTemp(pattern string, data []byte) (string, func(), error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	name := f.Name()
	cleanup := func() { _ = os.Remove(name) }
	if _, err := f.Write(data); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp file: %w", err)
	}
	return name, cleanup, nil
}

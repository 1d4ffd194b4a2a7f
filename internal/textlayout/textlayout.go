// Package textlayout groups positioned text fragments into editable line
// segments.
package textlayout

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"
)

// Item is a positioned text fragment in PDF user space. Y is the baseline.
type Item struct {
	Page     int
	Text     string
	X        float64
	Y        float64
	Width    float64
	FontSize float64
	Font     string
}

// Block is a run of items on one baseline without a large horizontal gap.
type Block struct {
	Page     int     `json:"page"`
	Text     string  `json:"text"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	FontSize float64 `json:"font_size"`
	Font     string  `json:"font,omitempty"`
}

// Options tunes clustering. All factors are relative to the font size.
type Options struct {
	LineTolerance  float64
	SpaceGapFactor float64
	WordGapFactor  float64
}

// DefaultOptions works for ordinary body text.
func DefaultOptions() Options {
	return Options{LineTolerance: 0.5, SpaceGapFactor: 0.2, WordGapFactor: 2.0}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.LineTolerance <= 0 {
		o.LineTolerance = d.LineTolerance
	}
	if o.SpaceGapFactor <= 0 {
		o.SpaceGapFactor = d.SpaceGapFactor
	}
	if o.WordGapFactor <= 0 {
		o.WordGapFactor = d.WordGapFactor
	}
	return o
}

// minFontSize guards against fragments with a zero or missing size.
const minFontSize = 1.0

func fontSize(it Item) float64 {
	if it.FontSize < minFontSize {
		return minFontSize
	}
	return it.FontSize
}

func width(it Item) float64 {
	if it.Width > 0 {
		return it.Width
	}
	return float64(utf8.RuneCountInString(it.Text)) * fontSize(it) * 0.5
}

// Cluster groups items into blocks ordered top to bottom, then left to right.
// Whitespace-only items are dropped; spacing is recovered from the gaps.
func Cluster(items []Item, opts Options) []Block {
	opts = opts.withDefaults()

	sorted := make([]Item, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.Text) == "" {
			continue
		}
		sorted = append(sorted, it)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Page != sorted[j].Page {
			return sorted[i].Page < sorted[j].Page
		}
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var out []Block
	for _, line := range splitLines(sorted, opts) {
		out = append(out, splitBlocks(line, opts)...)
	}
	return out
}

func splitLines(items []Item, opts Options) [][]Item {
	var lines [][]Item
	var cur []Item
	var baseY, baseSize float64
	page := -1
	for _, it := range items {
		size := math.Max(fontSize(it), baseSize)
		if cur != nil && it.Page == page && math.Abs(it.Y-baseY) <= opts.LineTolerance*size {
			cur = append(cur, it)
			if fontSize(it) > baseSize {
				baseSize = fontSize(it)
			}
			continue
		}
		if cur != nil {
			lines = append(lines, cur)
		}
		cur = []Item{it}
		baseY, baseSize, page = it.Y, fontSize(it), it.Page
	}
	if cur != nil {
		lines = append(lines, cur)
	}
	for _, l := range lines {
		sort.SliceStable(l, func(i, j int) bool { return l[i].X < l[j].X })
	}
	return lines
}

func splitBlocks(line []Item, opts Options) []Block {
	var out []Block
	var b *Block
	var sb strings.Builder
	flush := func() {
		if b == nil {
			return
		}
		b.Text = strings.TrimSpace(sb.String())
		out = append(out, *b)
		b = nil
		sb.Reset()
	}
	for _, it := range line {
		size := fontSize(it)
		if b != nil {
			gap := it.X - (b.X + b.Width)
			ref := math.Max(size, b.FontSize)
			if gap > opts.WordGapFactor*ref {
				flush()
			} else if gap > opts.SpaceGapFactor*ref && !strings.HasSuffix(sb.String(), " ") {
				sb.WriteByte(' ')
			}
		}
		if b == nil {
			b = &Block{Page: it.Page, X: it.X, Y: it.Y, FontSize: size, Height: size, Font: it.Font}
		}
		sb.WriteString(it.Text)
		if right := it.X + width(it); right-b.X > b.Width {
			b.Width = right - b.X
		}
		if it.Y < b.Y {
			b.Y = it.Y
		}
		if size > b.FontSize {
			b.FontSize, b.Height = size, size
		}
	}
	flush()
	return out
}

// FromPDFText converts ledongthuc/pdf fragments of one page.
func FromPDFText(texts []pdf.Text, page int) []Item {
	out := make([]Item, 0, len(texts))
	for _, t := range texts {
		out = append(out, Item{Page: page, Text: t.S, X: t.X, Y: t.Y, Width: t.W, FontSize: t.FontSize, Font: t.Font})
	}
	return out
}

// Extract reads the given pages (1-based) and clusters their text. An empty
// pages slice selects every page.
func Extract(r io.ReaderAt, size int64, pages []int, opts Options) (blocks []Block, err error) {
	defer func() {
		// the content stream interpreter panics on malformed input
		if rec := recover(); rec != nil {
			blocks, err = nil, fmt.Errorf("read text content: %v", rec)
		}
	}()

	rd, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	total := rd.NumPage()
	if len(pages) == 0 {
		for i := 1; i <= total; i++ {
			pages = append(pages, i)
		}
	}

	for _, n := range pages {
		if n < 1 || n > total {
			return nil, fmt.Errorf("page %d out of range (document has %d pages)", n, total)
		}
		p := rd.Page(n)
		if p.V.IsNull() {
			log.Debug().Int("page", n).Msg("page object missing; skipping")
			continue
		}
		items := FromPDFText(p.Content().Text, n)
		blocks = append(blocks, Cluster(items, opts)...)
	}
	return blocks, nil
}

// Package render rasterizes pages and extracts plain text with MuPDF (go-fitz).
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"
)

// Format is the encoding of rendered pages.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
)

// Ext returns the file extension for f, including the dot.
func (f Format) Ext() string {
	if f == JPEG {
		return ".jpg"
	}
	return ".png"
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == JPEG {
		return "image/jpeg"
	}
	return "image/png"
}

const (
	DefaultDPI     = 150
	MaxDPI         = 600
	DefaultQuality = 85
)

// Options controls page rasterization.
type Options struct {
	Format  Format
	DPI     int
	Quality int
	Gray    bool
}

func (o Options) withDefaults() (Options, error) {
	if o.Format == "" {
		o.Format = PNG
	}
	if o.Format == "jpg" {
		o.Format = JPEG
	}
	if o.Format != PNG && o.Format != JPEG {
		return o, fmt.Errorf("unsupported image format %q", o.Format)
	}
	if o.DPI == 0 {
		o.DPI = DefaultDPI
	}
	if o.DPI < 18 || o.DPI > MaxDPI {
		return o, fmt.Errorf("dpi %d out of range (18-%d)", o.DPI, MaxDPI)
	}
	if o.Quality == 0 {
		o.Quality = DefaultQuality
	}
	if o.Quality < 1 || o.Quality > 100 {
		return o, fmt.Errorf("quality %d out of range (1-100)", o.Quality)
	}
	return o, nil
}

// PageImage is one rendered page.
type PageImage struct {
	Page   int
	Width  int
	Height int
	Format Format
	Data   []byte
}

// Name returns a file name for the image, e.g. report_page_3.png.
func (p PageImage) Name(base string) string {
	return fmt.Sprintf("%s_page_%d%s", base, p.Page, p.Format.Ext())
}

// Document is an open MuPDF document. It is not safe for concurrent use.
type Document struct {
	doc *fitz.Document
}

// Open loads a document from memory.
func Open(data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	return &Document{doc: doc}, nil
}

func (d *Document) Close() error { return d.doc.Close() }

// PageCount returns the number of pages.
func (d *Document) PageCount() int { return d.doc.NumPage() }

func (d *Document) checkPage(page int) error {
	if page < 1 || page > d.doc.NumPage() {
		return fmt.Errorf("page %d out of range (document has %d pages)", page, d.doc.NumPage())
	}
	return nil
}

// PageImage renders the 1-based page.
func (d *Document) PageImage(page int, opts Options) (*PageImage, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	if err := d.checkPage(page); err != nil {
		return nil, err
	}

	// go-fitz uses 0-based indexing
	img, err := d.doc.ImageDPI(page-1, float64(opts.DPI))
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", page, err)
	}
	bounds := img.Bounds()

	var final image.Image = img
	if opts.Gray {
		gray := image.NewGray(bounds)
		draw.Draw(gray, bounds, img, bounds.Min, draw.Src)
		final = gray
	}

	var buf bytes.Buffer
	switch opts.Format {
	case JPEG:
		err = jpeg.Encode(&buf, final, &jpeg.Options{Quality: opts.Quality})
	default:
		err = png.Encode(&buf, final)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode page %d: %w", page, err)
	}

	log.Debug().
		Int("page", page).
		Int("width", bounds.Dx()).
		Int("height", bounds.Dy()).
		Int("dpi", opts.DPI).
		Str("format", string(opts.Format)).
		Int("bytes", buf.Len()).
		Msg("rendered page")

	return &PageImage{
		Page:   page,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Format: opts.Format,
		Data:   buf.Bytes(),
	}, nil
}

// PagesToImages renders the given 1-based pages of data in order. An empty
// pages slice renders every page. Rendering stops when ctx is done.
func PagesToImages(ctx context.Context, data []byte, pages []int, opts Options) ([]PageImage, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	doc, err := Open(data)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	if len(pages) == 0 {
		for i := 1; i <= doc.PageCount(); i++ {
			pages = append(pages, i)
		}
	}
	out := make([]PageImage, 0, len(pages))
	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := doc.PageImage(p, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, *img)
	}
	return out, nil
}

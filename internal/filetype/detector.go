package filetype

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// Kind groups content types by how the tools consume them.
type Kind string

const (
	KindPDF     Kind = "pdf"
	KindImage   Kind = "image"
	KindUnknown Kind = "unknown"
)

// Info contains detected file type information.
type Info struct {
	MIMEType    string
	Extension   string
	Kind        Kind
	Description string
}

// UnsupportedError is returned when an upload is not of an accepted kind.
type UnsupportedError struct {
	Name string
	MIME string
	Want []Kind
}

func (e *UnsupportedError) Error() string {
	want := make([]string, len(e.Want))
	for i, k := range e.Want {
		want[i] = string(k)
	}
	return fmt.Sprintf("%s: unsupported file type %s (expected %s)", e.Name, e.MIME, strings.Join(want, " or "))
}

// imageTypes are the raster formats the image tools can read.
var imageTypes = map[string]string{
	"image/jpeg": "JPEG image",
	"image/png":  "PNG image",
	"image/gif":  "GIF image",
	"image/bmp":  "BMP image",
	"image/tiff": "TIFF image",
	"image/webp": "WebP image",
}

// Detector handles file type detection using magic bytes
type Detector struct{}

// New creates a new file type detector
func New() *Detector {
	return &Detector{}
}

// Detect classifies data by its magic bytes, never by the file name.
func (d *Detector) Detect(data []byte) *Info {
	mtype := mimetype.Detect(data)
	info := &Info{MIMEType: mtype.String(), Extension: mtype.Extension(), Kind: KindUnknown}

	switch {
	case mtype.Is("application/pdf"):
		info.Kind = KindPDF
		info.Description = "PDF document"
	default:
		for m, desc := range imageTypes {
			if mtype.Is(m) {
				info.Kind = KindImage
				info.MIMEType = m
				info.Description = desc
				break
			}
		}
	}
	if info.Kind == KindUnknown {
		info.Description = fmt.Sprintf("Unsupported file type: %s", info.MIMEType)
	}
	log.Debug().Str("mime", info.MIMEType).Str("kind", string(info.Kind)).Msg("detected file type")
	return info
}

// Require detects data and fails with *UnsupportedError unless it is one of want.
func (d *Detector) Require(name string, data []byte, want ...Kind) (*Info, error) {
	info := d.Detect(data)
	for _, k := range want {
		if info.Kind == k {
			return info, nil
		}
	}
	return nil, &UnsupportedError{Name: name, MIME: info.MIMEType, Want: want}
}

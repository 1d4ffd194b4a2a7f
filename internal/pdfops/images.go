package pdfops

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/png"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

// ImageMIMETypes lists the image types accepted by ImagesToPDF.
var ImageMIMETypes = []string{"image/jpeg", "image/png", "image/gif", "image/bmp", "image/tiff", "image/webp"}

type decodeFunc func(io.Reader) (image.Image, error)

var transcoders = map[string]decodeFunc{
	"image/gif":  gif.Decode,
	"image/bmp":  bmp.Decode,
	"image/tiff": tiff.Decode,
	"image/webp": webp.Decode,
}

// normalizeImage returns img as JPEG or PNG bytes, with the matching extension.
func normalizeImage(img []byte) ([]byte, string, error) {
	mt := mimetype.Detect(img)
	switch {
	case mt.Is("image/jpeg"):
		return img, ".jpg", nil
	case mt.Is("image/png"):
		return img, ".png", nil
	}
	decode, ok := transcoders[mt.String()]
	if !ok {
		return nil, "", &FormatError{MIME: mt.String()}
	}
	src, err := decode(bytes.NewReader(img))
	if err != nil {
		return nil, "", invalid("image", "decode %s: %v", mt.String(), err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		return nil, "", fmt.Errorf("encode png: %w", err)
	}
	log.Debug().Str("from", mt.String()).Int("bytes", buf.Len()).Msg("transcoded image to png")
	return buf.Bytes(), ".png", nil
}

// ImagesToPDF creates a document with one page per image, in input order.
// Each page takes the dimensions of its image.
func ImagesToPDF(images [][]byte) ([]byte, error) {
	if len(images) == 0 {
		return nil, invalid("files", "at least one image is required")
	}
	readers := make([]io.Reader, 0, len(images))
	for i, img := range images {
		if len(img) == 0 {
			return nil, invalid("files", "image %d is empty", i+1)
		}
		norm, _, err := normalizeImage(img)
		if err != nil {
			return nil, err
		}
		readers = append(readers, bytes.NewReader(norm))
	}

	var buf bytes.Buffer
	if err := api.ImportImages(nil, &buf, readers, pdfcpu.DefaultImportConfig(), newConfig()); err != nil {
		return nil, docErr("import images", err)
	}
	return buf.Bytes(), nil
}

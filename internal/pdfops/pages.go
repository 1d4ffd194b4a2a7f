package pdfops

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"

	"github.com/local/pdftools/internal/geom"
	"github.com/local/pdftools/internal/pagerange"
)

// Part is one output document of a split.
type Part struct {
	Name  string
	Range pagerange.Range
	Data  []byte
}

func checkRanges(ranges []pagerange.Range, pageCount int) error {
	if len(ranges) == 0 {
		return invalid("pages", "no pages selected")
	}
	for _, r := range ranges {
		if r.Start < 1 || r.End > pageCount || r.Start > r.End {
			return invalid("pages", "range %s out of bounds (document has %d pages)", r, pageCount)
		}
	}
	return nil
}

// Merge concatenates documents in the given order.
func Merge(inputs [][]byte) ([]byte, error) {
	if len(inputs) < 2 {
		return nil, invalid("files", "at least two documents are required")
	}
	rsc := make([]io.ReadSeeker, 0, len(inputs))
	for i, in := range inputs {
		if len(in) == 0 {
			return nil, invalid("files", "document %d is empty", i+1)
		}
		rsc = append(rsc, bytes.NewReader(in))
	}
	var buf bytes.Buffer
	if err := api.MergeRaw(rsc, &buf, false, newConfig()); err != nil {
		return nil, docErr("merge", err)
	}
	log.Debug().Int("documents", len(inputs)).Int("bytes", buf.Len()).Msg("merged documents")
	return buf.Bytes(), nil
}

// Split produces one document per range. Parts are named base_<range>.pdf.
func Split(data []byte, base string, ranges []pagerange.Range) ([]Part, error) {
	n, err := PageCount(data)
	if err != nil {
		return nil, err
	}
	if err := checkRanges(ranges, n); err != nil {
		return nil, err
	}
	if base == "" {
		base = "document"
	}
	parts := make([]Part, 0, len(ranges))
	for _, r := range ranges {
		var buf bytes.Buffer
		if err := api.Trim(bytes.NewReader(data), &buf, []string{r.String()}, newConfig()); err != nil {
			return nil, docErr(fmt.Sprintf("split %s", r), err)
		}
		parts = append(parts, Part{
			Name:  fmt.Sprintf("%s_%s.pdf", base, r),
			Range: r,
			Data:  buf.Bytes(),
		})
	}
	return parts, nil
}

// SplitEvery splits the document into chunks of size pages.
func SplitEvery(data []byte, base string, size int) ([]Part, error) {
	if size < 1 {
		return nil, invalid("every", "must be at least 1")
	}
	n, err := PageCount(data)
	if err != nil {
		return nil, err
	}
	return Split(data, base, pagerange.Chunks(n, size))
}

// Extract builds a single document from the selected pages, in selection order.
func Extract(data []byte, ranges []pagerange.Range) ([]byte, error) {
	n, err := PageCount(data)
	if err != nil {
		return nil, err
	}
	if err := checkRanges(ranges, n); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := api.Collect(bytes.NewReader(data), &buf, pagerange.Selection(ranges), newConfig()); err != nil {
		return nil, docErr("extract pages", err)
	}
	return buf.Bytes(), nil
}

// Rotate turns the selected pages clockwise by angle degrees. angle must be a
// multiple of 90 and may be negative.
func Rotate(data []byte, angle int, ranges []pagerange.Range) ([]byte, error) {
	rot, err := geom.NormalizeRotation(angle)
	if err != nil {
		return nil, invalid("angle", "%v", err)
	}
	n, err := PageCount(data)
	if err != nil {
		return nil, err
	}
	if err := checkRanges(ranges, n); err != nil {
		return nil, err
	}
	if rot == 0 {
		return append([]byte(nil), data...), nil
	}
	var buf bytes.Buffer
	if err := api.Rotate(bytes.NewReader(data), &buf, rot, pagerange.Selection(ranges), newConfig()); err != nil {
		return nil, docErr("rotate", err)
	}
	return buf.Bytes(), nil
}

// RemovePages deletes the selected pages. At least one page must remain.
func RemovePages(data []byte, ranges []pagerange.Range) ([]byte, error) {
	n, err := PageCount(data)
	if err != nil {
		return nil, err
	}
	if err := checkRanges(ranges, n); err != nil {
		return nil, err
	}
	if len(pagerange.Unique(ranges)) >= n {
		return nil, invalid("pages", "cannot remove every page")
	}
	var buf bytes.Buffer
	if err := api.RemovePages(bytes.NewReader(data), &buf, pagerange.Selection(ranges), newConfig()); err != nil {
		return nil, docErr("remove pages", err)
	}
	return buf.Bytes(), nil
}

// Optimize rewrites the document dropping redundant objects.
func Optimize(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, invalid("file", "empty document")
	}
	var buf bytes.Buffer
	if err := api.Optimize(bytes.NewReader(data), &buf, newConfig()); err != nil {
		return nil, docErr("optimize", err)
	}
	log.Debug().Int("in", len(data)).Int("out", buf.Len()).Msg("optimized document")
	return buf.Bytes(), nil
}

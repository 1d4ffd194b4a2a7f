package tools

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/local/pdftools/internal/filetype"
	"github.com/local/pdftools/internal/pagerange"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	// report form/json field names instead of Go field names
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{f.Tag.Get("form"), f.Tag.Get("json")} {
			if name := strings.SplitN(tag, ",", 2)[0]; name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
}

// upload is one received file.
type upload struct {
	name string
	data []byte
	info *filetype.Info
}

func (u upload) base() string { return baseName(u.name) }

// files reads every part of field, requiring each to be one of kinds.
func (s *Service) files(c *call, field string, kinds ...filetype.Kind) ([]upload, error) {
	var headers = c.r.MultipartForm.File[field]
	if len(headers) == 0 {
		return nil, badRequest("missing file field %q", field)
	}
	out := make([]upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read upload %s: %w", fh.Filename, err)
		}
		if len(data) == 0 {
			return nil, badRequest("%s is empty", fh.Filename)
		}
		info, err := s.detect.Require(fh.Filename, data, kinds...)
		if err != nil {
			return nil, err
		}
		c.bytesIn += len(data)
		out = append(out, upload{name: fh.Filename, data: data, info: info})
	}
	return out, nil
}

// file reads the single part of field.
func (s *Service) file(c *call, field string, kinds ...filetype.Kind) (upload, error) {
	ups, err := s.files(c, field, kinds...)
	if err != nil {
		return upload{}, err
	}
	if len(ups) > 1 {
		return upload{}, badRequest("field %q takes a single file", field)
	}
	return ups[0], nil
}

func (s *Service) pdf(c *call) (upload, error) { return s.file(c, "file", filetype.KindPDF) }

func (c *call) hasFile(field string) bool { return len(c.r.MultipartForm.File[field]) > 0 }

func (c *call) str(key string) string { return strings.TrimSpace(c.r.FormValue(key)) }

func (c *call) integer(key string, def int) (int, error) {
	v := c.str(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequest("%s must be an integer", key)
	}
	return n, nil
}

func (c *call) float(key string, def float64) (float64, error) {
	v := c.str(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, badRequest("%s must be a number", key)
	}
	return f, nil
}

func (c *call) boolean(key string) bool {
	switch strings.ToLower(c.str(key)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// jsonField decodes a JSON encoded form field into dst.
func (c *call) jsonField(key string, dst any) error {
	v := c.str(key)
	if v == "" {
		return badRequest("missing field %q", key)
	}
	if err := json.Unmarshal([]byte(v), dst); err != nil {
		return badRequest("%s is not valid JSON: %v", key, err)
	}
	return nil
}

// ranges parses the page selection in key. An empty selection means every
// page unless required is set.
func (c *call) ranges(key string, pageCount int, required bool) ([]pagerange.Range, error) {
	expr := c.str(key)
	if required {
		return pagerange.Parse(expr, pageCount)
	}
	return pagerange.ParseOrAll(expr, pageCount)
}

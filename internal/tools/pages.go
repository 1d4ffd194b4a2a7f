package tools

import (
	"fmt"

	"github.com/local/pdftools/internal/filetype"
	"github.com/local/pdftools/internal/pdfops"
)

func pdfOutput(name string, data []byte) *output {
	return &output{name: name, contentType: pdfType, data: data}
}

func (s *Service) handleInfo(c *call) (*output, error) {
	in, err := s.pdf(c)
	if err != nil {
		return nil, err
	}
	info, err := pdfops.Info(in.data)
	if err != nil {
		return nil, err
	}
	return &output{json: info}, nil
}

func (s *Service) handleMerge(c *call) (*output, error) {
	ins, err := s.files(c, "files", filetype.KindPDF)
	if err != nil {
		return nil, err
	}
	docs := make([][]byte, len(ins))
	for i, in := range ins {
		docs[i] = in.data
	}
	out, err := pdfops.Merge(docs)
	if err != nil {
		return nil, err
	}
	c.log.Debug().Int("documents", len(docs)).Msg("merged")
	return pdfOutput("merged.pdf", out), nil
}

type splitForm struct {
	Mode  string `form:"mode" validate:"oneof=ranges every"`
	Every int    `form:"every" validate:"min=0,max=10000"`
}

func (s *Service) handleSplit(c *call) (*output, error) {
	in, err := s.pdf(c)
	if err != nil {
		return nil, err
	}
	every, err := c.integer("every", 0)
	if err != nil {
		return nil, err
	}
	form := splitForm{Mode: c.str("mode"), Every: every}
	if form.Mode == "" {
		form.Mode = "ranges"
	}
	if err := validate.Struct(form); err != nil {
		return nil, err
	}

	var parts []pdfops.Part
	if form.Mode == "every" {
		parts, err = pdfops.SplitEvery(in.data, in.base(), form.Every)
	} else {
		n, cerr := pdfops.PageCount(in.data)
		if cerr != nil {
			return nil, cerr
		}
		ranges, rerr := c.ranges("pages", n, true)
		if rerr != nil {
			return nil, rerr
		}
		parts, err = pdfops.Split(in.data, in.base(), ranges)
	}
	if err != nil {
		return nil, err
	}
	if len(parts) == 1 {
		return pdfOutput(parts[0].Name, parts[0].Data), nil
	}
	entries := make([]zipEntry, len(parts))
	for i, p := range parts {
		entries[i] = zipEntry{name: p.Name, data: p.Data}
	}
	z, err := zipArchive(entries)
	if err != nil {
		return nil, err
	}
	return &output{name: in.base() + "_split.zip", contentType: zipType, data: z}, nil
}

func (s *Service) handleExtract(c *call) (*output, error) {
	in, err := s.pdf(c)
	if err != nil {
		return nil, err
	}
	n, err := pdfops.PageCount(in.data)
	if err != nil {
		return nil, err
	}
	ranges, err := c.ranges("pages", n, true)
	if err != nil {
		return nil, err
	}
	out, err := pdfops.Extract(in.data, ranges)
	if err != nil {
		return nil, err
	}
	return pdfOutput(in.base()+"_extract.pdf", out), nil
}

type rotateForm struct {
	Angle int `form:"angle" validate:"required,oneof=90 180 270 -90 -180 -270"`
}

func (s *Service) handleRotate(c *call) (*output, error) {
	in, err := s.pdf(c)
	if err != nil {
		return nil, err
	}
	angle, err := c.integer("angle", 90)
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(rotateForm{Angle: angle}); err != nil {
		return nil, err
	}
	n, err := pdfops.PageCount(in.data)
	if err != nil {
		return nil, err
	}
	ranges, err := c.ranges("pages", n, false)
	if err != nil {
		return nil, err
	}
	out, err := pdfops.Rotate(in.data, angle, ranges)
	if err != nil {
		return nil, err
	}
	return pdfOutput(in.base()+"_rotated.pdf", out), nil
}

func (s *Service) handleRemovePages(c *call) (*output, error) {
	in, err := s.pdf(c)
	if err != nil {
		return nil, err
	}
	n, err := pdfops.PageCount(in.data)
	if err != nil {
		return nil, err
	}
	ranges, err := c.ranges("pages", n, true)
	if err != nil {
		return nil, err
	}
	out, err := pdfops.RemovePages(in.data, ranges)
	if err != nil {
		return nil, err
	}
	return pdfOutput(in.base()+"_trimmed.pdf", out), nil
}

func (s *Service) handleCompress(c *call) (*output, error) {
	in, err := s.pdf(c)
	if err != nil {
		return nil, err
	}
	out, err := pdfops.Optimize(in.data)
	if err != nil {
		return nil, err
	}
	c.log.Debug().
		Int("in", len(in.data)).
		Int("out", len(out)).
		Str("saved", fmt.Sprintf("%.1f%%", 100*(1-float64(len(out))/float64(len(in.data))))).
		Msg("compressed")
	return pdfOutput(in.base()+"_compressed.pdf", out), nil
}

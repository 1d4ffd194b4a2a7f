package tools

import (
	"github.com/local/pdftools/internal/filetype"
	"github.com/local/pdftools/internal/pagerange"
	"github.com/local/pdftools/internal/pdfops"
	"github.com/local/pdftools/internal/render"
)

type pdfToImagesForm struct {
	Format  string `form:"format" validate:"oneof=png jpeg jpg"`
	DPI     int    `form:"dpi" validate:"min=18,max=600"`
	Quality int    `form:"quality" validate:"min=1,max=100"`
}

func (s *Service) handlePDFToImages(c *call) (*output, error) {
	in, err := s.pdf(c)
	if err != nil {
		return nil, err
	}
	form := pdfToImagesForm{Format: c.str("format")}
	if form.Format == "" {
		form.Format = "png"
	}
	defDPI := s.opts.DefaultDPI
	if defDPI <= 0 {
		defDPI = render.DefaultDPI
	}
	if form.DPI, err = c.integer("dpi", defDPI); err != nil {
		return nil, err
	}
	if form.Quality, err = c.integer("quality", render.DefaultQuality); err != nil {
		return nil, err
	}
	if err := validate.Struct(form); err != nil {
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
	pages := pagerange.Unique(ranges)
	if len(pages) > s.opts.MaxRenderPages {
		return nil, badRequest("at most %d pages can be rendered per request (%d selected)", s.opts.MaxRenderPages, len(pages))
	}

	imgs, err := render.PagesToImages(c.r.Context(), in.data, pages, render.Options{
		Format:  render.Format(form.Format),
		DPI:     form.DPI,
		Quality: form.Quality,
		Gray:    c.boolean("gray"),
	})
	if err != nil {
		if ctxErr := c.r.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &pdfops.DocumentError{Op: "render", Err: err}
	}
	if len(imgs) == 1 {
		img := imgs[0]
		return &output{name: img.Name(in.base()), contentType: img.Format.ContentType(), data: img.Data}, nil
	}
	entries := make([]zipEntry, len(imgs))
	for i, img := range imgs {
		entries[i] = zipEntry{name: img.Name(in.base()), data: img.Data}
	}
	z, err := zipArchive(entries)
	if err != nil {
		return nil, err
	}
	return &output{name: in.base() + "_images.zip", contentType: zipType, data: z}, nil
}

func (s *Service) handleImagesToPDF(c *call) (*output, error) {
	ins, err := s.files(c, "files", filetype.KindImage)
	if err != nil {
		return nil, err
	}
	imgs := make([][]byte, len(ins))
	for i, in := range ins {
		imgs[i] = in.data
	}
	out, err := pdfops.ImagesToPDF(imgs)
	if err != nil {
		return nil, err
	}
	name := "images.pdf"
	if len(ins) == 1 {
		name = ins[0].base() + ".pdf"
	}
	return pdfOutput(name, out), nil
}

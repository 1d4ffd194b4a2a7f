package tools

import (
	"github.com/local/pdftools/internal/filetype"
	"github.com/local/pdftools/internal/geom"
	"github.com/local/pdftools/internal/pdfops"
)

type pageNumbersForm struct {
	Position string  `form:"position" validate:"omitempty,oneof=tl tc tr bl bc br"`
	Format   string  `form:"format" validate:"max=64"`
	Start    int     `form:"start" validate:"min=1"`
	FontSize int     `form:"font_size" validate:"min=4,max=72"`
	Margin   float64 `form:"margin" validate:"min=0,max=200"`
	Color    string  `form:"color" validate:"omitempty,hexcolor,len=7"`
}

func (s *Service) handlePageNumbers(c *call) (*output, error) {
	in, err := s.pdf(c)
	if err != nil {
		return nil, err
	}
	form := pageNumbersForm{Position: c.str("position"), Format: c.str("format"), Color: c.str("color")}
	if form.Start, err = c.integer("start", 1); err != nil {
		return nil, err
	}
	if form.FontSize, err = c.integer("font_size", pdfops.DefaultFontSize); err != nil {
		return nil, err
	}
	if form.Margin, err = c.float("margin", pdfops.DefaultMargin); err != nil {
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
	out, err := pdfops.AddPageNumbers(in.data, pdfops.PageNumberOptions{
		Position: form.Position,
		Format:   form.Format,
		Start:    form.Start,
		FontSize: form.FontSize,
		Margin:   form.Margin,
		Color:    form.Color,
		Pages:    ranges,
	})
	if err != nil {
		return nil, err
	}
	return pdfOutput(in.base()+"_numbered.pdf", out), nil
}

type watermarkForm struct {
	Text     string  `form:"text" validate:"max=200"`
	FontSize int     `form:"font_size" validate:"min=0,max=200"`
	Color    string  `form:"color" validate:"omitempty,hexcolor,len=7"`
	Opacity  float64 `form:"opacity" validate:"min=0,max=1"`
	Rotation float64 `form:"rotation" validate:"min=-360,max=360"`
	Position string  `form:"position" validate:"omitempty,oneof=tl tc tr l c r bl bc br"`
	Scale    float64 `form:"scale" validate:"min=0,max=1"`
}

func (s *Service) handleWatermark(c *call) (*output, error) {
	in, err := s.pdf(c)
	if err != nil {
		return nil, err
	}
	form := watermarkForm{Text: c.str("text"), Color: c.str("color"), Position: c.str("position")}
	if form.FontSize, err = c.integer("font_size", 0); err != nil {
		return nil, err
	}
	if form.Opacity, err = c.float("opacity", 0); err != nil {
		return nil, err
	}
	if form.Rotation, err = c.float("rotation", 45); err != nil {
		return nil, err
	}
	if form.Scale, err = c.float("scale", 0); err != nil {
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
	behind := c.boolean("behind")

	var out []byte
	if c.hasFile("image") {
		img, err := s.file(c, "image", filetype.KindImage)
		if err != nil {
			return nil, err
		}
		out, err = pdfops.AddImageWatermark(in.data, img.data, pdfops.ImageWatermarkOptions{
			Scale:    form.Scale,
			Opacity:  form.Opacity,
			Rotation: form.Rotation,
			Position: form.Position,
			Behind:   behind,
			Pages:    ranges,
		})
		if err != nil {
			return nil, err
		}
	} else {
		out, err = pdfops.AddTextWatermark(in.data, pdfops.TextWatermarkOptions{
			Text:     form.Text,
			FontSize: form.FontSize,
			Color:    form.Color,
			Opacity:  form.Opacity,
			Rotation: form.Rotation,
			Position: form.Position,
			Behind:   behind,
			Pages:    ranges,
		})
		if err != nil {
			return nil, err
		}
	}
	return pdfOutput(in.base()+"_watermarked.pdf", out), nil
}

// coordSpace says how annotation and edit coordinates were measured. In
// viewport space (x, y) are pixels from the top left of the page rendered at
// scale pixels per point, rotation applied.
type coordSpace struct {
	Space string  `form:"space" validate:"oneof=document viewport"`
	Scale float64 `form:"scale" validate:"gt=0,lte=20"`
}

func (c *call) coordSpace() (coordSpace, error) {
	cs := coordSpace{Space: c.str("space")}
	if cs.Space == "" {
		cs.Space = "document"
	}
	var err error
	if cs.Scale, err = c.float("scale", 1); err != nil {
		return cs, err
	}
	return cs, validate.Struct(cs)
}

func (cs coordSpace) viewport(info *pdfops.DocumentInfo, page int) (*geom.Viewport, error) {
	if cs.Space != "viewport" {
		return nil, nil
	}
	p, err := info.Page(page)
	if err != nil {
		return nil, err
	}
	vp, err := p.Viewport(cs.Scale)
	if err != nil {
		return nil, err
	}
	return &vp, nil
}

type annotationInput struct {
	Page     int     `json:"page" validate:"min=1"`
	Text     string  `json:"text" validate:"required,max=500"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	FontSize int     `json:"font_size" validate:"min=0,max=96"`
	Color    string  `json:"color" validate:"omitempty,hexcolor,len=7"`
}

type annotateForm struct {
	Annotations []annotationInput `json:"annotations" validate:"required,min=1,max=500,dive"`
}

func (s *Service) handleAnnotate(c *call) (*output, error) {
	in, err := s.pdf(c)
	if err != nil {
		return nil, err
	}
	var form annotateForm
	if err := c.jsonField("annotations", &form.Annotations); err != nil {
		return nil, err
	}
	if err := validate.Struct(form); err != nil {
		return nil, err
	}
	cs, err := c.coordSpace()
	if err != nil {
		return nil, err
	}
	info, err := pdfops.Info(in.data)
	if err != nil {
		return nil, err
	}

	anns := make([]pdfops.Annotation, 0, len(form.Annotations))
	for _, a := range form.Annotations {
		x, y := a.X, a.Y
		vp, err := cs.viewport(info, a.Page)
		if err != nil {
			return nil, err
		}
		if vp != nil {
			p := vp.ToDocument(a.X, a.Y)
			x, y = p.X, p.Y
		}
		anns = append(anns, pdfops.Annotation{Page: a.Page, Text: a.Text, X: x, Y: y, FontSize: a.FontSize, Color: a.Color})
	}
	out, err := pdfops.Annotate(in.data, anns)
	if err != nil {
		return nil, err
	}
	return pdfOutput(in.base()+"_annotated.pdf", out), nil
}

type editInput struct {
	Page       int     `json:"page" validate:"min=1"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width" validate:"gt=0"`
	Height     float64 `json:"height" validate:"gt=0"`
	Text       string  `json:"text" validate:"max=500"`
	FontSize   int     `json:"font_size" validate:"min=0,max=96"`
	Color      string  `json:"color" validate:"omitempty,hexcolor,len=7"`
	Background string  `json:"background" validate:"omitempty,hexcolor,len=7"`
}

type editForm struct {
	Edits []editInput `json:"edits" validate:"required,min=1,max=500,dive"`
}

func (s *Service) handleEditText(c *call) (*output, error) {
	in, err := s.pdf(c)
	if err != nil {
		return nil, err
	}
	var form editForm
	if err := c.jsonField("edits", &form.Edits); err != nil {
		return nil, err
	}
	if err := validate.Struct(form); err != nil {
		return nil, err
	}
	cs, err := c.coordSpace()
	if err != nil {
		return nil, err
	}
	info, err := pdfops.Info(in.data)
	if err != nil {
		return nil, err
	}

	edits := make([]pdfops.TextEdit, 0, len(form.Edits))
	for _, e := range form.Edits {
		r := geom.Rect{X0: e.X, Y0: e.Y, X1: e.X + e.Width, Y1: e.Y + e.Height}
		vp, err := cs.viewport(info, e.Page)
		if err != nil {
			return nil, err
		}
		if vp != nil {
			r = vp.RectToDocument(r)
		}
		edits = append(edits, pdfops.TextEdit{
			Page:       e.Page,
			X:          r.X0,
			Y:          r.Y0,
			Width:      r.Width(),
			Height:     r.Height(),
			Text:       e.Text,
			FontSize:   e.FontSize,
			Color:      e.Color,
			Background: e.Background,
		})
	}
	out, err := pdfops.EditText(in.data, edits)
	if err != nil {
		return nil, err
	}
	return pdfOutput(in.base()+"_edited.pdf", out), nil
}

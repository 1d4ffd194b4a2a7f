package web

// Field is one input on a tool form.
type Field struct {
	Name        string
	Label       string
	Type        string // file, text, number, select, checkbox, textarea
	Options     []string
	Value       string
	Placeholder string
	Accept      string
	Multiple    bool
	Required    bool
	Help        string
}

// Tool describes one tool page and the endpoint its form posts to.
type Tool struct {
	Slug     string
	Title    string
	Summary  string
	Endpoint string
	Fields   []Field
}

const (
	acceptPDF    = "application/pdf,.pdf"
	acceptImages = "image/png,image/jpeg,image/gif,image/bmp,image/tiff,image/webp"
)

var (
	pdfField      = Field{Name: "file", Label: "PDF file", Type: "file", Accept: acceptPDF, Required: true}
	pagesField    = Field{Name: "pages", Label: "Pages", Type: "text", Placeholder: "e.g. 1-3,5,8-", Help: "Leave empty for all pages."}
	deliverField  = Field{Name: "deliver", Label: "Delivery", Type: "select", Options: []string{"download", "link"}}
	positionField = Field{Name: "position", Label: "Position", Type: "select", Options: []string{"bc", "bl", "br", "tc", "tl", "tr"}}
	spaceFields   = []Field{
		{Name: "space", Label: "Coordinates", Type: "select", Options: []string{"document", "viewport"}},
		{Name: "scale", Label: "Viewport scale", Type: "number", Value: "1", Help: "Pixels per point of the rendering the coordinates were measured on."},
	}
)

// Tools lists the pages in the order they appear on the index.
var Tools = []Tool{
	{
		Slug: "merge", Title: "Merge PDFs", Endpoint: "/api/merge",
		Summary: "Combine several PDFs into one, in upload order.",
		Fields:  []Field{{Name: "files", Label: "PDF files", Type: "file", Accept: acceptPDF, Multiple: true, Required: true}, deliverField},
	},
	{
		Slug: "split", Title: "Split PDF", Endpoint: "/api/split",
		Summary: "Split a PDF by page ranges or into fixed size chunks.",
		Fields: []Field{
			pdfField,
			{Name: "mode", Label: "Mode", Type: "select", Options: []string{"ranges", "every"}},
			{Name: "pages", Label: "Ranges", Type: "text", Placeholder: "e.g. 1-3,4-6", Help: "Each range becomes one file."},
			{Name: "every", Label: "Pages per file", Type: "number", Placeholder: "e.g. 2"},
			deliverField,
		},
	},
	{
		Slug: "extract", Title: "Extract pages", Endpoint: "/api/extract",
		Summary: "Build a new PDF from selected pages.",
		Fields:  []Field{pdfField, {Name: "pages", Label: "Pages", Type: "text", Placeholder: "e.g. 2,4-6", Required: true}, deliverField},
	},
	{
		Slug: "remove-pages", Title: "Remove pages", Endpoint: "/api/remove-pages",
		Summary: "Delete selected pages from a PDF.",
		Fields:  []Field{pdfField, {Name: "pages", Label: "Pages", Type: "text", Placeholder: "e.g. 1,3", Required: true}, deliverField},
	},
	{
		Slug: "rotate", Title: "Rotate pages", Endpoint: "/api/rotate",
		Summary: "Rotate all or selected pages clockwise.",
		Fields: []Field{
			pdfField,
			{Name: "angle", Label: "Angle", Type: "select", Options: []string{"90", "180", "270", "-90"}},
			pagesField,
			deliverField,
		},
	},
	{
		Slug: "page-numbers", Title: "Add page numbers", Endpoint: "/api/page-numbers",
		Summary: "Stamp page numbers on every or selected pages.",
		Fields: []Field{
			pdfField,
			positionField,
			{Name: "format", Label: "Format", Type: "text", Placeholder: "{n} of {total}"},
			{Name: "start", Label: "First number", Type: "number", Value: "1"},
			{Name: "font_size", Label: "Font size", Type: "number", Value: "12"},
			{Name: "margin", Label: "Margin (pt)", Type: "number", Value: "20"},
			{Name: "color", Label: "Color", Type: "text", Placeholder: "#000000"},
			pagesField,
			deliverField,
		},
	},
	{
		Slug: "watermark", Title: "Watermark", Endpoint: "/api/watermark",
		Summary: "Add a text or image watermark.",
		Fields: []Field{
			pdfField,
			{Name: "text", Label: "Text", Type: "text", Placeholder: "CONFIDENTIAL"},
			{Name: "image", Label: "Or image", Type: "file", Accept: acceptImages},
			{Name: "opacity", Label: "Opacity", Type: "number", Value: "0.5"},
			{Name: "rotation", Label: "Rotation", Type: "number", Value: "45"},
			{Name: "font_size", Label: "Font size", Type: "number", Value: "48"},
			{Name: "color", Label: "Color", Type: "text", Placeholder: "#808080"},
			{Name: "behind", Label: "Behind content", Type: "checkbox"},
			pagesField,
			deliverField,
		},
	},
	{
		Slug: "annotate", Title: "Annotate", Endpoint: "/api/annotate",
		Summary: "Place text notes at given coordinates.",
		Fields: append([]Field{
			pdfField,
			{Name: "annotations", Label: "Annotations (JSON)", Type: "textarea", Required: true,
				Placeholder: `[{"page":1,"text":"Approved","x":72,"y":720,"font_size":14,"color":"#CC0000"}]`},
		}, append(spaceFields, deliverField)...),
	},
	{
		Slug: "edit-text", Title: "Edit text", Endpoint: "/api/edit-text",
		Summary: "Cover a region and write replacement text over it.",
		Fields: append([]Field{
			pdfField,
			{Name: "edits", Label: "Edits (JSON)", Type: "textarea", Required: true,
				Placeholder: `[{"page":1,"x":72,"y":700,"width":120,"height":14,"text":"New text"}]`},
		}, append(spaceFields, deliverField)...),
	},
	{
		Slug: "text-items", Title: "Text layout", Endpoint: "/api/text-items",
		Summary: "List positioned text blocks for editing.",
		Fields:  []Field{pdfField, pagesField, {Name: "scale", Label: "Viewport scale", Type: "number", Help: "Also report boxes in pixels at this scale."}},
	},
	{
		Slug: "extract-text", Title: "Extract text", Endpoint: "/api/extract-text",
		Summary: "Get the plain text of a PDF.",
		Fields: []Field{
			pdfField,
			pagesField,
			{Name: "format", Label: "Format", Type: "select", Options: []string{"txt", "json"}},
			{Name: "clean", Label: "Drop headers, footers and page numbers", Type: "checkbox"},
		},
	},
	{
		Slug: "pdf-to-images", Title: "PDF to images", Endpoint: "/api/pdf-to-images",
		Summary: "Render pages as PNG or JPEG.",
		Fields: []Field{
			pdfField,
			{Name: "format", Label: "Format", Type: "select", Options: []string{"png", "jpeg"}},
			{Name: "dpi", Label: "DPI", Type: "number", Value: "150"},
			{Name: "quality", Label: "JPEG quality", Type: "number", Value: "85"},
			{Name: "gray", Label: "Grayscale", Type: "checkbox"},
			pagesField,
			deliverField,
		},
	},
	{
		Slug: "images-to-pdf", Title: "Images to PDF", Endpoint: "/api/images-to-pdf",
		Summary: "One page per image, in upload order.",
		Fields:  []Field{{Name: "files", Label: "Images", Type: "file", Accept: acceptImages, Multiple: true, Required: true}, deliverField},
	},
	{
		Slug: "compress", Title: "Compress", Endpoint: "/api/compress",
		Summary: "Optimize a PDF by removing redundant objects.",
		Fields:  []Field{pdfField, deliverField},
	},
	{
		Slug: "info", Title: "Document info", Endpoint: "/api/info",
		Summary: "Page count, sizes and rotation.",
		Fields:  []Field{pdfField},
	},
}

// Lookup finds a tool by slug.
func Lookup(slug string) (Tool, bool) {
	for _, t := range Tools {
		if t.Slug == slug {
			return t, true
		}
	}
	return Tool{}, false
}

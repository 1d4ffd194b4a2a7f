package tools

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/pdftools/internal/filetype"
	"github.com/local/pdftools/internal/geom"
	"github.com/local/pdftools/internal/limiter"
	"github.com/local/pdftools/internal/pagerange"
	"github.com/local/pdftools/internal/pdfops"
	"github.com/local/pdftools/internal/render"
	"github.com/local/pdftools/internal/storage"
)

type part struct {
	field, name string
	data        []byte
}

func pngImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(1, 1, color.Black)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testPDF(t *testing.T, pages int) []byte {
	t.Helper()
	imgs := make([][]byte, pages)
	for i := range imgs {
		imgs[i] = pngImage(t, 200, 280)
	}
	doc, err := pdfops.ImagesToPDF(imgs)
	require.NoError(t, err)
	return doc
}

func renderedPageText(t *testing.T, doc []byte, page int) string {
	t.Helper()
	text, err := render.PageText(doc, page, false)
	require.NoError(t, err)
	return text
}

func multipartRequest(t *testing.T, path string, fields map[string]string, parts ...part) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, p := range parts {
		fw, err := mw.CreateFormFile(p.field, p.name)
		require.NoError(t, err)
		_, err = fw.Write(p.data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func newServer(t *testing.T, opts Options) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	New(opts).RegisterRoutes(mux)
	return mux
}

func do(mux http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestStatusFor(t *testing.T) {
	valErr := validate.Struct(rotateForm{Angle: 45})
	require.Error(t, valErr)

	tests := []struct {
		err  error
		want int
	}{
		{badRequest("x"), http.StatusBadRequest},
		{&pagerange.ValidationError{Token: "9", Message: "out of range"}, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", &pdfops.ValidationError{Field: "pages"}), http.StatusBadRequest},
		{valErr, http.StatusBadRequest},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{&filetype.UnsupportedError{MIME: "text/plain"}, http.StatusUnsupportedMediaType},
		{&pdfops.FormatError{MIME: "image/svg+xml"}, http.StatusUnsupportedMediaType},
		{&pdfops.DocumentError{Op: "read", Err: errors.New("bad xref")}, http.StatusUnprocessableEntity},
		{errBusy, http.StatusTooManyRequests},
		{storage.ErrNotFound, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), "%v", tt.err)
	}
}

func TestErrorMessageHidesInternals(t *testing.T) {
	assert.Equal(t, "Internal Server Error", errorMessage(errors.New("db password wrong"), 500))
	msg := errorMessage(validate.Struct(rotateForm{Angle: 45}), 400)
	assert.Contains(t, msg, "angle")
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "annual_report", baseName("annual report.pdf"))
	assert.Equal(t, "x", baseName("../../x.pdf"))
	assert.Equal(t, "document", baseName(""))
	assert.Equal(t, "document", baseName("ünï.pdf"))
}

func TestInfo(t *testing.T) {
	mux := newServer(t, Options{})
	rec := do(mux, multipartRequest(t, "/api/info", nil, part{"file", "a.pdf", testPDF(t, 2)}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var info pdfops.DocumentInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, 2, info.PageCount)
	assert.Len(t, info.Pages, 2)
}

func TestRequestErrors(t *testing.T) {
	mux := newServer(t, Options{})
	doc := testPDF(t, 3)

	rec := do(mux, multipartRequest(t, "/api/rotate", map[string]string{"angle": "45"}, part{"file", "a.pdf", doc}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorBody(t, rec), "angle")

	rec = do(mux, multipartRequest(t, "/api/extract", map[string]string{"pages": "2-9"}, part{"file", "a.pdf", doc}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorBody(t, rec), "out of range")

	rec = do(mux, multipartRequest(t, "/api/extract", nil, part{"file", "a.pdf", doc}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(mux, multipartRequest(t, "/api/info", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorBody(t, rec), "file")

	rec = do(mux, multipartRequest(t, "/api/info", nil, part{"file", "a.png", pngImage(t, 4, 4)}))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = do(mux, multipartRequest(t, "/api/info", nil, part{"file", "broken.pdf", []byte("%PDF-1.4\nthis is not a document\n")}))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(mux, multipartRequest(t, "/api/page-numbers", map[string]string{"position": "middle"}, part{"file", "a.pdf", doc}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorBody(t, rec), "position")

	rec = do(mux, httptest.NewRequest(http.MethodPost, "/api/merge", strings.NewReader("{}")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(mux, httptest.NewRequest(http.MethodGet, "/api/merge", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestUploadTooLarge(t *testing.T) {
	mux := newServer(t, Options{MaxUploadBytes: 256})
	rec := do(mux, multipartRequest(t, "/api/info", nil, part{"file", "a.pdf", testPDF(t, 1)}))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		trustProxy bool
		remote     string
		forwarded  string
		want       string
	}{
		{"peer address", false, "192.0.2.7:51000", "", "192.0.2.7"},
		{"forwarded ignored by default", false, "192.0.2.7:51000", "203.0.113.9", "192.0.2.7"},
		{"spoofed chain ignored by default", false, "192.0.2.7:51000", "198.51.100.1, 203.0.113.9", "192.0.2.7"},
		{"trusted proxy", true, "10.0.0.2:443", "203.0.113.9, 10.0.0.1", "203.0.113.9"},
		{"trusted proxy without header", true, "10.0.0.2:443", "", "10.0.0.2"},
		{"trusted proxy blank header", true, "10.0.0.2:443", " , 10.0.0.1", "10.0.0.2"},
		{"remote without port", false, "192.0.2.7", "", "192.0.2.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(Options{TrustProxy: tt.trustProxy})
			r := httptest.NewRequest(http.MethodPost, "/api/merge", nil)
			r.RemoteAddr = tt.remote
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			assert.Equal(t, tt.want, s.clientIP(r))
		})
	}
}

func TestBusy(t *testing.T) {
	l, err := limiter.New(limiter.Options{MaxInflight: 1})
	require.NoError(t, err)
	release, ok := l.Allow("merge")
	require.True(t, ok)
	defer release()

	mux := newServer(t, Options{Limiter: l})
	rec := do(mux, multipartRequest(t, "/api/merge", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	errorBody(t, rec)
}

func TestMergeAndSplit(t *testing.T) {
	mux := newServer(t, Options{})

	rec := do(mux, multipartRequest(t, "/api/merge", nil,
		part{"files", "a.pdf", testPDF(t, 2)},
		part{"files", "b.pdf", testPDF(t, 1)}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "merged.pdf")
	merged := rec.Body.Bytes()
	n, err := pdfops.PageCount(merged)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	rec = do(mux, multipartRequest(t, "/api/split", map[string]string{"mode": "every", "every": "1"}, part{"file", "book.pdf", merged}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"book_1.pdf", "book_2.pdf", "book_3.pdf"}, names)

	rec = do(mux, multipartRequest(t, "/api/split", map[string]string{"pages": "2-3"}, part{"file", "book.pdf", merged}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "book_2-3.pdf")
}

func TestPageTools(t *testing.T) {
	mux := newServer(t, Options{})
	doc := testPDF(t, 3)

	for _, tc := range []struct {
		path   string
		fields map[string]string
		pages  int
	}{
		{"/api/rotate", map[string]string{"angle": "-90", "pages": "1"}, 3},
		{"/api/extract", map[string]string{"pages": "3,1"}, 2},
		{"/api/remove-pages", map[string]string{"pages": "2"}, 2},
		{"/api/compress", nil, 3},
		{"/api/page-numbers", map[string]string{"format": "{n} / {total}", "position": "br"}, 3},
		{"/api/watermark", map[string]string{"text": "DRAFT", "opacity": "0.3"}, 3},
	} {
		rec := do(mux, multipartRequest(t, tc.path, tc.fields, part{"file", "doc.pdf", doc}))
		require.Equal(t, http.StatusOK, rec.Code, "%s: %s", tc.path, rec.Body.String())
		n, err := pdfops.PageCount(rec.Body.Bytes())
		require.NoError(t, err, tc.path)
		assert.Equal(t, tc.pages, n, tc.path)
	}

	rec := do(mux, multipartRequest(t, "/api/watermark", map[string]string{"pages": "2"},
		part{"file", "doc.pdf", doc}, part{"image", "logo.png", pngImage(t, 30, 30)}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(mux, multipartRequest(t, "/api/page-numbers", map[string]string{"format": "{n}/{total}", "start": "5", "pages": "2-3"},
		part{"file", "doc.pdf", doc}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, renderedPageText(t, rec.Body.Bytes(), 2), "5/6")
	assert.Contains(t, renderedPageText(t, rec.Body.Bytes(), 3), "6/6")
	assert.NotContains(t, renderedPageText(t, rec.Body.Bytes(), 1), "/6")

	rec = do(mux, multipartRequest(t, "/api/watermark", map[string]string{"text": "CONFIDENTIAL"}, part{"file", "doc.pdf", doc}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, renderedPageText(t, rec.Body.Bytes(), 3), "CONFIDENTIAL")
}

func TestAnnotateAndEdit(t *testing.T) {
	mux := newServer(t, Options{})
	doc := testPDF(t, 2)

	rec := do(mux, multipartRequest(t, "/api/annotate", map[string]string{
		"annotations": `[{"page":1,"text":"checked","x":20,"y":30},{"page":2,"text":"see","x":5,"y":5,"color":"#FF0000"}]`,
		"space":       "viewport",
		"scale":       "1.5",
	}, part{"file", "doc.pdf", doc}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, renderedPageText(t, rec.Body.Bytes(), 1), "checked")
	assert.Contains(t, renderedPageText(t, rec.Body.Bytes(), 2), "see")

	rec = do(mux, multipartRequest(t, "/api/annotate", map[string]string{"annotations": `[{"page":0,"text":"x"}]`}, part{"file", "doc.pdf", doc}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(mux, multipartRequest(t, "/api/annotate", map[string]string{"annotations": `not json`}, part{"file", "doc.pdf", doc}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(mux, multipartRequest(t, "/api/edit-text", map[string]string{
		"edits": `[{"page":1,"x":10,"y":10,"width":80,"height":12,"text":"replacement"}]`,
	}, part{"file", "doc.pdf", doc}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, renderedPageText(t, rec.Body.Bytes(), 1), "replacement")

	rec = do(mux, multipartRequest(t, "/api/edit-text", map[string]string{
		"edits": `[{"page":1,"x":10,"y":10,"width":0,"height":12}]`,
	}, part{"file", "doc.pdf", doc}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConversions(t *testing.T) {
	mux := newServer(t, Options{DefaultDPI: 36})
	doc := testPDF(t, 2)

	rec := do(mux, multipartRequest(t, "/api/pdf-to-images", map[string]string{"pages": "2"}, part{"file", "doc.pdf", doc}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "doc_page_2.png")

	rec = do(mux, multipartRequest(t, "/api/pdf-to-images", map[string]string{"format": "jpeg"}, part{"file", "doc.pdf", doc}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))

	limited := newServer(t, Options{MaxRenderPages: 1})
	rec = do(limited, multipartRequest(t, "/api/pdf-to-images", nil, part{"file", "doc.pdf", doc}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(mux, multipartRequest(t, "/api/images-to-pdf", nil,
		part{"files", "a.png", pngImage(t, 50, 50)},
		part{"files", "b.png", pngImage(t, 60, 40)}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	n, err := pdfops.PageCount(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rec = do(mux, multipartRequest(t, "/api/images-to-pdf", nil, part{"files", "a.pdf", doc}))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestTextEndpoints(t *testing.T) {
	mux := newServer(t, Options{})
	doc := testPDF(t, 2)

	rec := do(mux, multipartRequest(t, "/api/text-items", map[string]string{"scale": "2"}, part{"file", "doc.pdf", doc}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var items textItemsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	assert.Equal(t, 2, items.PageCount)
	assert.Len(t, items.Pages, 2)
	assert.False(t, items.HasTextLayer)

	rec = do(mux, multipartRequest(t, "/api/extract-text", map[string]string{"pages": "2"}, part{"file", "doc.pdf", doc}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, textType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "=== Page 2 ===")

	rec = do(mux, multipartRequest(t, "/api/extract-text", map[string]string{"format": "xml"}, part{"file", "doc.pdf", doc}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTextItemsOnTextDocument(t *testing.T) {
	mux := newServer(t, Options{})
	doc, err := os.ReadFile("testdata/hello.pdf")
	require.NoError(t, err)

	rec := do(mux, multipartRequest(t, "/api/text-items", map[string]string{"scale": "2"}, part{"file", "hello.pdf", doc}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var items textItemsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	assert.Equal(t, 1, items.PageCount)
	require.Len(t, items.Pages, 1)
	assert.InDelta(t, 612, items.Pages[0].Width, 0.01)
	assert.InDelta(t, 792, items.Pages[0].Height, 0.01)

	require.Len(t, items.Blocks, 1)
	b := items.Blocks[0]
	assert.Equal(t, "Hello world", b.Text)
	assert.InDelta(t, 72, b.X, 0.01)
	assert.InDelta(t, 720, b.Y, 0.01)
	assert.InDelta(t, 12, b.FontSize, 0.01)

	// baseline 720 and a 12pt box on a 792pt page, doubled and flipped
	require.NotNil(t, b.Viewport)
	assert.InDelta(t, 144, b.Viewport.X0, 0.01)
	assert.InDelta(t, 120, b.Viewport.Y0, 0.01)
	assert.InDelta(t, 144, b.Viewport.Y1, 0.01)
	assert.InDelta(t, 144+2*b.Width, b.Viewport.X1, 0.01)

	rec = do(mux, multipartRequest(t, "/api/text-items", nil, part{"file", "hello.pdf", doc}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	items = textItemsResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items.Blocks, 1)
	assert.Nil(t, items.Blocks[0].Viewport)

	rec = do(mux, multipartRequest(t, "/api/extract-text", nil, part{"file", "hello.pdf", doc}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Hello world")
}

func TestPageInfosReportsMissingPage(t *testing.T) {
	info := &pdfops.DocumentInfo{PageCount: 2, Pages: []pdfops.PageInfo{{Number: 1, Box: geom.Rect{X1: 100, Y1: 100}}}}

	got, err := pageInfos(info, []int{1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Number)

	_, err = pageInfos(info, []int{1, 2})
	require.Error(t, err)
	var verr *pdfops.ValidationError
	assert.True(t, errors.As(err, &verr), "want *pdfops.ValidationError, got %T", err)
}

func TestDeliverLink(t *testing.T) {
	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	mux := newServer(t, Options{Store: store})

	rec := do(mux, multipartRequest(t, "/api/rotate", map[string]string{"deliver": "link"}, part{"file", "doc.pdf", testPDF(t, 1)}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var link linkResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &link))
	assert.Equal(t, "doc_rotated.pdf", link.Name)
	assert.Equal(t, "/api/results/"+link.ResultID, link.DownloadURL)

	rec = do(mux, httptest.NewRequest(http.MethodGet, link.DownloadURL, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	body, _ := io.ReadAll(rec.Body)
	assert.Equal(t, link.Size, int64(len(body)))

	rec = do(mux, httptest.NewRequest(http.MethodGet, "/api/results/5d0f5b0e-3c1f-4bb2-9d59-1b1f3b0c6a11", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(mux, httptest.NewRequest(http.MethodGet, "/api/results/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeliverLinkDisabled(t *testing.T) {
	mux := newServer(t, Options{})
	rec := do(mux, multipartRequest(t, "/api/rotate", map[string]string{"deliver": "link"}, part{"file", "doc.pdf", testPDF(t, 1)}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorBody(t, rec), "not enabled")
}

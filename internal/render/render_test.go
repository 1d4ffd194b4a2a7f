package render

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/pdftools/internal/pdfops"
)

func testDoc(t *testing.T, pages int) []byte {
	t.Helper()
	var imgs [][]byte
	for i := 0; i < pages; i++ {
		img := image.NewRGBA(image.Rect(0, 0, 120, 160))
		img.Set(10, 10, color.Black)
		var buf bytes.Buffer
		require.NoError(t, png.Encode(&buf, img))
		imgs = append(imgs, buf.Bytes())
	}
	doc, err := pdfops.ImagesToPDF(imgs)
	require.NoError(t, err)
	return doc
}

func TestOptionsDefaults(t *testing.T) {
	o, err := Options{}.withDefaults()
	require.NoError(t, err)
	assert.Equal(t, PNG, o.Format)
	assert.Equal(t, DefaultDPI, o.DPI)
	assert.Equal(t, DefaultQuality, o.Quality)

	o, err = Options{Format: "jpg"}.withDefaults()
	require.NoError(t, err)
	assert.Equal(t, JPEG, o.Format)

	for _, bad := range []Options{{Format: "gif"}, {DPI: 5000}, {DPI: 1}, {Quality: 101}} {
		_, err := bad.withDefaults()
		assert.Error(t, err, "%+v", bad)
	}
}

func TestPageImageName(t *testing.T) {
	assert.Equal(t, "scan_page_3.jpg", PageImage{Page: 3, Format: JPEG}.Name("scan"))
	assert.Equal(t, "image/png", PNG.ContentType())
}

func TestPagesToImages(t *testing.T) {
	doc := testDoc(t, 3)

	imgs, err := PagesToImages(context.Background(), doc, []int{3, 1}, Options{DPI: 72})
	require.NoError(t, err)
	require.Len(t, imgs, 2)
	assert.Equal(t, 3, imgs[0].Page)
	assert.Equal(t, 1, imgs[1].Page)
	decoded, err := png.Decode(bytes.NewReader(imgs[0].Data))
	require.NoError(t, err)
	assert.Equal(t, imgs[0].Width, decoded.Bounds().Dx())
	assert.Greater(t, imgs[0].Width, 0)

	all, err := PagesToImages(context.Background(), doc, nil, Options{Format: JPEG, DPI: 36, Gray: true})
	require.NoError(t, err)
	require.Len(t, all, 3)
	_, err = jpeg.Decode(bytes.NewReader(all[2].Data))
	assert.NoError(t, err)

	_, err = PagesToImages(context.Background(), doc, []int{4}, Options{})
	assert.Error(t, err)
}

func TestPagesToImagesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := PagesToImages(ctx, testDoc(t, 1), nil, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenRejectsGarbage(t *testing.T) {
	_, err := Open(nil)
	assert.Error(t, err)
}

func TestImageOnlyDocumentHasNoTextLayer(t *testing.T) {
	probe, err := HasTextLayer(testDoc(t, 2), 0)
	require.NoError(t, err)
	assert.False(t, probe.HasText)
	assert.Equal(t, []int{1, 2}, probe.SampledPages)
	assert.Equal(t, DefaultThreshold, probe.Threshold)

	text, err := AllText(testDoc(t, 2), true)
	require.NoError(t, err)
	assert.Contains(t, text, "=== Page 2 ===")
}

func TestTextDocument(t *testing.T) {
	data, err := os.ReadFile("testdata/hello.pdf")
	require.NoError(t, err)

	text, err := PageText(data, 1, false)
	require.NoError(t, err)
	assert.Contains(t, text, "Hello world")

	layer, err := HasTextLayer(data, 5)
	require.NoError(t, err)
	assert.True(t, layer.HasText)
	assert.Equal(t, len("Helloworld"), layer.Chars)

	layer, err = HasTextLayer(data, 0)
	require.NoError(t, err)
	assert.False(t, layer.HasText)
}

func TestSamplePages(t *testing.T) {
	assert.Equal(t, []int{}, samplePages(0))
	assert.Equal(t, []int{1, 2, 3}, samplePages(3))
	got := samplePages(40)
	require.Len(t, got, 5)
	assert.Contains(t, got, 1)
	assert.Contains(t, got, 21)
	assert.Contains(t, got, 40)
	for _, p := range got {
		assert.True(t, p >= 1 && p <= 40)
	}
}

func TestCleanText(t *testing.T) {
	raw := strings.Join([]string{
		"ACME REPORT",
		"The quarterly numbers were",
		"better than expected.",
		"*** ---",
		"Copyright 2024 Acme",
		"Page 2",
		"",
	}, "\n")
	assert.Equal(t, "The quarterly numbers were better than expected.", CleanText(raw, 2))
}

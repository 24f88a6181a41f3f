package imaging

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestFit(t *testing.T) {
	testCases := []struct {
		name           string
		w, h           int
		expectedWidth  int
		expectedHeight int
	}{
		{"Small image untouched", 400, 300, 400, 300},
		{"Landscape", 1600, 1200, 800, 600},
		{"Portrait", 1000, 2000, 400, 800},
		{"Square", 1200, 1200, 800, 800},
		{"Very thin", 8000, 2, 800, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w, h := fit(tc.w, tc.h, 800)
			assert.Equal(t, tc.expectedWidth, w)
			assert.Equal(t, tc.expectedHeight, h)
		})
	}
}

func TestTranscodeResizesToJPEG(t *testing.T) {
	out, err := Transcode(pngBytes(t, 1000, 500, color.NRGBA{R: 200, A: 255}), Options{MaxDimension: 200})
	require.NoError(t, err)

	img, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 100, img.Bounds().Dy())
}

func TestTranscodeFlattensTransparencyOnWhite(t *testing.T) {
	out, err := Transcode(pngBytes(t, 20, 20, color.NRGBA{}), Options{})
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	r, g, b, _ := img.At(10, 10).RGBA()
	assert.Greater(t, r>>8, uint32(240))
	assert.Greater(t, g>>8, uint32(240))
	assert.Greater(t, b>>8, uint32(240))
}

func TestTranscodeRejectsOversizedDeclaredDimensions(t *testing.T) {
	data := pngBytes(t, 2, 2, color.White)
	// Rewrite the IHDR size to 30000x30000 and fix its checksum.
	binary.BigEndian.PutUint32(data[16:20], 30000)
	binary.BigEndian.PutUint32(data[20:24], 30000)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 30000, cfg.Width)

	_, err = Transcode(data, Options{})
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestTranscodeRejectsGarbage(t *testing.T) {
	_, err := Transcode([]byte("<html>not an image</html>"), Options{})
	assert.ErrorContains(t, err, "decode image")
}

func TestFetch(t *testing.T) {
	body := pngBytes(t, 4, 4, color.Black)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			assert.Equal(t, "evimeria-seed/1.0", r.Header.Get("User-Agent"))
			w.Header().Set("Content-Type", "image/png")
			w.Write(body)
		case "/empty":
			w.WriteHeader(http.StatusOK)
		case "/slow":
			time.Sleep(200 * time.Millisecond)
			w.Write(body)
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	f := NewFetcher(FetcherOpts{Timeout: 50 * time.Millisecond})
	ctx := context.Background()

	got, err := f.Fetch(ctx, ts.URL+"/ok.png")
	require.NoError(t, err)
	assert.Equal(t, body, got)

	_, err = f.Fetch(ctx, ts.URL+"/missing")
	assert.ErrorContains(t, err, "status 404")

	_, err = f.Fetch(ctx, ts.URL+"/empty")
	assert.ErrorIs(t, err, ErrEmptyBody)

	_, err = f.Fetch(ctx, ts.URL+"/slow")
	assert.Error(t, err, "the per request timeout applies")
}

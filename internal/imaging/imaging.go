// Package imaging downloads remote pictures and re-encodes them as bounded
// size JPEGs before they are handed to the media host.
package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	DefaultMaxDimension = 800
	DefaultQuality      = 85
	defaultTimeout      = 30 * time.Second
	// maxBodySize caps a download at 20 MiB.
	maxBodySize = 20 << 20
	// maxPixels caps the decoded size, whatever the encoded size is.
	maxPixels = 64 << 20
)

// ErrEmptyBody is returned when the remote host answers 2xx with no content.
var ErrEmptyBody = errors.New("empty image body")

// ErrTooLarge is returned when an image declares more pixels than Transcode accepts.
var ErrTooLarge = errors.New("image too large")

type FetcherOpts struct {
	// Timeout applies to each request as a whole. There is no retry.
	Timeout   time.Duration
	UserAgent string
}

// Fetcher downloads images over HTTP.
type Fetcher struct {
	httpClient *resty.Client
}

func NewFetcher(opts FetcherOpts) *Fetcher {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "evimeria-seed/1.0"
	}
	return &Fetcher{
		httpClient: resty.New().
			SetTimeout(timeout).
			SetResponseBodyLimit(maxBodySize).
			SetHeader("User-Agent", userAgent).
			SetHeader("Accept", "image/jpeg,image/png,image/webp,image/*"),
	}
}

// Fetch returns the body of url.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	res, err := f.httpClient.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("fetch %s: status %d", url, res.StatusCode())
	}
	if len(res.Body()) == 0 {
		return nil, fmt.Errorf("fetch %s: %w", url, ErrEmptyBody)
	}
	return res.Body(), nil
}

type Options struct {
	// MaxDimension bounds the longest side in pixels. Smaller images are not enlarged.
	MaxDimension int
	// Quality is the JPEG quality, 1 to 100.
	Quality int
}

func (o Options) withDefaults() Options {
	if o.MaxDimension <= 0 {
		o.MaxDimension = DefaultMaxDimension
	}
	if o.Quality < 1 || o.Quality > 100 {
		o.Quality = DefaultQuality
	}
	return o
}

// Transcode decodes a JPEG, PNG, GIF or WebP image, scales it down to fit
// MaxDimension, flattens transparency onto white and encodes it as JPEG.
func Transcode(data []byte, opts Options) ([]byte, error) {
	opts = opts.withDefaults()

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, fmt.Errorf("decode image: %dx%d: %w", cfg.Width, cfg.Height, ErrTooLarge)
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	width, height := fit(bounds.Dx(), bounds.Dy(), opts.MaxDimension)
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("decode image: empty %s image", format)
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// fit returns the size of a w x h image scaled to fit a limit x limit box.
func fit(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		return limit, scaled(h, limit, w)
	}
	return scaled(w, limit, h), limit
}

func scaled(side, num, den int) int {
	v := (side*num + den/2) / den
	if v < 1 {
		return 1
	}
	return v
}

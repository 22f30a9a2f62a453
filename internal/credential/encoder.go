package credential

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"hacktickets/internal/ticketing"
)

// Encoder turns (ticketId, token) into the canonical verification URL and
// its QR image. Identical inputs always produce identical payload text.
type Encoder struct {
	// baseURL is the deployment the gate agent's scan resolves against.
	baseURL string

	// size is the rendered image width/height in pixels.
	size int

	// margin is the quiet zone, in module counts.
	margin int
}

func NewEncoder(baseURL string, size, margin int) *Encoder {
	return &Encoder{
		baseURL: strings.TrimRight(baseURL, "/"),
		size:    size,
		margin:  margin,
	}
}

// PayloadURL builds the credential payload. ticketId and token are inserted
// verbatim as path segments; no URL-encoding transformation is applied.
// Empty inputs are a caller programming error.
func (e *Encoder) PayloadURL(ticketID, token string) (string, error) {
	if ticketID == "" {
		return "", ticketing.NewEncodingError("credential encode: empty ticket id")
	}
	if token == "" {
		return "", ticketing.NewEncodingError("credential encode: empty token")
	}
	return fmt.Sprintf("%s/verifyme/%s/%s", e.baseURL, ticketID, token), nil
}

// Encode renders the credential payload as a PNG QR image.
func (e *Encoder) Encode(ticketID, token string) ([]byte, error) {
	payload, err := e.PayloadURL(ticketID, token)
	if err != nil {
		return nil, err
	}

	q, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("credential encode: %w", err)
	}

	// The library's quiet zone is fixed at four modules; drop it and draw
	// the configured margin instead.
	q.DisableBorder = true

	img := renderModules(q.Bitmap(), e.size, e.margin)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("credential encode: png: %w", err)
	}
	return buf.Bytes(), nil
}

// renderModules rasterizes a QR module matrix at the requested pixel size
// with a quiet zone of margin modules on every side.
func renderModules(modules [][]bool, size, margin int) image.Image {
	count := len(modules)
	total := count + 2*margin

	scale := size / total
	if scale < 1 {
		scale = 1
	}
	side := total * scale

	img := image.NewNRGBA(image.Rect(0, 0, side, side))
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})
		}
	}

	for my, row := range modules {
		for mx, dark := range row {
			if !dark {
				continue
			}
			x0 := (mx + margin) * scale
			y0 := (my + margin) * scale
			for y := y0; y < y0+scale; y++ {
				for x := x0; x < x0+scale; x++ {
					img.SetNRGBA(x, y, color.NRGBA{A: 0xff})
				}
			}
		}
	}

	return img
}

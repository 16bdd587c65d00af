// Package compositor produces a finished portrait locally when the cloud
// renderer is unavailable. The output matches the render template: the scene
// fills the square canvas, a translucent white wash softens it, the cutout
// subject sits centered on top, and the para name and description are drawn
// over everything.
package compositor

import (
	"bytes"
	"context"
	"image"
	"net/http"
	"strings"

	"iamkolkata/internal/common/config"
	apperrors "iamkolkata/internal/common/errors"
	"iamkolkata/internal/common/httpx"
	"iamkolkata/internal/common/logger"
	"iamkolkata/internal/models"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
	"golang.org/x/image/font/basicfont"
)

const defaultCanvasSize = 1080

// Compositor renders portraits on a local canvas.
type Compositor struct {
	cfg        config.CompositorConfig
	httpClient *http.Client
	log        logger.Logger
}

// New builds a Compositor from configuration.
func New(cfg config.CompositorConfig, log logger.Logger) *Compositor {
	return &Compositor{
		cfg:        cfg,
		httpClient: httpx.New(0),
		log:        log.With(map[string]interface{}{"component": "compositor"}),
	}
}

// Compose renders a portrait PNG from the merge fields. Both image URLs must
// be present; composition cannot start without them.
func (c *Compositor) Compose(ctx context.Context, fields models.MergeFields) ([]byte, error) {
	if fields.BgImage == "" {
		return nil, apperrors.NewStateError(apperrors.ErrCodeMissingMergeField, "background image URL is missing")
	}
	if fields.UserImage == "" {
		return nil, apperrors.NewStateError(apperrors.ErrCodeMissingMergeField, "subject image URL is missing")
	}

	assets, err := c.fetchAssets(ctx, fields.BgImage, fields.UserImage)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	size := c.cfg.CanvasSize
	if size <= 0 {
		size = defaultCanvasSize
	}

	dc := gg.NewContext(size, size)

	// Scene stretched to fill the whole canvas, aspect ratio ignored.
	dc.DrawImage(stretch(assets.scene, size, size), 0, 0)

	// Translucent white wash so the text stays readable over any scene.
	dc.SetRGBA(1, 1, 1, 0.3)
	dc.DrawRectangle(0, 0, float64(size), float64(size))
	dc.Fill()

	// Subject keyed and centered, filling 80% of the canvas.
	subject := assets.subject
	if c.cfg.ChromaThreshold > 0 {
		subject = keyOutDark(subject, uint8(c.cfg.ChromaThreshold))
	}
	bounds := subject.Bounds()
	sw, sh := FitWithin(bounds.Dx(), bounds.Dy(), int(0.8*float64(size)))
	dc.DrawImageAnchored(stretch(subject, sw, sh), size/2, size/2, 0.5, 0.5)

	c.drawFrame(dc, size)
	c.drawText(dc, size, fields)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, apperrors.NewPhaseError(apperrors.ErrCodeCompositeFailed, "composite", err)
	}

	c.log.Info("portrait composed locally", map[string]interface{}{
		"canvas": size,
		"bytes":  buf.Len(),
	})
	return buf.Bytes(), nil
}

// drawFrame overlays the optional decorative frame. A missing or unreadable
// frame never fails the composite.
func (c *Compositor) drawFrame(dc *gg.Context, size int) {
	if c.cfg.FramePath == "" {
		return
	}
	frame, err := gg.LoadImage(c.cfg.FramePath)
	if err != nil {
		c.log.Warn("frame overlay skipped", map[string]interface{}{
			"path":  c.cfg.FramePath,
			"error": err.Error(),
		})
		return
	}
	dc.DrawImage(stretch(frame, size, size), 0, 0)
}

func (c *Compositor) drawText(dc *gg.Context, size int, fields models.MergeFields) {
	margin := float64(size) / 18
	maxWidth := float64(size) - 2*margin

	c.setFont(dc, float64(size)/16)

	// Title with a drop shadow for contrast.
	title := fields.ParaName
	if fields.Pincode != "" && fields.Pincode != models.UnknownPincode {
		title = title + " " + fields.Pincode
	}
	dc.SetRGBA(0, 0, 0, 0.6)
	dc.DrawStringAnchored(title, float64(size)/2+2, margin+2, 0.5, 0.5)
	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored(title, float64(size)/2, margin, 0.5, 0.5)

	if fields.ParaDescription == "" {
		return
	}

	c.setFont(dc, float64(size)/36)
	lines := WrapWords(func(s string) float64 {
		w, _ := dc.MeasureString(s)
		return w
	}, fields.ParaDescription, maxWidth)

	lineHeight := float64(size) / 28
	y := float64(size) - margin - float64(len(lines)-1)*lineHeight
	for _, line := range lines {
		dc.SetRGBA(0, 0, 0, 0.6)
		dc.DrawStringAnchored(line, float64(size)/2+1, y+1, 0.5, 0.5)
		dc.SetRGB(1, 1, 1)
		dc.DrawStringAnchored(line, float64(size)/2, y, 0.5, 0.5)
		y += lineHeight
	}
}

// setFont loads the configured font at the given size, falling back to the
// built-in face when no font is configured or loading fails.
func (c *Compositor) setFont(dc *gg.Context, points float64) {
	if c.cfg.FontPath != "" {
		if err := dc.LoadFontFace(c.cfg.FontPath, points); err == nil {
			return
		}
	}
	dc.SetFontFace(basicfont.Face7x13)
}

// FitWithin scales (w, h) to the largest size that fits inside a square
// bound, preserving aspect ratio. Small inputs scale up so the subject fills
// the bound rather than rendering tiny.
func FitWithin(w, h, bound int) (int, int) {
	if w <= 0 || h <= 0 || bound <= 0 {
		return 0, 0
	}
	scale := float64(bound) / float64(w)
	if h > w {
		scale = float64(bound) / float64(h)
	}
	return int(float64(w) * scale), int(float64(h) * scale)
}

// WrapWords greedily wraps text into lines no wider than maxWidth according
// to the measure function. Words are never reordered or split; a single word
// wider than maxWidth gets its own line.
func WrapWords(measure func(string) float64, text string, maxWidth float64) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	lines := make([]string, 0, 4)
	current := words[0]
	for _, word := range words[1:] {
		candidate := current + " " + word
		if measure(candidate) <= maxWidth {
			current = candidate
			continue
		}
		lines = append(lines, current)
		current = word
	}
	return append(lines, current)
}

// stretch resamples an image to exactly (w, h).
func stretch(img image.Image, w, h int) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() == w && bounds.Dy() == h {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// keyOutDark zeroes the alpha of near-black pixels so a subject shot against
// a dark backdrop blends onto the scene.
func keyOutDark(img image.Image, threshold uint8) image.Image {
	bounds := img.Bounds()
	dst := image.NewNRGBA(bounds)
	cutoff := uint32(threshold) << 8
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			px := img.At(x, y)
			r, g, b, _ := px.RGBA()
			if r < cutoff && g < cutoff && b < cutoff {
				continue
			}
			dst.Set(x, y, px)
		}
	}
	return dst
}

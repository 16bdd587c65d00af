package compositor

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "iamkolkata/internal/common/errors"

	"golang.org/x/sync/errgroup"
)

// loadedAssets are the decoded inputs of a composite.
type loadedAssets struct {
	scene   image.Image
	subject image.Image
}

// fetchAssets loads the scene and subject concurrently, each under its own
// timeout. The first failure aborts both loads and names the asset that
// failed.
func (c *Compositor) fetchAssets(ctx context.Context, sceneURL, subjectURL string) (*loadedAssets, error) {
	assets := &loadedAssets{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		img, err := c.fetchImage(gctx, sceneURL)
		if err != nil {
			return namedAssetError("scene", err)
		}
		assets.scene = img
		return nil
	})
	g.Go(func() error {
		img, err := c.fetchImage(gctx, subjectURL)
		if err != nil {
			return namedAssetError("subject", err)
		}
		assets.subject = img
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return assets, nil
}

// fetchImage loads one image from an http(s) URL or an inline data URL.
func (c *Compositor) fetchImage(ctx context.Context, url string) (image.Image, error) {
	if strings.HasPrefix(url, "data:") {
		return decodeDataURL(url)
	}

	timeout := time.Duration(c.cfg.LoadTimeout) * time.Millisecond
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}

func decodeDataURL(url string) (image.Image, error) {
	idx := strings.Index(url, "base64,")
	if idx < 0 {
		return nil, fmt.Errorf("unsupported data URL encoding")
	}
	raw, err := base64.StdEncoding.DecodeString(url[idx+len("base64,"):])
	if err != nil {
		return nil, fmt.Errorf("decode data URL: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}

func namedAssetError(name string, err error) error {
	return apperrors.NewPhaseError(apperrors.ErrCodeAssetLoadFailed,
		fmt.Sprintf("loading %s image", name), err)
}

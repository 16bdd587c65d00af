package relay

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"strings"
	"testing"

	"iamkolkata/internal/common/config"
	apperrors "iamkolkata/internal/common/errors"
	"iamkolkata/internal/common/logger"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	putCalls  int
	failFirst int
	uploads   map[string][]byte
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.putCalls++
	if f.putCalls <= f.failFirst {
		return nil, errors.New("connection reset")
	}
	if f.uploads == nil {
		f.uploads = map[string][]byte{}
	}
	body, _ := io.ReadAll(params.Body)
	f.uploads[*params.Key] = body
	return &s3.PutObjectOutput{}, nil
}

type fakePresigner struct {
	emptyURL bool
	calls    int
}

func (f *fakePresigner) PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.calls++
	if f.emptyURL {
		return &v4.PresignedHTTPRequest{}, nil
	}
	return &v4.PresignedHTTPRequest{
		URL: "https://bucket.s3.amazonaws.com/" + *params.Key + "?sig=abc",
	}, nil
}

func testConfig() config.RelayConfig {
	return config.RelayConfig{
		Bucket:      "portraits",
		KeyPrefix:   "assets",
		MaxEdge:     1600,
		JPEGQuality: 85,
		MaxAttempts: 3,
		BaseDelay:   1,
	}
}

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 120, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestPublishReturnsPresignedURL(t *testing.T) {
	s3c := &fakeS3{}
	signer := &fakePresigner{}
	r := New(s3c, signer, testConfig(), logger.NewTestLogger(t))

	url, err := r.Publish(context.Background(), testJPEG(t, 100, 100))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://bucket.s3.amazonaws.com/assets/"))
	assert.Equal(t, 1, s3c.putCalls)
}

func TestPublishRetriesTransientFailures(t *testing.T) {
	s3c := &fakeS3{failFirst: 2}
	r := New(s3c, &fakePresigner{}, testConfig(), logger.NewTestLogger(t))

	url, err := r.Publish(context.Background(), testJPEG(t, 100, 100))
	require.NoError(t, err)
	assert.NotEmpty(t, url)
	assert.Equal(t, 3, s3c.putCalls)
}

func TestPublishExhaustsRetryBudget(t *testing.T) {
	s3c := &fakeS3{failFirst: 10}
	r := New(s3c, &fakePresigner{}, testConfig(), logger.NewTestLogger(t))

	_, err := r.Publish(context.Background(), testJPEG(t, 100, 100))
	require.Error(t, err)
	assert.Equal(t, 3, s3c.putCalls)
}

func TestPublishMissingPresignedURLIsTerminal(t *testing.T) {
	s3c := &fakeS3{}
	r := New(s3c, &fakePresigner{emptyURL: true}, testConfig(), logger.NewTestLogger(t))

	_, err := r.Publish(context.Background(), testJPEG(t, 100, 100))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeUploadFailed, apperrors.AsAppError(err).Code)
	assert.Equal(t, 1, s3c.putCalls, "hard failure must not be retried")
}

func TestPublishRejectsEmptyImage(t *testing.T) {
	r := New(&fakeS3{}, &fakePresigner{}, testConfig(), logger.NewTestLogger(t))

	_, err := r.Publish(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeMissingMergeField, apperrors.AsAppError(err).Code)
}

func TestPublishTwiceProducesDistinctKeys(t *testing.T) {
	s3c := &fakeS3{}
	r := New(s3c, &fakePresigner{}, testConfig(), logger.NewTestLogger(t))

	img := testJPEG(t, 100, 100)
	url1, err := r.Publish(context.Background(), img)
	require.NoError(t, err)
	url2, err := r.Publish(context.Background(), img)
	require.NoError(t, err)

	assert.NotEqual(t, url1, url2)
	assert.Len(t, s3c.uploads, 2)
}

func TestPublishDownscalesOversizedImages(t *testing.T) {
	s3c := &fakeS3{}
	cfg := testConfig()
	cfg.MaxEdge = 200
	r := New(s3c, &fakePresigner{}, cfg, logger.NewTestLogger(t))

	_, err := r.Publish(context.Background(), testJPEG(t, 800, 400))
	require.NoError(t, err)

	require.Len(t, s3c.uploads, 1)
	for _, uploaded := range s3c.uploads {
		decoded, _, decErr := image.Decode(bytes.NewReader(uploaded))
		require.NoError(t, decErr)
		bounds := decoded.Bounds()
		assert.Equal(t, 200, bounds.Dx())
		assert.Equal(t, 100, bounds.Dy())
	}
}

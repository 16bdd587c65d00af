// Package relay publishes generated images to object storage so they become
// publicly fetchable by the render service. Oversized images are downscaled
// before upload to keep ingest fast.
package relay

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"time"

	"iamkolkata/internal/common/config"
	apperrors "iamkolkata/internal/common/errors"
	"iamkolkata/internal/common/logger"
	"iamkolkata/internal/common/metrics"
	"iamkolkata/internal/common/retry"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"golang.org/x/image/draw"
)

// S3API is the subset of the S3 client the relay uses.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Presigner is the subset of the presign client the relay uses.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Relay uploads images and returns presigned public URLs for them.
type Relay struct {
	s3        S3API
	presigner Presigner
	bucket    string
	keyPrefix string
	maxEdge   int
	quality   int
	ttl       time.Duration
	policy    retry.Policy
	log       logger.Logger
}

// New builds a Relay. The retry policy follows the configured attempt budget
// and base delay.
func New(s3Client S3API, presigner Presigner, cfg config.RelayConfig, log logger.Logger) *Relay {
	policy := retry.DefaultPolicy()
	if cfg.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.BaseDelay > 0 {
		policy.BaseDelay = time.Duration(cfg.BaseDelay) * time.Millisecond
	}

	ttl := time.Duration(cfg.PresignTTLMin) * time.Minute
	if ttl == 0 {
		ttl = time.Hour
	}

	return &Relay{
		s3:        s3Client,
		presigner: presigner,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		maxEdge:   cfg.MaxEdge,
		quality:   cfg.JPEGQuality,
		ttl:       ttl,
		policy:    policy,
		log:       log.With(map[string]interface{}{"component": "relay"}),
	}
}

// Publish uploads an image and returns a presigned URL for it. Transient
// upload failures are retried with backoff. A successful upload whose
// presigned URL comes back empty is a hard failure: retrying the upload
// cannot fix it.
func (r *Relay) Publish(ctx context.Context, img []byte) (string, error) {
	if len(img) == 0 {
		return "", apperrors.NewStateError(apperrors.ErrCodeMissingMergeField, "no image bytes to publish")
	}

	prepared, contentType, err := r.prepare(img)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("%s/%s.jpg", r.keyPrefix, uuid.New().String())

	var url string
	err = r.policy.Do(ctx, func(ctx context.Context) error {
		_, putErr := r.s3.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(r.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(prepared),
			ContentType: aws.String(contentType),
		})
		if putErr != nil {
			metrics.UpstreamRequestsTotal.WithLabelValues("s3", "error").Inc()
			r.log.Warn("upload attempt failed", map[string]interface{}{
				"key":   key,
				"error": putErr.Error(),
			})
			return putErr
		}

		request, signErr := r.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(r.bucket),
			Key:    aws.String(key),
		}, s3.WithPresignExpires(r.ttl))
		if signErr != nil {
			return signErr
		}
		if request.URL == "" {
			return retry.Stop(apperrors.NewUpstreamError(apperrors.ErrCodeUploadFailed, "s3", 0,
				"presigned URL missing after successful upload"))
		}

		url = request.URL
		return nil
	})
	if err != nil {
		appErr := apperrors.AsAppError(err)
		if appErr.Code == apperrors.ErrCodeInternal {
			appErr = apperrors.NewUpstreamError(apperrors.ErrCodeUploadFailed, "s3", 0, err.Error())
		}
		return "", appErr
	}

	metrics.UpstreamRequestsTotal.WithLabelValues("s3", "ok").Inc()
	r.log.Info("image published", map[string]interface{}{
		"key":   key,
		"bytes": len(prepared),
	})
	return url, nil
}

// prepare downscales the image if its longest edge exceeds the configured
// cap, re-encoding as JPEG. Images that cannot be decoded are uploaded
// unchanged so opaque formats still flow through.
func (r *Relay) prepare(img []byte) ([]byte, string, error) {
	if r.maxEdge <= 0 {
		return img, "image/jpeg", nil
	}

	decoded, _, err := image.Decode(bytes.NewReader(img))
	if err != nil {
		return img, "application/octet-stream", nil
	}

	bounds := decoded.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	longest := w
	if h > longest {
		longest = h
	}
	if longest <= r.maxEdge {
		return r.encodeJPEG(decoded)
	}

	scale := float64(r.maxEdge) / float64(longest)
	dst := image.NewRGBA(image.Rect(0, 0, int(float64(w)*scale), int(float64(h)*scale)))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), decoded, bounds, draw.Over, nil)

	return r.encodeJPEG(dst)
}

func (r *Relay) encodeJPEG(img image.Image) ([]byte, string, error) {
	quality := r.quality
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, "", apperrors.NewInternalError(err)
	}
	return buf.Bytes(), "image/jpeg", nil
}

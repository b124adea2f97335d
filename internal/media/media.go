// Package media prepares and hosts product and avatar images.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/nfnt/resize"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/config"
	apperrors "github.com/jafarshop/storefront/pkg/errors"
)

// MaxWidth is the widest image kept after upload
const MaxWidth = 1200

// ErrNotConfigured is returned when no image host credentials are set
var ErrNotConfigured = errors.New("image uploads are not configured")

// ErrTooLarge is returned when the upload exceeds the configured size
var ErrTooLarge = errors.New("file is too large")

// Image is a hosted image
type Image struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// ImageStore hosts images
type ImageStore interface {
	Upload(ctx context.Context, r io.Reader, name string) (*Image, error)
	Delete(ctx context.Context, publicID string) error
}

// New returns a Cloudinary-backed store, or one that always fails with ErrNotConfigured
func New(cfg config.CloudinaryConfig, maxBytes int64, logger *zap.Logger) (ImageStore, error) {
	if cfg.CloudName == "" {
		logger.Info("Image uploads disabled: CLOUDINARY_CLOUD_NAME not set")
		return disabledStore{}, nil
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloudinary client: %w", err)
	}
	return &cloudinaryStore{cld: cld, folder: cfg.Folder, maxBytes: maxBytes, logger: logger}, nil
}

type cloudinaryStore struct {
	cld      *cloudinary.Cloudinary
	folder   string
	maxBytes int64
	logger   *zap.Logger
}

func (s *cloudinaryStore) Upload(ctx context.Context, r io.Reader, name string) (*Image, error) {
	prepared, width, height, err := Prepare(r, s.maxBytes)
	if err != nil {
		return nil, err
	}

	res, err := s.cld.Upload.Upload(ctx, bytes.NewReader(prepared), uploader.UploadParams{Folder: s.folder})
	if err != nil {
		s.logger.Error("Image upload failed", zap.String("name", name), zap.Error(err))
		return nil, &apperrors.ErrUpstream{Provider: "cloudinary", Message: "failed to upload image", Err: err}
	}
	if res.Error.Message != "" {
		s.logger.Error("Image upload rejected", zap.String("name", name), zap.String("reason", res.Error.Message))
		return nil, &apperrors.ErrUpstream{Provider: "cloudinary", Message: "failed to upload image", Err: errors.New(res.Error.Message)}
	}

	s.logger.Info("Image uploaded", zap.String("public_id", res.PublicID), zap.Int("width", width))
	return &Image{URL: res.SecureURL, PublicID: res.PublicID, Width: width, Height: height}, nil
}

func (s *cloudinaryStore) Delete(ctx context.Context, publicID string) error {
	res, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return &apperrors.ErrUpstream{Provider: "cloudinary", Message: "failed to delete image", Err: err}
	}
	if res.Error.Message != "" {
		return &apperrors.ErrUpstream{Provider: "cloudinary", Message: "failed to delete image", Err: errors.New(res.Error.Message)}
	}
	if res.Result == "not found" {
		return &apperrors.ErrNotFound{Resource: "image", ID: publicID}
	}
	return nil
}

type disabledStore struct{}

func (disabledStore) Upload(ctx context.Context, r io.Reader, name string) (*Image, error) {
	return nil, ErrNotConfigured
}

func (disabledStore) Delete(ctx context.Context, publicID string) error {
	return ErrNotConfigured
}

// Prepare decodes a JPEG or PNG, downscales it to MaxWidth and re-encodes it in its original format
func Prepare(r io.Reader, maxBytes int64) ([]byte, int, int, error) {
	raw, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, 0, 0, err
	}
	if int64(len(raw)) > maxBytes {
		return nil, 0, 0, ErrTooLarge
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, 0, 0, &apperrors.ErrValidation{Message: "only JPEG and PNG images are allowed"}
	}

	bounds := img.Bounds()
	if bounds.Dx() <= MaxWidth {
		return raw, bounds.Dx(), bounds.Dy(), nil
	}

	resized := resize.Resize(MaxWidth, 0, img, resize.Lanczos3)
	var out bytes.Buffer
	switch format {
	case "png":
		err = png.Encode(&out, resized)
	default:
		err = jpeg.Encode(&out, resized, &jpeg.Options{Quality: 85})
	}
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to encode image: %w", err)
	}
	rb := resized.Bounds()
	return out.Bytes(), rb.Dx(), rb.Dy(), nil
}

package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/gpuforge/gpuforge-backend/pkg/config"
	pkgerrors "github.com/gpuforge/gpuforge-backend/pkg/errors"
	"github.com/gpuforge/gpuforge-backend/pkg/logger"
)

// allowedImageTypes maps accepted content types to the extension the
// stored file gets. Detection is content-based, the client filename is
// never trusted.
var allowedImageTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// cardImageUpdater is the catalog surface the media service needs.
type cardImageUpdater interface {
	UpdateCardImage(ctx context.Context, cardID uuid.UUID, imageURL string) error
}

// Service stores uploaded card images on disk and records their public URL.
type Service struct {
	cfg     config.MediaConfig
	catalog cardImageUpdater
	logg    *logger.Logger
}

type ServiceParams struct {
	Config  config.MediaConfig
	Catalog cardImageUpdater
	Logger  *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Config.UploadDir == "" {
		return nil, fmt.Errorf("upload directory required")
	}
	if err := os.MkdirAll(params.Config.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Service{cfg: params.Config, catalog: params.Catalog, logg: params.Logger}, nil
}

// MaxUploadBytes is the request body cap for image uploads.
func (s *Service) MaxUploadBytes() int64 {
	return int64(s.cfg.MaxUploadMB) << 20
}

// StoreCardImage validates the uploaded bytes, writes them under the upload
// directory and points the card's image_url at the public path.
func (s *Service) StoreCardImage(ctx context.Context, cardID uuid.UUID, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.MaxUploadBytes()+1))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read upload")
	}
	if int64(len(data)) > s.MaxUploadBytes() {
		return "", pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("image exceeds the %dMB upload limit", s.cfg.MaxUploadMB))
	}
	if len(data) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "image file is empty")
	}

	detected := mimetype.Detect(data)
	ext, ok := allowedImageTypes[detected.String()]
	if !ok {
		return "", pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("unsupported image type %s, expected png, jpeg or webp", detected.String()))
	}

	filename := uuid.NewString() + ext
	path := filepath.Join(s.cfg.UploadDir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write image file")
	}

	publicURL := strings.TrimRight(s.cfg.PublicBase, "/") + "/" + filename
	if err := s.catalog.UpdateCardImage(ctx, cardID, publicURL); err != nil {
		// best effort cleanup, the card row was not updated
		if rmErr := os.Remove(path); rmErr != nil {
			s.logg.Warn(s.logg.WithField(ctx, "path", path), "media.cleanup.failed")
		}
		return "", err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"card_id":   cardID.String(),
		"image_url": publicURL,
		"bytes":     len(data),
	}), "media.card_image.stored")
	return publicURL, nil
}

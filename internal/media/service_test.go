package media

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpuforge/gpuforge-backend/pkg/config"
	pkgerrors "github.com/gpuforge/gpuforge-backend/pkg/errors"
	"github.com/gpuforge/gpuforge-backend/pkg/logger"
)

var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D}

type fakeCardUpdater struct {
	lastCardID uuid.UUID
	lastURL    string
	err        error
}

func (f *fakeCardUpdater) UpdateCardImage(_ context.Context, cardID uuid.UUID, imageURL string) error {
	if f.err != nil {
		return f.err
	}
	f.lastCardID = cardID
	f.lastURL = imageURL
	return nil
}

func newMediaService(t *testing.T, updater *fakeCardUpdater) (*Service, string) {
	t.Helper()

	dir := t.TempDir()
	svc, err := NewService(ServiceParams{
		Config: config.MediaConfig{
			UploadDir:   dir,
			PublicBase:  "/uploads",
			MaxUploadMB: 1,
		},
		Catalog: updater,
		Logger:  logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled}),
	})
	require.NoError(t, err)
	return svc, dir
}

func TestStoreCardImageWritesFileAndUpdatesCard(t *testing.T) {
	updater := &fakeCardUpdater{}
	svc, dir := newMediaService(t, updater)
	cardID := uuid.New()

	url, err := svc.StoreCardImage(context.Background(), cardID, bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/"))
	assert.True(t, strings.HasSuffix(url, ".png"))
	assert.Equal(t, cardID, updater.lastCardID)
	assert.Equal(t, url, updater.lastURL)

	stored := filepath.Join(dir, strings.TrimPrefix(url, "/uploads/"))
	data, err := os.ReadFile(stored)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)
}

func TestStoreCardImageRejectsUnsupportedType(t *testing.T) {
	svc, _ := newMediaService(t, &fakeCardUpdater{})

	_, err := svc.StoreCardImage(context.Background(), uuid.New(), strings.NewReader("definitely not an image"))
	var appErr *pkgerrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
	assert.Contains(t, appErr.Message(), "unsupported image type")
}

func TestStoreCardImageRejectsEmptyBody(t *testing.T) {
	svc, _ := newMediaService(t, &fakeCardUpdater{})

	_, err := svc.StoreCardImage(context.Background(), uuid.New(), bytes.NewReader(nil))
	var appErr *pkgerrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
}

func TestStoreCardImageRejectsOversizedBody(t *testing.T) {
	svc, _ := newMediaService(t, &fakeCardUpdater{})

	big := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0x00}, 2<<20)...)
	_, err := svc.StoreCardImage(context.Background(), uuid.New(), bytes.NewReader(big))
	var appErr *pkgerrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
	assert.Contains(t, appErr.Message(), "upload limit")
}

func TestStoreCardImageCleansUpOnUpdateFailure(t *testing.T) {
	updater := &fakeCardUpdater{err: pkgerrors.New(pkgerrors.CodeNotFound, "graphic card not found")}
	svc, dir := newMediaService(t, updater)

	_, err := svc.StoreCardImage(context.Background(), uuid.New(), bytes.NewReader(pngHeader))
	require.Error(t, err)

	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

package catalog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gpuforge/gpuforge-backend/pkg/db/models"
	pkgerrors "github.com/gpuforge/gpuforge-backend/pkg/errors"
	"github.com/gpuforge/gpuforge-backend/pkg/pagination"
)

func setupCatalogTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:catalog_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS manufacturers (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL UNIQUE,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS brands (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  manufacturer_id TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (manufacturer_id, name)
);
CREATE TABLE IF NOT EXISTS graphic_cards (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  brand_id TEXT NOT NULL,
  gpu_model TEXT,
  vram_gb INTEGER,
  interface TEXT,
  boost_clock_mhz INTEGER,
  cuda_cores INTEGER,
  stream_processors INTEGER,
  price NUMERIC NOT NULL,
  stock INTEGER NOT NULL DEFAULT 0,
  description TEXT,
  image_url TEXT,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  graphic_card_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  price_at_purchase NUMERIC NOT NULL,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(ddl).Error)
	return db
}

func newCatalogService(t *testing.T, db *gorm.DB) Service {
	t.Helper()

	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)
	return svc
}

func seedBrand(t *testing.T, svc Service) *BrandDTO {
	t.Helper()

	m, err := svc.CreateManufacturer(context.Background(), ManufacturerInput{Name: "NVIDIA"})
	require.NoError(t, err)
	b, err := svc.CreateBrand(context.Background(), BrandInput{Name: "ASUS", ManufacturerID: m.ID})
	require.NoError(t, err)
	return b
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()

	var appErr *pkgerrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code())
}

func TestCreateManufacturerRejectsDuplicateName(t *testing.T) {
	svc := newCatalogService(t, setupCatalogTestDB(t))

	_, err := svc.CreateManufacturer(context.Background(), ManufacturerInput{Name: "AMD"})
	require.NoError(t, err)

	_, err = svc.CreateManufacturer(context.Background(), ManufacturerInput{Name: "AMD"})
	assertCode(t, err, pkgerrors.CodeConflict)
}

func TestCreateBrandRequiresManufacturer(t *testing.T) {
	svc := newCatalogService(t, setupCatalogTestDB(t))

	_, err := svc.CreateBrand(context.Background(), BrandInput{
		Name:           "MSI",
		ManufacturerID: uuid.New(),
	})
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestDeleteManufacturerBlockedByBrands(t *testing.T) {
	svc := newCatalogService(t, setupCatalogTestDB(t))
	brand := seedBrand(t, svc)

	err := svc.DeleteManufacturer(context.Background(), brand.ManufacturerID)
	assertCode(t, err, pkgerrors.CodeConflict)

	require.NoError(t, svc.DeleteBrand(context.Background(), brand.ID))
	require.NoError(t, svc.DeleteManufacturer(context.Background(), brand.ManufacturerID))
}

func TestCreateCardValidatesPrice(t *testing.T) {
	svc := newCatalogService(t, setupCatalogTestDB(t))
	brand := seedBrand(t, svc)

	cases := []struct {
		name  string
		price string
	}{
		{"not a number", "banana"},
		{"negative", "-1.00"},
		{"too many decimals", "599.999"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateCard(context.Background(), CardInput{
				Name:    "RTX 4070 SUPER",
				BrandID: brand.ID,
				Price:   tc.price,
				Stock:   10,
			})
			assertCode(t, err, pkgerrors.CodeValidation)
		})
	}
}

func TestCreateAndGetCard(t *testing.T) {
	svc := newCatalogService(t, setupCatalogTestDB(t))
	brand := seedBrand(t, svc)

	vram := 12
	created, err := svc.CreateCard(context.Background(), CardInput{
		Name:    "RTX 4070 SUPER",
		BrandID: brand.ID,
		VRAMGB:  &vram,
		Price:   "599.99",
		Stock:   25,
	})
	require.NoError(t, err)

	got, err := svc.GetCard(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "RTX 4070 SUPER", got.Name)
	assert.Equal(t, "599.99", got.Price.StringFixed(2))
	assert.Equal(t, 25, got.Stock)
	require.NotNil(t, got.VRAMGB)
	assert.Equal(t, 12, *got.VRAMGB)
}

func TestListCardsPaginates(t *testing.T) {
	db := setupCatalogTestDB(t)
	svc := newCatalogService(t, db)
	brand := seedBrand(t, svc)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		card := models.GraphicCard{
			ID:        uuid.New(),
			Name:      fmt.Sprintf("Card %d", i),
			BrandID:   brand.ID,
			Stock:     1,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.Create(&card).Error)
	}

	first, err := svc.ListCards(context.Background(), nil, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextCursor)
	assert.Equal(t, "Card 4", first.Items[0].Name)
	assert.Equal(t, "Card 3", first.Items[1].Name)

	second, err := svc.ListCards(context.Background(), nil, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 2)
	assert.Equal(t, "Card 2", second.Items[0].Name)
	assert.Equal(t, "Card 1", second.Items[1].Name)

	third, err := svc.ListCards(context.Background(), nil, pagination.Params{Limit: 2, Cursor: second.NextCursor})
	require.NoError(t, err)
	require.Len(t, third.Items, 1)
	assert.Empty(t, third.NextCursor)
}

func TestListCardsRejectsBadCursor(t *testing.T) {
	svc := newCatalogService(t, setupCatalogTestDB(t))

	_, err := svc.ListCards(context.Background(), nil, pagination.Params{Limit: 10, Cursor: "@@not-base64@@"})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestDeleteCardBlockedByOrderItems(t *testing.T) {
	db := setupCatalogTestDB(t)
	svc := newCatalogService(t, db)
	brand := seedBrand(t, svc)

	card, err := svc.CreateCard(context.Background(), CardInput{
		Name:    "RX 7800 XT",
		BrandID: brand.ID,
		Price:   "509.99",
		Stock:   3,
	})
	require.NoError(t, err)

	require.NoError(t, db.Exec(
		`INSERT INTO order_items (id, order_id, graphic_card_id, quantity, price_at_purchase) VALUES (?, ?, ?, 1, 509.99)`,
		uuid.NewString(), uuid.NewString(), card.ID.String(),
	).Error)

	err = svc.DeleteCard(context.Background(), card.ID)
	assertCode(t, err, pkgerrors.CodeConflict)
}

func TestUpdateCardMovesBrand(t *testing.T) {
	svc := newCatalogService(t, setupCatalogTestDB(t))
	brand := seedBrand(t, svc)

	other, err := svc.CreateBrand(context.Background(), BrandInput{
		Name:           "Gigabyte",
		ManufacturerID: brand.ManufacturerID,
	})
	require.NoError(t, err)

	card, err := svc.CreateCard(context.Background(), CardInput{
		Name:    "RTX 4080",
		BrandID: brand.ID,
		Price:   "999.00",
		Stock:   4,
	})
	require.NoError(t, err)

	updated, err := svc.UpdateCard(context.Background(), card.ID, CardInput{
		Name:    "RTX 4080 SUPER",
		BrandID: other.ID,
		Price:   "989.00",
		Stock:   6,
	})
	require.NoError(t, err)
	assert.Equal(t, other.ID, updated.BrandID)
	assert.Equal(t, "RTX 4080 SUPER", updated.Name)
	assert.Equal(t, "989.00", updated.Price.StringFixed(2))
}

func TestGetManufacturerNotFound(t *testing.T) {
	svc := newCatalogService(t, setupCatalogTestDB(t))

	_, err := svc.GetManufacturer(context.Background(), uuid.New())
	assertCode(t, err, pkgerrors.CodeNotFound)
}

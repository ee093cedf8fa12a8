// internal/domain/product/service_test.go
package product

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/jewelry-storefront/internal/config"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testService(t *testing.T) *Service {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Category{}, &Product{}))

	return NewService(db, &config.Config{})
}

func createRequest(sku string) *ProductCreateRequest {
	return &ProductCreateRequest{
		SKU:        sku,
		Name:       "Rose Gold Ring",
		Slug:       "rose-gold-" + sku,
		Price:      decimal.RequireFromString("199.99"),
		Stock:      5,
		Available:  true,
		CategoryID: 1,
	}
}

func TestCreateProductRoundsPrice(t *testing.T) {
	svc := testService(t)

	req := createRequest("JW-1")
	req.Price = decimal.RequireFromString("199.995")
	p, err := svc.CreateProduct(req)
	require.NoError(t, err)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("200.00")), "got %s", p.Price)
}

func TestCreateProductRejectsNegativeValues(t *testing.T) {
	svc := testService(t)

	req := createRequest("JW-1")
	req.Price = decimal.RequireFromString("-1.00")
	_, err := svc.CreateProduct(req)
	require.Error(t, err)

	req = createRequest("JW-2")
	req.Stock = -1
	_, err = svc.CreateProduct(req)
	require.Error(t, err)
}

func TestGetProductsFiltersAvailability(t *testing.T) {
	svc := testService(t)

	_, err := svc.CreateProduct(createRequest("JW-1"))
	require.NoError(t, err)

	hidden := createRequest("JW-2")
	hidden.Available = false
	_, err = svc.CreateProduct(hidden)
	require.NoError(t, err)

	available := true
	resp, err := svc.GetProducts(&ProductListRequest{Available: &available})
	require.NoError(t, err)
	require.Len(t, resp.Products, 1)
	assert.Equal(t, "JW-1", resp.Products[0].SKU)

	resp, err = svc.GetProducts(&ProductListRequest{})
	require.NoError(t, err)
	assert.Len(t, resp.Products, 2)
}

func TestGetProductsSearch(t *testing.T) {
	svc := testService(t)

	ring := createRequest("JW-1")
	ring.Name = "Solitaire Diamond Ring"
	_, err := svc.CreateProduct(ring)
	require.NoError(t, err)

	necklace := createRequest("JW-2")
	necklace.Name = "Pearl Necklace"
	_, err = svc.CreateProduct(necklace)
	require.NoError(t, err)

	resp, err := svc.GetProducts(&ProductListRequest{Search: "diamond"})
	require.NoError(t, err)
	require.Len(t, resp.Products, 1)
	assert.Equal(t, "JW-1", resp.Products[0].SKU)
}

func TestGetProductsPagination(t *testing.T) {
	svc := testService(t)

	for i := 0; i < 5; i++ {
		_, err := svc.CreateProduct(createRequest(fmt.Sprintf("JW-%d", i)))
		require.NoError(t, err)
	}

	resp, err := svc.GetProducts(&ProductListRequest{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Products, 2)
	assert.Equal(t, int64(5), resp.Pagination.Total)
	assert.Equal(t, 3, resp.Pagination.TotalPages)
	assert.True(t, resp.Pagination.HasNext)
	assert.True(t, resp.Pagination.HasPrev)
}

func TestUpdateProductPartial(t *testing.T) {
	svc := testService(t)

	p, err := svc.CreateProduct(createRequest("JW-1"))
	require.NoError(t, err)

	newStock := 12
	updated, err := svc.UpdateProduct(p.ID, &ProductUpdateRequest{Stock: &newStock})
	require.NoError(t, err)
	assert.Equal(t, 12, updated.Stock)
	assert.Equal(t, p.Name, updated.Name)
}

func TestDeleteProductSoftDeletes(t *testing.T) {
	svc := testService(t)

	p, err := svc.CreateProduct(createRequest("JW-1"))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteProduct(p.ID))
	_, err = svc.GetProductByID(p.ID)
	require.Error(t, err)

	// The row survives as a soft delete.
	var count int64
	svc.db.Unscoped().Model(&Product{}).Where("id = ?", p.ID).Count(&count)
	assert.Equal(t, int64(1), count)

	require.Error(t, svc.DeleteProduct(p.ID))
}

package repositories

import (
	"time"

	"github.com/mazeltote/mazeltote/app/models"
	"github.com/mazeltote/mazeltote/pkg/cache"
	"github.com/mazeltote/mazeltote/pkg/orm"
)

const (
	cacheKeyActive  = "products:active"
	cacheKeyHottest = "products:hottest"
	catalogCacheTTL = 5 * time.Minute
)

// ProductRepository handles database operations for Product.
type ProductRepository struct{}

func NewProductRepository() *ProductRepository {
	return &ProductRepository{}
}

// Active returns all active products, served from cache when warm.
func (r *ProductRepository) Active() ([]models.Product, error) {
	var products []models.Product
	err := orm.DB().Model(&models.Product{}).
		Where("is_active = ?", true).
		Cache(cacheKeyActive, catalogCacheTTL, &products)
	return products, err
}

// Hottest returns the promoted subset of the active catalogue.
func (r *ProductRepository) Hottest() ([]models.Product, error) {
	var products []models.Product
	err := orm.DB().Model(&models.Product{}).
		Where("is_active = ? AND is_hottest = ?", true, true).
		Cache(cacheKeyHottest, catalogCacheTTL, &products)
	return products, err
}

// All returns one page of the full catalogue, inactive included (admin view).
func (r *ProductRepository) All(page, perPage int) ([]models.Product, orm.Pagination, error) {
	var products []models.Product
	pagination, err := orm.DB().Model(&models.Product{}).GetWithPagination(&products, page, perPage)
	return products, pagination, err
}

// FindBySlug looks up a product by its public URL identity.
func (r *ProductRepository) FindBySlug(slug string) (models.Product, error) {
	var product models.Product
	err := orm.DB().Model(&models.Product{}).Where("slug = ?", slug).First(&product)
	return product, err
}

// FindByID looks up a product by primary key.
func (r *ProductRepository) FindByID(id uint) (models.Product, error) {
	var product models.Product
	err := orm.DB().Model(&models.Product{}).Where("id = ?", id).First(&product)
	return product, err
}

// Create persists a new product and invalidates the catalogue cache.
func (r *ProductRepository) Create(product *models.Product) error {
	if err := orm.DB().Create(product); err != nil {
		return err
	}
	r.flushCache()
	return nil
}

// Update persists product edits. The slug is immutable; callers must not
// change it.
func (r *ProductRepository) Update(product *models.Product) error {
	if err := orm.DB().Save(product); err != nil {
		return err
	}
	r.flushCache()
	return nil
}

// Delete removes a product from the catalogue. Order items keep their
// snapshot, so history is unaffected.
func (r *ProductRepository) Delete(product *models.Product) error {
	if err := orm.DB().Delete(product); err != nil {
		return err
	}
	r.flushCache()
	return nil
}

func (r *ProductRepository) flushCache() {
	cache.Del(cacheKeyActive, cacheKeyHottest) //nolint:errcheck
}

// Package orm is a thin fluent wrapper over the shared GORM handle with
// optional redis read-through caching for hot catalogue queries.
//
//	var products []models.Product
//	orm.DB().Model(&models.Product{}).
//	    Where("is_active = ?", true).
//	    Cache("products:active", 5*time.Minute, &products)
package orm

import (
	"time"

	"github.com/mazeltote/mazeltote/pkg/cache"
	"github.com/mazeltote/mazeltote/pkg/database"
	"gorm.io/gorm"
)

// Pagination carries page metadata returned alongside paginated result sets.
type Pagination struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

type Query struct {
	db *gorm.DB
}

// DB starts a query against the shared database handle.
func DB() *Query {
	return &Query{db: database.DB}
}

// Tx starts a query against an existing transaction handle.
func Tx(tx *gorm.DB) *Query {
	return &Query{db: tx}
}

func (q *Query) Model(v interface{}) *Query {
	return &Query{db: q.db.Model(v)}
}

func (q *Query) Where(query string, args ...interface{}) *Query {
	return &Query{db: q.db.Where(query, args...)}
}

func (q *Query) Order(value interface{}) *Query {
	return &Query{db: q.db.Order(value)}
}

func (q *Query) Preload(name string, args ...interface{}) *Query {
	return &Query{db: q.db.Preload(name, args...)}
}

func (q *Query) Get(dest interface{}) error {
	return q.db.Find(dest).Error
}

func (q *Query) First(dest interface{}) error {
	return q.db.First(dest).Error
}

func (q *Query) Count(n *int64) error {
	return q.db.Count(n).Error
}

func (q *Query) Create(v interface{}) error {
	return q.db.Create(v).Error
}

func (q *Query) Save(v interface{}) error {
	return q.db.Save(v).Error
}

func (q *Query) Delete(v interface{}) error {
	return q.db.Delete(v).Error
}

// Updates applies a column map and returns the number of affected rows, so
// callers can express conditional transitions ("update where status = X")
// and learn whether the guard matched.
func (q *Query) Updates(values map[string]interface{}) (int64, error) {
	res := q.db.Updates(values)
	return res.RowsAffected, res.Error
}

// GetWithPagination loads one page of results plus pagination metadata.
func (q *Query) GetWithPagination(dest interface{}, page, perPage int) (Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	var total int64
	if err := q.db.Count(&total).Error; err != nil {
		return Pagination{}, err
	}

	offset := (page - 1) * perPage
	if err := q.db.Offset(offset).Limit(perPage).Find(dest).Error; err != nil {
		return Pagination{}, err
	}

	totalPages := int((total + int64(perPage) - 1) / int64(perPage))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}, nil
}

// Cache answers the query from redis when possible, falling back to the
// database and priming the cache on a miss.
func (q *Query) Cache(key string, ttl time.Duration, dest interface{}) error {
	if cache.Get(key, dest) {
		return nil
	}

	err := q.db.Find(dest).Error
	if err != nil {
		return err
	}

	cache.Set(key, dest, ttl)
	return nil
}

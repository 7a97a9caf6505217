package controllers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mazeltote/mazeltote/app/models"
	"github.com/mazeltote/mazeltote/app/repositories"
	"github.com/mazeltote/mazeltote/pkg/bind"
	"github.com/mazeltote/mazeltote/pkg/response"
	"gorm.io/gorm"
)

type ProductController struct {
	products *repositories.ProductRepository
}

func NewProductController() *ProductController {
	return &ProductController{products: repositories.NewProductRepository()}
}

// ─── Storefront ───────────────────────────────────────────────────────────────

// Index handles GET /api/products — the active catalogue.
func (c *ProductController) Index(w http.ResponseWriter, r *http.Request) {
	products, err := c.products.Active()
	if err != nil {
		serviceError(w, err)
		return
	}
	response.Success(w, products)
}

// Hottest handles GET /api/products/hottest — the promoted subset.
func (c *ProductController) Hottest(w http.ResponseWriter, r *http.Request) {
	products, err := c.products.Hottest()
	if err != nil {
		serviceError(w, err)
		return
	}
	response.Success(w, products)
}

// Show handles GET /api/products/{slug}.
func (c *ProductController) Show(w http.ResponseWriter, r *http.Request) {
	product, err := c.products.FindBySlug(chi.URLParam(r, "slug"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(w)
			return
		}
		serviceError(w, err)
		return
	}
	if !product.IsActive {
		response.NotFound(w)
		return
	}
	response.Success(w, product)
}

// ─── Back office ──────────────────────────────────────────────────────────────

type productInput struct {
	Name        string  `json:"name"        validate:"required,max=255"`
	Slug        string  `json:"slug"        validate:"required,alpha_dash,max=255"`
	Description string  `json:"description" validate:"nullable,max=10000"`
	Price       float64 `json:"price"       validate:"required,gt=0"`
	Stock       int     `json:"stock"       validate:"gte=0"`
	Images      string  `json:"images"      validate:"nullable,json"`
	IsActive    bool    `json:"is_active"`
	IsHottest   bool    `json:"is_hottest"`
}

// AdminIndex handles GET /api/admin/products — full catalogue, paginated.
func (c *ProductController) AdminIndex(w http.ResponseWriter, r *http.Request) {
	page, perPage := pageParams(r)
	products, pagination, err := c.products.All(page, perPage)
	if err != nil {
		serviceError(w, err)
		return
	}
	response.Paginated(w, products, pagination)
}

// Store handles POST /api/admin/products.
func (c *ProductController) Store(w http.ResponseWriter, r *http.Request) {
	var in productInput
	if errs, err := bind.JSON(r, &in); err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	} else if errs != nil {
		response.ValidationError(w, errs)
		return
	}

	if _, err := c.products.FindBySlug(in.Slug); err == nil {
		response.Error(w, http.StatusConflict, "Slug already in use")
		return
	}

	product := models.Product{
		Name:        in.Name,
		Slug:        in.Slug,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		Images:      in.Images,
		IsActive:    in.IsActive,
		IsHottest:   in.IsHottest,
	}
	if err := c.products.Create(&product); err != nil {
		serviceError(w, err)
		return
	}
	response.Created(w, product)
}

// Update handles PUT /api/admin/products/{id}. The slug is the product's
// public identity and is never changed here.
func (c *ProductController) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(r, "id")
	if !ok {
		response.NotFound(w)
		return
	}

	product, err := c.products.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(w)
			return
		}
		serviceError(w, err)
		return
	}

	var in productInput
	if errs, err := bind.JSON(r, &in); err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	} else if errs != nil {
		response.ValidationError(w, errs)
		return
	}

	product.Name = in.Name
	product.Description = in.Description
	product.Price = in.Price
	product.Stock = in.Stock
	product.Images = in.Images
	product.IsActive = in.IsActive
	product.IsHottest = in.IsHottest

	if err := c.products.Update(&product); err != nil {
		serviceError(w, err)
		return
	}
	response.Success(w, product)
}

// Destroy handles DELETE /api/admin/products/{id}. Existing order items
// keep their snapshot, so deletion never rewrites history.
func (c *ProductController) Destroy(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(r, "id")
	if !ok {
		response.NotFound(w)
		return
	}

	product, err := c.products.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(w)
			return
		}
		serviceError(w, err)
		return
	}

	if err := c.products.Delete(&product); err != nil {
		serviceError(w, err)
		return
	}
	response.Success(w, map[string]uint{"deleted": id})
}

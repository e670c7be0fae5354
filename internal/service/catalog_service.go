package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bernarddwumfour/estore-backend/internal/models"
	"github.com/bernarddwumfour/estore-backend/internal/redisclient"
	"github.com/bernarddwumfour/estore-backend/internal/store"
	"github.com/bernarddwumfour/estore-backend/internal/util"
)

const (
	productCacheTTL    = 5 * time.Minute
	categoriesCacheKey = "catalog:categories"
)

func productCacheKey(slug string) string {
	return "catalog:product:" + slug
}

// CatalogService handles products, variants and categories
type CatalogService struct {
	store  *store.Store
	redis  *redisclient.Client
	logger *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(st *store.Store, redis *redisclient.Client) *CatalogService {
	return &CatalogService{
		store:  st,
		redis:  redis,
		logger: util.GetLogger(),
	}
}

// ListProducts retrieves the public product listing. The status filter is
// forced to published regardless of what the caller asked for.
func (s *CatalogService) ListProducts(ctx context.Context, filter store.ProductFilter) ([]models.Product, int, error) {
	filter.Status = models.ProductStatusPublished
	return s.store.ListProducts(ctx, filter)
}

// ListAllProducts retrieves products in any status (admin listing).
func (s *CatalogService) ListAllProducts(ctx context.Context, filter store.ProductFilter) ([]models.Product, int, error) {
	if filter.Status != "" {
		switch filter.Status {
		case models.ProductStatusDraft, models.ProductStatusPublished, models.ProductStatusArchived:
		default:
			return nil, 0, NewValidationError("Invalid status: %s", filter.Status)
		}
	}
	return s.store.ListProducts(ctx, filter)
}

// GetProduct retrieves a published product with its active variants,
// serving from cache when possible.
func (s *CatalogService) GetProduct(ctx context.Context, slug string) (*models.Product, error) {
	var cached models.Product
	if ok, _ := s.redis.GetJSON(ctx, productCacheKey(slug), &cached); ok {
		return &cached, nil
	}

	product, err := s.store.GetProductBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrProductNotFound) {
			return nil, NewNotFoundError("Product")
		}
		return nil, err
	}
	if product.Status != models.ProductStatusPublished {
		return nil, NewNotFoundError("Product")
	}

	s.redis.SetJSON(ctx, productCacheKey(slug), product, productCacheTTL)
	return product, nil
}

// GetProductAdmin retrieves a product in any status with its variants.
func (s *CatalogService) GetProductAdmin(ctx context.Context, slug string) (*models.Product, error) {
	product, err := s.store.GetProductBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrProductNotFound) {
			return nil, NewNotFoundError("Product")
		}
		return nil, err
	}
	return product, nil
}

// ListCategories retrieves active categories, cached briefly.
func (s *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	var cached []models.Category
	if ok, _ := s.redis.GetJSON(ctx, categoriesCacheKey, &cached); ok {
		return cached, nil
	}

	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	s.redis.SetJSON(ctx, categoriesCacheKey, categories, productCacheTTL)
	return categories, nil
}

// CategoryRequest is the admin payload for creating a category.
type CategoryRequest struct {
	Name        string  `json:"name"`
	Slug        string  `json:"slug"`
	Description string  `json:"description"`
	ParentID    *string `json:"parent_id"`
}

// CreateCategory adds a category (admin operation).
func (s *CatalogService) CreateCategory(ctx context.Context, req *CategoryRequest) (*models.Category, error) {
	if req.Name == "" {
		return nil, NewFieldErrors(map[string]string{"name": "This field is required"})
	}
	slug := req.Slug
	if slug == "" {
		slug = slugify(req.Name)
	}

	category := &models.Category{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Slug:        slug,
		Description: req.Description,
		ParentID:    req.ParentID,
		IsActive:    true,
	}
	if err := s.store.CreateCategory(ctx, category); err != nil {
		if store.IsUniqueViolation(err) {
			return nil, NewConflict("A category with slug %q already exists", slug)
		}
		return nil, err
	}

	s.redis.Delete(ctx, categoriesCacheKey)
	s.logger.Info("Category created", zap.String("slug", slug))
	return category, nil
}

// ProductRequest is the admin payload for creating or updating a product.
type ProductRequest struct {
	Title        string           `json:"title"`
	Slug         string           `json:"slug"`
	Description  string           `json:"description"`
	CategoryID   *string          `json:"category_id"`
	Options      models.OptionMap `json:"options"`
	Status       string           `json:"status"`
	IsFeatured   bool             `json:"is_featured"`
	IsBestseller bool             `json:"is_bestseller"`
}

func (r *ProductRequest) validate() error {
	fields := map[string]string{}
	if r.Title == "" {
		fields["title"] = "This field is required"
	}
	if r.Status != "" {
		switch r.Status {
		case models.ProductStatusDraft, models.ProductStatusPublished, models.ProductStatusArchived:
		default:
			fields["status"] = fmt.Sprintf("Invalid status: %s", r.Status)
		}
	}
	if len(fields) > 0 {
		return NewFieldErrors(fields)
	}
	return nil
}

// CreateProduct adds a product (admin operation). New products start as
// drafts unless a status is supplied; publishing stamps published_at.
func (s *CatalogService) CreateProduct(ctx context.Context, req *ProductRequest) (*models.Product, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	slug := req.Slug
	if slug == "" {
		slug = slugify(req.Title)
	}
	status := req.Status
	if status == "" {
		status = models.ProductStatusDraft
	}

	product := &models.Product{
		ID:           uuid.New().String(),
		Title:        req.Title,
		Slug:         slug,
		Description:  req.Description,
		CategoryID:   req.CategoryID,
		Options:      req.Options,
		Status:       status,
		IsFeatured:   req.IsFeatured,
		IsBestseller: req.IsBestseller,
	}
	if status == models.ProductStatusPublished {
		now := time.Now()
		product.PublishedAt = &now
	}

	if err := s.store.CreateProduct(ctx, product); err != nil {
		if store.IsUniqueViolation(err) {
			return nil, NewConflict("A product with slug %q already exists", slug)
		}
		return nil, err
	}

	s.logger.Info("Product created",
		zap.String("product_id", product.ID),
		zap.String("slug", slug))
	return product, nil
}

// UpdateProduct writes back a product's editable fields (admin operation).
func (s *CatalogService) UpdateProduct(ctx context.Context, slug string, req *ProductRequest) (*models.Product, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	product, err := s.store.GetProductBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrProductNotFound) {
			return nil, NewNotFoundError("Product")
		}
		return nil, err
	}

	wasPublished := product.Status == models.ProductStatusPublished

	product.Title = req.Title
	if req.Slug != "" {
		product.Slug = req.Slug
	}
	product.Description = req.Description
	product.CategoryID = req.CategoryID
	if req.Options != nil {
		product.Options = req.Options
	}
	if req.Status != "" {
		product.Status = req.Status
	}
	product.IsFeatured = req.IsFeatured
	product.IsBestseller = req.IsBestseller

	if product.Status == models.ProductStatusPublished && !wasPublished && product.PublishedAt == nil {
		now := time.Now()
		product.PublishedAt = &now
	}

	if err := s.store.UpdateProduct(ctx, product); err != nil {
		if store.IsUniqueViolation(err) {
			return nil, NewConflict("A product with slug %q already exists", product.Slug)
		}
		return nil, err
	}

	s.redis.Delete(ctx, productCacheKey(slug), productCacheKey(product.Slug))
	return product, nil
}

// VariantRequest is the admin payload for creating or updating a variant.
type VariantRequest struct {
	SKU               string            `json:"sku"`
	Attributes        models.Attributes `json:"attributes"`
	Price             decimal.Decimal   `json:"price"`
	DiscountAmount    decimal.Decimal   `json:"discount_amount"`
	Stock             int               `json:"stock"`
	LowStockThreshold int               `json:"low_stock_threshold"`
	IsDefault         bool              `json:"is_default"`
	IsActive          *bool             `json:"is_active"`
}

func (r *VariantRequest) validate(product *models.Product) error {
	fields := map[string]string{}
	if r.SKU == "" {
		fields["sku"] = "This field is required"
	}
	if r.Price.IsNegative() {
		fields["price"] = "Price cannot be negative"
	}
	if r.DiscountAmount.IsNegative() {
		fields["discount_amount"] = "Discount cannot be negative"
	}
	if r.DiscountAmount.GreaterThan(r.Price) {
		fields["discount_amount"] = "Discount cannot exceed the price"
	}
	if r.Stock < 0 {
		fields["stock"] = "Stock cannot be negative"
	}

	// Attribute keys and values must come from the product's declared options.
	for key, value := range r.Attributes {
		allowed, ok := product.Options[key]
		if !ok {
			fields["attributes."+key] = fmt.Sprintf("Unknown option %q for this product", key)
			continue
		}
		found := false
		for _, v := range allowed {
			if v == value {
				found = true
				break
			}
		}
		if !found {
			fields["attributes."+key] = fmt.Sprintf("Value %q is not an allowed %s", value, key)
		}
	}

	if len(fields) > 0 {
		return NewFieldErrors(fields)
	}
	return nil
}

// CreateVariant adds a purchasable variant to a product (admin operation).
func (s *CatalogService) CreateVariant(ctx context.Context, productSlug string, req *VariantRequest) (*models.ProductVariant, error) {
	product, err := s.store.GetProductBySlug(ctx, productSlug)
	if err != nil {
		if errors.Is(err, store.ErrProductNotFound) {
			return nil, NewNotFoundError("Product")
		}
		return nil, err
	}

	if err := req.validate(product); err != nil {
		return nil, err
	}

	exists, err := s.store.SKUExists(ctx, req.SKU)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, NewConflict("A variant with SKU %q already exists", req.SKU)
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	variant := &models.ProductVariant{
		ID:                uuid.New().String(),
		ProductID:         product.ID,
		SKU:               req.SKU,
		Attributes:        req.Attributes,
		Price:             req.Price,
		DiscountAmount:    req.DiscountAmount,
		Stock:             req.Stock,
		LowStockThreshold: req.LowStockThreshold,
		IsDefault:         req.IsDefault,
		IsActive:          active,
	}

	if err := s.store.CreateVariant(ctx, variant); err != nil {
		if store.IsUniqueViolation(err) {
			return nil, NewConflict("A variant with SKU %q already exists", req.SKU)
		}
		return nil, err
	}

	s.redis.Delete(ctx, productCacheKey(product.Slug))
	s.redis.SetStock(ctx, variant.SKU, variant.Stock)

	s.logger.Info("Variant created",
		zap.String("variant_id", variant.ID),
		zap.String("sku", variant.SKU))
	return variant, nil
}

// UpdateVariant writes back a variant's pricing and flags (admin operation).
// Stock is not editable here; it moves only through orders.
func (s *CatalogService) UpdateVariant(ctx context.Context, variantID string, req *VariantRequest) (*models.ProductVariant, error) {
	variant, err := s.store.GetVariantByID(ctx, variantID)
	if err != nil {
		if errors.Is(err, store.ErrVariantNotFound) {
			return nil, NewNotFoundError("Product variant")
		}
		return nil, err
	}

	product, err := s.store.GetProductByID(ctx, variant.ProductID)
	if err != nil {
		return nil, err
	}

	if err := req.validate(product); err != nil {
		return nil, err
	}

	if req.Attributes != nil {
		variant.Attributes = req.Attributes
	}
	variant.Price = req.Price
	variant.DiscountAmount = req.DiscountAmount
	variant.LowStockThreshold = req.LowStockThreshold
	variant.IsDefault = req.IsDefault
	if req.IsActive != nil {
		variant.IsActive = *req.IsActive
	}

	if err := s.store.UpdateVariant(ctx, variant); err != nil {
		return nil, err
	}

	s.redis.Delete(ctx, productCacheKey(product.Slug))
	return variant, nil
}

// CheckAvailability reports the stock level for a SKU, serving the Redis
// snapshot when it holds the SKU and falling back to the database (warming
// the snapshot on the way out).
func (s *CatalogService) CheckAvailability(ctx context.Context, sku string) (int, error) {
	if stock, ok, err := s.redis.GetStock(ctx, sku); err == nil && ok {
		return stock, nil
	}

	stock, err := s.store.GetStockBySKU(ctx, sku)
	if err != nil {
		if errors.Is(err, store.ErrVariantNotFound) {
			return 0, NewNotFoundError("Product variant")
		}
		return 0, err
	}
	s.redis.SetStock(ctx, sku, stock)
	return stock, nil
}

// SyncStockSnapshot pushes current stock levels for all active variants into
// the Redis snapshot used by storefront availability badges. Runs at startup
// and periodically from the worker.
func (s *CatalogService) SyncStockSnapshot(ctx context.Context) error {
	rows, err := s.store.ListVariantStock(ctx)
	if err != nil {
		return fmt.Errorf("list variant stock: %w", err)
	}

	snapshot := make(map[string]int, len(rows))
	for _, row := range rows {
		snapshot[row.SKU] = row.Stock
	}
	if err := s.redis.SetStockSnapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("write stock snapshot: %w", err)
	}

	s.logger.Debug("Stock snapshot synced", zap.Int("variants", len(rows)))
	return nil
}

// slugify lowercases and dash-joins a title into a URL slug.
func slugify(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

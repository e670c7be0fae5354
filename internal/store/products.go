package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/bernarddwumfour/estore-backend/internal/models"
)

// ==================== CATEGORIES ====================

// ListCategories retrieves active categories ordered by name
func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := s.db.SelectContext(ctx, &categories,
		"SELECT * FROM categories WHERE is_active = TRUE ORDER BY name")
	return categories, err
}

// GetCategoryBySlug retrieves a category by slug
func (s *Store) GetCategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var category models.Category
	err := s.db.GetContext(ctx, &category, "SELECT * FROM categories WHERE slug = $1", slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// CreateCategory inserts a new category
func (s *Store) CreateCategory(ctx context.Context, category *models.Category) error {
	return s.db.QueryRowxContext(ctx,
		`INSERT INTO categories (id, name, slug, description, parent_id, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at, updated_at`,
		category.ID, category.Name, category.Slug, category.Description,
		category.ParentID, category.IsActive,
	).Scan(&category.CreatedAt, &category.UpdatedAt)
}

// ==================== PRODUCTS ====================

// ProductFilter narrows product listings.
type ProductFilter struct {
	Status       string
	CategorySlug string
	Search       string
	FeaturedOnly bool
	Page         int
	PerPage      int
}

// ListProducts retrieves a filtered, paginated product page plus total count.
func (s *Store) ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, int, error) {
	conds := []string{"1=1"}
	args := []interface{}{}

	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("p.status = $%d", len(args)))
	}
	if filter.CategorySlug != "" {
		args = append(args, filter.CategorySlug)
		conds = append(conds, fmt.Sprintf("p.category_id IN (SELECT id FROM categories WHERE slug = $%d)", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conds = append(conds, fmt.Sprintf("(p.title ILIKE $%d OR p.description ILIKE $%d)", len(args), len(args)))
	}
	if filter.FeaturedOnly {
		conds = append(conds, "p.is_featured = TRUE")
	}

	where := strings.Join(conds, " AND ")

	var total int
	if err := s.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM products p WHERE "+where, args...); err != nil {
		return nil, 0, err
	}

	limit := filter.PerPage
	if limit <= 0 {
		limit = 10
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}
	args = append(args, limit, offset)

	query := fmt.Sprintf(
		"SELECT p.* FROM products p WHERE %s ORDER BY p.created_at DESC LIMIT $%d OFFSET $%d",
		where, len(args)-1, len(args))

	var products []models.Product
	if err := s.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// GetProductBySlug retrieves a product and its active variants
func (s *Store) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE slug = $1", slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := s.db.SelectContext(ctx, &product.Variants,
		`SELECT * FROM product_variants WHERE product_id = $1 AND is_active = TRUE
		 ORDER BY is_default DESC, sku`, product.ID); err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// CreateProduct inserts a new product
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	return s.db.QueryRowxContext(ctx,
		`INSERT INTO products (id, title, slug, description, category_id, options, status, is_featured, is_bestseller, published_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING created_at, updated_at`,
		product.ID, product.Title, product.Slug, product.Description,
		product.CategoryID, product.Options, product.Status,
		product.IsFeatured, product.IsBestseller, product.PublishedAt,
	).Scan(&product.CreatedAt, &product.UpdatedAt)
}

// UpdateProduct writes back a product's editable fields
func (s *Store) UpdateProduct(ctx context.Context, product *models.Product) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE products SET
			title = $1, slug = $2, description = $3, category_id = $4, options = $5,
			status = $6, is_featured = $7, is_bestseller = $8, published_at = $9,
			updated_at = NOW()
		 WHERE id = $10`,
		product.Title, product.Slug, product.Description, product.CategoryID,
		product.Options, product.Status, product.IsFeatured, product.IsBestseller,
		product.PublishedAt, product.ID)
	return err
}

// ==================== VARIANTS ====================

// VariantForOrder is a variant joined with the snapshot fields the order
// assembler copies onto each order item.
type VariantForOrder struct {
	models.ProductVariant
	ProductTitle string `db:"product_title"`
	ProductSlug  string `db:"product_slug"`
}

// GetVariantByID retrieves a variant by ID
func (s *Store) GetVariantByID(ctx context.Context, id string) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	err := s.db.GetContext(ctx, &variant, "SELECT * FROM product_variants WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVariantNotFound
	}
	if err != nil {
		return nil, err
	}
	return &variant, nil
}

// GetVariantForOrderTx loads a purchasable variant inside the order
// transaction. The variant must be active and its product published;
// anything else is not found as far as checkout is concerned.
func (s *Store) GetVariantForOrderTx(ctx context.Context, tx *sqlx.Tx, variantID string) (*VariantForOrder, error) {
	var v VariantForOrder
	err := sqlx.GetContext(ctx, tx, &v,
		`SELECT v.*, p.title AS product_title, p.slug AS product_slug
		 FROM product_variants v
		 JOIN products p ON p.id = v.product_id
		 WHERE v.id = $1 AND v.is_active = TRUE AND p.status = $2`,
		variantID, models.ProductStatusPublished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVariantNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// SKUExists checks SKU uniqueness across all variants
func (s *Store) SKUExists(ctx context.Context, sku string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM product_variants WHERE sku = $1)", sku)
	return exists, err
}

// CreateVariant inserts a variant, demoting any previous default for the
// same product when this one is flagged default.
func (s *Store) CreateVariant(ctx context.Context, variant *models.ProductVariant) error {
	return s.WithTx(ctx, func(tx *sqlx.Tx) error {
		if variant.IsDefault {
			if _, err := tx.ExecContext(ctx,
				`UPDATE product_variants SET is_default = FALSE, updated_at = NOW()
				 WHERE product_id = $1 AND is_default = TRUE`, variant.ProductID); err != nil {
				return err
			}
		}
		return tx.QueryRowxContext(ctx,
			`INSERT INTO product_variants (
				id, product_id, sku, attributes, price, discount_amount, stock,
				low_stock_threshold, is_default, is_active)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 RETURNING created_at, updated_at`,
			variant.ID, variant.ProductID, variant.SKU, variant.Attributes,
			variant.Price, variant.DiscountAmount, variant.Stock,
			variant.LowStockThreshold, variant.IsDefault, variant.IsActive,
		).Scan(&variant.CreatedAt, &variant.UpdatedAt)
	})
}

// UpdateVariant writes back pricing and flags. Stock is deliberately not
// written here; it moves only through the ledger operations below.
func (s *Store) UpdateVariant(ctx context.Context, variant *models.ProductVariant) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE product_variants SET
			attributes = $1, price = $2, discount_amount = $3,
			low_stock_threshold = $4, is_default = $5, is_active = $6,
			updated_at = NOW()
		 WHERE id = $7`,
		variant.Attributes, variant.Price, variant.DiscountAmount,
		variant.LowStockThreshold, variant.IsDefault, variant.IsActive, variant.ID)
	return err
}

// ==================== STOCK LEDGER ====================

// DecrementStockTx atomically subtracts qty from a variant's stock. The
// WHERE stock >= qty guard makes the check-and-decrement a single statement,
// so two concurrent orders can never both pass the check and drive stock
// negative. Zero rows affected means insufficient stock.
func (s *Store) DecrementStockTx(ctx context.Context, tx *sqlx.Tx, variantID string, qty int) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE product_variants
		 SET stock = stock - $1, updated_at = NOW()
		 WHERE id = $2 AND stock >= $1`,
		qty, variantID)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement stock rows affected: %w", err)
	}
	if n == 0 {
		return ErrInsufficientStock
	}
	return nil
}

// IncrementStockTx atomically adds qty back to a variant's stock (restock on
// cancellation). Always succeeds for an existing variant.
func (s *Store) IncrementStockTx(ctx context.Context, tx *sqlx.Tx, variantID string, qty int) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE product_variants
		 SET stock = stock + $1, updated_at = NOW()
		 WHERE id = $2`,
		qty, variantID)
	if err != nil {
		return fmt.Errorf("increment stock: %w", err)
	}
	return nil
}

// GetStockBySKU reads one active variant's stock level.
func (s *Store) GetStockBySKU(ctx context.Context, sku string) (int, error) {
	var stock int
	err := s.db.GetContext(ctx, &stock,
		"SELECT stock FROM product_variants WHERE sku = $1 AND is_active = TRUE", sku)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrVariantNotFound
	}
	if err != nil {
		return 0, err
	}
	return stock, nil
}

// VariantStock is a (variant, stock) pair used for cache warm-up.
type VariantStock struct {
	ID    string `db:"id"`
	SKU   string `db:"sku"`
	Stock int    `db:"stock"`
}

// ListVariantStock retrieves current stock for all active variants
func (s *Store) ListVariantStock(ctx context.Context) ([]VariantStock, error) {
	var rows []VariantStock
	err := s.db.SelectContext(ctx, &rows,
		"SELECT id, sku, stock FROM product_variants WHERE is_active = TRUE")
	return rows, err
}

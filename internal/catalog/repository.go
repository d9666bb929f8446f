package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumina-clinic/lumina-clinic/internal/platform/db"
)

// ErrNotFound indicates a missing or inactive product.
var ErrNotFound = errors.New("product not found")

// Repository persists products and categories. Upsert methods run inside one
// transaction per call; the reconciler calls UpsertProducts once per chunk,
// which is the atomicity boundary the sync design relies on.
type Repository interface {
	UpsertCategories(ctx context.Context, categories []Category) (created, updated int, err error)
	ListCategories(ctx context.Context) ([]Category, error)
	UpsertProducts(ctx context.Context, products []Product) (created, updated int, err error)
	DeactivateStale(ctx context.Context, before time.Time) (int64, error)
	ListActive(ctx context.Context) ([]Product, error)
	GetActive(ctx context.Context, id string) (*Product, error)
	CountProducts(ctx context.Context) (int, error)
	DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error)
	GetStats(ctx context.Context) (Stats, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) UpsertCategories(ctx context.Context, categories []Category) (int, int, error) {
	var created, updated int
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, c := range categories {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM category WHERE id = $1)`, c.ID).Scan(&exists); err != nil {
				return fmt.Errorf("check category %s: %w", c.ID, err)
			}
			if exists {
				if _, err := tx.Exec(ctx,
					`UPDATE category SET name = $2, parent_id = $3, updated_at = now() WHERE id = $1`,
					c.ID, c.Name, c.ParentID); err != nil {
					return fmt.Errorf("update category %s: %w", c.ID, err)
				}
				updated++
			} else {
				if _, err := tx.Exec(ctx,
					`INSERT INTO category (id, name, parent_id, created_at, updated_at) VALUES ($1, $2, $3, now(), now())`,
					c.ID, c.Name, c.ParentID); err != nil {
					if db.IsUniqueViolation(err) {
						return fmt.Errorf("category %s inserted concurrently: %w", c.ID, err)
					}
					return fmt.Errorf("insert category %s: %w", c.ID, err)
				}
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return created, updated, nil
}

func (r *repository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, parent_id FROM category ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.ParentID); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *repository) UpsertProducts(ctx context.Context, products []Product) (int, int, error) {
	var created, updated int
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, p := range products {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM product WHERE provider_id = $1)`, p.ProviderID).Scan(&exists); err != nil {
				return fmt.Errorf("check product %s: %w", p.ProviderID, err)
			}
			if exists {
				if _, err := tx.Exec(ctx, `
					UPDATE product SET
						name = $2, sku = $3, ean = $4, price_gross = $5, price_net = $6,
						quantity = $7, weight = $8, tax_rate = $9, description = $10,
						images = $11, text_fields = $12, category_id = $13, category_name = $14,
						is_active = true, last_sync = $15, updated_at = now()
					WHERE provider_id = $1`,
					p.ProviderID, p.Name, p.SKU, p.EAN, p.PriceGross, p.PriceNet,
					p.Quantity, p.Weight, p.TaxRate, p.Description,
					p.Images, p.TextFields, p.CategoryID, p.CategoryName, p.LastSync); err != nil {
					return fmt.Errorf("update product %s: %w", p.ProviderID, err)
				}
				updated++
			} else {
				if _, err := tx.Exec(ctx, `
					INSERT INTO product (
						id, provider_id, name, sku, ean, price_gross, price_net,
						quantity, weight, tax_rate, description, images, text_fields,
						category_id, category_name, is_active, last_sync, created_at, updated_at
					) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, true, $16, now(), now())`,
					p.ID, p.ProviderID, p.Name, p.SKU, p.EAN, p.PriceGross, p.PriceNet,
					p.Quantity, p.Weight, p.TaxRate, p.Description, p.Images, p.TextFields,
					p.CategoryID, p.CategoryName, p.LastSync); err != nil {
					if db.IsUniqueViolation(err) {
						return fmt.Errorf("product %s inserted concurrently: %w", p.ProviderID, err)
					}
					return fmt.Errorf("insert product %s: %w", p.ProviderID, err)
				}
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return created, updated, nil
}

func (r *repository) DeactivateStale(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE product SET is_active = false, updated_at = now() WHERE is_active = true AND last_sync < $1`,
		before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const productColumns = `
	p.id, p.provider_id, p.name, p.sku, p.ean, p.price_gross, p.price_net,
	p.quantity, p.weight, p.tax_rate, p.description, p.images, p.text_fields,
	p.category_id,
	COALESCE(NULLIF(c.name, ''), NULLIF(p.category_name, ''), 'Bez kategorii'),
	p.is_active, p.last_sync, p.created_at, p.updated_at`

func (r *repository) ListActive(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+productColumns+`
		FROM product p
		LEFT JOIN category c ON c.id = p.category_id
		WHERE p.is_active = true
		ORDER BY p.name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *repository) GetActive(ctx context.Context, id string) (*Product, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+productColumns+`
		FROM product p
		LEFT JOIN category c ON c.id = p.category_id
		WHERE p.id = $1 AND p.is_active = true`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *repository) CountProducts(ctx context.Context) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM product`).Scan(&total)
	return total, err
}

func (r *repository) DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM product WHERE is_active = false AND updated_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *repository) GetStats(ctx context.Context) (Stats, error) {
	var s Stats
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE is_active),
			COUNT(*) FILTER (WHERE NOT is_active),
			COUNT(*) FILTER (WHERE is_active AND quantity = 0),
			(SELECT COUNT(*) FROM category)
		FROM product`).Scan(
		&s.TotalProducts, &s.ActiveProducts, &s.InactiveProducts, &s.OutOfStock, &s.TotalCategories)
	return s, err
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(
		&p.ID, &p.ProviderID, &p.Name, &p.SKU, &p.EAN, &p.PriceGross, &p.PriceNet,
		&p.Quantity, &p.Weight, &p.TaxRate, &p.Description, &p.Images, &p.TextFields,
		&p.CategoryID, &p.CategoryName, &p.IsActive, &p.LastSync, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

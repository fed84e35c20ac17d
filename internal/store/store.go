// Package store is the remote product store: a Postgres "products" table
// accessed through pgx. Products are returned newest first.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/catalogdesk/internal/catalog"
)

// ErrNoIDs is returned by DeleteWhere when called without ids.
var ErrNoIDs = errors.New("store: no ids given")

// Store is the product persistence collaborator.
type Store interface {
	// All returns every product, most recently created first.
	All(ctx context.Context) ([]catalog.Product, error)

	// DeleteWhere removes the products with the given ids and returns how
	// many rows were deleted.
	DeleteWhere(ctx context.Context, ids []string) (int, error)

	// Insert upserts products by id and returns how many were written.
	Insert(ctx context.Context, products []catalog.Product) (int, error)
}

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Beginner is a DBTX that can open transactions, i.e. *pgxpool.Pool.
type Beginner interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Postgres implements Store on a pgx pool.
type Postgres struct {
	db  Beginner
	now func() time.Time
}

var _ Store = (*Postgres)(nil)

// NewPostgres wraps db (normally a *pgxpool.Pool).
func NewPostgres(db Beginner) *Postgres {
	return &Postgres{db: db, now: time.Now}
}

// productColumns is the column order used by SELECT and COPY.
var productColumns = []string{
	"id", "title", "subtitle", "brand",
	"price_text", "price", "rating", "review_count",
	"url", "image_url", "source",
	"is_best_seller", "is_prime", "is_eco_friendly", "is_amazon_choice", "is_deal",
	"created_at",
}

func (p *Postgres) All(ctx context.Context) ([]catalog.Product, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM products ORDER BY created_at DESC, id",
		selectList(),
	)

	rows, err := p.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := make([]catalog.Product, 0)
	for rows.Next() {
		prod, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, prod)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

func (p *Postgres) DeleteWhere(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, ErrNoIDs
	}

	result, err := p.db.Exec(ctx, "DELETE FROM products WHERE id = ANY($1)", ids)
	if err != nil {
		return 0, fmt.Errorf("delete products: %w", err)
	}
	return int(result.RowsAffected()), nil
}

// Insert COPYs products into a staging table and upserts from there, so a
// re-imported id updates the existing row instead of failing the batch.
func (p *Postgres) Insert(ctx context.Context, products []catalog.Product) (int, error) {
	if len(products) == 0 {
		return 0, nil
	}

	rows := make([][]any, len(products))
	now := p.now().UTC()
	for i, prod := range products {
		rows[i] = productRow(prod, now)
	}

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "CREATE TEMP TABLE products_staging (LIKE products INCLUDING DEFAULTS) ON COMMIT DROP"); err != nil {
		return 0, fmt.Errorf("create staging table: %w", err)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"products_staging"}, productColumns, pgx.CopyFromRows(rows)); err != nil {
		return 0, fmt.Errorf("copy products: %w", err)
	}

	result, err := tx.Exec(ctx, upsertQuery())
	if err != nil {
		return 0, fmt.Errorf("upsert products: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return int(result.RowsAffected()), nil
}

func selectList() string {
	cols := make([]string, len(productColumns))
	for i, c := range productColumns {
		if c == "price" {
			cols[i] = "price::text"
			continue
		}
		cols[i] = c
	}
	return strings.Join(cols, ", ")
}

func upsertQuery() string {
	cols := strings.Join(productColumns, ", ")

	updates := make([]string, 0, len(productColumns))
	for _, c := range productColumns {
		if c == "id" || c == "created_at" {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}

	return fmt.Sprintf(
		"INSERT INTO products (%s) SELECT %s FROM products_staging ON CONFLICT (id) DO UPDATE SET %s",
		cols, cols, strings.Join(updates, ", "),
	)
}

// productRow converts a product into COPY values in productColumns order.
// Blank ids get a UUID and zero CreatedAt becomes now.
func productRow(p catalog.Product, now time.Time) []any {
	id := strings.TrimSpace(p.ID)
	if id == "" {
		id = uuid.NewString()
	}
	created := p.CreatedAt
	if created.IsZero() {
		created = now
	}

	return []any{
		id, p.Title, toText(p.Subtitle), toText(p.Brand),
		toText(p.Price.Raw), toNumeric(p.Price.Amount), toFloat8(p.Rating), toFloat8(p.ReviewCount),
		toText(p.URL), toText(p.ImageURL), toText(p.Source),
		p.IsBestSeller, p.IsPrime, p.IsEcoFriendly, p.IsAmazonChoice, p.IsDeal,
		pgtype.Timestamptz{Time: created, Valid: true},
	}
}

func scanProduct(row pgx.Row) (catalog.Product, error) {
	var (
		p                          catalog.Product
		subtitle, brand, priceText pgtype.Text
		price                      pgtype.Text
		rating, reviewCount        pgtype.Float8
		url, imageURL, source      pgtype.Text
		createdAt                  pgtype.Timestamptz
	)

	err := row.Scan(
		&p.ID, &p.Title, &subtitle, &brand,
		&priceText, &price, &rating, &reviewCount,
		&url, &imageURL, &source,
		&p.IsBestSeller, &p.IsPrime, &p.IsEcoFriendly, &p.IsAmazonChoice, &p.IsDeal,
		&createdAt,
	)
	if err != nil {
		return catalog.Product{}, err
	}

	p.Subtitle = subtitle.String
	p.Brand = brand.String
	p.Price = fromPrice(priceText, price)
	p.Rating = fromFloat8(rating)
	p.ReviewCount = fromFloat8(reviewCount)
	p.URL = url.String
	p.ImageURL = imageURL.String
	p.Source = source.String
	p.CreatedAt = createdAt.Time
	return p, nil
}

package db

import (
	"context"

	"catalog-services/types"

	"github.com/georgysavva/scany/pgxscan"
	"github.com/jackc/pgx/v4"
	"github.com/ninja-software/terror/v2"
	"github.com/volatiletech/null/v8"
)

const ProductGetQuery string = `--sql
SELECT id, name, description, price, image_id, created_at
FROM products
`

// productJoinRow carries a product plus the mime type of its referenced
// image, when one exists.
type productJoinRow struct {
	types.Product
	ImageMimeType null.String `db:"image_mime_type"`
}

// ProductGet returns a product by given ID, joined with the mime type of the
// image it references.
func ProductGet(ctx context.Context, conn Conn, productID int64) (*types.Product, error) {
	row := &productJoinRow{}
	q := `--sql
		SELECT p.id, p.name, p.description, p.price, p.image_id, p.created_at,
			i.mime_type AS image_mime_type
		FROM products p
		LEFT JOIN images i ON i.id = p.image_id
		WHERE p.id = $1`
	err := pgxscan.Get(ctx, conn, row, q, productID)
	if err != nil {
		return nil, terror.Error(err)
	}
	product := row.Product
	if row.ImageMimeType.Valid {
		product.Image = &types.ImageMeta{MimeType: row.ImageMimeType.String}
	}
	return &product, nil
}

// ProductCreate will create a new product
func ProductCreate(ctx context.Context, conn Conn, product *types.Product) error {
	q := `--sql
		INSERT INTO products (name, description, price, image_id)
		VALUES ($1, $2, $3, $4)
		RETURNING
			id, name, description, price, image_id, created_at`
	err := pgxscan.Get(ctx,
		conn,
		product,
		q,
		product.Name,
		product.Description,
		product.Price,
		product.ImageID,
	)
	if err != nil {
		return terror.Error(err)
	}
	return nil
}

// ProductUpdate rewrites name, description and price. image_id is rewritten
// only when setImage is true; otherwise the stored value is preserved.
// Reports pgx.ErrNoRows when the product does not exist.
func ProductUpdate(ctx context.Context, conn Conn, product *types.Product, setImage bool) error {
	q := `--sql
		UPDATE products
		SET name = $2, description = $3, price = $4
		WHERE id = $1
		RETURNING
			id, name, description, price, image_id, created_at`
	args := []interface{}{product.ID, product.Name, product.Description, product.Price}
	if setImage {
		q = `--sql
		UPDATE products
		SET name = $2, description = $3, price = $4, image_id = $5
		WHERE id = $1
		RETURNING
			id, name, description, price, image_id, created_at`
		args = append(args, product.ImageID)
	}
	err := pgxscan.Get(ctx, conn, product, q, args...)
	if err != nil {
		return terror.Error(err)
	}
	return nil
}

// ProductList grabs a page of product summaries ordered by creation time
// descending.
func ProductList(ctx context.Context, conn Conn, result *[]*types.ProductSummary, offset int, limit int) error {
	q := `--sql
		SELECT id, name, price, image_id
		FROM products
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`
	err := pgxscan.Select(ctx, conn, result, q, limit, offset)
	if err != nil {
		return terror.Error(err)
	}
	return nil
}

// ProductDelete removes a product by ID. Referencing rows are not touched;
// deletion is independent of anything pointing at the product's image.
// Reports pgx.ErrNoRows when the id never existed or was already deleted.
func ProductDelete(ctx context.Context, conn Conn, productID int64) error {
	q := `--sql
		DELETE FROM products
		WHERE id = $1`
	ct, err := conn.Exec(ctx, q, productID)
	if err != nil {
		return terror.Error(err)
	}
	if ct.RowsAffected() == 0 {
		return terror.Error(pgx.ErrNoRows, "product not found")
	}
	return nil
}

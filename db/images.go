package db

import (
	"context"

	"catalog-services/types"

	"github.com/georgysavva/scany/pgxscan"
	"github.com/jackc/pgx/v4"
	"github.com/ninja-software/terror/v2"
)

const ImageGetQuery string = `--sql
SELECT id, file_name, mime_type, file_size_bytes, file, created_at
FROM images
`

// ImageGet returns an image by given ID
func ImageGet(ctx context.Context, conn Conn, imageID int64) (*types.Image, error) {
	image := &types.Image{}
	q := ImageGetQuery + ` WHERE id = $1`
	err := pgxscan.Get(ctx, conn, image, q, imageID)
	if err != nil {
		return nil, terror.Error(err)
	}
	return image, nil
}

// ImageInsert inserts a new image, persisting metadata and payload as one
// record. Only the generated id and created_at come back; the payload is
// never echoed by the query.
func ImageInsert(ctx context.Context, conn Conn, image *types.Image) error {
	q := `--sql
		INSERT INTO images (file_name, mime_type, file_size_bytes, file)
			VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	err := pgxscan.Get(
		ctx,
		conn,
		image,
		q,
		image.FileName,
		image.MimeType,
		image.FileSizeBytes,
		image.File,
	)
	if err != nil {
		return terror.Error(err)
	}
	return nil
}

// ImageDelete removes an image by ID, reporting pgx.ErrNoRows when the id
// never existed or was already deleted.
func ImageDelete(ctx context.Context, conn Conn, imageID int64) error {
	q := `--sql
		DELETE FROM images
		WHERE id = $1`
	ct, err := conn.Exec(ctx, q, imageID)
	if err != nil {
		return terror.Error(err)
	}
	if ct.RowsAffected() == 0 {
		return terror.Error(pgx.ErrNoRows, "image not found")
	}
	return nil
}

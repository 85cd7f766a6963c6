package types

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
)

// Image is a binary asset stored whole in the datastore. The payload is
// never included in JSON responses; image bytes are only ever served raw
// under their stored mime type.
type Image struct {
	ID            int64     `json:"id" db:"id"`
	FileName      string    `json:"fileName" db:"file_name"`
	MimeType      string    `json:"mimeType" db:"mime_type"`
	FileSizeBytes int64     `json:"fileSizeBytes" db:"file_size_bytes"`
	File          []byte    `json:"-" db:"file"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
}

// ImageMeta is the slice of image detail exposed on a joined product read.
type ImageMeta struct {
	MimeType string `json:"mimetype"`
}

// Product references an image by id without owning it; the reference is not
// enforced and may dangle.
type Product struct {
	ID          int64           `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	ImageID     null.Int64      `json:"imageId" db:"image_id"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	Image       *ImageMeta      `json:"image,omitempty" db:"-"`
}

// ProductSummary is the list-page shape: no description, no timestamps.
type ProductSummary struct {
	ID      int64           `json:"id" db:"id"`
	Name    string          `json:"name" db:"name"`
	Price   decimal.Decimal `json:"price" db:"price"`
	ImageID null.Int64      `json:"imageId" db:"image_id"`
}

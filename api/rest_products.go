package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"catalog-services/db"
	"catalog-services/helpers"
	"catalog-services/types"

	"github.com/jackc/pgx/v4"
	"github.com/ninja-software/terror/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
)

// ProductsController holds connection data for handlers
type ProductsController struct {
	Log *zerolog.Logger
	API *API
}

// ProductRequest is the JSON body for create and update. Pointer fields
// distinguish an absent field from a zero one, so a price of 0 is accepted.
type ProductRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	ImageID     null.Int64       `json:"imageId"`
}

// requireAll checks every field explicitly by presence and type, field by
// field, not by truthiness.
func (req *ProductRequest) requireAll() error {
	if req.Name == nil || *req.Name == "" {
		return terror.Error(fmt.Errorf("missing field: name"), "name is required")
	}
	if req.Description == nil || *req.Description == "" {
		return terror.Error(fmt.Errorf("missing field: description"), "description is required")
	}
	if req.Price == nil {
		return terror.Error(fmt.Errorf("missing field: price"), "price is required")
	}
	if req.Price.IsNegative() {
		return terror.Error(fmt.Errorf("negative price"), "price must not be negative")
	}
	if !req.ImageID.Valid {
		return terror.Error(fmt.Errorf("missing field: imageId"), "imageId is required")
	}
	return nil
}

// List returns a page of product summaries, newest first.
func (c *ProductsController) List(w http.ResponseWriter, r *http.Request, conn db.Conn) (int, error) {
	defer r.Body.Close()

	page := helpers.SearchArgInt(r, "page", defaultPage)
	if page < 1 {
		page = defaultPage
	}
	limit := helpers.SearchArgInt(r, "limit", defaultLimit)
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset := (page - 1) * limit

	result := []*types.ProductSummary{}
	err := db.ProductList(r.Context(), conn, &result, offset, limit)
	if err != nil {
		return http.StatusInternalServerError, terror.Error(err, "could not list products")
	}

	return helpers.EncodeJSON(w, struct {
		Data  []*types.ProductSummary `json:"data"`
		Page  int                     `json:"page"`
		Limit int                     `json:"limit"`
	}{
		Data:  result,
		Page:  page,
		Limit: limit,
	})
}

// Get returns a full product record, joined with its image's mime type.
func (c *ProductsController) Get(w http.ResponseWriter, r *http.Request, conn db.Conn) (int, error) {
	defer r.Body.Close()

	id, err := urlParamInt64(r, "id")
	if err != nil {
		return http.StatusBadRequest, err
	}

	product, err := db.ProductGet(r.Context(), conn, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return http.StatusNotFound, terror.Warn(err, "product not found")
	}
	if err != nil {
		return http.StatusInternalServerError, terror.Error(err, "could not get product")
	}

	return helpers.EncodeJSON(w, product)
}

// Create validates all four fields and persists a new product.
func (c *ProductsController) Create(w http.ResponseWriter, r *http.Request, conn db.Conn) (int, error) {
	defer r.Body.Close()

	req := &ProductRequest{}
	err := json.NewDecoder(r.Body).Decode(req)
	if err != nil {
		return http.StatusBadRequest, terror.Error(err, "invalid json body")
	}
	err = req.requireAll()
	if err != nil {
		return http.StatusBadRequest, err
	}

	product := &types.Product{
		Name:        helpers.Sanitise(*req.Name, c.API.HTMLSanitize),
		Description: helpers.Sanitise(*req.Description, c.API.HTMLSanitize),
		Price:       *req.Price,
		ImageID:     req.ImageID,
	}
	err = db.ProductCreate(r.Context(), conn, product)
	if err != nil {
		return http.StatusInternalServerError, terror.Error(err, "could not create product")
	}

	w.WriteHeader(http.StatusCreated)
	return helpers.EncodeJSON(w, product)
}

// Update rewrites name, description and price from the payload; imageId is
// rewritten only when present and non-null, otherwise the stored value is
// kept.
func (c *ProductsController) Update(w http.ResponseWriter, r *http.Request, conn db.Conn) (int, error) {
	defer r.Body.Close()

	id, err := urlParamInt64(r, "id")
	if err != nil {
		return http.StatusBadRequest, err
	}

	req := &ProductRequest{}
	err = json.NewDecoder(r.Body).Decode(req)
	if err != nil {
		return http.StatusBadRequest, terror.Error(err, "invalid json body")
	}
	if req.Price != nil && req.Price.IsNegative() {
		return http.StatusBadRequest, terror.Error(fmt.Errorf("negative price"), "price must not be negative")
	}

	product := &types.Product{ID: id, ImageID: req.ImageID}
	if req.Name != nil {
		product.Name = helpers.Sanitise(*req.Name, c.API.HTMLSanitize)
	}
	if req.Description != nil {
		product.Description = helpers.Sanitise(*req.Description, c.API.HTMLSanitize)
	}
	if req.Price != nil {
		product.Price = *req.Price
	}

	err = db.ProductUpdate(r.Context(), conn, product, req.ImageID.Valid)
	if errors.Is(err, pgx.ErrNoRows) {
		return http.StatusNotFound, terror.Warn(err, "product not found")
	}
	if err != nil {
		return http.StatusInternalServerError, terror.Error(err, "could not update product")
	}

	return helpers.EncodeJSON(w, product)
}

// Delete removes a product by id. A second delete of the same id reports not
// found.
func (c *ProductsController) Delete(w http.ResponseWriter, r *http.Request, conn db.Conn) (int, error) {
	defer r.Body.Close()

	id, err := urlParamInt64(r, "id")
	if err != nil {
		return http.StatusBadRequest, err
	}

	err = db.ProductDelete(r.Context(), conn, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return http.StatusNotFound, terror.Warn(err, "product not found")
	}
	if err != nil {
		return http.StatusInternalServerError, terror.Error(err, "could not delete product")
	}

	w.WriteHeader(http.StatusNoContent)
	return http.StatusNoContent, nil
}

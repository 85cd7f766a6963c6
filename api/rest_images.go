package api

import (
	"errors"
	"io"
	"io/ioutil"
	"net/http"
	"strings"

	"catalog-services/db"
	"catalog-services/helpers"
	"catalog-services/types"

	"github.com/h2non/filetype"
	"github.com/jackc/pgx/v4"
	"github.com/ninja-software/terror/v2"
	"github.com/rs/zerolog"
)

// ImagesController holds connection data for handlers
type ImagesController struct {
	Log *zerolog.Logger
	API *API
}

// Upload receives a single-file multipart request and persists metadata plus
// payload as one record. Only the generated id is echoed back.
func (c *ImagesController) Upload(w http.ResponseWriter, r *http.Request, conn db.Conn) (int, error) {
	defer r.Body.Close()

	image, err := parseUploadRequest(w, r, c.API.Config.MaxUploadBytes)
	if errors.Is(err, types.ErrNoFileUploaded) || errors.Is(err, types.ErrTooManyFiles) {
		return http.StatusBadRequest, err
	}
	if errors.Is(err, types.ErrFileTooLarge) {
		return http.StatusRequestEntityTooLarge, err
	}
	if err != nil {
		return http.StatusBadRequest, terror.Error(err, "could not parse upload")
	}

	err = db.ImageInsert(r.Context(), conn, image)
	if err != nil {
		return http.StatusInternalServerError, terror.Error(err, "failed to upload")
	}

	w.WriteHeader(http.StatusCreated)
	return helpers.EncodeJSON(w, struct {
		ID int64 `json:"id"`
	}{ID: image.ID})
}

// Get retrieves an image's raw bytes, served under its stored mime type.
func (c *ImagesController) Get(w http.ResponseWriter, r *http.Request, conn db.Conn) (int, error) {
	defer r.Body.Close()

	id, err := urlParamInt64(r, "id")
	if err != nil {
		return http.StatusBadRequest, err
	}

	image, err := db.ImageGet(r.Context(), conn, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return http.StatusNotFound, terror.Warn(err, "image not found")
	}
	if err != nil {
		return http.StatusInternalServerError, terror.Error(err, "could not get image")
	}

	w.Header().Set("Content-Type", image.MimeType)
	_, err = w.Write(image.File)
	if err != nil {
		return http.StatusInternalServerError, err
	}
	return http.StatusOK, nil
}

// Delete removes an image by id. A second delete of the same id reports not
// found rather than retrying.
func (c *ImagesController) Delete(w http.ResponseWriter, r *http.Request, conn db.Conn) (int, error) {
	defer r.Body.Close()

	id, err := urlParamInt64(r, "id")
	if err != nil {
		return http.StatusBadRequest, err
	}

	err = db.ImageDelete(r.Context(), conn, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return http.StatusNotFound, terror.Warn(err, "image not found")
	}
	if err != nil {
		return http.StatusInternalServerError, terror.Error(err, "could not delete image")
	}

	w.WriteHeader(http.StatusNoContent)
	return http.StatusNoContent, nil
}

// parseUploadRequest reads a multipart request holding exactly one `file`
// field, buffering the payload fully in memory. The ceiling is enforced
// before anything reaches the datastore.
func parseUploadRequest(w http.ResponseWriter, r *http.Request, maxBytes int64) (*types.Image, error) {
	if r.ContentLength > maxBytes {
		return nil, terror.Error(types.ErrFileTooLarge, "file too large")
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, terror.Error(err, "parse error")
	}

	var image *types.Image

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, uploadReadError(err)
		}

		if part.FormName() != "file" {
			continue
		}
		if image != nil {
			return nil, terror.Error(types.ErrTooManyFiles, "only one file allowed")
		}

		data, err := ioutil.ReadAll(part)
		if err != nil {
			return nil, uploadReadError(err)
		}

		// prefer the sniffed mime type over whatever the client claimed
		mimeType := part.Header.Get("Content-Type")
		kind, err := filetype.Match(data)
		if err == nil && kind != filetype.Unknown {
			mimeType = kind.MIME.Value
		}
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}

		image = &types.Image{
			FileName:      part.FileName(),
			MimeType:      mimeType,
			FileSizeBytes: int64(len(data)),
			File:          data,
		}
	}

	if image == nil {
		return nil, terror.Error(types.ErrNoFileUploaded, "no file uploaded")
	}
	return image, nil
}

func uploadReadError(err error) error {
	// MaxBytesReader reports the ceiling as a plain error from Read
	if strings.Contains(err.Error(), "request body too large") {
		return terror.Error(types.ErrFileTooLarge, "file too large")
	}
	return terror.Error(err, "parse error")
}

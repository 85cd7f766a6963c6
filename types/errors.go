package types

import (
	"fmt"
)

// ErrNoFileUploaded when a multipart request carries no file field
var ErrNoFileUploaded = fmt.Errorf("no file uploaded")

// ErrTooManyFiles when a multipart request carries more than one file field
var ErrTooManyFiles = fmt.Errorf("only one file allowed")

// ErrFileTooLarge when an uploaded file exceeds the configured ceiling
var ErrFileTooLarge = fmt.Errorf("file too large")

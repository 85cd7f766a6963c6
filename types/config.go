package types

import "time"

type Config struct {
	Environment    string
	AllowedOrigins []string
	RequestTimeout time.Duration
	UploadTimeout  time.Duration
	MaxUploadBytes int64
}

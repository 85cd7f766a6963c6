//go:build tools
// +build tools

package tools

//go:generate go build -o ../bin/migrate -tags 'postgres' github.com/golang-migrate/migrate/v4/cmd/migrate

import (
	_ "github.com/golang-migrate/migrate/v4"
)

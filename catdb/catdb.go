package catdb

import (
	"errors"

	"github.com/jackc/pgx/v4/pgxpool"
)

// Conn is the process-wide connection pool. It is built once per worker
// process and reused across requests; per-request code acquires from it and
// must release what it acquires.
var Conn *pgxpool.Pool

func New(conn *pgxpool.Pool) error {
	if Conn != nil {
		return errors.New("db already initialised")
	}
	Conn = conn
	return nil
}

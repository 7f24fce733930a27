package dbpkg

import (
	"context"
	_ "embed"
)

//go:embed schema.sql
var schema string

// Schema returns the DDL of the customer tables.
func Schema() string {
	return schema
}

// EnsureSchema creates the customer tables when they do not exist yet.
func EnsureSchema(ctx context.Context, db SQLInterface) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

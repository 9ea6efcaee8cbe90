package db

import "context"

// SchemaInterface represents the database schema.
type SchemaInterface interface {
	// Upgrade applies every schema version newer than the database's one.
	Upgrade(ctx context.Context) error

	// Version returns the current version of the schema in the database.
	//
	// It is 0 when no schema has been applied.
	Version(ctx context.Context) (int, error)

	// Context returns a context which is canceled when the schema in the database is outdated.
	//
	// The schema repository is watched, so adding a new version while running also cancels it.
	Context(ctx context.Context) (context.Context, context.CancelFunc)
}

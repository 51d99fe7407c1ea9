package adapter

import "context"

// MySQL defines operations the database service needs from a live server.
type MySQL interface {
	EnsureDatabase(ctx context.Context, name, charset, collation string) error
	TableCount(ctx context.Context, name string) (int, error)
	GrantRemoteRoot(ctx context.Context) error
	Ping(ctx context.Context) error
}

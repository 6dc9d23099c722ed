// Package pg bootstraps PostgreSQL access with pgx/v5.
//
// Connect opens a *pgxpool.Pool from Config, retrying until the database
// answers a ping. Migrate applies goose migrations through the same pool,
// either from an embedded filesystem or from a directory on disk.
// Healthcheck returns a probe suitable for readiness endpoints.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, migrations.FS, slog.Default()); err != nil {
//		return err
//	}
//
// Configuration is read from PG_* environment variables; see the Config tags.
package pg

package pg_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/solshare/pipeline/internal/db/migrations"
	"github.com/solshare/pipeline/pkg/pg"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestHealthcheck(t *testing.T) {
	t.Parallel()

	assert.NoError(t, pg.Healthcheck(pinger{})(context.Background()))

	err := pg.Healthcheck(pinger{err: errors.New("conn refused")})(context.Background())
	assert.ErrorIs(t, err, pg.ErrHealthcheckFailed)
}

func TestConnect_EmptyConnectionString(t *testing.T) {
	t.Parallel()

	_, err := pg.Connect(context.Background(), pg.Config{})
	assert.ErrorIs(t, err, pg.ErrEmptyConnectionString)
}

func TestConnect_InvalidConnectionString(t *testing.T) {
	t.Parallel()

	_, err := pg.Connect(context.Background(), pg.Config{ConnectionString: "postgres://%zz"})
	assert.ErrorIs(t, err, pg.ErrFailedToParseDBConfig)
}

func TestMigrate_PathErrors(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	err := pg.Migrate(context.Background(), nil, pg.Config{}, migrations.FS, log)
	assert.ErrorIs(t, err, pg.ErrMigrationPathNotProvided)

	missing := filepath.Join(t.TempDir(), "nope")
	err = pg.Migrate(context.Background(), nil, pg.Config{MigrationsPath: missing}, nil, log)
	assert.ErrorIs(t, err, pg.ErrMigrationsDirNotFound)
}

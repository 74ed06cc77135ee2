package postgresql

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

const migrationTable = "goose_db_version"

// Migrate applies all pending goose migrations found at the root of migrations
func (c *Client) Migrate(ctx context.Context, migrations fs.FS) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(&gooseLogger{logger: c.logger})
	goose.SetTableName(migrationTable)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	if err := goose.UpContext(ctx, c.db.DB, "."); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	c.logger.Info("Database migrations applied")
	return nil
}

type gooseLogger struct {
	logger *slog.Logger
}

func (g *gooseLogger) Printf(format string, args ...any) {
	g.logger.Info(fmt.Sprintf(format, args...))
}

// Fatalf logs only; goose returns the error to the caller so shutdown stays orderly
func (g *gooseLogger) Fatalf(format string, args ...any) {
	g.logger.Error(fmt.Sprintf(format, args...))
}

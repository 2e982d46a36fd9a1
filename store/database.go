package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/extra/bundebug"
)

// Options configures Open.
type Options struct {
	DSN   string
	Debug bool
	// Name identifies the client in telemetry.
	Name string
}

type persistenceConfig struct {
	opts Options
}

func (p persistenceConfig) GetDebug() bool                { return p.opts.Debug }
func (p persistenceConfig) GetDriver() string             { return "sqlite3" }
func (p persistenceConfig) GetServer() string             { return p.opts.DSN }
func (p persistenceConfig) GetPingTimeout() time.Duration { return 5 * time.Second }
func (p persistenceConfig) GetOtelIdentifier() string     { return p.opts.Name }

// Database owns the connection pool and persistence client.
type Database struct {
	client *persistence.Client
	sqlDB  *sql.DB
}

// Open connects to sqlite and prepares the schema.
func Open(ctx context.Context, opts Options) (*Database, error) {
	if strings.TrimSpace(opts.DSN) == "" {
		return nil, fmt.Errorf("store: dsn is required")
	}
	if opts.Name == "" {
		opts.Name = "kino"
	}

	sqlDB, err := sql.Open("sqlite3", opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	client, err := persistence.New(persistenceConfig{opts: opts}, sqlDB, sqlitedialect.New())
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("store: persistence client: %w", err)
	}

	if opts.Debug {
		client.DB().AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	if err := client.Migrate(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	if err := CreateSchema(ctx, client.DB()); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &Database{client: client, sqlDB: sqlDB}, nil
}

// DB returns the bun handle.
func (d *Database) DB() *bun.DB {
	return d.client.DB()
}

// Store returns a Store bound to this database.
func (d *Database) Store() *BunStore {
	return NewBunStore(d.DB())
}

func (d *Database) Close() error {
	return d.sqlDB.Close()
}

// CreateSchema creates every table if missing.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, model := range Models() {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("store: create table %T: %w", model, err)
		}
	}

	indexes := []struct {
		model   any
		name    string
		columns []string
	}{
		{(*Comment)(nil), "comments_film_id_idx", []string{"film_id"}},
		{(*Comment)(nil), "comments_user_id_idx", []string{"user_id"}},
	}
	for _, idx := range indexes {
		if _, err := db.NewCreateIndex().Model(idx.model).Index(idx.name).Column(idx.columns...).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("store: create index %s: %w", idx.name, err)
		}
	}
	return nil
}

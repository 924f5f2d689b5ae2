package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"townsquare/internal/config"
	"townsquare/internal/middleware"

	"gorm.io/gorm"
)

// Schema modes. SQL migrations are authoritative; auto runs GORM
// AutoMigrate and exists for local development only.
const (
	SchemaModeSQL  = "sql"
	SchemaModeAuto = "auto"
)

// TableStatus describes one table backing a persistent model.
type TableStatus struct {
	Name    string
	Present bool
	Rows    int64
}

// SchemaStatus is what cmd/migrate status prints.
type SchemaStatus struct {
	Mode        string
	Environment string
	Migrations  []MigrationState
	Unknown     []int
	Tables      []TableStatus
}

// Pending returns the shipped migrations not yet applied.
func (s *SchemaStatus) Pending() []Migration {
	var out []Migration
	for _, st := range s.Migrations {
		if !st.Applied {
			out = append(out, st.Migration)
		}
	}
	return out
}

// Ready reports whether every model table exists and, in SQL mode, the log
// matches the shipped migrations exactly.
func (s *SchemaStatus) Ready() bool {
	for _, t := range s.Tables {
		if !t.Present {
			return false
		}
	}
	if s.Mode == SchemaModeAuto {
		return true
	}
	return len(s.Unknown) == 0 && len(s.Pending()) == 0
}

func schemaMode(cfg *config.Config) (string, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode))
	switch mode {
	case "", SchemaModeSQL:
		return SchemaModeSQL, nil
	case SchemaModeAuto:
		if cfg.IsProduction() || strings.EqualFold(cfg.Env, "staging") {
			return "", fmt.Errorf("DB_SCHEMA_MODE=auto is not allowed in %q", cfg.Env)
		}
		return SchemaModeAuto, nil
	default:
		return "", fmt.Errorf("unsupported DB_SCHEMA_MODE %q", cfg.DBSchemaMode)
	}
}

// ApplySchema brings the schema up to date for the configured mode and then
// checks that every model table exists.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	mode, err := schemaMode(cfg)
	if err != nil {
		return err
	}

	switch mode {
	case SchemaModeSQL:
		applied, err := NewMigrator(db).Up(ctx)
		if err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
		middleware.Logger.Info("SQL migrations up to date", slog.Int("applied", len(applied)))
	case SchemaModeAuto:
		middleware.Logger.Info("Running GORM AutoMigrate", slog.String("env", cfg.Env))
		if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}

	tables, err := modelTables(ctx, db)
	if err != nil {
		return err
	}
	for _, t := range tables {
		if !t.Present {
			return fmt.Errorf("schema is missing table %s", t.Name)
		}
	}
	return nil
}

// GetSchemaStatus reports migrations and model tables without changing anything.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	mode, err := schemaMode(cfg)
	if err != nil {
		return nil, err
	}

	states, unknown, err := NewMigrator(db).Status(ctx)
	if err != nil {
		return nil, err
	}
	tables, err := modelTables(ctx, db)
	if err != nil {
		return nil, err
	}

	return &SchemaStatus{
		Mode:        mode,
		Environment: cfg.Env,
		Migrations:  states,
		Unknown:     unknown,
		Tables:      tables,
	}, nil
}

// modelTables checks each persistent model's table and counts its rows,
// soft-deleted ones included.
func modelTables(ctx context.Context, db *gorm.DB) ([]TableStatus, error) {
	models := PersistentModels()
	out := make([]TableStatus, 0, len(models))
	for _, model := range models {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return nil, fmt.Errorf("parse model %T: %w", model, err)
		}

		ts := TableStatus{Name: stmt.Schema.Table}
		if db.Migrator().HasTable(ts.Name) {
			ts.Present = true
			if err := db.WithContext(ctx).Table(ts.Name).Count(&ts.Rows).Error; err != nil {
				return nil, fmt.Errorf("count %s: %w", ts.Name, err)
			}
		}
		out = append(out, ts)
	}
	return out, nil
}

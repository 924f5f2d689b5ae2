package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"townsquare/internal/middleware"

	"gorm.io/gorm"
)

// ErrUnknownMigration is returned when the database records a version this
// binary does not ship, meaning the binary is older than the schema.
var ErrUnknownMigration = errors.New("database has migrations this binary does not know")

// SchemaMigration is one row of the applied-migrations log.
type SchemaMigration struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255;not null"`
	Checksum  string    `gorm:"size:64;not null"`
	AppliedAt time.Time `gorm:"not null;index"`
}

// TableName pins the log table name.
func (SchemaMigration) TableName() string {
	return "schema_migrations"
}

// MigrationState pairs a shipped migration with what the log says about it.
type MigrationState struct {
	Migration
	Applied   bool
	AppliedAt *time.Time
	// Modified is set when the shipped up script no longer matches the
	// checksum recorded when it was applied.
	Modified bool
}

// Migrator applies and reverts a fixed, ordered set of migrations.
type Migrator struct {
	db         *gorm.DB
	migrations []Migration
	now        func() time.Time
}

// NewMigrator returns a Migrator over the embedded migrations.
func NewMigrator(db *gorm.DB) *Migrator {
	return newMigrator(db, migrations)
}

func newMigrator(db *gorm.DB, ms []Migration) *Migrator {
	return &Migrator{db: db, migrations: ms, now: time.Now}
}

func (m *Migrator) ensureLog(ctx context.Context) error {
	if err := m.db.WithContext(ctx).AutoMigrate(&SchemaMigration{}); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	return nil
}

// applied reads the log. A database that never ran a migration has no log
// table yet and reads as empty.
func (m *Migrator) applied(ctx context.Context) (map[int]SchemaMigration, error) {
	out := make(map[int]SchemaMigration)
	if !m.db.Migrator().HasTable(&SchemaMigration{}) {
		return out, nil
	}
	var rows []SchemaMigration
	if err := m.db.WithContext(ctx).Order("version ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	for _, r := range rows {
		out[r.Version] = r
	}
	return out, nil
}

// Status reports every shipped migration in order, plus any logged versions
// the binary does not ship.
func (m *Migrator) Status(ctx context.Context) ([]MigrationState, []int, error) {
	log, err := m.applied(ctx)
	if err != nil {
		return nil, nil, err
	}

	states := make([]MigrationState, 0, len(m.migrations))
	shipped := make(map[int]bool, len(m.migrations))
	for _, mig := range m.migrations {
		shipped[mig.Version] = true
		st := MigrationState{Migration: mig}
		if row, ok := log[mig.Version]; ok {
			at := row.AppliedAt
			st.Applied = true
			st.AppliedAt = &at
			st.Modified = row.Checksum != mig.Checksum()
		}
		states = append(states, st)
	}

	var unknown []int
	for version := range log {
		if !shipped[version] {
			unknown = append(unknown, version)
		}
	}
	sort.Ints(unknown)
	return states, unknown, nil
}

// Up applies every pending migration in version order, each in its own
// transaction together with its log row. It returns the ones it applied.
func (m *Migrator) Up(ctx context.Context) ([]Migration, error) {
	if err := m.ensureLog(ctx); err != nil {
		return nil, err
	}
	states, unknown, err := m.Status(ctx)
	if err != nil {
		return nil, err
	}
	if len(unknown) > 0 {
		return nil, unknownVersionsError(unknown)
	}

	var done []Migration
	for _, st := range states {
		if st.Applied {
			if st.Modified {
				middleware.Logger.Warn("Applied migration was edited afterwards",
					slog.String("migration", st.String()))
			}
			continue
		}

		mig := st.Migration
		middleware.Logger.Info("Applying migration", slog.String("migration", mig.String()))
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(mig.UpScript).Error; err != nil {
				return fmt.Errorf("apply %s: %w", mig.String(), err)
			}
			return tx.Create(&SchemaMigration{
				Version:   mig.Version,
				Name:      mig.Name,
				Checksum:  mig.Checksum(),
				AppliedAt: m.now().UTC(),
			}).Error
		})
		if err != nil {
			return done, err
		}
		done = append(done, mig)
	}
	return done, nil
}

// RollbackLatest reverts the most recently applied migration. When version
// is non-zero it must name that migration; older ones cannot be reverted
// out of order.
func (m *Migrator) RollbackLatest(ctx context.Context, version int) (*Migration, error) {
	states, unknown, err := m.Status(ctx)
	if err != nil {
		return nil, err
	}
	if len(unknown) > 0 {
		return nil, unknownVersionsError(unknown)
	}

	var latest *Migration
	for i := len(states) - 1; i >= 0; i-- {
		if states[i].Applied {
			latest = &states[i].Migration
			break
		}
	}
	if latest == nil {
		return nil, errors.New("no applied migration to roll back")
	}
	if version != 0 && version != latest.Version {
		return nil, fmt.Errorf("migration %06d is not the latest applied (%s)", version, latest.String())
	}

	middleware.Logger.Info("Rolling back migration", slog.String("migration", latest.String()))
	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(latest.DownScript).Error; err != nil {
			return fmt.Errorf("revert %s: %w", latest.String(), err)
		}
		return tx.Delete(&SchemaMigration{}, latest.Version).Error
	})
	if err != nil {
		return nil, err
	}
	return latest, nil
}

func unknownVersionsError(versions []int) error {
	parts := make([]string, 0, len(versions))
	for _, v := range versions {
		parts = append(parts, fmt.Sprintf("%06d", v))
	}
	return fmt.Errorf("%w: %s", ErrUnknownMigration, strings.Join(parts, ", "))
}

// Command migrate manages the townsquare schema: embedded SQL migrations,
// development AutoMigrate, and a status report over the community tables.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"townsquare/internal/config"
	"townsquare/internal/database"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func usage() error {
	return fmt.Errorf("usage: migrate <up|auto|status|down> [version]")
}

func run() error {
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.Open(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	ctx := context.Background()
	switch strings.ToLower(strings.TrimSpace(flag.Arg(0))) {
	case "up":
		cfg.DBSchemaMode = database.SchemaModeSQL
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return err
		}
		log.Println("schema is at the latest migration")
	case "auto":
		cfg.DBSchemaMode = database.SchemaModeAuto
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return err
		}
		log.Println("automigrate finished")
	case "status":
		status, err := database.GetSchemaStatus(ctx, db, cfg)
		if err != nil {
			return fmt.Errorf("schema status: %w", err)
		}
		printStatus(status)
	case "down":
		version := 0
		if flag.NArg() > 1 {
			version, err = strconv.Atoi(flag.Arg(1))
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", flag.Arg(1), err)
			}
		}
		reverted, err := database.NewMigrator(db).RollbackLatest(ctx, version)
		if err != nil {
			return fmt.Errorf("rollback: %w", err)
		}
		log.Printf("rolled back %s", reverted.String())
	default:
		return usage()
	}

	return nil
}

func printStatus(s *database.SchemaStatus) {
	fmt.Printf("mode=%s env=%s ready=%t\n", s.Mode, s.Environment, s.Ready())

	fmt.Println("migrations:")
	for _, m := range s.Migrations {
		state := "pending"
		if m.Applied {
			state = "applied " + m.AppliedAt.UTC().Format(time.RFC3339)
		}
		if m.Modified {
			state += " (edited since applied)"
		}
		fmt.Printf("  %s  %s\n", m.String(), state)
	}
	for _, v := range s.Unknown {
		fmt.Printf("  %06d  unknown to this binary\n", v)
	}

	fmt.Println("tables:")
	for _, t := range s.Tables {
		if !t.Present {
			fmt.Printf("  %-16s missing\n", t.Name)
			continue
		}
		fmt.Printf("  %-16s %d rows\n", t.Name, t.Rows)
	}
}

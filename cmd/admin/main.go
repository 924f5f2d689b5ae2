// Package main provides account administration utilities for Townsquare.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"townsquare/internal/config"
	"townsquare/internal/database"
	"townsquare/internal/models"
	"townsquare/internal/repository"
	"townsquare/internal/service"
)

// cliActor is recorded as the actor of changes made from this tool.
const cliActor = "admin-cli"

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage:")
		fmt.Println("  go run ./cmd/admin set-level <user_id|email> <1-4>   - Assign a privilege tier")
		fmt.Println("  go run ./cmd/admin lift-suspension <user_id|email>   - Clear an active suspension")
		fmt.Println("  go run ./cmd/admin list-staff                        - List admins and managers")
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	store := repository.NewStore(db)
	users := service.NewUserService(store)

	switch command := os.Args[1]; command {
	case "set-level":
		if len(os.Args) < 4 {
			fmt.Println("Usage: go run ./cmd/admin set-level <user_id|email> <1-4>")
			os.Exit(1)
		}
		level, err := strconv.Atoi(os.Args[3])
		if err != nil {
			log.Fatalf("Invalid level %q", os.Args[3])
		}
		setLevel(ctx, store, users, os.Args[2], level)

	case "lift-suspension":
		if len(os.Args) < 3 {
			fmt.Println("Usage: go run ./cmd/admin lift-suspension <user_id|email>")
			os.Exit(1)
		}
		liftSuspension(ctx, store, users, os.Args[2])

	case "list-staff":
		listStaff(ctx, users)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}

func resolveUserID(ctx context.Context, store repository.Store, ref string) string {
	if !strings.Contains(ref, "@") {
		return ref
	}
	user, err := store.Users().GetByEmail(ctx, strings.ToLower(ref))
	if err != nil {
		log.Fatalf("Database error: %v", err)
	}
	if user == nil {
		fmt.Printf("User with email %s not found\n", ref)
		os.Exit(1)
	}
	return user.ID
}

func setLevel(ctx context.Context, store repository.Store, users *service.UserService, ref string, level int) {
	user, err := users.SetLevel(ctx, cliActor, resolveUserID(ctx, store, ref), level)
	if err != nil {
		log.Fatalf("Failed to set level: %v", err)
	}
	fmt.Printf("%s (ID: %s) is now at level %d\n", user.Username, user.ID, user.Level)
}

func liftSuspension(ctx context.Context, store repository.Store, users *service.UserService, ref string) {
	user, err := users.LiftSuspension(ctx, cliActor, resolveUserID(ctx, store, ref))
	if err != nil {
		log.Fatalf("Failed to lift suspension: %v", err)
	}
	fmt.Printf("Suspension lifted for %s (ID: %s), infractions on record: %d\n",
		user.Username, user.ID, user.InfractionCount)
}

func listStaff(ctx context.Context, users *service.UserService) {
	staff, err := users.ListStaff(ctx)
	if err != nil {
		log.Fatalf("Failed to fetch staff: %v", err)
	}

	if len(staff) == 0 {
		fmt.Println("No admins or managers found")
		return
	}

	fmt.Println("─────────────────────────────────────")
	for _, u := range staff {
		role := "manager"
		if u.Level == models.LevelAdmin {
			role = "admin"
		}
		fmt.Printf("ID: %s | %s | Username: %s | Email: %s\n", u.ID, role, u.Username, u.Email)
	}
	fmt.Println("─────────────────────────────────────")
}

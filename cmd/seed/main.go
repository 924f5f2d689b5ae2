// Command main runs the database seeder for Townsquare.
package main

import (
	"context"
	"flag"
	"log"

	"townsquare/internal/config"
	"townsquare/internal/database"
	"townsquare/internal/seed"
)

func main() {
	opts := seed.Options{}
	flag.IntVar(&opts.NumUsers, "users", 30, "Number of users to create")
	flag.IntVar(&opts.NumPosts, "posts", 100, "Number of posts to create")
	flag.IntVar(&opts.NumListings, "listings", 40, "Number of market listings to create")
	flag.IntVar(&opts.NumReports, "reports", 25, "Number of pending reports to create")
	flag.BoolVar(&opts.ShouldClean, "clean", true, "Clean database before seeding")
	flag.BoolVar(&opts.DryRun, "dry-run", false, "Generate data without writing it")
	flag.Int64Var(&opts.RandomSeed, "seed", 0, "Random seed for reproducible data")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	summary, err := seed.Seed(db, opts)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Created %d users, %d posts, %d comments, %d listings, %d reports",
		summary.Users, summary.Posts, summary.Comments, summary.Listings, summary.Reports)
	log.Printf("All seeded users have the password: %s", seed.DefaultPassword)
}

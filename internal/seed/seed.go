package seed

import (
	"fmt"
	"log"
	"math/rand"

	"townsquare/internal/models"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	NumPosts    int
	NumListings int
	NumReports  int
	ShouldClean bool
	DryRun      bool
	// FastHash hashes the shared password at bcrypt.MinCost.
	FastHash bool
	// RandomSeed makes generated data reproducible when non-zero.
	RandomSeed int64
}

// Summary counts what a Seed run created.
type Summary struct {
	Users    int
	Posts    int
	Comments int
	Listings int
	Reports  int
}

// Seed populates the database with demo data: users, posts with comments,
// market listings and a queue of pending reports.
func Seed(db *gorm.DB, opts Options) (*Summary, error) {
	log.Printf("Seeding %d users, %d posts, %d listings, %d reports",
		opts.NumUsers, opts.NumPosts, opts.NumListings, opts.NumReports)

	if opts.NumUsers < 2 {
		return nil, fmt.Errorf("need at least 2 users to seed reports and comments, got %d", opts.NumUsers)
	}

	if opts.ShouldClean && !opts.DryRun {
		if err := clearData(db); err != nil {
			log.Printf("Warning: could not clear existing data: %v", err)
		}
	}

	//nolint:gosec // Weak random number generator is fine for seeding
	r := rand.New(rand.NewSource(opts.RandomSeed))
	f := NewFactory(db, opts)
	summary := &Summary{}

	users := make([]*models.User, 0, opts.NumUsers)
	for i := 0; i < opts.NumUsers; i++ {
		u, err := f.CreateUser()
		if err != nil {
			return summary, fmt.Errorf("create user: %w", err)
		}
		users = append(users, u)
	}
	summary.Users = len(users)

	pick := func() *models.User { return users[r.Intn(len(users))] }

	posts := make([]*models.Post, 0, opts.NumPosts)
	for i := 0; i < opts.NumPosts; i++ {
		p, err := f.CreatePost(pick())
		if err != nil {
			return summary, fmt.Errorf("create post: %w", err)
		}
		posts = append(posts, p)

		for c := r.Intn(4); c > 0; c-- {
			if _, err := f.CreateComment(pick(), p); err != nil {
				return summary, fmt.Errorf("create comment: %w", err)
			}
			summary.Comments++
		}
	}
	summary.Posts = len(posts)

	listings := make([]*models.MarketListing, 0, opts.NumListings)
	for i := 0; i < opts.NumListings; i++ {
		l, err := f.CreateMarketListing(pick())
		if err != nil {
			return summary, fmt.Errorf("create listing: %w", err)
		}
		listings = append(listings, l)
	}
	summary.Listings = len(listings)

	seen := make(map[string]struct{})
	for attempts := 0; summary.Reports < opts.NumReports && attempts < opts.NumReports*4; attempts++ {
		reporter := pick()
		ct, id, author := randomTarget(r, posts, listings)
		if id == 0 || author == reporter.ID {
			continue
		}
		key := fmt.Sprintf("%s|%s|%d", reporter.ID, ct, id)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if _, err := f.CreateReport(reporter, ct, id); err != nil {
			return summary, fmt.Errorf("create report: %w", err)
		}
		summary.Reports++
	}

	log.Printf("Seeding complete: %+v", *summary)
	return summary, nil
}

func randomTarget(r *rand.Rand, posts []*models.Post, listings []*models.MarketListing) (models.ContentType, uint, string) {
	if len(listings) > 0 && (len(posts) == 0 || r.Intn(3) == 0) {
		l := listings[r.Intn(len(listings))]
		return models.ContentMarket, l.ID, l.UserID
	}
	if len(posts) == 0 {
		return "", 0, ""
	}
	p := posts[r.Intn(len(posts))]
	return models.ContentPost, p.ID, p.UserID
}

func clearData(db *gorm.DB) error {
	log.Println("Clearing existing data...")
	return db.Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{"reports", "comments", "posts", "market_listings", "users"} {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
}

// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"log"
	"strings"

	"townsquare/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the plaintext password of every generated user.
const DefaultPassword = "Townsquare#2026"

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by seed presets and tests.
type Factory struct {
	db   *gorm.DB
	opts Options
	hash string
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	if opts.RandomSeed != 0 {
		gofakeit.Seed(opts.RandomSeed)
	}

	cost := bcrypt.DefaultCost
	if opts.FastHash {
		cost = bcrypt.MinCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), cost)
	if err != nil {
		panic(fmt.Sprintf("seed: hash default password: %v", err))
	}

	return &Factory{db: db, opts: opts, hash: string(hashed), nextID: 1000}
}

// BuildUser constructs a sample user without persisting it. Usernames and
// emails carry a random suffix so repeated calls never collide.
func (f *Factory) BuildUser(overrides ...func(*models.User)) *models.User {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	base := strings.ToLower(gofakeit.FirstName())
	if len(base) > 20 {
		base = base[:20]
	}

	user := &models.User{
		Username: fmt.Sprintf("%s_%s", base, suffix),
		Email:    fmt.Sprintf("%s.%s@%s", base, suffix, gofakeit.DomainName()),
		Password: f.hash,
		Level:    models.LevelNewcomer,
	}

	for _, override := range overrides {
		override(user)
	}
	return user
}

// CreateUser constructs and persists a sample `models.User`.
// Optional override functions may modify the generated user before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildUser(overrides...)

	if f.opts.DryRun {
		if user.ID == "" {
			user.ID = uuid.NewString()
		}
		log.Printf("[dry-run] CreateUser: %s", user.Username)
		return user, nil
	}

	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// CreatePost constructs and persists a sample `models.Post` for the given user.
func (f *Factory) CreatePost(user *models.User, overrides ...func(*models.Post)) (*models.Post, error) {
	post := &models.Post{
		Title:   gofakeit.Sentence(5),
		Content: gofakeit.Paragraph(1, 3, 5, "\n"),
		UserID:  user.ID,
	}

	for _, override := range overrides {
		override(post)
	}

	if f.opts.DryRun {
		f.nextID++
		post.ID = f.nextID
		return post, nil
	}

	if err := f.db.Omit("Comments").Create(post).Error; err != nil {
		return nil, err
	}
	return post, nil
}

// CreateComment constructs and persists a sample comment by user on post.
func (f *Factory) CreateComment(user *models.User, post *models.Post, overrides ...func(*models.Comment)) (*models.Comment, error) {
	comment := &models.Comment{
		Content: gofakeit.Sentence(12),
		PostID:  post.ID,
		UserID:  user.ID,
	}

	for _, override := range overrides {
		override(comment)
	}

	if f.opts.DryRun {
		f.nextID++
		comment.ID = f.nextID
		return comment, nil
	}

	if err := f.db.Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// CreateMarketListing constructs and persists a sample listing for user.
func (f *Factory) CreateMarketListing(user *models.User, overrides ...func(*models.MarketListing)) (*models.MarketListing, error) {
	listing := &models.MarketListing{
		Title:       gofakeit.ProductName(),
		Description: gofakeit.ProductDescription(),
		Price:       int64(gofakeit.Number(100, 500000)),
		UserID:      user.ID,
	}

	for _, override := range overrides {
		override(listing)
	}

	if f.opts.DryRun {
		f.nextID++
		listing.ID = f.nextID
		return listing, nil
	}

	if err := f.db.Create(listing).Error; err != nil {
		return nil, err
	}
	return listing, nil
}

// CreateReport files a pending report by reporter against a content item.
func (f *Factory) CreateReport(reporter *models.User, ct models.ContentType, contentID uint, overrides ...func(*models.Report)) (*models.Report, error) {
	report := &models.Report{
		ReporterID:  reporter.ID,
		ContentType: ct,
		ContentID:   contentID,
		Reason:      gofakeit.RandomString([]string{"spam", "harassment", "scam listing", "off-topic", "offensive language"}),
		Status:      models.ReportStatusPending,
	}

	for _, override := range overrides {
		override(report)
	}

	if f.opts.DryRun {
		f.nextID++
		report.ID = f.nextID
		return report, nil
	}

	if err := f.db.Create(report).Error; err != nil {
		return nil, err
	}
	return report, nil
}

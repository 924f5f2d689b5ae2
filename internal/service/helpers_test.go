package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"townsquare/internal/keylock"
	"townsquare/internal/models"
	"townsquare/internal/repository"
	"townsquare/internal/seed"
	"townsquare/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	db      *gorm.DB
	store   repository.Store
	factory *seed.Factory
	clock   *fakeClock
	locks   *keylock.Locker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	return &testEnv{
		db:      db,
		store:   repository.NewStore(db),
		factory: seed.NewFactory(db, seed.Options{FastHash: true}),
		clock:   newFakeClock(),
		locks:   keylock.New(),
	}
}

func (e *testEnv) options() []Option {
	return []Option{WithClock(e.clock.Now), WithLocks(e.locks)}
}

func (e *testEnv) user(t *testing.T, overrides ...func(*models.User)) *models.User {
	t.Helper()
	u, err := e.factory.CreateUser(overrides...)
	require.NoError(t, err)
	return u
}

func (e *testEnv) post(t *testing.T, author *models.User) *models.Post {
	t.Helper()
	p, err := e.factory.CreatePost(author)
	require.NoError(t, err)
	return p
}

func (e *testEnv) comment(t *testing.T, author *models.User, post *models.Post) *models.Comment {
	t.Helper()
	c, err := e.factory.CreateComment(author, post)
	require.NoError(t, err)
	return c
}

func (e *testEnv) listing(t *testing.T, author *models.User) *models.MarketListing {
	t.Helper()
	l, err := e.factory.CreateMarketListing(author)
	require.NoError(t, err)
	return l
}

func (e *testEnv) report(t *testing.T, reporter *models.User, ct models.ContentType, id uint) *models.Report {
	t.Helper()
	r, err := e.factory.CreateReport(reporter, ct, id)
	require.NoError(t, err)
	return r
}

func (e *testEnv) reload(t *testing.T, id string) *models.User {
	t.Helper()
	u, err := e.store.Users().FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, u)
	return u
}

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

// failingStore wraps a Store and fails SetSuspension, to prove a decision
// that fails late leaves nothing behind.
type failingStore struct {
	repository.Store
	err error
}

func (s *failingStore) Users() repository.UserRepository {
	return &failingUsers{UserRepository: s.Store.Users(), err: s.err}
}

func (s *failingStore) Transaction(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.Store.Transaction(ctx, func(tx repository.Store) error {
		return fn(&failingStore{Store: tx, err: s.err})
	})
}

type failingUsers struct {
	repository.UserRepository
	err error
}

func (u *failingUsers) SetSuspension(context.Context, string, *time.Time) error {
	return u.err
}

// rendezvous holds the first caller until a second one arrives or patience
// runs out. Callers that are serialized elsewhere only ever pay the timeout.
type rendezvous struct {
	mu       sync.Mutex
	arrived  int
	release  chan struct{}
	patience time.Duration
}

func newRendezvous(patience time.Duration) *rendezvous {
	return &rendezvous{release: make(chan struct{}), patience: patience}
}

func (r *rendezvous) wait() {
	r.mu.Lock()
	r.arrived++
	if r.arrived == 2 {
		close(r.release)
	}
	r.mu.Unlock()

	select {
	case <-r.release:
	case <-time.After(r.patience):
	}
}

// interleavingStore runs Transaction callbacks without a database
// transaction and splits the infraction increment into read, rendezvous and
// write. Two unserialized callers therefore both read before either writes,
// and only the service's own per-user locking keeps their updates apart.
type interleavingStore struct {
	repository.Store
	db   *gorm.DB
	meet *rendezvous
}

func newInterleavingStore(env *testEnv) *interleavingStore {
	return &interleavingStore{
		Store: env.store,
		db:    env.db,
		meet:  newRendezvous(150 * time.Millisecond),
	}
}

func (s *interleavingStore) Users() repository.UserRepository {
	return &interleavingUsers{UserRepository: s.Store.Users(), db: s.db, meet: s.meet}
}

func (s *interleavingStore) Transaction(_ context.Context, fn func(tx repository.Store) error) error {
	return fn(s)
}

type interleavingUsers struct {
	repository.UserRepository
	db   *gorm.DB
	meet *rendezvous
}

func (u *interleavingUsers) IncrementInfractionCount(ctx context.Context, id string) (bool, error) {
	user, err := u.FindByID(ctx, id)
	if err != nil || user == nil {
		return false, err
	}
	u.meet.wait()
	err = u.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("infraction_count", user.InfractionCount+1).Error
	return err == nil, err
}

// CountAuthoredComments runs after the promotion check has read the tier and
// before it writes the new one.
func (u *interleavingUsers) CountAuthoredComments(ctx context.Context, id string) (int64, error) {
	n, err := u.UserRepository.CountAuthoredComments(ctx, id)
	u.meet.wait()
	return n, err
}

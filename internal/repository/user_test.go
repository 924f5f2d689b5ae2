package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"townsquare/internal/models"
	"townsquare/internal/seed"
	"townsquare/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestUserRepository_GetByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	tests := []struct {
		name          string
		userID        string
		mockBehavior  func()
		expectedUser  *models.User
		expectedError bool
	}{
		{
			name:   "Success",
			userID: "u-1",
			mockBehavior: func() {
				rows := sqlmock.NewRows([]string{"id", "username", "email", "level"}).
					AddRow("u-1", "testuser", "test@example.com", 4)
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE id = $1 AND "users"."deleted_at" IS NULL ORDER BY "users"."id" LIMIT $2`)).
					WithArgs("u-1", 1).
					WillReturnRows(rows)
			},
			expectedUser: &models.User{ID: "u-1", Username: "testuser", Email: "test@example.com"},
		},
		{
			name:   "Not Found",
			userID: "u-99",
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE id = $1`)).
					WithArgs("u-99", 1).
					WillReturnError(gorm.ErrRecordNotFound)
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockBehavior()
			user, err := repo.GetByID(ctx, tt.userID)

			if tt.expectedError {
				var appErr *models.AppError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, "NOT_FOUND", appErr.Code)
			} else if assert.NotNil(t, user) {
				assert.Equal(t, tt.expectedUser.Username, user.Username)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_FindByID_DatabaseError(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE id = $1`)).
		WithArgs("u-1", 1).
		WillReturnError(errors.New("connection timeout"))

	user, err := repo.FindByID(context.Background(), "u-1")
	assert.Error(t, err)
	assert.Nil(t, user)
	assert.Equal(t, 500, models.StatusFor(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_FindByIDForUpdate_LocksRow(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE id = $1 AND "users"."deleted_at" IS NULL ORDER BY "users"."id" LIMIT $2 FOR UPDATE`)).
		WithArgs("u-1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "infraction_count"}).AddRow("u-1", 5))

	user, err := repo.FindByIDForUpdate(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, 5, user.InfractionCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_IncrementInfractionCount_SingleStatement(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "users" SET "infraction_count"=infraction_count + $1`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	found, err := repo.IncrementInfractionCount(context.Background(), "u-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_IncrementInfractionCount_NoRow(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "users" SET "infraction_count"=infraction_count + $1`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	found, err := repo.IncrementInfractionCount(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_DuplicateIsConflict(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewUserRepository(db)
	f := seed.NewFactory(db, seed.Options{FastHash: true})
	ctx := context.Background()

	existing, err := f.CreateUser()
	require.NoError(t, err)

	dup := f.BuildUser(func(u *models.User) { u.Username = existing.Username })
	err = repo.Create(ctx, dup)
	require.Error(t, err)
	assert.Equal(t, 409, models.StatusFor(err))

	fresh := f.BuildUser()
	require.NoError(t, repo.Create(ctx, fresh))
	assert.NotEmpty(t, fresh.ID)
	assert.Equal(t, models.LevelNewcomer, fresh.Level)
}

func TestUserRepository_LookupsReturnNilWhenMissing(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	u, err := repo.FindByID(ctx, "missing")
	assert.NoError(t, err)
	assert.Nil(t, u)

	u, err = repo.GetByEmail(ctx, "nobody@example.com")
	assert.NoError(t, err)
	assert.Nil(t, u)

	u, err = repo.GetByUsername(ctx, "nobody")
	assert.NoError(t, err)
	assert.Nil(t, u)
}

func TestUserRepository_CountersAndSuspension(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewUserRepository(db)
	f := seed.NewFactory(db, seed.Options{FastHash: true})
	ctx := context.Background()

	author, err := f.CreateUser()
	require.NoError(t, err)
	other, err := f.CreateUser()
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		found, err := repo.IncrementInfractionCount(ctx, author.ID)
		require.NoError(t, err)
		assert.True(t, found)
	}

	until := time.Date(2026, 11, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SetSuspension(ctx, author.ID, &until))

	got, err := repo.FindByID(ctx, author.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.InfractionCount)
	require.NotNil(t, got.SuspendedUntil)
	assert.True(t, until.Equal(*got.SuspendedUntil))

	require.NoError(t, repo.SetSuspension(ctx, author.ID, nil))
	got, err = repo.FindByID(ctx, author.ID)
	require.NoError(t, err)
	assert.Nil(t, got.SuspendedUntil)

	untouched, err := repo.FindByID(ctx, other.ID)
	require.NoError(t, err)
	assert.Zero(t, untouched.InfractionCount)

	err = repo.SetSuspension(ctx, "ghost", &until)
	assert.Equal(t, 404, models.StatusFor(err))
}

func TestUserRepository_SoftDeletedUserIsUnknown(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewUserRepository(db)
	f := seed.NewFactory(db, seed.Options{FastHash: true})
	ctx := context.Background()

	u, err := f.CreateUser()
	require.NoError(t, err)
	require.NoError(t, db.Delete(&models.User{}, "id = ?", u.ID).Error)

	found, err := repo.IncrementInfractionCount(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUserRepository_LevelAndActivityCounts(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewUserRepository(db)
	f := seed.NewFactory(db, seed.Options{FastHash: true})
	ctx := context.Background()

	u, err := f.CreateUser()
	require.NoError(t, err)
	admin, err := f.CreateUser(func(u *models.User) { u.Level = models.LevelAdmin })
	require.NoError(t, err)

	p1, err := f.CreatePost(u)
	require.NoError(t, err)
	_, err = f.CreatePost(u)
	require.NoError(t, err)
	_, err = f.CreateComment(u, p1)
	require.NoError(t, err)
	_, err = f.CreateComment(admin, p1)
	require.NoError(t, err)

	posts, err := repo.CountAuthoredPosts(ctx, u.ID)
	require.NoError(t, err)
	comments, err := repo.CountAuthoredComments(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), posts)
	assert.Equal(t, int64(1), comments)

	require.NoError(t, repo.UpdateLevel(ctx, u.ID, models.LevelMember))
	got, err := repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LevelMember, got.Level)

	assert.Equal(t, 404, models.StatusFor(repo.UpdateLevel(ctx, "ghost", models.LevelMember)))

	admins, err := repo.ListByMaxLevel(ctx, models.LevelAdmin)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, admin.ID, admins[0].ID)

	all, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

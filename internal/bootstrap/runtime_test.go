package bootstrap

import (
	"context"
	"testing"

	"townsquare/internal/config"
	"townsquare/internal/models"
	"townsquare/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func rootConfig() *config.Config {
	return &config.Config{
		Env:              "development",
		DevBootstrapRoot: true,
		DevRootUsername:  "root_admin",
		DevRootEmail:     "Root@Example.com",
		DevRootPassword:  "Root-Password#2026",
	}
}

func TestEnsureDevRootAdmin_CreatesAdmin(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	require.NoError(t, EnsureDevRootAdmin(context.Background(), rootConfig(), db))

	var root models.User
	require.NoError(t, db.Where("email = ?", "root@example.com").First(&root).Error)
	assert.Equal(t, models.LevelAdmin, root.Level)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(root.Password), []byte("Root-Password#2026")))

	// Second run is a no-op.
	require.NoError(t, EnsureDevRootAdmin(context.Background(), rootConfig(), db))
	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestEnsureDevRootAdmin_RaisesExistingAccount(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	existing := models.User{Username: "someone", Email: "root@example.com", Password: "x", Level: models.LevelMember}
	require.NoError(t, db.Create(&existing).Error)

	require.NoError(t, EnsureDevRootAdmin(context.Background(), rootConfig(), db))

	var root models.User
	require.NoError(t, db.First(&root, "id = ?", existing.ID).Error)
	assert.Equal(t, models.LevelAdmin, root.Level)
	assert.Equal(t, "x", root.Password, "credentials of an existing account are left alone")
}

func TestEnsureDevRootAdmin_Guards(t *testing.T) {
	db := testutil.NewSQLiteDB(t)

	prod := rootConfig()
	prod.Env = "production"
	require.NoError(t, EnsureDevRootAdmin(context.Background(), prod, db))

	off := rootConfig()
	off.DevBootstrapRoot = false
	require.NoError(t, EnsureDevRootAdmin(context.Background(), off, db))

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Zero(t, count)

	noPassword := rootConfig()
	noPassword.DevRootPassword = ""
	assert.Error(t, EnsureDevRootAdmin(context.Background(), noPassword, db))
}

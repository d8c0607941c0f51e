package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EgehanKilicarslan/tokenguard/internal/database/models"
	"github.com/EgehanKilicarslan/tokenguard/internal/database/repository"
)

func TestUserRepository_Create(t *testing.T) {
	repo := repository.NewUserRepository(setupTestDB(t), 5*time.Second)
	ctx := context.Background()

	tests := []struct {
		name    string
		user    *models.User
		wantErr error
	}{
		{
			name: "success",
			user: &models.User{
				Username: "alice",
				Email:    "alice@example.com",
				Password: "hashedpassword",
				IsActive: true,
			},
		},
		{
			name: "duplicate email",
			user: &models.User{
				Username: "alice2",
				Email:    "alice@example.com",
				Password: "hashedpassword",
			},
			wantErr: repository.ErrUserExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.Create(ctx, tt.user)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
				assert.NotEqual(t, uuid.Nil, tt.user.ID)
			}
		})
	}
}

func TestUserRepository_Lookups(t *testing.T) {
	repo := repository.NewUserRepository(setupTestDB(t), 5*time.Second)
	ctx := context.Background()

	user := &models.User{
		Username: "bob",
		Email:    "bob@example.com",
		Password: "hashedpassword",
		IsActive: true,
	}
	require.NoError(t, repo.Create(ctx, user))

	byID, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", byID.Username)
	assert.True(t, byID.IsActive)

	byEmail, err := repo.FindByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	byUsername, err := repo.FindByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byUsername.ID)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestUserRepository_SetActive(t *testing.T) {
	repo := repository.NewUserRepository(setupTestDB(t), 5*time.Second)
	ctx := context.Background()

	user := &models.User{Username: "carol", Email: "carol@example.com", Password: "x", IsActive: true}
	require.NoError(t, repo.Create(ctx, user))

	require.NoError(t, repo.SetActive(ctx, user.ID, false))

	found, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, found.IsActive)

	assert.ErrorIs(t, repo.SetActive(ctx, uuid.New(), false), repository.ErrUserNotFound)
}

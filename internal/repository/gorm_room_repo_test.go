package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CutzuDev/itec2025/internal/domain"
)

func TestGormRoomRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGormRoomRepository(setupSQLite(t))

	room := &domain.Room{ID: "r1", CreatorID: "alice", Title: "Algebra study"}
	require.NoError(t, repo.Create(ctx, room))
	assert.False(t, room.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Algebra study", got.Title)

	_, err = repo.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	ok, err := repo.IsMember(ctx, "r1", "alice")
	require.NoError(t, err)
	assert.True(t, ok, "creator is a member")

	ok, err = repo.IsMember(ctx, "r1", "bob")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.AddMember(ctx, "r1", "bob"))
	require.NoError(t, repo.AddMember(ctx, "r1", "bob"), "joining twice is allowed")

	count, err := repo.CountMembers(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, repo.Create(ctx, &domain.Room{ID: "r2", CreatorID: "carol", Title: "Physics"}))

	rooms, err := repo.ListForUser(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "r1", rooms[0].ID)

	rooms, err = repo.ListForUser(ctx, "dave")
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestGormRoomRepository_Membership(t *testing.T) {
	ctx := context.Background()
	repo := NewGormRoomRepository(setupSQLite(t))

	require.NoError(t, repo.Create(ctx, &domain.Room{ID: "r1", CreatorID: "alice", Title: "Algebra study"}))
	require.NoError(t, repo.AddMember(ctx, "r1", "bob"))
	require.NoError(t, repo.AddMember(ctx, "r1", "carol"))

	members, err := repo.ListMembers(ctx, "r1")
	require.NoError(t, err)
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.UserID
		assert.False(t, m.JoinedAt.IsZero())
	}
	assert.ElementsMatch(t, []string{"alice", "bob", "carol"}, ids)

	require.NoError(t, repo.RemoveMember(ctx, "r1", "bob"))
	ok, err := repo.IsMember(ctx, "r1", "bob")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, repo.RemoveMember(ctx, "r1", "bob"), ErrMemberNotFound)
	assert.ErrorIs(t, repo.RemoveMember(ctx, "nope", "alice"), ErrMemberNotFound)

	count, err := repo.CountMembers(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	members, err = repo.ListMembers(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestGormProfileRepository(t *testing.T) {
	ctx := context.Background()
	db := setupSQLite(t)
	require.NoError(t, db.Create(&domain.UserModel{ID: "alice", FullName: "Alice A", AvatarURL: "a.png"}).Error)
	require.NoError(t, db.Create(&domain.UserModel{ID: "bob", FullName: "Bob B"}).Error)

	repo := NewGormProfileRepository(db)
	profiles, err := repo.GetByIDs(ctx, []string{"alice", "bob", "ghost"})
	require.NoError(t, err)
	assert.Len(t, profiles, 2)
	assert.Equal(t, "Alice A", profiles["alice"].FullName)
	assert.Nil(t, profiles["ghost"])

	profiles, err = repo.GetByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, profiles)
}

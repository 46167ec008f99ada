package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CutzuDev/itec2025/internal/domain"
	"github.com/CutzuDev/itec2025/internal/idgen"
)

func TestRoomService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewRoomService(f.rooms, idgen.NewULID())

	room, err := svc.CreateRoom(ctx, "alice", &domain.CreateRoomRequest{Title: "Calculus", MaxParticipants: 2})
	require.NoError(t, err)
	assert.NotEmpty(t, room.ID)
	assert.True(t, room.IsCreator)
	assert.Equal(t, 1, room.MemberCount)

	_, err = svc.CreateRoom(ctx, "alice", &domain.CreateRoomRequest{ID: room.ID, Title: "dup"})
	assert.ErrorIs(t, err, ErrRoomExists)

	assert.NoError(t, svc.CheckAccess(ctx, "alice", room.ID))
	assert.ErrorIs(t, svc.CheckAccess(ctx, "bob", room.ID), ErrNotRoomMember)
	assert.ErrorIs(t, svc.CheckAccess(ctx, "bob", "missing"), ErrRoomNotFound)

	_, err = svc.GetRoom(ctx, "bob", room.ID)
	assert.ErrorIs(t, err, ErrNotRoomMember)

	joined, err := svc.JoinRoom(ctx, "bob", room.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, joined.MemberCount)
	assert.False(t, joined.IsCreator)
	assert.NoError(t, svc.CheckAccess(ctx, "bob", room.ID))

	_, err = svc.JoinRoom(ctx, "bob", room.ID)
	assert.NoError(t, err, "joining twice is a no-op")

	_, err = svc.JoinRoom(ctx, "carol", room.ID)
	assert.ErrorIs(t, err, ErrRoomFull)

	_, err = svc.JoinRoom(ctx, "carol", "missing")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	mine, err := svc.GetMyRooms(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, room.ID, mine[0].ID)
	assert.Equal(t, 2, mine[0].MemberCount)
}

func TestRoomMembershipChanges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewRoomService(f.rooms, idgen.NewULID())

	room, err := svc.CreateRoom(ctx, "alice", &domain.CreateRoomRequest{Title: "Statistics"})
	require.NoError(t, err)
	for _, user := range []string{"bob", "carol", "dave"} {
		_, err := svc.JoinRoom(ctx, user, room.ID)
		require.NoError(t, err)
	}

	members, err := svc.ListMembers(ctx, "bob", room.ID)
	require.NoError(t, err)
	require.Len(t, members, 4)
	creators := 0
	for _, m := range members {
		if m.IsCreator {
			creators++
			assert.Equal(t, "alice", m.UserID)
		}
	}
	assert.Equal(t, 1, creators)

	_, err = svc.ListMembers(ctx, "eve", room.ID)
	assert.ErrorIs(t, err, ErrNotRoomMember)

	t.Run("leave revokes access", func(t *testing.T) {
		require.NoError(t, svc.LeaveRoom(ctx, "bob", room.ID))
		assert.ErrorIs(t, svc.CheckAccess(ctx, "bob", room.ID), ErrNotRoomMember)
		assert.ErrorIs(t, svc.LeaveRoom(ctx, "bob", room.ID), ErrNotRoomMember)

		_, err := svc.JoinRoom(ctx, "bob", room.ID)
		require.NoError(t, err)
		assert.NoError(t, svc.CheckAccess(ctx, "bob", room.ID), "a member who left may join again")
	})

	t.Run("creator removes a member", func(t *testing.T) {
		assert.ErrorIs(t, svc.RemoveMember(ctx, "bob", room.ID, "carol"), ErrNotRoomCreator)
		assert.NoError(t, svc.CheckAccess(ctx, "carol", room.ID))

		require.NoError(t, svc.RemoveMember(ctx, "alice", room.ID, "carol"))
		assert.ErrorIs(t, svc.CheckAccess(ctx, "carol", room.ID), ErrNotRoomMember)
		assert.ErrorIs(t, svc.RemoveMember(ctx, "alice", room.ID, "carol"), ErrMemberNotFound)
	})

	t.Run("creator stays", func(t *testing.T) {
		assert.ErrorIs(t, svc.LeaveRoom(ctx, "alice", room.ID), ErrCreatorMembership)
		assert.ErrorIs(t, svc.RemoveMember(ctx, "alice", room.ID, "alice"), ErrCreatorMembership)
		assert.NoError(t, svc.CheckAccess(ctx, "alice", room.ID))
	})

	assert.ErrorIs(t, svc.LeaveRoom(ctx, "dave", "missing"), ErrRoomNotFound)
	assert.ErrorIs(t, svc.RemoveMember(ctx, "alice", "missing", "dave"), ErrRoomNotFound)

	count := 0
	members, err = svc.ListMembers(ctx, "alice", room.ID)
	require.NoError(t, err)
	for _, m := range members {
		if m.UserID == "carol" {
			count++
		}
	}
	assert.Zero(t, count)
	assert.Len(t, members, 3)
}

package service

import (
	"context"
	"errors"

	"github.com/CutzuDev/itec2025/internal/audit"
	"github.com/CutzuDev/itec2025/internal/domain"
	"github.com/CutzuDev/itec2025/internal/idgen"
	"github.com/CutzuDev/itec2025/internal/repository"
)

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrNotRoomMember = errors.New("you are not a member of this room")
	ErrRoomFull      = errors.New("room is full")
	ErrRoomExists    = errors.New("room already exists")
	// ErrNotRoomCreator means only the room creator may do this.
	ErrNotRoomCreator = errors.New("only the room creator may manage participants")
	// ErrCreatorMembership means the creator tried to leave or be removed.
	ErrCreatorMembership = errors.New("the room creator cannot leave the room")
	ErrMemberNotFound    = errors.New("member not found")
)

// roomServiceImpl implements RoomService interface.
type roomServiceImpl struct {
	repo repository.RoomRepository
	ids  idgen.Generator
}

// NewRoomService creates a new room service.
func NewRoomService(repo repository.RoomRepository, ids idgen.Generator) RoomService {
	return &roomServiceImpl{repo: repo, ids: ids}
}

// CreateRoom creates a room; the creator becomes its first member. A
// session that already has an id passes it in the request.
func (s *roomServiceImpl) CreateRoom(ctx context.Context, userID string, req *domain.CreateRoomRequest) (*domain.RoomResponse, error) {
	id := req.ID
	if id == "" {
		generated, err := s.ids.Generate()
		if err != nil {
			return nil, err
		}
		id = generated
	} else if _, err := s.repo.GetByID(ctx, id); err == nil {
		return nil, ErrRoomExists
	} else if !errors.Is(err, repository.ErrRoomNotFound) {
		return nil, err
	}

	room := &domain.Room{
		ID:              id,
		CreatorID:       userID,
		Title:           req.Title,
		Description:     req.Description,
		Location:        req.Location,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		MaxParticipants: req.MaxParticipants,
		IsPublic:        req.IsPublic,
	}
	if err := s.repo.Create(ctx, room); err != nil {
		return nil, err
	}

	audit.LogTarget(ctx, audit.ActionCreateRoom, userID, room.ID, "room created")
	resp := room.ToResponse(userID, 1)
	return &resp, nil
}

// GetRoom returns a room the user has access to.
func (s *roomServiceImpl) GetRoom(ctx context.Context, userID, roomID string) (*domain.RoomResponse, error) {
	room, err := s.access(ctx, userID, roomID)
	if err != nil {
		return nil, err
	}
	return s.respond(ctx, userID, room)
}

// JoinRoom adds the user to a room.
func (s *roomServiceImpl) JoinRoom(ctx context.Context, userID, roomID string) (*domain.RoomResponse, error) {
	room, err := s.room(ctx, roomID)
	if err != nil {
		return nil, err
	}

	member, err := s.repo.IsMember(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		if room.MaxParticipants > 0 {
			count, err := s.repo.CountMembers(ctx, roomID)
			if err != nil {
				return nil, err
			}
			if count >= room.MaxParticipants {
				return nil, ErrRoomFull
			}
		}
		if err := s.repo.AddMember(ctx, roomID, userID); err != nil {
			return nil, err
		}
		audit.LogTarget(ctx, audit.ActionJoinRoom, userID, roomID, "joined room")
	}

	return s.respond(ctx, userID, room)
}

// LeaveRoom removes the user from a room. The creator cannot leave.
func (s *roomServiceImpl) LeaveRoom(ctx context.Context, userID, roomID string) error {
	room, err := s.room(ctx, roomID)
	if err != nil {
		return err
	}
	if room.CreatorID == userID {
		return ErrCreatorMembership
	}

	if err := s.repo.RemoveMember(ctx, roomID, userID); err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			return ErrNotRoomMember
		}
		return err
	}
	audit.LogTarget(ctx, audit.ActionLeaveRoom, userID, roomID, "left room")
	return nil
}

// ListMembers returns the participants of a room the user has access to.
func (s *roomServiceImpl) ListMembers(ctx context.Context, userID, roomID string) ([]domain.RoomMember, error) {
	room, err := s.access(ctx, userID, roomID)
	if err != nil {
		return nil, err
	}

	members, err := s.repo.ListMembers(ctx, roomID)
	if err != nil {
		return nil, err
	}
	for i := range members {
		members[i].IsCreator = members[i].UserID == room.CreatorID
	}
	return members, nil
}

// RemoveMember removes memberID from a room on behalf of its creator.
func (s *roomServiceImpl) RemoveMember(ctx context.Context, actorID, roomID, memberID string) error {
	room, err := s.room(ctx, roomID)
	if err != nil {
		return err
	}
	if room.CreatorID != actorID {
		audit.LogTarget(ctx, audit.ActionAccessDenied, actorID, roomID, "member removal denied")
		return ErrNotRoomCreator
	}
	if memberID == room.CreatorID {
		return ErrCreatorMembership
	}

	if err := s.repo.RemoveMember(ctx, roomID, memberID); err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			return ErrMemberNotFound
		}
		return err
	}
	audit.LogWithDetail(ctx, audit.ActionRemoveMember, actorID, roomID+"/"+memberID, "removed room member")
	return nil
}

// GetMyRooms returns the rooms a user created or joined.
func (s *roomServiceImpl) GetMyRooms(ctx context.Context, userID string) ([]domain.RoomResponse, error) {
	rooms, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]domain.RoomResponse, len(rooms))
	for i := range rooms {
		count, err := s.repo.CountMembers(ctx, rooms[i].ID)
		if err != nil {
			return nil, err
		}
		out[i] = rooms[i].ToResponse(userID, count)
	}
	return out, nil
}

// CheckAccess returns nil when the user created or joined the room.
func (s *roomServiceImpl) CheckAccess(ctx context.Context, userID, roomID string) error {
	_, err := s.access(ctx, userID, roomID)
	return err
}

func (s *roomServiceImpl) room(ctx context.Context, roomID string) (*domain.Room, error) {
	room, err := s.repo.GetByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return room, nil
}

func (s *roomServiceImpl) access(ctx context.Context, userID, roomID string) (*domain.Room, error) {
	room, err := s.room(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.CreatorID == userID {
		return room, nil
	}

	member, err := s.repo.IsMember(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		audit.LogTarget(ctx, audit.ActionAccessDenied, userID, roomID, "room access denied")
		return nil, ErrNotRoomMember
	}
	return room, nil
}

func (s *roomServiceImpl) respond(ctx context.Context, userID string, room *domain.Room) (*domain.RoomResponse, error) {
	count, err := s.repo.CountMembers(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	resp := room.ToResponse(userID, count)
	return &resp, nil
}

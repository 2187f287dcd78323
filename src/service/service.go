// Package service implements the account and room API that sits next to the
// chat gateway: signup, signin, room creation and message history.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/orchestra-mcp/chat/src/store"
	"github.com/orchestra-mcp/chat/src/token"
	"github.com/orchestra-mcp/chat/src/types"
	"github.com/rs/zerolog"
)

// ErrInvalidCredentials is returned when a signin does not match a user.
var ErrInvalidCredentials = errors.New("invalid username or password")

// History limits for ListRecentMessages.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// RoomLookup resolves rooms, usually through the room cache.
type RoomLookup interface {
	GetRoomBySlug(ctx context.Context, slug string) (*store.Room, error)
	RoomExists(ctx context.Context, id string) (bool, error)
}

// AuthResult is returned by a successful signup.
type AuthResult struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

// Service provides the high-level account and room API.
type Service struct {
	store     *store.Store
	rooms     RoomLookup
	tokens    *token.Codec
	hasher    *PasswordHasher
	validator *validator.Validate
	logger    zerolog.Logger
}

// New creates a service. rooms may be nil to read rooms straight from st.
func New(st *store.Store, rooms RoomLookup, tokens *token.Codec, hasher *PasswordHasher, logger zerolog.Logger) *Service {
	if rooms == nil {
		rooms = st
	}
	return &Service{
		store:     st,
		rooms:     rooms,
		tokens:    tokens,
		hasher:    hasher,
		validator: newValidator(),
		logger:    logger.With().Str("component", "service").Logger(),
	}
}

// Signup creates a user and returns a token for it.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Name = strings.TrimSpace(in.Name)
	in.Password = strings.TrimSpace(in.Password)
	if err := s.validate(in); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	u, err := s.store.CreateUser(ctx, in.Username, in.Name, hash)
	if err != nil {
		return nil, err
	}

	tok, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	s.logger.Info().Str("user_id", u.ID).Msg("user signed up")
	return &AuthResult{UserID: u.ID, Token: tok}, nil
}

// Signin checks credentials and returns a fresh token.
func (s *Service) Signin(ctx context.Context, in SigninInput) (string, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Password = strings.TrimSpace(in.Password)
	if err := s.validate(in); err != nil {
		return "", err
	}

	u, err := s.store.FindUserByEmail(ctx, in.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if !s.hasher.Verify(in.Password, u.PasswordHash) {
		return "", ErrInvalidCredentials
	}

	tok, err := s.tokens.Issue(u.ID)
	if err != nil {
		return "", fmt.Errorf("failed to issue token: %w", err)
	}
	return tok, nil
}

// CreateRoom creates a room administered by adminID.
func (s *Service) CreateRoom(ctx context.Context, adminID string, in CreateRoomInput) (*store.Room, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate(in); err != nil {
		return nil, err
	}
	room, err := s.store.CreateRoom(ctx, in.Name, adminID)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("room", room.ID).
		Str("slug", room.Slug).
		Str("admin_id", adminID).
		Msg("room created")
	return room, nil
}

// GetRoomBySlug returns the room with slug or store.ErrNotFound.
func (s *Service) GetRoomBySlug(ctx context.Context, slug string) (*store.Room, error) {
	return s.rooms.GetRoomBySlug(ctx, slug)
}

// ListRecentMessages returns the latest messages of a room, newest first.
// A non-positive limit selects DefaultHistoryLimit; larger limits are capped
// at MaxHistoryLimit.
func (s *Service) ListRecentMessages(ctx context.Context, roomID string, limit int) ([]*types.ChatMessage, error) {
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}

	ok, err := s.rooms.RoomExists(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.store.ListRecentMessages(ctx, roomID, limit)
}

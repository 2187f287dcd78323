// Package store persists users, rooms and chat messages with GORM.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	nanoid "github.com/jaevor/go-nanoid"
	"github.com/orchestra-mcp/chat/src/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUserExists is returned when the username is taken.
	ErrUserExists = errors.New("user already exists")
)

const slugAttempts = 5

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Store is the relational room directory.
type Store struct {
	db     *gorm.DB
	suffix func() string
	now    func() time.Time
}

// Open connects to the SQLite database at dsn and migrates the schema.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if strings.Contains(dsn, ":memory:") {
		// Each pooled connection would otherwise see its own empty database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&User{}, &Room{}, &Chat{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

// New creates a store on an open database.
func New(db *gorm.DB) (*Store, error) {
	gen, err := nanoid.CustomASCII("abcdefghijklmnopqrstuvwxyz0123456789", 6)
	if err != nil {
		return nil, fmt.Errorf("failed to create slug generator: %w", err)
	}
	return &Store{db: db, suffix: gen, now: time.Now}, nil
}

// CreateUser inserts a user with a fresh id.
func (s *Store) CreateUser(ctx context.Context, email, name, passwordHash string) (*User, error) {
	u := &User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
	}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

// FindUserByEmail looks a user up by username.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	if err := s.db.WithContext(ctx).First(&u, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &u, nil
}

// CreateRoom inserts a room owned by adminID. The slug is derived from name
// and suffixed when already taken.
func (s *Store) CreateRoom(ctx context.Context, name, adminID string) (*Room, error) {
	base := Slugify(name)
	slug := base
	for attempt := 0; attempt < slugAttempts; attempt++ {
		room := &Room{
			ID:      uuid.New().String(),
			Slug:    slug,
			Name:    name,
			AdminID: adminID,
		}
		err := s.db.WithContext(ctx).Create(room).Error
		if err == nil {
			return room, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("failed to create room: %w", err)
		}
		slug = base + "-" + s.suffix()
	}
	return nil, fmt.Errorf("failed to create room: no free slug for %q", name)
}

// GetRoomBySlug returns the room with the given slug.
func (s *Store) GetRoomBySlug(ctx context.Context, slug string) (*Room, error) {
	return s.findRoom(ctx, "slug = ?", slug)
}

// GetRoomByID returns the room with the given id.
func (s *Store) GetRoomByID(ctx context.Context, id string) (*Room, error) {
	return s.findRoom(ctx, "id = ?", id)
}

// RoomExists reports whether a room with id exists.
func (s *Store) RoomExists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Room{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to count rooms: %w", err)
	}
	return count > 0, nil
}

// AppendMessage persists one chat message stamped with the server clock.
func (s *Store) AppendMessage(ctx context.Context, roomID, userID, message string) (*types.ChatMessage, error) {
	c := &Chat{
		RoomID:    roomID,
		UserID:    userID,
		Message:   message,
		CreatedAt: s.now(),
	}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}
	return c.toMessage(), nil
}

// ListRecentMessages returns up to limit messages of a room, newest first.
func (s *Store) ListRecentMessages(ctx context.Context, roomID string, limit int) ([]*types.ChatMessage, error) {
	var chats []Chat
	err := s.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("id DESC").
		Limit(limit).
		Find(&chats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	out := make([]*types.ChatMessage, 0, len(chats))
	for i := range chats {
		out = append(out, chats[i].toMessage())
	}
	return out, nil
}

func (s *Store) findRoom(ctx context.Context, query string, arg string) (*Room, error) {
	var room Room
	if err := s.db.WithContext(ctx).First(&room, query, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find room: %w", err)
	}
	return &room, nil
}

// Slugify lowercases name and joins its alphanumeric runs with dashes.
func Slugify(name string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if slug == "" {
		return "room"
	}
	return slug
}

package store

import (
	"time"

	"github.com/orchestra-mcp/chat/src/types"
)

// User is a registered account. Email holds the sign-in username.
type User struct {
	ID           string `gorm:"primaryKey;type:text"`
	Email        string `gorm:"uniqueIndex;not null;type:text"`
	Name         string `gorm:"not null;type:text"`
	PasswordHash string `gorm:"not null;type:text"`
	CreatedAt    time.Time
}

// TableName returns the table name for User.
func (User) TableName() string { return "users" }

// Room is a chat room addressed by id or slug.
type Room struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	Slug      string    `gorm:"uniqueIndex;not null;type:text" json:"slug"`
	Name      string    `gorm:"not null;type:text" json:"name"`
	AdminID   string    `gorm:"index;not null;type:text" json:"adminId"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName returns the table name for Room.
func (Room) TableName() string { return "rooms" }

// Chat is one persisted message. IDs grow with insertion order.
type Chat struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	RoomID    string `gorm:"index;not null;type:text"`
	UserID    string `gorm:"not null;type:text"`
	Message   string `gorm:"not null;type:text"`
	CreatedAt time.Time
}

// TableName returns the table name for Chat.
func (Chat) TableName() string { return "chats" }

func (c *Chat) toMessage() *types.ChatMessage {
	return &types.ChatMessage{
		ID:        c.ID,
		RoomID:    c.RoomID,
		UserID:    c.UserID,
		Message:   c.Message,
		CreatedAt: c.CreatedAt,
	}
}

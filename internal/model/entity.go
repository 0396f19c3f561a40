package model

import (
	"time"
)

// User is an account known to the platform. The hub only reads identity
// fields; account management lives outside this service.
type User struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Email      string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Nickname   string    `gorm:"type:varchar(100);not null" json:"nickname"`
	ProfileImg *string   `gorm:"type:text" json:"profile_img,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	Groups []GroupMember `gorm:"foreignKey:UserID" json:"groups,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// StudyGroup is a persistent study group. Group CRUD is owned by the
// application layer; the hub consults membership only.
type StudyGroup struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	OwnerID   int64     `gorm:"not null" json:"owner_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	Owner   User          `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Members []GroupMember `gorm:"foreignKey:GroupID" json:"members,omitempty"`
}

func (StudyGroup) TableName() string {
	return "study_groups"
}

// GroupMember links a user to a study group.
type GroupMember struct {
	ID       int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	GroupID  int64     `gorm:"not null;index:idx_group_user" json:"group_id"`
	UserID   int64     `gorm:"not null;index:idx_group_user" json:"user_id"`
	Status   string    `gorm:"type:varchar(20);default:'ACTIVE'" json:"status"` // PENDING, ACTIVE, LEFT
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`

	// Relations
	Group StudyGroup `gorm:"foreignKey:GroupID" json:"group,omitempty"`
	User  User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (GroupMember) TableName() string {
	return "group_members"
}

// Whiteboard is the live canvas document row. Elements is the full ordered
// element sequence as a JSON array; Version increases by exactly one on every
// successful mutation.
type Whiteboard struct {
	ID           string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	OwnerID      int64     `gorm:"not null;index" json:"owner_id"`
	GroupID      *int64    `json:"group_id,omitempty"`
	Title        string    `gorm:"type:varchar(200);not null" json:"title"`
	Background   string    `gorm:"type:varchar(20);default:'#ffffff'" json:"background"`
	Elements     string    `gorm:"type:jsonb;not null;default:'[]'" json:"elements"`
	Version      int       `gorm:"not null;default:1" json:"version"`
	RestoredFrom *int      `json:"restored_from,omitempty"`
	LastModified time.Time `gorm:"autoUpdateTime" json:"last_modified"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	Owner    User                `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Versions []WhiteboardVersion `gorm:"foreignKey:WhiteboardID" json:"versions,omitempty"`
}

func (Whiteboard) TableName() string {
	return "whiteboards"
}

// WhiteboardVersion is an immutable, append-only snapshot of a canvas
// document. Rows are never updated or deleted by this service.
type WhiteboardVersion struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	WhiteboardID  string    `gorm:"type:varchar(64);not null;index:idx_board_version,unique" json:"whiteboard_id"`
	VersionNumber int       `gorm:"not null;index:idx_board_version,unique" json:"version_number"`
	Elements      string    `gorm:"type:jsonb;not null" json:"elements"`
	Background    string    `gorm:"type:varchar(20)" json:"background"`
	CreatedBy     int64     `gorm:"not null" json:"created_by"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (WhiteboardVersion) TableName() string {
	return "whiteboard_versions"
}

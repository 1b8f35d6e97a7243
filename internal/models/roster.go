package models

import (
	"time"

	"github.com/google/uuid"
)

// MemberRole is the role a user holds inside a group.
type MemberRole string

// MemberRole constants.
const (
	MemberRoleCoach     MemberRole = "COACH"
	MemberRoleEvaluator MemberRole = "EVALUATOR"
)

// Group is a tenant-scoped sports group (club, academy, tryout).
type Group struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Player belongs to exactly one group. Nil names are NULL in the database.
type Player struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	GroupID   uuid.UUID `gorm:"type:uuid;not null;index" json:"group_id"`
	FirstName *string   `gorm:"column:first_name;type:varchar(100)" json:"first_name"`
	LastName  *string   `gorm:"column:last_name;type:varchar(100)" json:"last_name"`
	Email     *string   `gorm:"type:varchar(320)" json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is an account holder: coach, evaluator or admin.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	FirstName *string   `gorm:"column:first_name;type:varchar(100)" json:"first_name"`
	LastName  *string   `gorm:"column:last_name;type:varchar(100)" json:"last_name"`
	Email     string    `gorm:"type:varchar(320);not null;uniqueIndex" json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GroupMember links a user to a group with a role.
type GroupMember struct {
	GroupID   uuid.UUID  `gorm:"type:uuid;primaryKey" json:"group_id"`
	UserID    uuid.UUID  `gorm:"type:uuid;primaryKey" json:"user_id"`
	Role      MemberRole `gorm:"type:varchar(20);not null" json:"role"`
	CreatedAt time.Time  `json:"created_at"`

	User User `gorm:"foreignKey:UserID" json:"user"`
}

// All lists every model for schema creation in tests and AutoMigrate-based tooling.
func All() []any {
	return []any{&Group{}, &Player{}, &User{}, &GroupMember{}, &Message{}, &MessageRecipient{}}
}

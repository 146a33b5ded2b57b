package models

import (
	"time"

	"github.com/google/uuid"

	utils "nko-map-backend/shared/utils/auth"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID                   uuid.UUID            `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Email                string               `json:"email" gorm:"uniqueIndex;not null;size:255"`
	Password             utils.HashedPassword `json:"-" gorm:"not null"`
	FirstName            string               `json:"firstName" gorm:"size:100;not null"`
	LastName             string               `json:"lastName" gorm:"size:100;not null"`
	Role                 Role                 `json:"role" gorm:"type:varchar(20);not null;default:'user';index"`
	IsVerified           bool                 `json:"isVerified" gorm:"default:false"`
	Phone                string               `json:"phone,omitempty" gorm:"size:20"`
	Avatar               string               `json:"avatar,omitempty" gorm:"size:500"`
	ResetPasswordToken   *string              `json:"-" gorm:"size:64;index"`
	ResetPasswordExpires *time.Time           `json:"-"`
	NPOID                *uuid.UUID           `json:"npoId,omitempty" gorm:"column:npo_id;type:uuid;uniqueIndex"`
	CreatedAt            time.Time            `json:"createdAt"`
	UpdatedAt            time.Time            `json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// CreatorSummary is the public projection of an NPO's creator.
type CreatorSummary struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
}

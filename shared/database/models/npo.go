package models

import (
	"time"

	"github.com/google/uuid"
)

type NPOStatus string

const (
	StatusPending  NPOStatus = "pending"
	StatusApproved NPOStatus = "approved"
	StatusRejected NPOStatus = "rejected"
)

func (s NPOStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// NPO is a non-profit organization record. Status only moves out of pending
// through moderation, and RejectionReason is set iff Status is rejected.
type NPO struct {
	ID                  uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name                string     `json:"name" gorm:"size:255;not null"`
	Category            string     `json:"category" gorm:"size:100;not null;index"`
	Description         string     `json:"description" gorm:"type:text;not null"`
	VolunteerActivities string     `json:"volunteerActivities,omitempty" gorm:"type:text"`
	Phone               string     `json:"phone,omitempty" gorm:"size:20"`
	Address             string     `json:"address" gorm:"size:500;not null"`
	City                string     `json:"city" gorm:"size:100;not null;index"`
	Lat                 float64    `json:"lat" gorm:"type:decimal(10,8);not null"`
	Lng                 float64    `json:"lng" gorm:"type:decimal(11,8);not null"`
	Website             string     `json:"website,omitempty" gorm:"size:500"`
	SocialVK            string     `json:"socialVk,omitempty" gorm:"column:social_vk;size:500"`
	SocialTelegram      string     `json:"socialTelegram,omitempty" gorm:"size:500"`
	SocialInstagram     string     `json:"socialInstagram,omitempty" gorm:"size:500"`
	Logo                string     `json:"logo,omitempty" gorm:"size:500"`
	Status              NPOStatus  `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	RejectionReason     string     `json:"rejectionReason,omitempty" gorm:"type:text"`
	CreatedBy           uuid.UUID  `json:"createdBy" gorm:"type:uuid;not null;index"`
	ModeratedBy         *uuid.UUID `json:"moderatedBy,omitempty" gorm:"type:uuid"`
	ModeratedAt         *time.Time `json:"moderatedAt,omitempty"`
	CreatedAt           time.Time  `json:"createdAt" gorm:"index"`
	UpdatedAt           time.Time  `json:"updatedAt"`

	Creator *CreatorSummary `json:"creator,omitempty" gorm:"-"`
}

func (NPO) TableName() string {
	return "npos"
}

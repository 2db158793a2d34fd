package database

import (
	"time"

	"gorm.io/gorm"
)

// LinkSession is one reflector link attempt (spec §3 "LinkSession
// record"), created by pkg/localrepeater when it sends the connect
// request and closed (UnlinkedAt, Reason) when the link is torn down or
// rejected. It is purely observational: nothing reads it back to drive
// routing, which stays in-memory only.
type LinkSession struct {
	ID             uint       `gorm:"primarykey" json:"id"`
	LocalModule    string     `gorm:"index;size:1;not null" json:"local_module"`
	RemoteCallsign string     `gorm:"index;size:8;not null" json:"remote_callsign"`
	Protocol       string     `gorm:"size:16;not null" json:"protocol"`
	Direction      string     `gorm:"size:16;not null" json:"direction"`
	LinkedAt       time.Time  `gorm:"index" json:"linked_at"`
	UnlinkedAt     *time.Time `json:"unlinked_at,omitempty"`
	Reason         string     `gorm:"size:64" json:"reason"`
	CreatedAt      time.Time  `json:"created_at"`
}

// TableName specifies the table name for LinkSession.
func (LinkSession) TableName() string {
	return "link_sessions"
}

// BeforeCreate ensures CreatedAt/LinkedAt are set; LinkedAt defaults to
// the moment the row is created.
func (s *LinkSession) BeforeCreate(tx *gorm.DB) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	if s.LinkedAt.IsZero() {
		s.LinkedAt = s.CreatedAt
	}
	return nil
}

// Duration returns the session's connected span, or zero if it never
// closed.
func (s *LinkSession) Duration() time.Duration {
	if s.UnlinkedAt == nil {
		return 0
	}
	return s.UnlinkedAt.Sub(s.LinkedAt)
}

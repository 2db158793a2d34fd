package database

import (
	"time"

	"gorm.io/gorm"
)

// LinkSessionRepository handles LinkSession persistence (spec §3).
type LinkSessionRepository struct {
	db *gorm.DB
}

// NewLinkSessionRepository creates a new link-session repository.
func NewLinkSessionRepository(db *gorm.DB) *LinkSessionRepository {
	return &LinkSessionRepository{db: db}
}

// Create records a new link attempt.
func (r *LinkSessionRepository) Create(s *LinkSession) error {
	return r.db.Create(s).Error
}

// Close stamps unlinkedAt and reason on an open session.
func (r *LinkSessionRepository) Close(id uint, unlinkedAt time.Time, reason string) error {
	return r.db.Model(&LinkSession{}).Where("id = ?", id).
		Updates(map[string]interface{}{"unlinked_at": unlinkedAt, "reason": reason}).Error
}

// GetRecent retrieves the most recent N link sessions.
func (r *LinkSessionRepository) GetRecent(limit int) ([]LinkSession, error) {
	var sessions []LinkSession
	err := r.db.Order("linked_at DESC").Limit(limit).Find(&sessions).Error
	return sessions, err
}

// GetByModule retrieves sessions for a given local module.
func (r *LinkSessionRepository) GetByModule(module string, limit int) ([]LinkSession, error) {
	var sessions []LinkSession
	err := r.db.Where("local_module = ?", module).
		Order("linked_at DESC").
		Limit(limit).
		Find(&sessions).Error
	return sessions, err
}

// GetByCallsign retrieves sessions for a given remote callsign.
func (r *LinkSessionRepository) GetByCallsign(callsign string, limit int) ([]LinkSession, error) {
	var sessions []LinkSession
	err := r.db.Where("remote_callsign = ?", callsign).
		Order("linked_at DESC").
		Limit(limit).
		Find(&sessions).Error
	return sessions, err
}

// DeleteOlderThan deletes sessions linked before the given time.
func (r *LinkSessionRepository) DeleteOlderThan(before time.Time) (int64, error) {
	result := r.db.Where("linked_at < ?", before).Delete(&LinkSession{})
	return result.RowsAffected, result.Error
}

// GetOpenSessions retrieves sessions that have not yet closed.
func (r *LinkSessionRepository) GetOpenSessions() ([]LinkSession, error) {
	var sessions []LinkSession
	err := r.db.Where("unlinked_at IS NULL").Order("linked_at DESC").Find(&sessions).Error
	return sessions, err
}

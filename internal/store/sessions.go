package store

import (
	"context"
	"time"

	"attendly/internal/models"
)

func (s *Gorm) CreateSession(ctx context.Context, sess *models.AttendanceSession) error {
	return translate(s.db.WithContext(ctx).Create(sess).Error, "create session")
}

func (s *Gorm) GetSession(ctx context.Context, id string) (*models.AttendanceSession, error) {
	var sess models.AttendanceSession
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&sess).Error; err != nil {
		return nil, translate(err, "get session")
	}
	return &sess, nil
}

// ConsumeSession flips consumed_at exactly once. It reports false when the session is
// already consumed, expired at now, or gone.
func (s *Gorm) ConsumeSession(ctx context.Context, id string, now time.Time) (bool, error) {
	now = now.UTC()
	res := s.db.WithContext(ctx).Model(&models.AttendanceSession{}).
		Where("id = ? AND consumed_at IS NULL AND expires_at > ?", id, now).
		Update("consumed_at", now)
	if res.Error != nil {
		return false, translate(res.Error, "consume session")
	}
	return res.RowsAffected == 1, nil
}

// DeleteSessionsExpiredBefore removes sessions whose deadline passed before cutoff.
func (s *Gorm) DeleteSessionsExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at < ?", cutoff.UTC()).
		Delete(&models.AttendanceSession{})
	return res.RowsAffected, translate(res.Error, "sweep sessions")
}

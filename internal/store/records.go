package store

import (
	"context"

	"attendly/internal/models"

	"gorm.io/gorm"
)

// FindRecordByClient returns the earliest record of the client on the event, or nil.
func (s *Gorm) FindRecordByClient(ctx context.Context, eventID, clientIDHash string) (*models.AttendanceRecord, error) {
	var recs []models.AttendanceRecord
	err := s.db.WithContext(ctx).
		Where("event_id = ? AND client_id_hash = ?", eventID, clientIDHash).
		Order("id ASC").
		Limit(1).
		Find(&recs).Error
	if err != nil {
		return nil, translate(err, "find record")
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

// CreateRecord inserts a record; a strict-mode collision yields ErrDuplicate.
func (s *Gorm) CreateRecord(ctx context.Context, rec *models.AttendanceRecord) error {
	return translate(s.db.WithContext(ctx).Create(rec).Error, "create record")
}

func (s *Gorm) GetRecord(ctx context.Context, id uint) (*models.AttendanceRecord, error) {
	var rec models.AttendanceRecord
	if err := s.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return nil, translate(err, "get record")
	}
	return &rec, nil
}

type RecordFilter struct {
	EventID string
	Status  models.RecordStatus
	Limit   int
	Offset  int
}

func (s *Gorm) ListRecords(ctx context.Context, f RecordFilter) ([]models.AttendanceRecord, int64, error) {
	base := s.db.WithContext(ctx).Model(&models.AttendanceRecord{}).Where("event_id = ?", f.EventID)
	if f.Status != "" {
		base = base.Where("status = ?", f.Status)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, translate(err, "count records")
	}

	var recs []models.AttendanceRecord
	q := base.Session(&gorm.Session{}).Order("created_at DESC, id DESC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, 0, translate(err, "list records")
	}
	return recs, total, nil
}

// UpdateRecordStatus applies an organizer moderation decision.
func (s *Gorm) UpdateRecordStatus(ctx context.Context, id uint, status models.RecordStatus) error {
	res := s.db.WithContext(ctx).Model(&models.AttendanceRecord{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return translate(res.Error, "update record status")
	}
	if res.RowsAffected == 0 {
		return translate(ErrNotFound, "update record status")
	}
	return nil
}

func (s *Gorm) DeleteRecord(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.AttendanceRecord{}, id)
	if res.Error != nil {
		return translate(res.Error, "delete record")
	}
	if res.RowsAffected == 0 {
		return translate(ErrNotFound, "delete record")
	}
	return nil
}

// RecordsPage returns up to limit records of the given events with id > afterID, in id order.
func (s *Gorm) RecordsPage(ctx context.Context, eventIDs []string, afterID uint, limit int) ([]models.AttendanceRecord, error) {
	if len(eventIDs) == 0 {
		return nil, nil
	}
	var recs []models.AttendanceRecord
	err := s.db.WithContext(ctx).
		Where("event_id IN ? AND id > ?", eventIDs, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&recs).Error
	return recs, translate(err, "records page")
}

// RewriteIdentity folds duplicateEmail into canonicalEmail and, when name is set, renames
// every record of the canonical address. Only records of eventIDs are touched. It returns
// the number of records changed.
func (s *Gorm) RewriteIdentity(ctx context.Context, eventIDs []string, canonicalEmail, duplicateEmail, name string) (int64, error) {
	if len(eventIDs) == 0 {
		return 0, nil
	}
	var moved, renamed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if duplicateEmail != "" && duplicateEmail != canonicalEmail {
			res := tx.Model(&models.AttendanceRecord{}).
				Where("event_id IN ? AND attendee_email = ?", eventIDs, duplicateEmail).
				Update("attendee_email", canonicalEmail)
			if res.Error != nil {
				return res.Error
			}
			moved = res.RowsAffected
		}
		if name != "" {
			res := tx.Model(&models.AttendanceRecord{}).
				Where("event_id IN ? AND attendee_email = ?", eventIDs, canonicalEmail).
				Update("attendee_name", name)
			if res.Error != nil {
				return res.Error
			}
			renamed = res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, translate(err, "rewrite identity")
	}
	return max(moved, renamed), nil
}

package store

import (
	"context"
	"errors"

	"attendly/internal/models"
)

func (s *Gorm) CreateSeason(ctx context.Context, season *models.Season) error {
	return translate(s.db.WithContext(ctx).Create(season).Error, "create season")
}

func (s *Gorm) GetSeason(ctx context.Context, id string) (*models.Season, error) {
	var season models.Season
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&season).Error; err != nil {
		return nil, translate(err, "get season")
	}
	return &season, nil
}

func (s *Gorm) ListSeasons(ctx context.Context, organizerID string) ([]models.Season, error) {
	var seasons []models.Season
	err := s.db.WithContext(ctx).
		Where("organizer_id = ?", organizerID).
		Order("created_at DESC").
		Find(&seasons).Error
	return seasons, translate(err, "list seasons")
}

// SeasonEventIDs returns the ids of every event assigned to the season.
func (s *Gorm) SeasonEventIDs(ctx context.Context, seasonID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.Event{}).
		Where("season_id = ?", seasonID).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, translate(err, "season events")
}

// Dismiss stores a dismissed pair; dismissing twice is not an error.
func (s *Gorm) Dismiss(ctx context.Context, d *models.SuggestionDismissal) error {
	err := translate(s.db.WithContext(ctx).Create(d).Error, "dismiss suggestion")
	if errors.Is(err, ErrDuplicate) {
		return nil
	}
	return err
}

func (s *Gorm) Dismissals(ctx context.Context, seasonID string) ([]models.SuggestionDismissal, error) {
	var list []models.SuggestionDismissal
	err := s.db.WithContext(ctx).Where("season_id = ?", seasonID).Find(&list).Error
	return list, translate(err, "list dismissals")
}

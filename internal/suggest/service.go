package suggest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"attendly/internal/models"
	"attendly/internal/store"
	"attendly/internal/util"

	"go.uber.org/zap"
)

var (
	ErrSameEmail    = errors.New("suggest: canonical and duplicate email are the same")
	ErrInvalidEmail = errors.New("suggest: invalid email")
	ErrInvalidName  = errors.New("suggest: invalid name")
)

// Service runs suggestions for a season and applies or dismisses them.
type Service struct {
	store *store.Gorm
	batch int
	limit int
	log   *zap.Logger
}

func NewService(s *store.Gorm, batch, limit int, log *zap.Logger) *Service {
	return &Service{store: s, batch: batch, limit: limit, log: log}
}

// List computes the season's current suggestions, minus dismissed pairs.
func (s *Service) List(ctx context.Context, seasonID string) ([]Suggestion, error) {
	eventIDs, err := s.store.SeasonEventIDs(ctx, seasonID)
	if err != nil {
		return nil, err
	}
	c, err := Collect(ctx, s.store, eventIDs, s.batch)
	if err != nil {
		return nil, err
	}
	dismissals, err := s.store.Dismissals(ctx, seasonID)
	if err != nil {
		return nil, err
	}
	dismissed := make(map[[2]string]bool, len(dismissals))
	for _, d := range dismissals {
		a, b := Pair(d.EmailA, d.EmailB)
		dismissed[[2]string{a, b}] = true
	}
	return c.Suggestions(s.limit, dismissed), nil
}

// Apply folds duplicate into canonical across the season's events and, when name is
// set, renames every record of canonical. It returns the number of records changed.
func (s *Service) Apply(ctx context.Context, seasonID, canonical, duplicate, name string) (int64, error) {
	canonical, duplicate = util.NormalizeEmail(canonical), util.NormalizeEmail(duplicate)
	name = strings.TrimSpace(name)
	if util.ValidateEmail(canonical) != nil || util.ValidateEmail(duplicate) != nil {
		return 0, ErrInvalidEmail
	}
	if canonical == duplicate {
		return 0, ErrSameEmail
	}
	if name != "" && util.ValidateAttendeeName(name) != nil {
		return 0, ErrInvalidName
	}

	eventIDs, err := s.store.SeasonEventIDs(ctx, seasonID)
	if err != nil {
		return 0, err
	}
	n, err := s.store.RewriteIdentity(ctx, eventIDs, canonical, duplicate, name)
	if err != nil {
		return 0, fmt.Errorf("apply suggestion: %w", err)
	}
	s.log.Info("suggestion applied",
		zap.String("season", seasonID), zap.String("canonical", canonical), zap.Int64("records", n))
	return n, nil
}

// Dismiss hides a pair from future lists of the season.
func (s *Service) Dismiss(ctx context.Context, seasonID, emailA, emailB string) error {
	a, b := Pair(util.NormalizeEmail(emailA), util.NormalizeEmail(emailB))
	if a == "" || b == "" {
		return ErrInvalidEmail
	}
	if a == b {
		return ErrSameEmail
	}
	return s.store.Dismiss(ctx, &models.SuggestionDismissal{SeasonID: seasonID, EmailA: a, EmailB: b})
}

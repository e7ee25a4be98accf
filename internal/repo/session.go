package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/sessionauth/internal/models"
	"github.com/Skotchmaster/sessionauth/internal/session"
)

var _ session.Store = (*GormRepo)(nil)

func (r *GormRepo) Create(ctx context.Context, s *models.Session) error {
	return r.DB.WithContext(ctx).Create(s).Error
}

func (r *GormRepo) FindByAccess(ctx context.Context, accessHash string) (*models.Session, error) {
	var s models.Session
	err := r.DB.WithContext(ctx).Where("access_token = ?", accessHash).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FindByRefresh has no store-side expiry, so rows issued at or before issuedAfter are
// treated as gone even if the reaper has not removed them yet.
func (r *GormRepo) FindByRefresh(ctx context.Context, refreshHash string, issuedAfter time.Time) (*models.Session, error) {
	var s models.Session
	err := r.DB.WithContext(ctx).
		Where("refresh_token = ? AND refresh_token_date > ?", refreshHash, issuedAfter).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *GormRepo) Delete(ctx context.Context, s *models.Session) (bool, error) {
	res := r.DB.WithContext(ctx).
		Where("id = ? AND refresh_token = ?", s.ID, s.RefreshToken).
		Delete(&models.Session{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormRepo) DeleteByUser(ctx context.Context, userID uint) (int64, error) {
	res := r.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Session{})
	return res.RowsAffected, res.Error
}

func (r *GormRepo) DeleteExpired(ctx context.Context, issuedBefore time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).Where("refresh_token_date <= ?", issuedBefore).Delete(&models.Session{})
	return res.RowsAffected, res.Error
}

func (r *GormRepo) CountSessions(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Session{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}

package nonce

import (
	"context"
	"errors"
	"time"

	"whalegate/internal/models"

	"gorm.io/gorm"
)

// GormStore persists nonces in the shared database, giving multi-
// instance deployments atomic consumption via a conditional UPDATE.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Save(ctx context.Context, value string, issuedAt time.Time) error {
	return s.db.WithContext(ctx).Create(&models.Nonce{Value: value, IssuedAt: issuedAt}).Error
}

func (s *GormStore) Consume(ctx context.Context, value string) (time.Time, error) {
	// Read and flag inside one transaction so a concurrent Sweep
	// cannot delete the row between the two statements. The
	// consumed=false guard makes the update the linearization point:
	// exactly one of two racing consumers sees RowsAffected=1.
	var issuedAt time.Time
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n models.Nonce
		if err := tx.Where("value = ?", value).First(&n).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if n.Consumed {
			return ErrReplayed
		}

		res := tx.Model(&models.Nonce{}).
			Where("value = ? AND consumed = ?", value, false).
			Update("consumed", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrReplayed
		}
		issuedAt = n.IssuedAt
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}
	return issuedAt, nil
}

func (s *GormStore) Sweep(ctx context.Context, before time.Time) error {
	return s.db.WithContext(ctx).Where("issued_at < ?", before).Delete(&models.Nonce{}).Error
}

package ledger

import (
	"context"
	"errors"
	"time"

	"whalegate/internal/models"

	"gorm.io/gorm"
)

var (
	// ErrDuplicateWallet means the unique-wallet constraint fired: the
	// wallet already holds a record.
	ErrDuplicateWallet = errors.New("wallet already has a verification record")
)

// Ledger is the durable wallet -> issuance store. Insert is the single
// correctness guarantee for "one invite per wallet"; reads are
// best-effort fast paths.
type Ledger interface {
	Insert(ctx context.Context, rec *models.VerificationRecord) error
	FindByWallet(ctx context.Context, wallet string) (*models.VerificationRecord, error)
	// PendingBetween returns unlinked records issued within [from, to].
	// The upper bound keeps records issued after a join event from
	// counting as candidates for it.
	PendingBetween(ctx context.Context, from, to time.Time) ([]models.VerificationRecord, error)
	// LinkIdentity sets the identity fields if and only if the record
	// is still unlinked. Returns false when a prior link won the race.
	LinkIdentity(ctx context.Context, recordID uint, externalID int64, displayName string, at time.Time) (bool, error)
	ListAll(ctx context.Context) ([]models.VerificationRecord, error)
	DeleteByWallet(ctx context.Context, wallet string) (bool, error)
}

type GormLedger struct {
	db *gorm.DB
}

func NewGormLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{db: db}
}

func (l *GormLedger) Insert(ctx context.Context, rec *models.VerificationRecord) error {
	err := l.db.WithContext(ctx).Create(rec).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateWallet
	}
	return err
}

// FindByWallet returns (nil, nil) when no record exists.
func (l *GormLedger) FindByWallet(ctx context.Context, wallet string) (*models.VerificationRecord, error) {
	var rec models.VerificationRecord
	err := l.db.WithContext(ctx).Where("wallet_address = ?", wallet).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (l *GormLedger) PendingBetween(ctx context.Context, from, to time.Time) ([]models.VerificationRecord, error) {
	var recs []models.VerificationRecord
	err := l.db.WithContext(ctx).
		Where("linked_external_id IS NULL AND issued_at BETWEEN ? AND ?", from, to).
		Order("issued_at ASC").
		Find(&recs).Error
	return recs, err
}

func (l *GormLedger) LinkIdentity(ctx context.Context, recordID uint, externalID int64, displayName string, at time.Time) (bool, error) {
	// First writer wins: the NULL guard keeps a second join event from
	// overwriting an established link.
	res := l.db.WithContext(ctx).Model(&models.VerificationRecord{}).
		Where("id = ? AND linked_external_id IS NULL", recordID).
		Updates(map[string]interface{}{
			"linked_external_id":  externalID,
			"linked_display_name": displayName,
			"linked_at":           at,
			"invite_consumed":     true,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (l *GormLedger) ListAll(ctx context.Context) ([]models.VerificationRecord, error) {
	var recs []models.VerificationRecord
	err := l.db.WithContext(ctx).Order("issued_at DESC").Find(&recs).Error
	return recs, err
}

func (l *GormLedger) DeleteByWallet(ctx context.Context, wallet string) (bool, error) {
	res := l.db.WithContext(ctx).Where("wallet_address = ?", wallet).Delete(&models.VerificationRecord{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

package models

import (
	"time"
)

// VerificationRecord is the durable proof that a wallet cleared
// verification and received an invite. One row per wallet, ever.
type VerificationRecord struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	WalletAddress string `gorm:"uniqueIndex;not null" json:"wallet_address"`
	InviteLink    string `gorm:"not null" json:"invite_link"`
	Balance       uint64 `json:"balance"`

	IssuedAt        time.Time `gorm:"index;not null" json:"issued_at"`
	InviteExpiresAt time.Time `json:"invite_expires_at"`
	InviteConsumed  bool      `gorm:"default:false" json:"invite_consumed"`

	RequestIP        string `json:"request_ip"`
	RequestUserAgent string `json:"request_user_agent"`

	// Set together by the reconciler, or all null.
	LinkedExternalID  *int64     `gorm:"index" json:"linked_external_id,omitempty"`
	LinkedDisplayName *string    `json:"linked_display_name,omitempty"`
	LinkedAt          *time.Time `json:"linked_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *VerificationRecord) Linked() bool {
	return r.LinkedExternalID != nil
}

package models

import "time"

// Nonce backs the database-backed nonce store. Consumption flips
// Consumed atomically; the sweeper removes stale rows.
type Nonce struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	Value    string    `gorm:"uniqueIndex;not null" json:"value"`
	IssuedAt time.Time `gorm:"index;not null" json:"issued_at"`
	Consumed bool      `gorm:"default:false" json:"consumed"`
}

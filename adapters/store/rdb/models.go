package rdb

import "time"

// SessionRecord is the RDB persistence model for domain Session.
// Table name: sessions
type SessionRecord struct {
	ID           string     `gorm:"primaryKey;type:text;not null"`
	WorkloadName string     `gorm:"type:text;not null;index"`
	Namespace    string     `gorm:"type:text;not null"`
	Context      string     `gorm:"type:text"`
	Image        string     `gorm:"type:text"`
	TTLSeconds   uint64     `gorm:"not null"`
	SocksPort    int        `gorm:"not null"`
	Status       string     `gorm:"type:text;not null;index"`
	Message      string     `gorm:"type:text"`
	CreatedAt    time.Time  `gorm:"not null"`
	UpdatedAt    time.Time  `gorm:"not null"`
	DeletedAt    *time.Time `gorm:"column:deleted_at"`
}

func (SessionRecord) TableName() string { return "sessions" }

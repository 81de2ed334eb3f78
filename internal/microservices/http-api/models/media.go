package models

import "time"

// media lifecycle, advanced by the upload pipeline over RPC
const (
	MediaStatusPending  = "pending"
	MediaStatusReady    = "ready"
	MediaStatusFailed   = "failed"
	MediaStatusArchived = "archived"
)

type MediaItem struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ClubID    int64     `gorm:"not null;index" json:"club_id"`
	Title     string    `gorm:"not null" json:"title"`
	Kind      string    `gorm:"size:32;not null" json:"kind"` // photo, video, document
	URL       string    `gorm:"not null" json:"url"`
	Status    string    `gorm:"size:32;not null;default:'pending'" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// association
	Club *Club `gorm:"foreignKey:ClubID;constraint:OnDelete:CASCADE;" json:"club,omitempty"`
}

func (MediaItem) TableName() string {
	return "media_items"
}

// ValidMediaStatus reports whether s is a known media status.
func ValidMediaStatus(s string) bool {
	switch s {
	case MediaStatusPending, MediaStatusReady, MediaStatusFailed, MediaStatusArchived:
		return true
	}
	return false
}

package model

import (
	"time"

	"gorm.io/datatypes"
)

// Incident is an archived pursuit event.
type Incident struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID   string         `gorm:"uniqueIndex:idx_incident_event;size:36;not null" json:"event_id"`
	Room      string         `gorm:"index:idx_incident_room;size:64;not null" json:"room"`
	Enemy     string         `gorm:"size:36;not null" json:"enemy"`
	Name      string         `gorm:"size:64" json:"name"`
	Kind      string         `gorm:"index:idx_incident_kind;size:32;not null" json:"kind"`
	FromState string         `gorm:"size:16" json:"from,omitempty"`
	ToState   string         `gorm:"size:16" json:"to,omitempty"`
	Tick      uint64         `json:"tick"`
	Payload   datatypes.JSON `json:"payload"`
	At        time.Time      `gorm:"index:idx_incident_at" json:"at"`
	CreatedAt time.Time      `gorm:"autoCreateTime:milli" json:"created_at"`
}

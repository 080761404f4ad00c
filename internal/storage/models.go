package storage

import (
	"time"
)

// Slot kinds.
const (
	KindTile = "tile"
	KindWire = "wire"
	KindText = "text"
	KindRect = "rect"
)

// SurfaceSlot is the current content of one display slot. There is exactly
// one row per Key; writes overwrite it.
type SurfaceSlot struct {
	Key       string    `gorm:"primaryKey;column:slot_key" json:"key"`
	Kind      string    `gorm:"index" json:"kind"`
	Side      string    `json:"side,omitempty"`
	Name      string    `json:"name"`
	Text      string    `json:"text,omitempty"`
	Value     float64   `json:"value"`
	Offline   bool      `json:"offline,omitempty"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	W         float64   `json:"w"`
	H         float64   `json:"h"`
	UpdatedAt time.Time `json:"updated_at"`
}

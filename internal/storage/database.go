package storage

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"solax-flow/internal/render"
)

// MemoryDSN keeps the surface in a shared in-memory database.
const MemoryDSN = "file::memory:?cache=shared"

// Database holds the current render surface, one row per slot.
type Database struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDatabase(path string) (*Database, error) {
	if path == "" {
		path = MemoryDSN
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&SurfaceSlot{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// Slots describe the running process only; a previous run's readings are
	// not served again.
	if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&SurfaceSlot{}).Error; err != nil {
		return nil, fmt.Errorf("failed to reset surface: %w", err)
	}

	return &Database{db: db, now: time.Now}, nil
}

func (d *Database) Name() string { return "storage" }

// Apply upserts every write of p in one transaction.
func (d *Database) Apply(ctx context.Context, p render.Patch) error {
	slots := Slots(p, d.now())
	if len(slots) == 0 {
		return nil
	}
	err := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&slots).Error
	if err != nil {
		return fmt.Errorf("failed to store surface: %w", err)
	}
	return nil
}

// Slots converts the writes of p into slot rows stamped with at.
func Slots(p render.Patch, at time.Time) []SurfaceSlot {
	slots := make([]SurfaceSlot, 0, len(p.Tiles)+len(p.Wires)+len(p.Texts)+len(p.Rects))

	for _, t := range p.Tiles {
		slots = append(slots, SurfaceSlot{
			Key:       KindTile + ":" + t.Key(),
			Kind:      KindTile,
			Side:      string(t.Side),
			Name:      t.Role.String(),
			Text:      t.State.String(),
			UpdatedAt: at,
		})
	}
	for _, w := range p.Wires {
		slots = append(slots, SurfaceSlot{
			Key:       KindWire + ":" + w.Key(),
			Kind:      KindWire,
			Side:      string(w.Side),
			Name:      string(w.Part),
			Offline:   w.Offline,
			UpdatedAt: at,
		})
	}
	for _, t := range p.Texts {
		slots = append(slots, SurfaceSlot{
			Key:       KindText + ":" + t.Key(),
			Kind:      KindText,
			Side:      string(t.Side),
			Name:      string(t.Field),
			Text:      t.Text,
			Value:     t.Value,
			UpdatedAt: at,
		})
	}
	for _, r := range p.Rects {
		slots = append(slots, SurfaceSlot{
			Key:       KindRect + ":" + r.Key(),
			Kind:      KindRect,
			Side:      string(r.Side),
			Name:      string(r.Part),
			X:         r.Rect.X,
			Y:         r.Rect.Y,
			W:         r.Rect.W,
			H:         r.Rect.H,
			UpdatedAt: at,
		})
	}
	return slots
}

// SelectSlots filters slots by kind (all when empty) and orders them by key,
// the same view GetSlots returns.
func SelectSlots(slots []SurfaceSlot, kind string) []SurfaceSlot {
	out := make([]SurfaceSlot, 0, len(slots))
	for _, s := range slots {
		if kind == "" || s.Kind == kind {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b SurfaceSlot) int { return strings.Compare(a.Key, b.Key) })
	return out
}

// GetSlots returns the stored slots ordered by key, optionally filtered by
// kind.
func (d *Database) GetSlots(ctx context.Context, kind string) ([]SurfaceSlot, error) {
	var slots []SurfaceSlot
	q := d.db.WithContext(ctx).Order("slot_key")
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	if err := q.Find(&slots).Error; err != nil {
		return nil, err
	}
	return slots, nil
}

func (d *Database) GetSlot(ctx context.Context, key string) (*SurfaceSlot, error) {
	var slot SurfaceSlot
	if err := d.db.WithContext(ctx).First(&slot, "slot_key = ?", key).Error; err != nil {
		return nil, err
	}
	return &slot, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

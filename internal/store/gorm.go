package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/clipbingo/clip-bingo-backend/internal/rounds"
)

type eventRecord struct {
	RoomID           string `gorm:"primaryKey;size:16"`
	ActiveRoundIndex int
	UpdatedAt        time.Time
}

type roundRecord struct {
	RoundID      string `gorm:"primaryKey;size:64"`
	RoomID       string `gorm:"index;size:16"`
	Position     int
	Name         string
	TrackPoolIDs []string `gorm:"serializer:json"`
	Status       string
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

func (eventRecord) TableName() string { return "event_records" }
func (roundRecord) TableName() string { return "round_records" }

// Gorm persists event state to Postgres.
type Gorm struct {
	db *gorm.DB
}

func OpenGorm(dsn string) (*Gorm, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&eventRecord{}, &roundRecord{}); err != nil {
		return nil, err
	}
	return &Gorm{db: db}, nil
}

func (g *Gorm) SaveEvent(ctx context.Context, roomID string, st EventState) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ev := eventRecord{RoomID: roomID, ActiveRoundIndex: st.ActiveRoundIndex, UpdatedAt: time.Now()}
		if err := tx.Save(&ev).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", roomID).Delete(&roundRecord{}).Error; err != nil {
			return err
		}
		for i, r := range st.Rounds {
			rec := roundRecord{
				RoundID:      r.ID,
				RoomID:       roomID,
				Position:     i,
				Name:         r.Name,
				TrackPoolIDs: append([]string(nil), r.TrackPoolIDs...),
				Status:       string(r.Status),
				StartedAt:    r.StartedAt,
				CompletedAt:  r.CompletedAt,
			}
			if err := tx.Create(&rec).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (g *Gorm) LoadEvent(ctx context.Context, roomID string) (EventState, bool, error) {
	var ev eventRecord
	err := g.db.WithContext(ctx).First(&ev, "room_id = ?", roomID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return EventState{ActiveRoundIndex: -1}, false, nil
	}
	if err != nil {
		return EventState{}, false, err
	}

	var recs []roundRecord
	if err := g.db.WithContext(ctx).Where("room_id = ?", roomID).Order("position asc").Find(&recs).Error; err != nil {
		return EventState{}, false, err
	}

	st := EventState{ActiveRoundIndex: ev.ActiveRoundIndex, Rounds: make([]rounds.Round, 0, len(recs))}
	for _, rec := range recs {
		st.Rounds = append(st.Rounds, rounds.Round{
			ID:           rec.RoundID,
			Name:         rec.Name,
			TrackPoolIDs: rec.TrackPoolIDs,
			Status:       rounds.Status(rec.Status),
			StartedAt:    rec.StartedAt,
			CompletedAt:  rec.CompletedAt,
		})
	}
	return st, true, nil
}

func (g *Gorm) DeleteEvent(ctx context.Context, roomID string) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", roomID).Delete(&roundRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("room_id = ?", roomID).Delete(&eventRecord{}).Error
	})
}

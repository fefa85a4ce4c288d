package sequence

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	qerrors "model-quote/internal/errors"
	"model-quote/internal/models"
)

// GormSequencer counts in the quote_sequences table of the quote database
type GormSequencer struct {
	db *gorm.DB
}

// NewGormSequencer creates a database-backed sequencer
func NewGormSequencer(db *gorm.DB) *GormSequencer {
	return &GormSequencer{db: db}
}

// Next implements Sequencer
func (s *GormSequencer) Next(ctx context.Context, day time.Time) (int64, error) {
	key := day.Format("20060102")

	var row models.QuoteSequence
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upsert := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "day"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"value": gorm.Expr("quote_sequences.value + 1")}),
		}).Create(&models.QuoteSequence{Day: key, Value: 1})
		if upsert.Error != nil {
			return upsert.Error
		}
		return tx.Where("day = ?", key).Take(&row).Error
	})
	if err != nil {
		return 0, qerrors.Internal("allocate quote sequence", err)
	}
	return row.Value, nil
}

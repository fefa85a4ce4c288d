package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"model-quote/core/pricing"
	"model-quote/core/quote"
	"model-quote/core/version"
	"model-quote/internal/db"
	qerrors "model-quote/internal/errors"
	"model-quote/internal/models"
)

// GormStore persists quotes through GORM. Each save is one transaction.
type GormStore struct {
	conn *gorm.DB
}

// NewGormStore wraps an open, migrated connection
func NewGormStore(conn *gorm.DB) *GormStore {
	return &GormStore{conn: conn}
}

// Backend reports the dialect behind the store
func (s *GormStore) Backend() Backend {
	if db.IsSQLite(s.conn) {
		return BackendSQLite
	}
	return BackendPostgres
}

func (s *GormStore) CreateQuote(ctx context.Context, sheet *quote.Sheet, v *version.Version) error {
	if err := checkCommit(sheet, v); err != nil {
		return err
	}
	if v.Number != 1 {
		return qerrors.Inconsistency("quote %s must be created at version 1, got %d", sheet.QuoteNo, v.Number)
	}

	return s.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Quote{}).Where("quote_no = ?", sheet.QuoteNo).Count(&count).Error; err != nil {
			return qerrors.Internal("check quote number", err)
		}
		if count > 0 {
			return duplicateQuote(sheet.QuoteNo)
		}

		rec := toQuoteRecord(sheet)
		if err := tx.Omit(clause.Associations).Create(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return duplicateQuote(sheet.QuoteNo)
			}
			return qerrors.Internal("insert quote", err)
		}
		return writeChildren(tx, sheet, v)
	})
}

func (s *GormStore) LoadQuote(ctx context.Context, quoteNo string) (*quote.Sheet, error) {
	var rec models.Quote
	err := s.conn.WithContext(ctx).
		Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("sort_order ASC") }).
		Where("quote_no = ?", quoteNo).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, qerrors.NotFound("quote", quoteNo)
	}
	if err != nil {
		return nil, qerrors.Internal("load quote", err)
	}
	return fromQuoteRecord(rec), nil
}

func (s *GormStore) SaveQuote(ctx context.Context, sheet *quote.Sheet, v *version.Version) error {
	if err := checkCommit(sheet, v); err != nil {
		return err
	}

	return s.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stored models.Quote
		err := tx.Select("id", "version").Where("quote_no = ?", sheet.QuoteNo).First(&stored).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return qerrors.NotFound("quote", sheet.QuoteNo)
		}
		if err != nil {
			return qerrors.Internal("load quote version", err)
		}
		if stored.Version != v.Number-1 {
			return StaleVersion(sheet.QuoteNo, stored.Version, v.Number)
		}

		rec := toQuoteRecord(sheet)
		res := tx.Model(&models.Quote{}).
			Where("id = ? AND version = ?", stored.ID, stored.Version).
			Updates(quoteColumns(rec))
		if res.Error != nil {
			return qerrors.Internal("update quote", res.Error)
		}
		if res.RowsAffected != 1 {
			return StaleVersion(sheet.QuoteNo, stored.Version, v.Number)
		}

		if err := tx.Where("quote_id = ?", stored.ID).Delete(&models.QuoteItem{}).Error; err != nil {
			return qerrors.Internal("replace quote items", err)
		}
		return writeChildren(tx, sheet, v)
	})
}

func (s *GormStore) DeleteQuote(ctx context.Context, quoteNo string) error {
	return s.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stored models.Quote
		err := tx.Select("id").Where("quote_no = ?", quoteNo).First(&stored).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return qerrors.NotFound("quote", quoteNo)
		}
		if err != nil {
			return qerrors.Internal("load quote", err)
		}

		if err := tx.Where("quote_id = ?", stored.ID).Delete(&models.QuoteVersion{}).Error; err != nil {
			return qerrors.Internal("delete quote versions", err)
		}
		if err := tx.Where("quote_id = ?", stored.ID).Delete(&models.QuoteItem{}).Error; err != nil {
			return qerrors.Internal("delete quote items", err)
		}
		if err := tx.Where("id = ?", stored.ID).Delete(&models.Quote{}).Error; err != nil {
			return qerrors.Internal("delete quote", err)
		}
		return nil
	})
}

func (s *GormStore) ListQuotes(ctx context.Context, filter ListFilter) (*Page, error) {
	filter = filter.normalize()

	filtered := func() *gorm.DB {
		query := s.conn.WithContext(ctx).Model(&models.Quote{})
		if filter.CustomerName != "" {
			query = query.Where(db.CaseInsensitiveLikeExpr(s.conn, "customer_name"), db.ContainsPattern(s.conn, filter.CustomerName))
		}
		if filter.Status != "" {
			query = query.Where("status = ?", string(filter.Status))
		}
		if filter.CreatedBy != "" {
			query = query.Where("created_by = ?", filter.CreatedBy)
		}
		if filter.ValidBefore != nil {
			query = query.Where("valid_until IS NOT NULL AND valid_until < ?", filter.ValidBefore.UTC())
		}
		return query
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, qerrors.Internal("count quotes", err)
	}

	var recs []models.Quote
	err := filtered().
		Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("sort_order ASC") }).
		Order("created_at DESC").Order("quote_no DESC").
		Offset(filter.offset()).Limit(filter.PageSize).
		Find(&recs).Error
	if err != nil {
		return nil, qerrors.Internal("list quotes", err)
	}

	page := &Page{Total: total, Page: filter.Page, PageSize: filter.PageSize, Quotes: make([]*quote.Sheet, 0, len(recs))}
	for _, rec := range recs {
		page.Quotes = append(page.Quotes, fromQuoteRecord(rec))
	}
	return page, nil
}

func (s *GormStore) ListVersions(ctx context.Context, quoteNo string) ([]*version.Version, error) {
	if err := s.requireQuote(ctx, quoteNo); err != nil {
		return nil, err
	}

	var recs []models.QuoteVersion
	err := s.conn.WithContext(ctx).
		Where("quote_no = ?", quoteNo).
		Order("version_number ASC").
		Find(&recs).Error
	if err != nil {
		return nil, qerrors.Internal("list versions", err)
	}

	out := make([]*version.Version, 0, len(recs))
	for _, rec := range recs {
		v, err := fromVersionRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *GormStore) GetVersion(ctx context.Context, quoteNo string, number int) (*version.Version, error) {
	var rec models.QuoteVersion
	err := s.conn.WithContext(ctx).
		Where("quote_no = ? AND version_number = ?", quoteNo, number).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if errQuote := s.requireQuote(ctx, quoteNo); errQuote != nil {
			return nil, errQuote
		}
		return nil, qerrors.NotFound("quote version", versionKey(quoteNo, number))
	}
	if err != nil {
		return nil, qerrors.Internal("load version", err)
	}
	return fromVersionRecord(rec)
}

func (s *GormStore) Close() error {
	sqlDB, err := s.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) requireQuote(ctx context.Context, quoteNo string) error {
	var count int64
	if err := s.conn.WithContext(ctx).Model(&models.Quote{}).Where("quote_no = ?", quoteNo).Count(&count).Error; err != nil {
		return qerrors.Internal("check quote", err)
	}
	if count == 0 {
		return qerrors.NotFound("quote", quoteNo)
	}
	return nil
}

// writeChildren inserts the item set and the version row
func writeChildren(tx *gorm.DB, sheet *quote.Sheet, v *version.Version) error {
	items := toItemRecords(sheet)
	if len(items) > 0 {
		if err := tx.Create(&items).Error; err != nil {
			return qerrors.Internal("insert quote items", err)
		}
	}
	rec := toVersionRecord(v)
	if err := tx.Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return StaleVersion(sheet.QuoteNo, v.Number, v.Number)
		}
		return qerrors.Internal("insert version", err)
	}
	return nil
}

func versionKey(quoteNo string, number int) string {
	return fmt.Sprintf("%s#%d", quoteNo, number)
}

func toQuoteRecord(s *quote.Sheet) models.Quote {
	return models.Quote{
		ID:                   s.ID,
		QuoteNo:              s.QuoteNo,
		Status:               string(s.Status),
		CustomerName:         s.CustomerName,
		ProjectName:          s.ProjectName,
		SalesName:            s.SalesName,
		CustomerContact:      s.CustomerContact,
		CustomerEmail:        s.CustomerEmail,
		Remarks:              s.Remarks,
		Terms:                s.Terms,
		Currency:             s.Currency,
		ValidUntil:           s.ValidUntil,
		GlobalDiscountRate:   models.NewRate(s.GlobalDiscountRate),
		GlobalDiscountRemark: s.GlobalDiscountRemark,
		TotalOriginalAmount:  models.NewAmount(s.TotalOriginalAmount),
		TotalAmount:          models.NewAmount(s.TotalAmount),
		Version:              s.Version,
		CreatedBy:            s.CreatedBy,
		CreatedAt:            s.CreatedAt,
		UpdatedAt:            s.UpdatedAt,
	}
}

// quoteColumns lists every mutable column so zero values are written too
func quoteColumns(rec models.Quote) map[string]interface{} {
	return map[string]interface{}{
		"status":                 rec.Status,
		"customer_name":          rec.CustomerName,
		"project_name":           rec.ProjectName,
		"sales_name":             rec.SalesName,
		"customer_contact":       rec.CustomerContact,
		"customer_email":         rec.CustomerEmail,
		"remarks":                rec.Remarks,
		"terms":                  rec.Terms,
		"currency":               rec.Currency,
		"valid_until":            rec.ValidUntil,
		"global_discount_rate":   rec.GlobalDiscountRate,
		"global_discount_remark": rec.GlobalDiscountRemark,
		"total_original_amount":  rec.TotalOriginalAmount,
		"total_amount":           rec.TotalAmount,
		"version":                rec.Version,
		"updated_at":             rec.UpdatedAt,
	}
}

func toItemRecords(s *quote.Sheet) []models.QuoteItem {
	out := make([]models.QuoteItem, 0, len(s.Items))
	for _, it := range s.Items {
		out = append(out, models.QuoteItem{
			ID:                it.ID,
			QuoteID:           s.ID,
			SortOrder:         it.SortOrder,
			ProductCode:       it.ProductCode,
			ProductName:       it.ProductName,
			Region:            it.Region,
			RegionName:        it.RegionName,
			Modality:          it.Modality,
			Capability:        it.Capability,
			ModelType:         it.ModelType,
			ContextSpec:       it.ContextSpec,
			InferenceMode:     it.InferenceMode,
			InputTokens:       it.InputTokens,
			OutputTokens:      it.OutputTokens,
			Units:             it.Units,
			ThinkingModeRatio: models.NewRatio(it.ThinkingModeRatio),
			BatchCallRatio:    models.NewRatio(it.BatchCallRatio),
			BillingUnit:       string(it.Pricing.BillingUnit),
			UnitPrice:         models.NewAmount(it.Pricing.UnitPrice),
			OriginalPrice:     models.NewAmount(it.Pricing.OriginalPrice),
			DiscountRate:      models.NewRate(it.Pricing.DiscountRate),
			FinalPrice:        models.NewAmount(it.Pricing.FinalPrice),
			Quantity:          it.Pricing.Quantity,
			DurationMonths:    it.Pricing.DurationMonths,
			Subtotal:          models.NewAmount(it.Pricing.Subtotal),
		})
	}
	return out
}

func fromQuoteRecord(rec models.Quote) *quote.Sheet {
	s := &quote.Sheet{
		ID:                   rec.ID,
		QuoteNo:              rec.QuoteNo,
		CreatedBy:            rec.CreatedBy,
		CreatedAt:            rec.CreatedAt.UTC(),
		UpdatedAt:            rec.UpdatedAt.UTC(),
		CustomerName:         rec.CustomerName,
		ProjectName:          rec.ProjectName,
		SalesName:            rec.SalesName,
		CustomerContact:      rec.CustomerContact,
		CustomerEmail:        rec.CustomerEmail,
		Remarks:              rec.Remarks,
		Terms:                rec.Terms,
		Currency:             rec.Currency,
		Status:               quote.Status(rec.Status),
		GlobalDiscountRate:   rec.GlobalDiscountRate.Decimal,
		GlobalDiscountRemark: rec.GlobalDiscountRemark,
		TotalOriginalAmount:  rec.TotalOriginalAmount.Decimal,
		TotalAmount:          rec.TotalAmount.Decimal,
		Version:              rec.Version,
		Items:                make([]*quote.Item, 0, len(rec.Items)),
	}
	if rec.ValidUntil != nil {
		vu := rec.ValidUntil.UTC()
		s.ValidUntil = &vu
	}
	for _, ir := range rec.Items {
		it := &quote.Item{
			ID:                ir.ID,
			QuoteID:           ir.QuoteID,
			SortOrder:         ir.SortOrder,
			ProductCode:       ir.ProductCode,
			ProductName:       ir.ProductName,
			Region:            ir.Region,
			RegionName:        ir.RegionName,
			Modality:          ir.Modality,
			Capability:        ir.Capability,
			ModelType:         ir.ModelType,
			ContextSpec:       ir.ContextSpec,
			InferenceMode:     ir.InferenceMode,
			InputTokens:       ir.InputTokens,
			OutputTokens:      ir.OutputTokens,
			Units:             ir.Units,
			ThinkingModeRatio: ir.ThinkingModeRatio.Decimal,
			BatchCallRatio:    ir.BatchCallRatio.Decimal,
		}
		it.SetPricing(quote.ItemPricing{
			UnitPrice:      ir.UnitPrice.Decimal,
			OriginalPrice:  ir.OriginalPrice.Decimal,
			DiscountRate:   ir.DiscountRate.Decimal,
			FinalPrice:     ir.FinalPrice.Decimal,
			Subtotal:       ir.Subtotal.Decimal,
			Quantity:       ir.Quantity,
			DurationMonths: ir.DurationMonths,
			BillingUnit:    pricing.BillingUnit(ir.BillingUnit),
		})
		s.Items = append(s.Items, it)
	}
	return s
}

func toVersionRecord(v *version.Version) models.QuoteVersion {
	return models.QuoteVersion{
		ID:             v.ID,
		QuoteID:        v.QuoteID,
		VersionNumber:  v.Number,
		QuoteNo:        v.QuoteNo,
		ChangeType:     string(v.ChangeType),
		ChangesSummary: v.ChangesSummary,
		ContentHash:    v.ContentHash,
		Snapshot:       string(v.SnapshotJSON()),
		CreatedAt:      v.CreatedAt,
	}
}

func fromVersionRecord(rec models.QuoteVersion) (*version.Version, error) {
	return version.Decode(version.Version{
		ID:             rec.ID,
		QuoteID:        rec.QuoteID,
		QuoteNo:        rec.QuoteNo,
		Number:         rec.VersionNumber,
		ChangeType:     version.ChangeType(rec.ChangeType),
		ChangesSummary: rec.ChangesSummary,
		ContentHash:    rec.ContentHash,
		CreatedAt:      rec.CreatedAt.UTC(),
	}, []byte(rec.Snapshot))
}

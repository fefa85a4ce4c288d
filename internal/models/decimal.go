package models

import (
	"database/sql/driver"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"model-quote/core/money"
)

// Amount is a money column: numeric(20,6) on postgres, fixed-scale text on sqlite.
// SQLite gives decimal columns NUMERIC affinity and would store the value as REAL.
type Amount struct{ decimal.Decimal }

// Rate is a discount rate column: numeric(5,4) on postgres, text on sqlite
type Rate struct{ decimal.Decimal }

// Ratio is a mode/batch share column: numeric(9,6) on postgres, text on sqlite
type Ratio struct{ decimal.Decimal }

func NewAmount(d decimal.Decimal) Amount { return Amount{d} }
func NewRate(d decimal.Decimal) Rate     { return Rate{d} }
func NewRatio(d decimal.Decimal) Ratio   { return Ratio{d} }

func columnType(db *gorm.DB, precision string) string {
	if db.Dialector.Name() == "sqlite" {
		return "text"
	}
	return "numeric(" + precision + ")"
}

// GormDBDataType implements schema.GormDataTypeInterface per dialect
func (Amount) GormDBDataType(db *gorm.DB, _ *schema.Field) string { return columnType(db, "20,6") }

// GormDBDataType implements schema.GormDataTypeInterface per dialect
func (Rate) GormDBDataType(db *gorm.DB, _ *schema.Field) string { return columnType(db, "5,4") }

// GormDBDataType implements schema.GormDataTypeInterface per dialect
func (Ratio) GormDBDataType(db *gorm.DB, _ *schema.Field) string { return columnType(db, "9,6") }

// Value writes the decimal as exact text
func (a Amount) Value() (driver.Value, error) { return a.StringFixed(money.AmountScale), nil }

// Value writes the decimal as exact text
func (r Rate) Value() (driver.Value, error) { return r.StringFixed(money.RateScale), nil }

// Value writes the decimal as exact text
func (r Ratio) Value() (driver.Value, error) { return r.StringFixed(money.RatioScale), nil }

// Scan reads text or numeric columns
func (a *Amount) Scan(v interface{}) error { return a.Decimal.Scan(v) }

// Scan reads text or numeric columns
func (r *Rate) Scan(v interface{}) error { return r.Decimal.Scan(v) }

// Scan reads text or numeric columns
func (r *Ratio) Scan(v interface{}) error { return r.Decimal.Scan(v) }

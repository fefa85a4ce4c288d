package quote

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"model-quote/core/money"
	qerrors "model-quote/internal/errors"
)

// Sheet is the quote aggregate root. It exclusively owns its items.
// Totals are derived and recomputed by every mutating method before it returns.
type Sheet struct {
	ID        string    `json:"id"`
	QuoteNo   string    `json:"quote_no"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CustomerName    string     `json:"customer_name"`
	ProjectName     string     `json:"project_name,omitempty"`
	SalesName       string     `json:"sales_name,omitempty"`
	CustomerContact string     `json:"customer_contact,omitempty"`
	CustomerEmail   string     `json:"customer_email,omitempty"`
	Remarks         string     `json:"remarks,omitempty"`
	Terms           string     `json:"terms,omitempty"`
	Currency        string     `json:"currency"`
	ValidUntil      *time.Time `json:"valid_until,omitempty"`
	Status          Status     `json:"status"`

	GlobalDiscountRate   decimal.Decimal `json:"global_discount_rate"`
	GlobalDiscountRemark string          `json:"global_discount_remark,omitempty"`

	TotalOriginalAmount decimal.Decimal `json:"total_original_amount"`
	TotalAmount         decimal.Decimal `json:"total_amount"`

	// Version is the last committed version number, 0 before the first commit
	Version int `json:"version"`

	Items []*Item `json:"items"`
}

// NewSheet creates an empty draft quote with no global discount
func NewSheet(id, quoteNo, createdBy, currency string, now time.Time) *Sheet {
	return &Sheet{
		ID:                  id,
		QuoteNo:             quoteNo,
		CreatedBy:           createdBy,
		CreatedAt:           now,
		UpdatedAt:           now,
		Currency:            currency,
		Status:              StatusDraft,
		GlobalDiscountRate:  money.One,
		TotalOriginalAmount: decimal.Zero,
		TotalAmount:         decimal.Zero,
		Items:               []*Item{},
	}
}

// AddItem appends an item with sort order max+1 and recomputes totals
func (s *Sheet) AddItem(item *Item) error {
	if err := s.requireDraft("adding items"); err != nil {
		return err
	}
	if item.ID == "" {
		return qerrors.Validation("id", "item id is required")
	}
	if _, ok := s.index(item.ID); ok {
		return qerrors.Validation("id", "item %s already exists in quote %s", item.ID, s.QuoteNo)
	}
	if err := item.CheckInvariants(); err != nil {
		return err
	}

	item.QuoteID = s.ID
	item.SortOrder = s.maxSortOrder() + 1
	s.Items = append(s.Items, item)
	s.RecomputeAggregates()
	return nil
}

// RemoveItem removes an item; remaining sort orders are left as they are
func (s *Sheet) RemoveItem(itemID string) (*Item, error) {
	if err := s.requireDraft("removing items"); err != nil {
		return nil, err
	}
	i, ok := s.index(itemID)
	if !ok {
		return nil, qerrors.NotFound("quote item", itemID)
	}
	removed := s.Items[i]
	s.Items = append(s.Items[:i:i], s.Items[i+1:]...)
	s.RecomputeAggregates()
	return removed, nil
}

// UpdateItem edits one item through fn. fn must re-apply pricing when it changes usage;
// the edited item is checked before totals are recomputed.
func (s *Sheet) UpdateItem(itemID string, fn func(*Item) error) error {
	if err := s.requireDraft("editing items"); err != nil {
		return err
	}
	i, ok := s.index(itemID)
	if !ok {
		return qerrors.NotFound("quote item", itemID)
	}

	edited := s.Items[i].Clone()
	if err := fn(edited); err != nil {
		return err
	}
	if err := edited.CheckInvariants(); err != nil {
		return err
	}
	edited.ID, edited.QuoteID, edited.SortOrder = s.Items[i].ID, s.ID, s.Items[i].SortOrder
	s.Items[i] = edited
	s.RecomputeAggregates()
	return nil
}

// Reorder reassigns the full sort order sequence 1..n following itemIDs
func (s *Sheet) Reorder(itemIDs []string) error {
	if err := s.requireDraft("reordering items"); err != nil {
		return err
	}
	if len(itemIDs) != len(s.Items) {
		return qerrors.Validation("item_ids", "expected %d item ids, got %d", len(s.Items), len(itemIDs))
	}
	seen := make(map[string]bool, len(itemIDs))
	for _, id := range itemIDs {
		if seen[id] {
			return qerrors.Validation("item_ids", "duplicate item id %s", id)
		}
		if _, ok := s.index(id); !ok {
			return qerrors.NotFound("quote item", id)
		}
		seen[id] = true
	}

	for pos, id := range itemIDs {
		i, _ := s.index(id)
		s.Items[i].SortOrder = pos + 1
	}
	s.sortItems()
	return nil
}

// SetGlobalDiscount sets the quote-level rate; a remark is required below 1.0000
func (s *Sheet) SetGlobalDiscount(rate decimal.Decimal, remark string) error {
	if err := s.requireDraft("discount changes"); err != nil {
		return err
	}
	if err := money.CheckRate("global_discount_rate", rate); err != nil {
		return err
	}
	remark = strings.TrimSpace(remark)
	if rate.LessThan(money.One) && remark == "" {
		return qerrors.Validation("global_discount_remark", "a remark is required when the rate is below 1.0000")
	}

	s.GlobalDiscountRate = rate
	s.GlobalDiscountRemark = remark
	s.RecomputeAggregates()
	return nil
}

// RecomputeAggregates derives both totals from the current items.
// Calling it twice without an intervening mutation yields identical totals.
func (s *Sheet) RecomputeAggregates() {
	total := decimal.Zero
	for _, item := range s.Items {
		total = total.Add(item.Pricing.Subtotal)
	}
	s.TotalOriginalAmount = money.RoundAmount(total)
	s.TotalAmount = money.RoundAmount(s.TotalOriginalAmount.Mul(s.GlobalDiscountRate))
}

// CheckInvariants verifies every item triple and both totals
func (s *Sheet) CheckInvariants() error {
	if err := money.CheckRate("global_discount_rate", s.GlobalDiscountRate); err != nil {
		return qerrors.Inconsistency("quote %s: %v", s.QuoteNo, err)
	}
	orders := make(map[int]string, len(s.Items))
	total := decimal.Zero
	for _, item := range s.Items {
		if err := item.CheckInvariants(); err != nil {
			return err
		}
		if other, dup := orders[item.SortOrder]; dup {
			return qerrors.Inconsistency("items %s and %s share sort order %d", other, item.ID, item.SortOrder)
		}
		orders[item.SortOrder] = item.ID
		total = total.Add(item.Pricing.Subtotal)
	}
	total = money.RoundAmount(total)
	if !total.Equal(s.TotalOriginalAmount) {
		return qerrors.Inconsistency("quote %s total original amount %s, expected %s", s.QuoteNo, s.TotalOriginalAmount.String(), total.String())
	}
	amount := money.RoundAmount(total.Mul(s.GlobalDiscountRate))
	if !amount.Equal(s.TotalAmount) {
		return qerrors.Inconsistency("quote %s total amount %s, expected %s", s.QuoteNo, s.TotalAmount.String(), amount.String())
	}
	return nil
}

// Item returns the item with the given id
func (s *Sheet) Item(itemID string) (*Item, bool) {
	i, ok := s.index(itemID)
	if !ok {
		return nil, false
	}
	return s.Items[i], true
}

// SortedItems returns the items ordered by sort order
func (s *Sheet) SortedItems() []*Item {
	out := make([]*Item, len(s.Items))
	copy(out, s.Items)
	sort.SliceStable(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out
}

// DeepCopy returns a copy sharing no mutable state with s
func (s *Sheet) DeepCopy() *Sheet {
	c := *s
	if s.ValidUntil != nil {
		v := *s.ValidUntil
		c.ValidUntil = &v
	}
	c.Items = make([]*Item, len(s.Items))
	for i, item := range s.Items {
		c.Items[i] = item.Clone()
	}
	return &c
}

// Clone copies the quote under a new identity as a fresh draft.
// Items get new ids from newItemID and a contiguous sort order.
func (s *Sheet) Clone(id, quoteNo string, now time.Time, newItemID func() string) *Sheet {
	c := s.DeepCopy()
	c.ID = id
	c.QuoteNo = quoteNo
	c.CreatedAt = now
	c.UpdatedAt = now
	c.Status = StatusDraft
	c.Version = 0
	c.Remarks = "cloned from " + s.QuoteNo

	c.Items = c.SortedItems()
	for i, item := range c.Items {
		item.ID = newItemID()
		item.QuoteID = id
		item.SortOrder = i + 1
	}
	c.RecomputeAggregates()
	return c
}

// Totals is the read-only pair of quote aggregates
type Totals struct {
	TotalOriginalAmount decimal.Decimal `json:"total_original_amount"`
	TotalAmount         decimal.Decimal `json:"total_amount"`
	GlobalDiscountRate  decimal.Decimal `json:"global_discount_rate"`
	Currency            string          `json:"currency"`
}

// Totals returns the current aggregates
func (s *Sheet) Totals() Totals {
	return Totals{
		TotalOriginalAmount: s.TotalOriginalAmount,
		TotalAmount:         s.TotalAmount,
		GlobalDiscountRate:  s.GlobalDiscountRate,
		Currency:            s.Currency,
	}
}

func (s *Sheet) index(itemID string) (int, bool) {
	for i, item := range s.Items {
		if item.ID == itemID {
			return i, true
		}
	}
	return -1, false
}

func (s *Sheet) maxSortOrder() int {
	highest := 0
	for _, item := range s.Items {
		if item.SortOrder > highest {
			highest = item.SortOrder
		}
	}
	return highest
}

func (s *Sheet) sortItems() {
	sort.SliceStable(s.Items, func(i, j int) bool { return s.Items[i].SortOrder < s.Items[j].SortOrder })
}

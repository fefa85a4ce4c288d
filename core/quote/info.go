package quote

import (
	"net/mail"
	"strings"
	"time"

	qerrors "model-quote/internal/errors"
)

// InfoUpdate edits descriptive fields; nil fields are left unchanged
type InfoUpdate struct {
	CustomerName    *string    `json:"customer_name,omitempty"`
	ProjectName     *string    `json:"project_name,omitempty"`
	SalesName       *string    `json:"sales_name,omitempty"`
	CustomerContact *string    `json:"customer_contact,omitempty"`
	CustomerEmail   *string    `json:"customer_email,omitempty"`
	Remarks         *string    `json:"remarks,omitempty"`
	Terms           *string    `json:"terms,omitempty"`
	ValidUntil      *time.Time `json:"valid_until,omitempty"`
}

// IsEmpty reports whether the update changes nothing
func (u InfoUpdate) IsEmpty() bool {
	return u.CustomerName == nil && u.ProjectName == nil && u.SalesName == nil &&
		u.CustomerContact == nil && u.CustomerEmail == nil && u.Remarks == nil &&
		u.Terms == nil && u.ValidUntil == nil
}

// UpdateInfo applies a descriptive update to a draft quote
func (s *Sheet) UpdateInfo(u InfoUpdate) error {
	if err := s.requireDraft("info changes"); err != nil {
		return err
	}
	if u.CustomerName != nil {
		if err := ValidateCustomerName(*u.CustomerName); err != nil {
			return err
		}
	}
	if u.CustomerEmail != nil {
		if err := ValidateEmail(*u.CustomerEmail); err != nil {
			return err
		}
	}

	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&s.CustomerName, u.CustomerName)
	set(&s.ProjectName, u.ProjectName)
	set(&s.SalesName, u.SalesName)
	set(&s.CustomerContact, u.CustomerContact)
	set(&s.CustomerEmail, u.CustomerEmail)
	set(&s.Remarks, u.Remarks)
	set(&s.Terms, u.Terms)
	if u.ValidUntil != nil {
		vu := u.ValidUntil.UTC()
		s.ValidUntil = &vu
	}
	return nil
}

// ValidateCustomerName requires a non-blank name of at most 200 characters
func ValidateCustomerName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return qerrors.Validation("customer_name", "is required")
	}
	if len([]rune(name)) > 200 {
		return qerrors.Validation("customer_name", "must be at most 200 characters")
	}
	return nil
}

// ValidateEmail accepts an empty string or a single address
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return qerrors.Validation("customer_email", "invalid address %q", email)
	}
	return nil
}

// ReplaceContent rolls a draft back to the content of an earlier snapshot.
// Identity, status and version bookkeeping stay with s.
func (s *Sheet) ReplaceContent(from *Sheet) error {
	if err := s.requireDraft("restoring versions"); err != nil {
		return err
	}
	c := from.DeepCopy()

	s.CustomerName = c.CustomerName
	s.ProjectName = c.ProjectName
	s.SalesName = c.SalesName
	s.CustomerContact = c.CustomerContact
	s.CustomerEmail = c.CustomerEmail
	s.Remarks = c.Remarks
	s.Terms = c.Terms
	s.ValidUntil = c.ValidUntil
	s.GlobalDiscountRate = c.GlobalDiscountRate
	s.GlobalDiscountRemark = c.GlobalDiscountRemark

	s.Items = c.Items
	for _, item := range s.Items {
		item.QuoteID = s.ID
	}
	s.sortItems()
	s.RecomputeAggregates()
	return nil
}

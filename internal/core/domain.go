package core

import (
	"errors"
	"strings"
	"time"
)

const (
	ActionCreate AuditAction = "CREATE"
	ActionUpdate AuditAction = "UPDATE"
	ActionDelete AuditAction = "DELETE"
)

type (
	AuditAction string

	Money struct {
		Cents int64
	}

	Member struct {
		ID        string
		Name      string
		Phone     string // Optional contact
		Role      Role
		Active    bool
		CreatedAt time.Time
	}

	// Period is a fiscal-year ledger container. A nil StartMonth means the
	// ledger has not been initialized yet.
	Period struct {
		ID         string
		Year       int
		StartMonth *Month
		HorizonEnd *Month // Last month added manually past the wall clock
		CreatedAt  time.Time
	}

	// Contribution is keyed by (MemberID, PeriodID, Month). Writes overwrite.
	Contribution struct {
		MemberID  string
		PeriodID  string
		Month     Month
		Amount    Money
		UpdatedBy string
		UpdatedAt time.Time
	}

	// Payout is keyed by (MemberID, PeriodID).
	Payout struct {
		MemberID  string
		PeriodID  string
		Amount    Money
		UpdatedBy string
		UpdatedAt time.Time
	}

	AuditFact struct {
		ID       string
		ActorID  string
		Action   AuditAction
		Table    string
		RecordID string
		At       time.Time
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyName     = errors.New("empty name")
	ErrNameTooLong   = errors.New("name too long (max 100 characters)")
	ErrEmptyMember   = errors.New("empty member reference")
	ErrUnknownMember = errors.New("unknown member")
	ErrEmptyPeriod   = errors.New("empty period reference")
	ErrInvalidYear   = errors.New("invalid year")
	ErrInvalidRole   = errors.New("invalid role")
	ErrInvalidMonth  = errors.New("invalid month")
	ErrNotFound      = errors.New("not found")
)

// Validate rejects negative amounts and amounts above MaxAmountCents.
// Zero is a valid recorded amount.
func (m Money) Validate() error {
	if m.Cents < 0 || m.Cents > MaxAmountCents {
		return ErrInvalidAmount
	}
	return nil
}

// Add returns the sum of two amounts.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

func (m Member) Validate() error {
	name := strings.TrimSpace(m.Name)
	if name == "" {
		return &ValidationError{Field: "name", Err: ErrEmptyName}
	}
	if len(name) > 100 {
		return &ValidationError{Field: "name", Err: ErrNameTooLong}
	}
	if !m.Role.IsValid() {
		return &ValidationError{Field: "role", Err: ErrInvalidRole}
	}
	return nil
}

func (p Period) Validate() error {
	if p.Year < 1970 || p.Year > 9999 {
		return &ValidationError{Field: "year", Err: ErrInvalidYear}
	}
	return nil
}

// Initialized reports whether the period has a start month.
func (p Period) Initialized() bool {
	return p.StartMonth != nil
}

func (c Contribution) Validate() error {
	if strings.TrimSpace(c.MemberID) == "" {
		return &ValidationError{Field: "member_id", Err: ErrEmptyMember}
	}
	if strings.TrimSpace(c.PeriodID) == "" {
		return &ValidationError{Field: "period_id", Err: ErrEmptyPeriod}
	}
	if c.Month.IsZero() {
		return &ValidationError{Field: "month", Err: ErrInvalidMonth}
	}
	if err := c.Amount.Validate(); err != nil {
		return &ValidationError{Field: "amount", Err: err}
	}
	return nil
}

func (p Payout) Validate() error {
	if strings.TrimSpace(p.MemberID) == "" {
		return &ValidationError{Field: "member_id", Err: ErrEmptyMember}
	}
	if strings.TrimSpace(p.PeriodID) == "" {
		return &ValidationError{Field: "period_id", Err: ErrEmptyPeriod}
	}
	if err := p.Amount.Validate(); err != nil {
		return &ValidationError{Field: "amount", Err: err}
	}
	return nil
}

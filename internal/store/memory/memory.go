package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"mkoba/internal/core"
	"mkoba/internal/store"
)

var _ store.Store = (*Store)(nil)

type contributionKey struct {
	member string
	period string
	month  core.Month
}

type payoutKey struct {
	member string
	period string
}

// Store keeps the whole ledger in process memory. It honours the same
// uniqueness and last-write-wins rules as the SQLite backend.
type Store struct {
	mu            sync.Mutex
	now           core.Clock
	periods       map[string]core.Period
	members       []core.Member
	contributions map[contributionKey]core.Contribution
	payouts       map[payoutKey]core.Payout
	audit         []core.AuditFact
}

func New() *Store {
	return &Store{
		now:           core.SystemClock,
		periods:       map[string]core.Period{},
		contributions: map[contributionKey]core.Contribution{},
		payouts:       map[payoutKey]core.Payout{},
	}
}

// NewFromFiles seeds members from seed_members.txt ("name[,phone[,role]]"
// per line) and periods from seed_periods.txt (one year per line). With no
// period seed a period for the current year is created.
func NewFromFiles(base string) *Store {
	s := New()
	now := s.now()
	for _, line := range readLines(filepath.Join(base, "seed_members.txt")) {
		fields := strings.Split(line, ",")
		m := core.Member{
			ID:        uuid.NewString(),
			Name:      strings.TrimSpace(fields[0]),
			Role:      core.RoleMember,
			Active:    true,
			CreatedAt: now,
		}
		if len(fields) > 1 {
			m.Phone = strings.TrimSpace(fields[1])
		}
		if len(fields) > 2 {
			if r, err := core.ParseRole(fields[2]); err == nil {
				m.Role = r
			}
		}
		if m.Validate() == nil {
			s.members = append(s.members, m)
		}
	}
	years := readLines(filepath.Join(base, "seed_periods.txt"))
	if len(years) == 0 {
		years = []string{strconv.Itoa(now.Year())}
	}
	for _, y := range years {
		year, err := strconv.Atoi(y)
		if err != nil {
			continue
		}
		p := core.Period{ID: uuid.NewString(), Year: year, CreatedAt: now}
		if p.Validate() == nil {
			s.periods[p.ID] = p
		}
	}
	return s
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) GetPeriod(_ context.Context, id string) (core.Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.periods[id]
	if !ok {
		return core.Period{}, fmt.Errorf("period %s: %w", id, core.ErrNotFound)
	}
	return clonePeriod(p), nil
}

func (s *Store) ListPeriods(context.Context) ([]core.Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Period, 0, len(s.periods))
	for _, p := range s.periods {
		out = append(out, clonePeriod(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) CreatePeriod(_ context.Context, p core.Period) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.periods[p.ID]; exists {
		return fmt.Errorf("period %s already exists", p.ID)
	}
	for _, existing := range s.periods {
		if existing.Year == p.Year {
			return fmt.Errorf("period for year %d already exists", p.Year)
		}
	}
	s.periods[p.ID] = clonePeriod(p)
	return nil
}

func (s *Store) SetPeriodStartMonth(_ context.Context, id string, m core.Month) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.periods[id]
	if !ok {
		return fmt.Errorf("period %s: %w", id, core.ErrNotFound)
	}
	if p.StartMonth != nil {
		return core.Conflict("period %s start month already set to %s", id, p.StartMonth)
	}
	p.StartMonth = &m
	s.periods[id] = p
	return nil
}

func (s *Store) SetPeriodHorizon(_ context.Context, id string, m core.Month) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.periods[id]
	if !ok {
		return fmt.Errorf("period %s: %w", id, core.ErrNotFound)
	}
	p.HorizonEnd = &m
	s.periods[id] = p
	return nil
}

func (s *Store) ListContributions(_ context.Context, periodID string) ([]core.Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Contribution
	for k, c := range s.contributions {
		if k.period == periodID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) UpsertContribution(_ context.Context, c core.Contribution) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = s.now()
	}
	s.contributions[contributionKey{member: c.MemberID, period: c.PeriodID, month: c.Month}] = c
	return nil
}

func (s *Store) ListMembers(context.Context) ([]core.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Member(nil), s.members...), nil
}

func (s *Store) GetMember(_ context.Context, id string) (core.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members {
		if m.ID == id {
			return m, nil
		}
	}
	return core.Member{}, fmt.Errorf("member %s: %w", id, core.ErrNotFound)
}

func (s *Store) CreateMember(_ context.Context, m core.Member) error {
	if err := m.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.members {
		if existing.ID == m.ID {
			return fmt.Errorf("member %s already exists", m.ID)
		}
	}
	s.members = append(s.members, m)
	return nil
}

func (s *Store) UpdateMember(_ context.Context, m core.Member) error {
	if err := m.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.members {
		if existing.ID == m.ID {
			m.CreatedAt = existing.CreatedAt
			s.members[i] = m
			return nil
		}
	}
	return fmt.Errorf("member %s: %w", m.ID, core.ErrNotFound)
}

func (s *Store) DeleteMember(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.members {
		if existing.ID == id {
			s.members = append(s.members[:i], s.members[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("member %s: %w", id, core.ErrNotFound)
}

func (s *Store) CountMemberContributions(_ context.Context, memberID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.contributions {
		if k.member == memberID {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountMemberPayouts(_ context.Context, memberID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.payouts {
		if k.member == memberID {
			n++
		}
	}
	return n, nil
}

func (s *Store) ListPayouts(_ context.Context, periodID string) ([]core.Payout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Payout
	for k, p := range s.payouts {
		if k.period == periodID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) UpsertPayout(_ context.Context, p core.Payout) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = s.now()
	}
	s.payouts[payoutKey{member: p.MemberID, period: p.PeriodID}] = p
	return nil
}

func (s *Store) RecordAudit(_ context.Context, f core.AuditFact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.audit {
		if existing.ID == f.ID {
			return nil
		}
	}
	s.audit = append(s.audit, f)
	return nil
}

func (s *Store) ListAudit(_ context.Context, limit int) ([]core.AuditFact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.AuditFact, 0, len(s.audit))
	for i := len(s.audit) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, s.audit[i])
	}
	return out, nil
}

// SetClock overrides the clock used to stamp records; tests only.
func (s *Store) SetClock(c core.Clock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = c
}

func clonePeriod(p core.Period) core.Period {
	if p.StartMonth != nil {
		m := *p.StartMonth
		p.StartMonth = &m
	}
	if p.HorizonEnd != nil {
		m := *p.HorizonEnd
		p.HorizonEnd = &m
	}
	return p
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	seen := map[string]struct{}{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}

package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"mkoba/internal/core"
)

func TestUpsertContributionIsIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()
	c := core.Contribution{
		MemberID:  "A",
		PeriodID:  "P",
		Month:     core.MustMonth("2025-01"),
		Amount:    core.Money{Cents: 500000},
		UpdatedBy: "editor",
	}
	for i := 0; i < 2; i++ {
		if err := s.UpsertContribution(ctx, c); err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
	}
	got, err := s.ListContributions(ctx, "P")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Amount.Cents != 500000 {
		t.Fatalf("expected one record of 500000, got %+v", got)
	}
}

func TestUpsertContributionLastWriteWins(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := core.Contribution{MemberID: "M1", PeriodID: "P1", Month: core.MustMonth("2025-02"), UpdatedBy: "e"}
	for _, cents := range []int64{100000, 200000} {
		c := base
		c.Amount = core.Money{Cents: cents}
		if err := s.UpsertContribution(ctx, c); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	got, _ := s.ListContributions(ctx, "P1")
	if len(got) != 1 || got[0].Amount.Cents != 200000 {
		t.Fatalf("expected 200000, got %+v", got)
	}
	if other, _ := s.ListContributions(ctx, "P2"); len(other) != 0 {
		t.Fatalf("expected no records for other period, got %+v", other)
	}
}

func TestUpsertContributionRejectsNegative(t *testing.T) {
	s := New()
	err := s.UpsertContribution(context.Background(), core.Contribution{
		MemberID: "M", PeriodID: "P", Month: core.MustMonth("2025-01"), Amount: core.Money{Cents: -1},
	})
	if err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestSetPeriodStartMonthOnce(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.CreatePeriod(ctx, core.Period{ID: "P", Year: 2025}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.SetPeriodStartMonth(ctx, "P", core.MustMonth("2025-01")); err != nil {
		t.Fatalf("first set: %v", err)
	}
	if err := s.SetPeriodStartMonth(ctx, "P", core.MustMonth("2025-03")); err == nil {
		t.Fatalf("expected second set to fail")
	}
	p, _ := s.GetPeriod(ctx, "P")
	if p.StartMonth == nil || p.StartMonth.String() != "2025-01" {
		t.Fatalf("start month changed: %+v", p.StartMonth)
	}
	if err := s.SetPeriodStartMonth(ctx, "missing", core.MustMonth("2025-01")); !core.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetPeriodReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.CreatePeriod(ctx, core.Period{ID: "P", Year: 2025})
	_ = s.SetPeriodStartMonth(ctx, "P", core.MustMonth("2025-01"))
	p, _ := s.GetPeriod(ctx, "P")
	*p.StartMonth = core.MustMonth("2030-01")
	again, _ := s.GetPeriod(ctx, "P")
	if again.StartMonth.String() != "2025-01" {
		t.Fatalf("store state leaked through returned period")
	}
}

func TestMembersAndAudit(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.CreateMember(ctx, core.Member{ID: "m1", Name: "Amina", Role: core.RoleMember}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreateMember(ctx, core.Member{ID: "m2", Name: "", Role: core.RoleMember}); err == nil {
		t.Fatalf("expected validation error")
	}
	_ = s.UpsertContribution(ctx, core.Contribution{MemberID: "m1", PeriodID: "P", Month: core.MustMonth("2025-01")})
	if n, _ := s.CountMemberContributions(ctx, "m1"); n != 1 {
		t.Fatalf("expected 1 contribution, got %d", n)
	}
	_ = s.UpsertPayout(ctx, core.Payout{MemberID: "m1", PeriodID: "P", Amount: core.Money{Cents: 100}})
	if n, _ := s.CountMemberPayouts(ctx, "m1"); n != 1 {
		t.Fatalf("expected 1 payout, got %d", n)
	}
	if err := s.DeleteMember(ctx, "m1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetMember(ctx, "m1"); !core.IsNotFound(err) {
		t.Fatalf("expected not found after delete, got %v", err)
	}

	for _, id := range []string{"a1", "a2", "a2", "a3"} {
		_ = s.RecordAudit(ctx, core.AuditFact{ID: id, Action: core.ActionUpdate})
	}
	facts, _ := s.ListAudit(ctx, 2)
	if len(facts) != 2 || facts[0].ID != "a3" || facts[1].ID != "a2" {
		t.Fatalf("unexpected audit order: %+v", facts)
	}
}

func TestNewFromFilesSeedsAndDedupe(t *testing.T) {
	dir := t.TempDir()
	// No files -> a single period for the current year, no members
	s := NewFromFiles(dir)
	periods, _ := s.ListPeriods(context.Background())
	if len(periods) != 1 {
		t.Fatalf("expected default period when files missing, got %d", len(periods))
	}

	mustWrite := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	mustWrite("seed_members.txt", "# header\nAmina,0712000000,mwenyekiti\nJuma\nAmina,0712000000,mwenyekiti\n\n")
	mustWrite("seed_periods.txt", "# header\n2024\n2025\n2025\n")

	s = NewFromFiles(dir)
	members, _ := s.ListMembers(context.Background())
	if len(members) != 2 || members[0].Name != "Amina" || members[0].Role != core.RoleChairperson {
		t.Fatalf("unexpected members: %+v", members)
	}
	if members[1].Role != core.RoleMember || !members[1].Active {
		t.Fatalf("unexpected default member: %+v", members[1])
	}
	periods, _ = s.ListPeriods(context.Background())
	if len(periods) != 2 || periods[0].Year != 2025 || periods[1].Year != 2024 {
		t.Fatalf("unexpected periods: %+v", periods)
	}
}

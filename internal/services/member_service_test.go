package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mkoba/internal/adapters"
	"mkoba/internal/core"
	"mkoba/internal/storage"
	"mkoba/internal/store"
	"mkoba/internal/store/memory"
)

func TestMemberService_CreateUpdateDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewMemberService(f.store, f.pub)
	svc.SetClock(fixedClock)
	sess := core.Session{ActorID: "sec", Role: core.RoleSecretary}

	m, err := svc.Create(ctx, sess, MemberInput{Name: "  Neema Mushi ", Phone: "0712", Active: true})
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, "Neema Mushi", m.Name)
	assert.Equal(t, core.RoleMember, m.Role, "role defaults to member")

	updated, err := svc.Update(ctx, sess, m.ID, MemberInput{Name: "Neema M.", Role: core.RoleTreasurer})
	require.NoError(t, err)
	assert.Equal(t, "Neema M.", updated.Name)
	assert.Equal(t, core.RoleTreasurer, updated.Role)
	assert.False(t, updated.Active)

	found, err := svc.List(ctx, "neema")
	require.NoError(t, err)
	require.Len(t, found, 1)

	require.NoError(t, svc.Delete(ctx, sess, m.ID))
	_, err = f.store.GetMember(ctx, m.ID)
	assert.True(t, core.IsNotFound(err))

	var actions []core.AuditAction
	for _, fact := range f.pub.facts {
		assert.Equal(t, TableMembers, fact.Table)
		actions = append(actions, fact.Action)
	}
	assert.Equal(t, []core.AuditAction{core.ActionCreate, core.ActionUpdate, core.ActionDelete}, actions)
}

func TestMemberService_DeleteBlockedByContributions(t *testing.T) {
	f := newFixture(t)
	f.initialize(t, "2025-01")
	ctx := context.Background()
	_, err := f.ledger.SetContribution(ctx, f.session(core.RoleTreasurer), f.amina.ID, core.MustMonth("2025-01"), core.Money{Cents: 100})
	require.NoError(t, err)

	svc := NewMemberService(f.store, f.pub)
	err = svc.Delete(ctx, core.Session{ActorID: "chair", Role: core.RoleChairperson}, f.amina.ID)
	var pe *core.PreconditionError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, core.KindState, pe.Kind)

	_, err = f.store.GetMember(ctx, f.amina.ID)
	assert.NoError(t, err)
}

func TestMemberService_DeleteBlockedByPayouts(t *testing.T) {
	backends := map[string]func(t *testing.T) store.Store{
		"memory": func(t *testing.T) store.Store { return memory.New() },
		"sqlite": func(t *testing.T) store.Store {
			repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "mkoba.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = repo.Close() })
			return repo
		},
	}
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := adapters.NewTimeoutStore(open(t), 0)
			require.NoError(t, st.CreatePeriod(ctx, core.Period{ID: "p2025", Year: 2025}))
			require.NoError(t, st.CreateMember(ctx, core.Member{ID: "m1", Name: "Amina", Role: core.RoleMember, Active: true}))

			ledgerSvc := NewLedgerService(st, &recordingPublisher{})
			ledgerSvc.SetClock(fixedClock)
			sess := core.Session{ActorID: "chair", Role: core.RoleChairperson, PeriodID: "p2025"}
			_, err := ledgerSvc.RecordPayout(ctx, sess, "m1", core.Money{Cents: 500000})
			require.NoError(t, err)

			svc := NewMemberService(st, &recordingPublisher{})
			err = svc.Delete(ctx, sess, "m1")
			var pe *core.PreconditionError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, core.KindState, pe.Kind)
			var se *core.StoreError
			assert.False(t, errors.As(err, &se), "a blocked delete is not a store failure")

			_, err = st.GetMember(ctx, "m1")
			require.NoError(t, err)
			summary, err := ledgerSvc.Summary(ctx, sess)
			require.NoError(t, err)
			assert.Equal(t, int64(500000), summary.TotalDisbursed.Cents)
		})
	}
}

func TestMemberService_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewMemberService(f.store, f.pub)

	_, err := svc.Create(ctx, core.Session{ActorID: "t", Role: core.RoleTreasurer}, MemberInput{Name: "X"})
	var pe *core.PreconditionError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, core.KindPermission, pe.Kind)

	sec := core.Session{ActorID: "sec", Role: core.RoleSecretary}
	_, err = svc.Create(ctx, sec, MemberInput{Name: "   "})
	var ve *core.ValidationError
	assert.ErrorAs(t, err, &ve)

	_, err = svc.Update(ctx, sec, "ghost", MemberInput{Name: "X"})
	assert.True(t, core.IsNotFound(err))

	err = svc.Delete(ctx, sec, "ghost")
	assert.True(t, core.IsNotFound(err))
	assert.Empty(t, f.pub.facts)
}

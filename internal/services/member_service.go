package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"mkoba/internal/core"
	"mkoba/internal/ledger"
	"mkoba/internal/log"
	"mkoba/internal/store"
)

// MemberInput is the editable part of a member record.
type MemberInput struct {
	Name   string
	Phone  string
	Role   core.Role
	Active bool
}

// MemberService manages the member directory.
type MemberService struct {
	store store.Store
	audit AuditPublisher
	now   core.Clock
}

func NewMemberService(st store.Store, audit AuditPublisher) *MemberService {
	if audit == nil {
		audit = NewStoreAuditPublisher(st)
	}
	return &MemberService{store: st, audit: audit, now: core.SystemClock}
}

// SetClock replaces the clock used to stamp new members.
func (s *MemberService) SetClock(c core.Clock) { s.now = c }

// List returns members whose name contains query, in creation order.
func (s *MemberService) List(ctx context.Context, query string) ([]core.Member, error) {
	members, err := s.store.ListMembers(ctx)
	if err != nil {
		return nil, err
	}
	return ledger.FilterMembers(members, query), nil
}

func (s *MemberService) Create(ctx context.Context, sess core.Session, in MemberInput) (core.Member, error) {
	if err := sess.RequireRole(core.CapManageMembers); err != nil {
		return core.Member{}, err
	}
	m := core.Member{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(in.Name),
		Phone:     strings.TrimSpace(in.Phone),
		Role:      in.Role,
		Active:    in.Active,
		CreatedAt: s.now(),
	}
	if m.Role == "" {
		m.Role = core.RoleMember
	}
	if err := m.Validate(); err != nil {
		return core.Member{}, err
	}
	if err := s.store.CreateMember(ctx, m); err != nil {
		return core.Member{}, err
	}
	logger(ctx).InfoContext(ctx, "Member created",
		log.FieldMemberID, m.ID,
		log.FieldRole, m.Role.String(),
		log.FieldActorID, sess.ActorID)
	publishFact(ctx, s.audit, s.now(), sess, core.ActionCreate, TableMembers, m.ID, "")
	return s.store.GetMember(ctx, m.ID)
}

// Update replaces the editable fields of member id.
func (s *MemberService) Update(ctx context.Context, sess core.Session, id string, in MemberInput) (core.Member, error) {
	if err := sess.RequireRole(core.CapManageMembers); err != nil {
		return core.Member{}, err
	}
	existing, err := s.store.GetMember(ctx, id)
	if err != nil {
		return core.Member{}, err
	}
	existing.Name = strings.TrimSpace(in.Name)
	existing.Phone = strings.TrimSpace(in.Phone)
	existing.Active = in.Active
	if in.Role != "" {
		existing.Role = in.Role
	}
	if err := existing.Validate(); err != nil {
		return core.Member{}, err
	}
	if err := s.store.UpdateMember(ctx, existing); err != nil {
		return core.Member{}, err
	}
	publishFact(ctx, s.audit, s.now(), sess, core.ActionUpdate, TableMembers, id, "")
	return s.store.GetMember(ctx, id)
}

// Delete removes a member that has no recorded contributions or payouts.
// Members with history must be deactivated instead.
func (s *MemberService) Delete(ctx context.Context, sess core.Session, id string) error {
	if err := sess.RequireRole(core.CapManageMembers); err != nil {
		return err
	}
	if _, err := s.store.GetMember(ctx, id); err != nil {
		return err
	}
	n, err := s.store.CountMemberContributions(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return core.Conflict("member %s has %d recorded contributions; deactivate instead", id, n)
	}
	n, err = s.store.CountMemberPayouts(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return core.Conflict("member %s has %d recorded payouts; deactivate instead", id, n)
	}
	if err := s.store.DeleteMember(ctx, id); err != nil {
		return err
	}
	publishFact(ctx, s.audit, s.now(), sess, core.ActionDelete, TableMembers, id, "")
	return nil
}

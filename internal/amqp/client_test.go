package amqp

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mkoba/internal/core"
)

func TestAuditFactMessage_RoundTrip(t *testing.T) {
	at := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	fact := core.AuditFact{
		ID:       "f1",
		ActorID:  "u1",
		Action:   core.ActionUpdate,
		Table:    "contributions",
		RecordID: "m1/p1/2025-02",
		At:       at,
	}

	body, err := NewAuditFactMessage(fact, "p1").ToJSON()
	require.NoError(t, err)

	msg, err := AuditFactMessageFromJSON(body)
	require.NoError(t, err)
	assert.Equal(t, "p1", msg.PeriodID)
	assert.False(t, msg.Timestamp.IsZero())

	got := msg.Fact()
	assert.True(t, at.Equal(got.At))
	got.At = at
	assert.Equal(t, fact, got)
}

func TestAuditFactMessageFromJSON_Invalid(t *testing.T) {
	_, err := AuditFactMessageFromJSON([]byte("not json"))
	assert.Error(t, err)

	_, err = AuditFactMessageFromJSON([]byte(`{"table":"contributions"}`))
	assert.ErrorIs(t, err, errMissingID)
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()
	body, err := NewAuditFactMessage(core.AuditFact{ID: "f1", Action: core.ActionCreate}, "").ToJSON()
	require.NoError(t, err)

	var seen []string
	ok := func(_ context.Context, m *AuditFactMessage) error {
		seen = append(seen, m.ID)
		return nil
	}
	failing := func(context.Context, *AuditFactMessage) error { return errors.New("store down") }

	assert.Equal(t, Ack, Dispatch(ctx, body, false, ok))
	assert.Equal(t, []string{"f1"}, seen)
	assert.Equal(t, Requeue, Dispatch(ctx, body, false, failing))
	assert.Equal(t, Reject, Dispatch(ctx, body, true, failing), "a second failure is dropped")
	assert.Equal(t, Reject, Dispatch(ctx, []byte("{"), false, ok))
	assert.Len(t, seen, 1, "undecodable messages never reach the handler")
}

func TestDispatch_PermanentFailuresAreRejected(t *testing.T) {
	ctx := context.Background()
	body, err := NewAuditFactMessage(core.AuditFact{ID: "f2", Action: core.ActionUpdate}, "gone").ToJSON()
	require.NoError(t, err)

	for name, handlerErr := range map[string]error{
		"unknown period": fmt.Errorf("period gone: %w", core.ErrNotFound),
		"invalid":        core.Invalid("month", core.ErrInvalidMonth),
		"precondition":   core.Conflict("ledger for 2025 is not initialized"),
	} {
		t.Run(name, func(t *testing.T) {
			failing := func(context.Context, *AuditFactMessage) error { return handlerErr }
			assert.Equal(t, Reject, Dispatch(ctx, body, false, failing))
		})
	}
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient("amqp://invalid-host-that-does-not-exist:5672/", "ex", "q")
	assert.Error(t, err)
}

package cli

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mkoba/internal/core"
	"mkoba/internal/services"
	"mkoba/internal/store/memory"
)

func fixedClock() time.Time { return time.Date(2025, 3, 20, 8, 0, 0, 0, time.UTC) }

// testApp wires an App over a memory store holding one uninitialized 2025
// period and a single member.
func testApp(t *testing.T) (*App, *memory.Store) {
	t.Helper()
	st := memory.New()
	st.SetClock(fixedClock)
	ctx := context.Background()
	require.NoError(t, st.CreatePeriod(ctx, core.Period{ID: "p2025", Year: 2025}))
	require.NoError(t, st.CreateMember(ctx, core.Member{ID: "m1", Name: "Amina", Role: core.RoleMember, Active: true}))

	ledgerSvc := services.NewLedgerService(st, nil)
	ledgerSvc.SetClock(fixedClock)
	memberSvc := services.NewMemberService(st, nil)
	memberSvc.SetClock(fixedClock)
	return &App{Ledger: ledgerSvc, Members: memberSvc, Now: fixedClock}, st
}

// executeCmd runs a cobra command and captures stdout/stderr.
func executeCmd(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(app)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestMonthsCmd(t *testing.T) {
	app, _ := testApp(t)

	out, err := executeCmd(t, app, "months", "--start", "2025-01")
	require.NoError(t, err)
	assert.Equal(t, "2025-01\n2025-02\n2025-03\n", out)

	out, err = executeCmd(t, app, "months", "--start", "2025-06")
	require.NoError(t, err)
	assert.Empty(t, out, "a future start yields no months")

	_, err = executeCmd(t, app, "months", "--start", "June")
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "month", ve.Field)
}

func TestMonthsCmd_RequiresStart(t *testing.T) {
	app, _ := testApp(t)
	_, err := executeCmd(t, app, "months")
	assert.ErrorContains(t, err, `"start" not set`)
}

func TestLedgerLifecycle(t *testing.T) {
	app, st := testApp(t)

	out, err := executeCmd(t, app, "ledger", "--period", "p2025")
	require.NoError(t, err)
	assert.Contains(t, out, "not initialized")

	out, err = executeCmd(t, app, "--role", "treasurer", "--actor", "u-7", "init", "--period", "p2025", "--start", "2025-02")
	require.NoError(t, err)
	assert.Contains(t, out, "2025-02")
	assert.Contains(t, out, "2025-03")

	out, err = executeCmd(t, app, "--role", "mweka_hazina", "--actor", "u-7",
		"set", "--period", "p2025", "--member", "m1", "--month", "2025-03", "--amount", "1234.5")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "Amina")
	assert.Contains(t, lines[1], "1,234.50")
	assert.True(t, strings.HasPrefix(lines[2], "GRAND TOTAL"))

	cs, err := st.ListContributions(context.Background(), "p2025")
	require.NoError(t, err)
	require.Len(t, cs, 1)
	assert.Equal(t, "u-7", cs[0].UpdatedBy)

	out, err = executeCmd(t, app, "periods")
	require.NoError(t, err)
	assert.Contains(t, out, "p2025")
	assert.Contains(t, out, "2025-02")

	out, err = executeCmd(t, app, "summary", "--period", "p2025")
	require.NoError(t, err)
	assert.Contains(t, out, "1,234.50")
	assert.Contains(t, out, "100%")
}

func TestMembersCmd(t *testing.T) {
	app, _ := testApp(t)

	out, err := executeCmd(t, app, "members", "-q", "ami")
	require.NoError(t, err)
	assert.Contains(t, out, "m1")
	assert.Contains(t, out, "Amina")

	out, err = executeCmd(t, app, "members", "-q", "zz")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "\n"), "header only")
}

func TestSetCmd_MemberRoleDenied(t *testing.T) {
	app, st := testApp(t)
	require.NoError(t, st.SetPeriodStartMonth(context.Background(), "p2025", core.MustMonth("2025-01")))

	_, err := executeCmd(t, app, "set", "--period", "p2025", "--member", "m1", "--month", "2025-01", "--amount", "10")
	var pe *core.PreconditionError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, core.KindPermission, pe.Kind)

	_, err = executeCmd(t, app, "--role", "emperor", "set", "--period", "p2025", "--member", "m1", "--month", "2025-01", "--amount", "10")
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "role", ve.Field)
}

func TestExportCmd(t *testing.T) {
	app, st := testApp(t)
	require.NoError(t, st.SetPeriodStartMonth(context.Background(), "p2025", core.MustMonth("2025-01")))
	dir := filepath.Join(t.TempDir(), "out")

	out, err := executeCmd(t, app, "export", "--period", "p2025", "--from", "2025-02", "--out", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "MKoba_Payments.xlsx")
	assert.FileExists(t, filepath.Join(dir, "MKoba_Payments.xlsx"))

	pdf, err := os.ReadFile(filepath.Join(dir, "MKoba_Payments.pdf"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))

	_, err = executeCmd(t, app, "export", "--period", "p2025", "--from", "2025-03", "--to", "2025-01", "--out", dir)
	var ve *core.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger(&buf, "warn", "cli")
	t.Cleanup(func() { slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil))) })

	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown")
	assert.Contains(t, buf.String(), "component=cli")
}

func TestLoadAndValidateConfig(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATA_BACKEND", "memory")
	cfg, err := LoadAndValidateConfig()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)

	t.Setenv("DATA_BACKEND", "postgres")
	_, err = LoadAndValidateConfig()
	assert.ErrorContains(t, err, "invalid data backend")
}

package cli

import (
	"github.com/spf13/cobra"

	"mkoba/internal/core"
	"mkoba/internal/services"
)

// App holds the services the mkobactl commands run against.
type App struct {
	Ledger  *services.LedgerService
	Members *services.MemberService
	Now     core.Clock
}

// identity is bound to the persistent --actor and --role flags.
type identity struct {
	actor string
	role  string
}

func (id *identity) session(periodID string) (core.Session, error) {
	role, err := core.ParseRole(id.role)
	if err != nil {
		return core.Session{}, err
	}
	return core.Session{ActorID: id.actor, Role: role, PeriodID: periodID}, nil
}

// NewRootCmd creates the top-level "mkobactl" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	if app.Now == nil {
		app.Now = core.SystemClock
	}
	id := &identity{}

	root := &cobra.Command{
		Use:           "mkobactl",
		Short:         "Inspect and edit the group contribution ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&id.actor, "actor", "mkobactl", "Actor ID recorded in audit facts")
	root.PersistentFlags().StringVar(&id.role, "role", string(core.RoleMember), "Role to act as (member, secretary, treasurer, chairperson)")

	root.AddCommand(
		newMonthsCmd(app),
		newPeriodsCmd(app),
		newMembersCmd(app),
		newLedgerCmd(app, id),
		newSetCmd(app, id),
		newInitCmd(app, id),
		newSummaryCmd(app, id),
		newExportCmd(app, id),
	)

	return root
}

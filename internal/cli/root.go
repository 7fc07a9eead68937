package cli

import (
	"context"
	"fmt"

	"github.com/fekuna/omnipos-inventory-service/config"
	"github.com/fekuna/omnipos-inventory-service/internal/app"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Actor   string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for stockctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "stockctl",
		Short: "Operate the inventory stock ledger",
		Long: `stockctl reads and changes inventory records directly against the
ledger database configured through the service's environment (DB_DRIVER,
POSTGRES_*, SQLITE_PATH, ...). Every change goes through the same ledger
operations as the HTTP API, so movements are recorded the same way.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log ledger activity to stderr")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Actor, "actor", "", "user id recorded on stock movements")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewAdjustCommand(opts))
	cmd.AddCommand(NewReserveCommand(opts))
	cmd.AddCommand(NewReleaseCommand(opts))
	cmd.AddCommand(NewCountCommand(opts))
	cmd.AddCommand(NewThresholdsCommand(opts))
	cmd.AddCommand(NewMovementsCommand(opts))
	cmd.AddCommand(NewListCommand(opts, "low-stock", "List records at or below their low stock threshold"))
	cmd.AddCommand(NewListCommand(opts, "out-of-stock", "List records with nothing on hand"))
	cmd.AddCommand(NewListCommand(opts, "reorder", "List records at or below their reorder point"))
	cmd.AddCommand(NewReconcileCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// NewFormatterFor writes to cmd's stderr in the format selected on the
// command line. main uses it to report the error a command returned.
func NewFormatterFor(cmd *cobra.Command) *OutputFormatter {
	format, _ := cmd.PersistentFlags().GetString("format")
	return &OutputFormatter{Format: format, Writer: cmd.ErrOrStderr()}
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}

// open builds the ledger from the environment. Callers must Close it.
func (o *RootOptions) open(ctx context.Context) (*app.App, error) {
	cfg := config.LoadEnv()
	log := logger.NewNop()
	if o.Verbose {
		log = app.NewLogger(cfg)
	}
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open ledger", err)
	}
	return a, nil
}

func parseOwner(kind, id string) (model.OwnerRef, error) {
	owner, err := model.NewOwnerRef(kind, id)
	if err != nil {
		return model.OwnerRef{}, WrapExitError(ExitCommandError, "invalid owner", err)
	}
	return owner, nil
}

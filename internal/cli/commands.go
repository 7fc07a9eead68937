package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/app"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/spf13/cobra"
)

// ownerCommand runs fn against the ledger for the <kind> <id> arguments.
func ownerCommand(opts *RootOptions, cmd *cobra.Command, args []string, fn func(context.Context, *app.App, model.OwnerRef) error) error {
	owner, err := parseOwner(args[0], args[1])
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := opts.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a, owner)
}

func parseQuantity(raw string) (int64, error) {
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, WrapExitError(ExitCommandError, fmt.Sprintf("invalid quantity %q", raw), err)
	}
	return v, nil
}

func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the ledger tables if they do not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			out := opts.formatter(cmd)
			if out.JSON() {
				return out.Success(map[string]string{"driver": a.Config.Database.Driver})
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", a.Config.Database.Driver)
			return err
		},
	}
}

func NewShowCommand(opts *RootOptions) *cobra.Command {
	var resolve bool
	cmd := &cobra.Command{
		Use:   "show <kind> <id>",
		Short: "Show the inventory record of a product or variant",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ownerCommand(opts, cmd, args, func(ctx context.Context, a *app.App, owner model.OwnerRef) error {
				get := a.Inventory.GetInventory
				if resolve {
					get = a.Inventory.ResolveOrCreate
				}
				rec, err := get(ctx, owner)
				if err != nil {
					return ledgerExit("show failed", err)
				}
				return opts.formatter(cmd).Record(rec)
			})
		},
	}
	cmd.Flags().BoolVar(&resolve, "resolve", false, "create an empty record if none exists")
	return cmd
}

func NewAdjustCommand(opts *RootOptions) *cobra.Command {
	var reason, notes string
	cmd := &cobra.Command{
		Use:   "adjust <kind> <id> <delta>",
		Short: "Change the on-hand quantity and record a movement",
		Example: `  stockctl adjust product 42 100 --reason purchase
  stockctl adjust variant 7 --reason damage --notes "crushed box" -- -3`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			delta, err := parseQuantity(args[2])
			if err != nil {
				return err
			}
			return ownerCommand(opts, cmd, args, func(ctx context.Context, a *app.App, owner model.OwnerRef) error {
				rec, err := a.Inventory.AdjustQuantity(ctx, &dto.AdjustQuantityInput{
					Owner:   owner,
					Delta:   delta,
					Reason:  model.Reason(reason),
					Notes:   notes,
					ActorID: opts.Actor,
				})
				if err != nil {
					return ledgerExit("adjust failed", err)
				}
				return opts.formatter(cmd).Record(rec)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "movement reason (purchase|sale|adjustment|return|transfer|damage|theft)")
	cmd.Flags().StringVar(&notes, "notes", "", "free text stored on the movement")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func NewReserveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reserve <kind> <id> <quantity>",
		Short: "Hold stock against available quantity",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := parseQuantity(args[2])
			if err != nil {
				return err
			}
			return ownerCommand(opts, cmd, args, func(ctx context.Context, a *app.App, owner model.OwnerRef) error {
				rec, err := a.Inventory.Reserve(ctx, owner, qty)
				if err != nil {
					return ledgerExit("reserve failed", err)
				}
				return opts.formatter(cmd).Record(rec)
			})
		},
	}
}

func NewReleaseCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "release <kind> <id> <quantity>",
		Short: "Return held stock to available",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := parseQuantity(args[2])
			if err != nil {
				return err
			}
			return ownerCommand(opts, cmd, args, func(ctx context.Context, a *app.App, owner model.OwnerRef) error {
				rec, err := a.Inventory.Release(ctx, owner, qty)
				if err != nil {
					return ledgerExit("release failed", err)
				}
				return opts.formatter(cmd).Record(rec)
			})
		},
	}
}

func NewCountCommand(opts *RootOptions) *cobra.Command {
	var notes string
	cmd := &cobra.Command{
		Use:   "count <kind> <id> <counted>",
		Short: "Record a physical count, setting the on-hand quantity",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			counted, err := parseQuantity(args[2])
			if err != nil {
				return err
			}
			return ownerCommand(opts, cmd, args, func(ctx context.Context, a *app.App, owner model.OwnerRef) error {
				rec, err := a.Inventory.PhysicalCount(ctx, &dto.PhysicalCountInput{
					Owner:           owner,
					CountedQuantity: counted,
					Notes:           notes,
					ActorID:         opts.Actor,
				})
				if err != nil {
					return ledgerExit("count failed", err)
				}
				return opts.formatter(cmd).Record(rec)
			})
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "free text stored on the movement")
	return cmd
}

func NewThresholdsCommand(opts *RootOptions) *cobra.Command {
	var low, point, qty int64
	cmd := &cobra.Command{
		Use:   "thresholds <kind> <id>",
		Short: "Set low stock and reorder levels",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := &dto.UpdateThresholdsInput{}
			if cmd.Flags().Changed("low") {
				input.LowStockThreshold = &low
			}
			if cmd.Flags().Changed("reorder-point") {
				input.ReorderPoint = &point
			}
			if cmd.Flags().Changed("reorder-quantity") {
				input.ReorderQuantity = &qty
			}
			return ownerCommand(opts, cmd, args, func(ctx context.Context, a *app.App, owner model.OwnerRef) error {
				input.Owner = owner
				rec, err := a.Inventory.UpdateThresholds(ctx, input)
				if err != nil {
					return ledgerExit("thresholds failed", err)
				}
				return opts.formatter(cmd).Record(rec)
			})
		},
	}
	cmd.Flags().Int64Var(&low, "low", 0, "low stock threshold")
	cmd.Flags().Int64Var(&point, "reorder-point", 0, "reorder point, 0 disables reorder signals")
	cmd.Flags().Int64Var(&qty, "reorder-quantity", 0, "quantity to reorder")
	return cmd
}

func NewMovementsCommand(opts *RootOptions) *cobra.Command {
	var (
		reason         string
		since, until   string
		page, pageSize int
	)
	cmd := &cobra.Command{
		Use:   "movements <kind> <id>",
		Short: "List stock movements, newest first",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			filters := &dto.MovementFilters{Reason: model.Reason(reason), Page: page, PageSize: pageSize}
			var err error
			if filters.StartDate, err = parseTime("since", since); err != nil {
				return err
			}
			if filters.EndDate, err = parseTime("until", until); err != nil {
				return err
			}
			return ownerCommand(opts, cmd, args, func(ctx context.Context, a *app.App, owner model.OwnerRef) error {
				filters.Owner = &owner
				items, total, err := a.Inventory.ListMovements(ctx, filters)
				if err != nil {
					return ledgerExit("movements failed", err)
				}
				return opts.formatter(cmd).Movements(items, total)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "only movements with this reason")
	cmd.Flags().StringVar(&since, "since", "", "RFC3339 lower bound on creation time")
	cmd.Flags().StringVar(&until, "until", "", "RFC3339 upper bound on creation time")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", dto.DefaultPageSize, "page size")
	return cmd
}

// NewListCommand builds one of the stock level listings; name selects which.
func NewListCommand(opts *RootOptions, name, short string) *cobra.Command {
	var (
		ownerKind      string
		page, pageSize int
	)
	cmd := &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			list := a.Inventory.ListLowStock
			switch name {
			case "out-of-stock":
				list = a.Inventory.ListOutOfStock
			case "reorder":
				list = a.Inventory.ListReorderNeeded
			}
			items, total, err := list(cmd.Context(), &dto.InventoryFilters{
				OwnerKind: model.OwnerKind(ownerKind),
				Page:      page,
				PageSize:  pageSize,
			})
			if err != nil {
				return ledgerExit(name+" failed", err)
			}
			return opts.formatter(cmd).Records(items, total)
		},
	}
	cmd.Flags().StringVar(&ownerKind, "owner-kind", "", "only products or only variants")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", dto.DefaultPageSize, "page size")
	return cmd
}

func NewReconcileCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <kind> <id>",
		Short: "Replay movements and compare with the recorded quantity",
		Long: `Replay every movement of a record from zero and compare the result with
the quantity stored on the record.

Exit codes:
  0 - quantities match
  1 - drift detected or the record does not exist
  2 - command error`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ownerCommand(opts, cmd, args, func(ctx context.Context, a *app.App, owner model.OwnerRef) error {
				result, err := a.Inventory.Reconcile(ctx, owner)
				if err != nil {
					return ledgerExit("reconcile failed", err)
				}
				if err := opts.formatter(cmd).Reconciliation(result); err != nil {
					return err
				}
				if !result.Consistent {
					return NewExitError(ExitFailure, fmt.Sprintf("%s drifted by %d", owner, result.RecordedQuantity-result.ReplayedQuantity))
				}
				return nil
			})
		},
	}
}

func parseTime(name, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("invalid --%s", name), err)
	}
	return &t, nil
}

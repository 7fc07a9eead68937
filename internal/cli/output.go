package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fekuna/omnipos-inventory-service/internal/inventory"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
)

// Exit codes for stockctl.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // ledger refused the operation or reconcile found drift
	ExitCommandError = 2 // bad arguments, unreachable database
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// ledgerExit classifies a ledger error: problems with the request are
// command errors, refusals and infrastructure failures are failures.
func ledgerExit(message string, err error) *ExitError {
	switch {
	case errors.Is(err, inventory.ErrInvalidOwner),
		errors.Is(err, inventory.ErrInvalidReason),
		errors.Is(err, inventory.ErrInvalidQuantity):
		return WrapExitError(ExitCommandError, message, err)
	}
	return WrapExitError(ExitFailure, message, err)
}

// CLIResponse is the JSON envelope for --format json.
type CLIResponse struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
}

type OutputFormatter struct {
	Format string
	Writer io.Writer
}

func (f *OutputFormatter) JSON() bool {
	return f.Format == "json"
}

func (f *OutputFormatter) Success(data interface{}) error {
	return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
}

func (f *OutputFormatter) Error(err error) error {
	if f.JSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "error", Error: err.Error()})
	}
	_, werr := fmt.Fprintf(f.Writer, "Error: %v\n", err)
	return werr
}

func (f *OutputFormatter) Record(rec *model.InventoryRecord) error {
	if f.JSON() {
		return f.Success(rec)
	}
	tw := tabwriter.NewWriter(f.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "owner\t%s\n", rec.Owner())
	fmt.Fprintf(tw, "id\t%s\n", rec.ID)
	fmt.Fprintf(tw, "quantity\t%d\n", rec.Quantity)
	fmt.Fprintf(tw, "reserved\t%d\n", rec.ReservedQuantity)
	fmt.Fprintf(tw, "available\t%d\n", rec.AvailableQuantity())
	fmt.Fprintf(tw, "status\t%s\n", rec.Status())
	fmt.Fprintf(tw, "low stock threshold\t%d\n", rec.LowStockThreshold)
	fmt.Fprintf(tw, "reorder point\t%d\n", rec.ReorderPoint)
	fmt.Fprintf(tw, "reorder quantity\t%d\n", rec.ReorderQuantity)
	if rec.LastCountedAt != nil {
		fmt.Fprintf(tw, "last counted\t%s\n", rec.LastCountedAt.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

func (f *OutputFormatter) Records(items []model.InventoryRecord, total int) error {
	if f.JSON() {
		return f.Success(map[string]interface{}{"items": items, "total": total})
	}
	tw := tabwriter.NewWriter(f.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "OWNER\tQUANTITY\tRESERVED\tAVAILABLE\tSTATUS\tREORDER")
	for i := range items {
		rec := &items[i]
		reorder := "-"
		if signal := rec.Reorder(); signal.Needed {
			reorder = fmt.Sprintf("%d", signal.Quantity)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t%s\n",
			rec.Owner(), rec.Quantity, rec.ReservedQuantity, rec.AvailableQuantity(), rec.Status(), reorder)
	}
	fmt.Fprintf(tw, "%d of %d\n", len(items), total)
	return tw.Flush()
}

func (f *OutputFormatter) Movements(items []model.StockMovement, total int) error {
	if f.JSON() {
		return f.Success(map[string]interface{}{"items": items, "total": total})
	}
	tw := tabwriter.NewWriter(f.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tREASON\tDIR\tBEFORE\tAFTER\tDIFF\tACTOR\tNOTES")
	for _, m := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%+d\t%s\t%s\n",
			m.CreatedAt.Format("2006-01-02 15:04:05"), m.Reason, m.Direction,
			m.QuantityBefore, m.QuantityAfter, m.QuantityDifference,
			deref(m.ActorID), deref(m.Notes))
	}
	fmt.Fprintf(tw, "%d of %d\n", len(items), total)
	return tw.Flush()
}

func (f *OutputFormatter) Reconciliation(r *model.Reconciliation) error {
	if f.JSON() {
		return f.Success(r)
	}
	state := "consistent"
	if !r.Consistent {
		state = "DRIFT"
	}
	_, err := fmt.Fprintf(f.Writer, "%s: recorded %d, replayed %d over %d movements\n",
		state, r.RecordedQuantity, r.ReplayedQuantity, r.MovementCount)
	return err
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

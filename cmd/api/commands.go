package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/datkrb/resfood-payments/internal/app"
	"github.com/datkrb/resfood-payments/internal/domain"
	"github.com/spf13/cobra"
)

func migrateCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the order store schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadWiring(*configFile)
			if err != nil {
				return err
			}
			defer rt.close()
			rt.logger.Info("schema up to date", "driver", rt.cfg.Store.Driver)
			return nil
		},
	}
}

type pollOutput struct {
	TransactionID  string          `json:"transaction_id"`
	Paid           bool            `json:"paid"`
	Status         json.RawMessage `json:"status"`
	Reconciliation *domain.Result  `json:"reconciliation,omitempty"`
}

// newPollOutput keeps the gateway body as returned; a parsed status without
// one is re-encoded.
func newPollOutput(transactionID string, out app.StatusReconciliation) (pollOutput, error) {
	raw := out.Status.Raw
	if len(raw) == 0 {
		var err error
		if raw, err = json.Marshal(out.Status); err != nil {
			return pollOutput{}, fmt.Errorf("encode status: %w", err)
		}
	}
	return pollOutput{
		TransactionID:  transactionID,
		Paid:           out.Status.Paid(),
		Status:         raw,
		Reconciliation: out.Result,
	}, nil
}

func pollCmd(configFile *string) *cobra.Command {
	var apply bool

	cmd := &cobra.Command{
		Use:   "poll [transaction-id]",
		Short: "Query the wallet gateway for a transaction, optionally reconciling it",
		Long: `Query the wallet gateway for one transaction id issued by this service.

With --apply a settled payment is reconciled exactly like a callback.

Examples:
  payments poll 250314_1710400000000_o1
  payments poll 250314_1710400000000_o1 --apply`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadWiring(*configFile)
			if err != nil {
				return err
			}
			defer rt.close()
			if rt.gateway == nil {
				return errors.New("wallet gateway is not configured")
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			var out app.StatusReconciliation
			if apply {
				out, err = rt.gateway.ReconcileStatus(ctx, args[0])
			} else {
				out.Status, err = rt.gateway.QueryStatus(ctx, args[0])
			}
			if err != nil {
				return fmt.Errorf("poll %s: %w", args[0], err)
			}
			res, err := newPollOutput(args[0], out)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "reconcile the order when the gateway reports it paid")
	return cmd
}

func seedOrderCmd(configFile *string) *cobra.Command {
	var (
		orderID string
		total   int64
	)

	cmd := &cobra.Command{
		Use:   "seed-order",
		Short: "Create an order in the CREATED state",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadWiring(*configFile)
			if err != nil {
				return err
			}
			defer rt.close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			order, err := rt.admin.CreateOrder(ctx, app.CreateOrderInput{OrderID: orderID, Total: total})
			if err != nil {
				return fmt.Errorf("seed order: %w", err)
			}
			return printJSON(cmd, order)
		},
	}

	cmd.Flags().StringVar(&orderID, "id", "", "order key (generated when empty)")
	cmd.Flags().Int64Var(&total, "total", 0, "order total in VND")
	_ = cmd.MarkFlagRequired("total")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

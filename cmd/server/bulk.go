package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/billing-engine/internal/application/service"
	"github.com/garyjia/billing-engine/internal/container"
	"github.com/garyjia/billing-engine/pkg/utils"
)

func newBulkCmd(a *app) *cobra.Command {
	var (
		ids    string
		action string
		actor  string
	)

	cmd := &cobra.Command{
		Use:     "bulk",
		Short:   "Apply a bulk status action to invoices and print the outcome as JSON",
		Example: `  billing-engine bulk --ids 3,5,8 --action MARK_PAID --actor ops@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			invoiceIDs, err := utils.ParseIDList(ids)
			if err != nil {
				return err
			}

			c, err := container.NewContainer(a.cfg.ToContainerConfig(), a.logger)
			if err != nil {
				return err
			}
			if err := c.Start(cmd.Context()); err != nil {
				return err
			}
			defer func() {
				if err := c.Close(); err != nil {
					a.logger.Error("Container close failed", zap.Error(err))
				}
			}()

			result, err := c.InvoiceService().BulkInvoiceAction(cmd.Context(), invoiceIDs,
				service.BulkAction(strings.ToUpper(action)), actor)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&ids, "ids", "", "comma-separated invoice ids")
	cmd.Flags().StringVar(&action, "action", "", "MARK_ISSUED, MARK_PAID or MARK_DRAFT")
	cmd.Flags().StringVar(&actor, "actor", "cli", "user recorded in the status history")
	_ = cmd.MarkFlagRequired("ids")
	_ = cmd.MarkFlagRequired("action")

	return cmd
}

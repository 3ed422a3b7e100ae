package main

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"saas-billing/internal/infra/adapters/payment"
	"saas-billing/internal/usecase"
)

// newSignCmd prints the checkout fields the client would post to
// /api/payments/verify-payment. Pairs with `serve --noop-gateway`.
func newSignCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sign <order-id> [payment-id]",
		Short: "Sign a checkout result for verify-payment (developer mode only)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.dev {
				return errors.New("sign requires --dev")
			}
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			orderID := args[0]
			paymentID := payment.NoopPaymentID(orderID)
			if len(args) == 2 {
				paymentID = args[1]
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]string{
				"razorpay_order_id":   orderID,
				"razorpay_payment_id": paymentID,
				"razorpay_signature":  usecase.SignPayment(cfg.Payment.Razorpay.KeySecret, orderID, paymentID),
			})
		},
	}
}

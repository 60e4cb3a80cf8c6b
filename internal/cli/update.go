package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"autoshield/internal/registry/handler"
	"autoshield/internal/registry/models"
)

type UpdateOptions struct {
	*RootOptions
	Status      string
	Attestation string
	Confidence  uint64
}

func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UpdateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update ADDRESS",
		Short: "Record a verification outcome (authority only)",
		Long: `Record a verification outcome for an account.

Examples:
  autoshieldctl update 0xAbC... --status verified --attestation 0x12ab --confidence 9000
  autoshieldctl update 0xAbC... --status 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Token == "" {
				return errors.New("update needs a bearer token: pass --token or set AUTOSHIELD_TOKEN")
			}
			status, err := models.ParseStatus(opts.Status)
			if err != nil {
				return fmt.Errorf("--status %q: must be unverified, verified, suspected or 0-2", opts.Status)
			}
			code := int(status.Code())

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
			defer cancel()

			var resp handler.UpdateVerificationResponse
			err = newAPIClient(opts.RootOptions).post(ctx, "/v1/verifications", handler.UpdateVerificationRequest{
				Address:         args[0],
				Status:          &code,
				AttestationHash: opts.Attestation,
				ConfidenceScore: opts.Confidence,
			}, &resp)
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (seq %d, total writes %d)\n",
				resp.Address, resp.StatusName, resp.Sequence, resp.Count)
			return err
		},
	}
	cmd.Flags().StringVar(&opts.Status, "status", "", "status name or code (required)")
	_ = cmd.MarkFlagRequired("status")
	cmd.Flags().StringVar(&opts.Attestation, "attestation", "", "attestation reference")
	cmd.Flags().Uint64Var(&opts.Confidence, "confidence", 0, "confidence score")
	return cmd
}

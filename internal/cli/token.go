package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	jwttoken "autoshield/internal/jwt_token"
	"autoshield/pkg/domain"
)

type TokenOptions struct {
	*RootOptions
	Caller     string
	SigningKey string
	Issuer     string
	TTL        time.Duration
}

// NewTokenCommand mints a bearer token for a caller address. It needs the
// server's signing key, so it is meant for operators of the authority process.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for a caller address",
		Long: `Mint a bearer token that authenticates as the given caller.

The registry accepts writes only from its authority address, so a token
for any other caller will authenticate but be rejected with 403.

Examples:
  autoshieldctl token --caller 0xAbC... --signing-key "$JWT_SIGNING_KEY"
  export AUTOSHIELD_TOKEN=$(autoshieldctl token --caller 0xAbC...)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := domain.ParseAddress(opts.Caller)
			if err != nil {
				return fmt.Errorf("--caller: %w", err)
			}
			svc := jwttoken.NewJWTService(opts.SigningKey, opts.Issuer)
			token, err := svc.GenerateCallerToken(caller, opts.TTL)
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"token":      token,
					"caller":     caller.String(),
					"expires_in": int64(opts.TTL.Seconds()),
				})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&opts.Caller, "caller", os.Getenv("AUTHORITY_ADDRESS"), "caller address (default $AUTHORITY_ADDRESS)")
	cmd.Flags().StringVar(&opts.SigningKey, "signing-key", os.Getenv("JWT_SIGNING_KEY"), "JWT signing key (default $JWT_SIGNING_KEY)")
	cmd.Flags().StringVar(&opts.Issuer, "issuer", envOr("JWT_ISSUER", "autoshield"), "JWT issuer")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 15*time.Minute, "token lifetime")

	return cmd
}

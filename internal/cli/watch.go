package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"autoshield/internal/notification"
	"autoshield/internal/platform/kafka/consumer"
)

type WatchOptions struct {
	*RootOptions
	Brokers   string
	Topic     string
	Group     string
	FromStart bool
}

// NewWatchCommand tails registry change notifications from Kafka.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Tail verification change notifications from Kafka",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			brokers := splitBrokers(opts.Brokers)
			if len(brokers) == 0 {
				return fmt.Errorf("--brokers is required (or set KAFKA_BROKERS)")
			}
			c, err := consumer.New(consumer.Config{
				Brokers:   brokers,
				Topics:    []string{opts.Topic},
				Group:     opts.Group,
				FromStart: opts.FromStart,
			}, nil)
			if err != nil {
				return err
			}
			defer c.Close()

			out := cmd.OutOrStdout()
			return c.Run(cmd.Context(), consumer.HandlerFunc(func(_ context.Context, msg *consumer.Message) error {
				n, err := notification.Decode(msg.Value)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "skipping %s/%d@%d: %v\n", msg.Topic, msg.Partition, msg.Offset, err)
					return nil
				}
				if opts.Format == "json" {
					return writeJSON(out, map[string]any{
						"id":               n.ID.String(),
						"user":             n.Address.String(),
						"status":           n.Status.String(),
						"attestation_hash": n.AttestationRef,
						"confidence_score": n.ConfidenceScore,
						"sequence":         n.Sequence,
						"timestamp":        n.Timestamp,
					})
				}
				_, err = fmt.Fprintf(out, "#%d %s %s %s confidence=%d\n",
					n.Sequence, n.Timestamp.UTC().Format("2006-01-02T15:04:05Z"), n.Address.String(), n.Status.String(), n.ConfidenceScore)
				return err
			}))
		},
	}
	cmd.Flags().StringVar(&opts.Brokers, "brokers", os.Getenv("KAFKA_BROKERS"), "comma-separated Kafka brokers")
	cmd.Flags().StringVar(&opts.Topic, "topic", envOr("KAFKA_TOPIC", "verification-updates"), "notification topic")
	cmd.Flags().StringVar(&opts.Group, "group", "", "consumer group; empty reads without committing offsets")
	cmd.Flags().BoolVar(&opts.FromStart, "from-start", false, "read the topic from the beginning")
	return cmd
}

func splitBrokers(v string) []string {
	var out []string
	for _, b := range strings.Split(v, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

package cli

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"autoshield/internal/registry/handler"
)

type HistoryOptions struct {
	*RootOptions
	Cursor uint64
	Limit  int
	All    bool
}

// NewHistoryCommand prints an account's history oldest first, one page at a
// time or, with --all, following cursors to the end.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history ADDRESS",
		Short: "Show an account's verification history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, opts, args[0])
		},
	}
	cmd.Flags().Uint64Var(&opts.Cursor, "cursor", 0, "return entries after this sequence number")
	cmd.Flags().IntVar(&opts.Limit, "limit", 100, "entries per page")
	cmd.Flags().BoolVar(&opts.All, "all", false, "follow cursors until the history is exhausted")
	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions, address string) error {
	client := newAPIClient(opts.RootOptions)
	cursor := opts.Cursor
	var entries []handler.HistoryEntryResponse
	var next *uint64

	for {
		ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
		q := url.Values{}
		q.Set("cursor", strconv.FormatUint(cursor, 10))
		q.Set("limit", strconv.Itoa(opts.Limit))
		var page handler.HistoryPageResponse
		err := client.get(ctx, "/v1/verifications/"+url.PathEscape(address)+"/history/page?"+q.Encode(), &page)
		cancel()
		if err != nil {
			return err
		}
		entries = append(entries, page.Entries...)
		next = page.NextCursor
		if !opts.All || next == nil {
			break
		}
		cursor = *next
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), handler.HistoryPageResponse{Address: address, Entries: entries, NextCursor: next})
	}
	w := newTable(cmd.OutOrStdout())
	fmt.Fprintln(w, "SEQ\tTIMESTAMP\tSTATUS\tCONFIDENCE")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", e.Seq, formatUnix(e.Timestamp), statusName(e.Status), e.ConfidenceScore)
	}
	if next != nil {
		fmt.Fprintf(w, "\nmore entries: --cursor %d\n", *next)
	}
	return w.Flush()
}

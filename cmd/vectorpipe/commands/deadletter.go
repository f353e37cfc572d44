package commands

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewDeadletterCmd creates the deadletter command group.
func NewDeadletterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deadletter",
		Short: "Inspect and requeue dead-lettered work items",
	}
	cmd.AddCommand(newDeadletterListCmd(), newDeadletterRequeueCmd())
	return cmd
}

func newDeadletterListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List dead-lettered items",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			letters, err := store.ListDeadLetters(ctx, limit)
			if err != nil {
				return err
			}
			if len(letters) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No dead letters.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCHUNK\tDOC\tATTEMPTS\tWHEN\tLAST ERROR")
			for _, dl := range letters {
				fmt.Fprintf(w, "%d\t%.12s\t%.12s\t%d\t%s\t%s\n",
					dl.ID, dl.Item.ChunkID, dl.Item.DocID, dl.Attempts,
					dl.DeadLetteredAt.Format("2006-01-02 15:04:05"), dl.LastError)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum items to show")
	return cmd
}

func newDeadletterRequeueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "requeue <id>...",
		Short: "Put dead-lettered items back on the work queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid dead letter id %q", arg)
				}
				if err := store.RequeueDeadLetter(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "requeued %d\n", id)
			}
			return nil
		},
	}
}

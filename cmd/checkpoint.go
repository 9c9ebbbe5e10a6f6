package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/JakeFAU/keyword-crawler/internal/config"
)

// newCheckpointCmd groups checkpoint inspection commands.
func newCheckpointCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect saved crawl state",
	}
	cmd.AddCommand(newCheckpointShowCmd())
	return cmd
}

func newCheckpointShowCmd() *cobra.Command {
	v := viper.New()
	var listFrontier bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the size of each checkpointed set",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadWith(v, resolveConfigPath())
			if err != nil {
				return err
			}
			store, closeStore, err := buildCheckpointStore(cmd.Context(), cfg.Checkpoint)
			if err != nil {
				return fmt.Errorf("init checkpoint store: %w", err)
			}
			defer closeStore()

			snap, err := store.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("load checkpoint: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "backend:   %s\n", cfg.Checkpoint.Backend)
			fmt.Fprintf(out, "frontier:  %d\n", len(snap.Frontier))
			fmt.Fprintf(out, "processed: %d\n", len(snap.Processed))
			fmt.Fprintf(out, "links:     %d\n", len(snap.Links))
			if listFrontier {
				for _, kw := range snap.Frontier {
					fmt.Fprintln(out, kw)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&listFrontier, "frontier", false, "also list pending keywords")
	cmd.Flags().String("checkpoint-dir", "", "checkpoint directory for the file backend")
	_ = v.BindPFlag("checkpoint.dir", cmd.Flags().Lookup("checkpoint-dir"))
	return cmd
}

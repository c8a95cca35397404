package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent governance runs from the registry ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := ctx.profileStore(false)
			if err != nil {
				return err
			}

			if store == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No recorded runs")

				return nil
			}

			runs, err := store.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No recorded runs")

				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					run.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					run.Style,
					strconv.Itoa(run.Frames),
					strconv.Itoa(run.Dims),
					yesNo(run.Compact),
					yesNo(run.Governed),
					strconv.Itoa(run.PauseFrames),
					strconv.Itoa(run.EmphasisFrames),
				})
			}

			headers := []string{"When", "Style", "Frames", "Dims", "Compact", "Governed", "Pause", "Emphasis"}
			aligns := []columnAlignment{
				alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft, alignRight, alignRight,
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(cmd.OutOrStdout(), headers, rows, aligns))

			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")

	return cmd
}

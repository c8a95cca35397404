package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/book-expert/motion-governor/internal/intent"
	"github.com/book-expert/motion-governor/internal/pathutil"
)

func newTimingCommand(_ *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timing",
		Short: "Inspect timing maps",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newTimingMaskCommand())

	return cmd
}

func newTimingMaskCommand() *cobra.Command {
	var (
		timingPath string
		dump       bool
	)

	cmd := &cobra.Command{
		Use:   "mask",
		Short: "Render a timing map's script intent and print its statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if timingPath == "" {
				return errors.New("--timing is required")
			}

			timing, err := intent.LoadTimingMap(timingPath)
			if err != nil {
				return err
			}

			mask := timing.BuildIntentMask()
			stats := intent.Stats(mask)
			ends := timing.SentenceEndFrames()

			endList := make([]string, 0, len(ends))
			for _, frame := range ends {
				endList = append(endList, strconv.Itoa(frame))
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderPairs(cmd.OutOrStdout(), [][2]string{
				{"Segments", strconv.Itoa(len(timing.Segments))},
				{"Duration", pathutil.FormatDuration(timing.TotalDuration)},
				{"FPS", formatFloat(timing.FPS)},
				{"Frames", strconv.Itoa(stats.Frames)},
				{"Pause frames", strconv.Itoa(stats.Pause)},
				{"Emphasis frames", strconv.Itoa(stats.Emphasis)},
				{"Sentence ends", strings.Join(endList, ",")},
			}))

			if dump {
				for i, level := range mask {
					fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", i, formatFloat(level))
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&timingPath, "timing", "", "Timing map JSON")
	cmd.Flags().BoolVar(&dump, "dump", false, "Also print the per-frame mask")

	return cmd
}

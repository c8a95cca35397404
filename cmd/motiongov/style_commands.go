package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/book-expert/motion-governor/internal/pathutil"
	"github.com/book-expert/motion-governor/internal/posetrack"
	"github.com/book-expert/motion-governor/internal/profilestore"
	"github.com/book-expert/motion-governor/internal/style"
)

var errNoRegistry = errors.New("no profile registry")

func newStyleCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "style",
		Short: "Inspect, derive and register style profiles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newStylePresetsCommand())
	cmd.AddCommand(newStyleShowCommand(ctx))
	cmd.AddCommand(newStyleListCommand(ctx))
	cmd.AddCommand(newStyleDeriveCommand(ctx))
	cmd.AddCommand(newStyleImportCommand(ctx))
	cmd.AddCommand(newStyleDeleteCommand(ctx))

	return cmd
}

func profileRow(p style.Profile, extra ...string) []string {
	row := []string{
		p.Name,
		fmt.Sprintf("%s/%s/%s", formatFloat(p.PoseMax.Yaw), formatFloat(p.PoseMax.Pitch), formatFloat(p.PoseMax.Roll)),
		formatFloat(p.ExprStrength),
		formatFloat(p.Smoothing),
		formatFloat(p.StillnessOnPause),
		formatFloat(p.NodRate),
	}

	return append(row, extra...)
}

var profileHeaders = []string{"Name", "Pose max (y/p/r)", "Expr strength", "Smoothing", "Pause stillness", "Nod rate"}

var profileAligns = []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight}

func newStylePresetsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List the built-in style presets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows := make([][]string, 0, len(style.PresetNames()))

			for _, name := range style.PresetNames() {
				profile, err := style.Preset(name)
				if err != nil {
					return err
				}

				rows = append(rows, profileRow(profile))
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(cmd.OutOrStdout(), profileHeaders, rows, profileAligns))

			return nil
		},
	}
}

func newStyleShowCommand(ctx *commandContext) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show NAME|FILE",
		Short: "Print a preset, registered profile or profile file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := lookupProfile(cmd, ctx, args[0])
			if err != nil {
				return err
			}

			data, err := style.Marshal(profile, style.Format(strings.ToLower(format)))
			if err != nil {
				return err
			}

			_, err = cmd.OutOrStdout().Write(data)

			return err
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(style.FormatTOML), "Output format: toml, json or yaml")

	return cmd
}

// lookupProfile resolves name strictly: unknown names are errors, not fallbacks.
func lookupProfile(cmd *cobra.Command, ctx *commandContext, name string) (style.Profile, error) {
	if style.IsPreset(name) {
		return style.Preset(name)
	}

	if pathutil.IsProfileFile(name) {
		path, err := pathutil.ResolveStyleFile(name)
		if err != nil {
			return style.Profile{}, err
		}

		return style.Load(path)
	}

	store, err := ctx.profileStore(false)
	if err != nil {
		return style.Profile{}, err
	}

	if store == nil {
		return style.Profile{}, fmt.Errorf("%w: %q is neither a preset nor a profile file", errNoRegistry, name)
	}

	entry, err := store.Get(cmd.Context(), name)
	if err != nil {
		return style.Profile{}, err
	}

	return entry.Profile, nil
}

func newStyleListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List profiles in the registry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := ctx.profileStore(false)
			if err != nil {
				return err
			}

			if store == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No registered profiles")

				return nil
			}

			entries, err := store.List(cmd.Context())
			if err != nil {
				return err
			}

			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No registered profiles")

				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, profileRow(entry.Profile, entry.Source, entry.CreatedAt.Format("2006-01-02 15:04")))
			}

			headers := append(append([]string{}, profileHeaders...), "Source", "Created")
			aligns := append(append([]columnAlignment{}, profileAligns...), alignLeft, alignLeft)

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(cmd.OutOrStdout(), headers, rows, aligns))

			return nil
		},
	}
}

func newStyleDeriveCommand(ctx *commandContext) *cobra.Command {
	var (
		video string
		name  string
		out   string
		save  bool
	)

	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive a style profile from a reference video",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if video == "" || name == "" {
				return errors.New("--video and --name are required")
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			log, err := ctx.logger()
			if err != nil {
				return err
			}

			chain := posetrack.NewDefaultChain(
				cfg.Reference.LandmarkBinary, cfg.Reference.BoxBinary, cfg.Reference.ProbeBinary, log)

			track, err := chain.Extract(cmd.Context(), video)
			if err != nil {
				return fmt.Errorf("track reference video: %w", err)
			}

			profile, err := style.Derive(track, name)
			if err != nil {
				return err
			}

			if out != "" {
				err = style.Save(profile, out)
				if err != nil {
					return err
				}
			}

			if save {
				err = registerProfile(cmd, ctx, profile, profilestore.SourceDerived)
				if err != nil {
					return err
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderPairs(cmd.OutOrStdout(), [][2]string{
				{"Tracker", track.Method},
				{"Samples", fmt.Sprint(track.Len())},
				{"Sample rate", formatFloat(track.SampleRate())},
			}))
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(cmd.OutOrStdout(), profileHeaders,
				[][]string{profileRow(profile)}, profileAligns))

			return nil
		},
	}

	cmd.Flags().StringVar(&video, "video", "", "Reference video")
	cmd.Flags().StringVar(&name, "name", "", "Name of the derived profile")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the profile to this file")
	cmd.Flags().BoolVar(&save, "save", false, "Store the profile in the registry")

	return cmd
}

func newStyleImportCommand(ctx *commandContext) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Store a profile file in the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := pathutil.ResolveStyleFile(args[0])
			if err != nil {
				return err
			}

			profile, err := style.Load(path)
			if err != nil {
				return err
			}

			if name != "" {
				profile = profile.WithName(name)
			}

			err = registerProfile(cmd, ctx, profile, profilestore.SourceFile)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s\n", profile.Name)

			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Register under this name instead of the file's")

	return cmd
}

func newStyleDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Remove a profile from the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.profileStore(false)
			if err != nil {
				return err
			}

			if store == nil {
				return errNoRegistry
			}

			err = store.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])

			return nil
		},
	}
}

func registerProfile(cmd *cobra.Command, ctx *commandContext, profile style.Profile, source string) error {
	store, err := ctx.profileStore(true)
	if err != nil {
		return err
	}

	return store.Put(cmd.Context(), profile, source)
}

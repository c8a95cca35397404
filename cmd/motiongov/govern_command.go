package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/book-expert/motion-governor/internal/coeffs"
	"github.com/book-expert/motion-governor/internal/config"
	"github.com/book-expert/motion-governor/internal/core"
	"github.com/book-expert/motion-governor/internal/intent"
	"github.com/book-expert/motion-governor/internal/motion"
	"github.com/book-expert/motion-governor/internal/pathutil"
	"github.com/book-expert/motion-governor/internal/profilestore"
	"github.com/book-expert/motion-governor/internal/style"
)

var errMissingCoeffs = errors.New("--coeffs is required")

type governFlags struct {
	coeffs    string
	audio     string
	timing    string
	style     string
	styleFile string
	out       string
	record    bool
}

func newGovernCommand(ctx *commandContext) *cobra.Command {
	var flags governFlags

	cmd := &cobra.Command{
		Use:   "govern",
		Short: "Apply a style profile to a coefficient file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if flags.coeffs == "" {
				return errMissingCoeffs
			}

			return runGovern(cmd, ctx, flags)
		},
	}

	cmd.Flags().StringVar(&flags.coeffs, "coeffs", "", "Coefficient container to govern")
	cmd.Flags().StringVar(&flags.audio, "audio", "", "WAV file driving the audio intent")
	cmd.Flags().StringVar(&flags.timing, "timing", "", "Timing map JSON driving the script intent")
	cmd.Flags().StringVar(&flags.style, "style", "", "Style preset or registry name (default from config)")
	cmd.Flags().StringVar(&flags.styleFile, "style-file", "", "Style profile file (overrides --style)")
	cmd.Flags().StringVarP(&flags.out, "out", "o", "", "Output path (default <stem>_governed<ext>)")
	cmd.Flags().BoolVar(&flags.record, "record", false, "Record the run in the profile registry")

	return cmd
}

func runGovern(cmd *cobra.Command, ctx *commandContext, flags governFlags) error {
	started := time.Now()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}

	log, err := ctx.logger()
	if err != nil {
		return err
	}

	container, err := coeffs.ReadFile(flags.coeffs)
	if err != nil {
		return err
	}

	profile, err := resolveGovernStyle(cmd, ctx, cfg, flags, log)
	if err != nil {
		return err
	}

	var timing *intent.TimingMap

	if flags.timing != "" {
		timing, err = intent.LoadTimingMap(flags.timing)
		if err != nil {
			log.Warn("Timing map %s unusable, skipping script intent: %v", flags.timing, err)
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: ignoring timing map: %v\n", err)
		}
	}

	if flags.audio != "" && !pathutil.IsWaveFile(flags.audio) {
		log.Warn("Audio %s does not look like a WAV file", flags.audio)
	}

	governor, err := motion.New(profile, cfg.MotionOptions(), log)
	if err != nil {
		return err
	}

	result, err := governor.GovernBestEffort(motion.Request{
		Coefficients: container.Coefficients,
		AudioPath:    flags.audio,
		Timing:       timing,
	})
	if err != nil {
		return err
	}

	out := flags.out
	if out == "" {
		out = coeffs.GovernedPath(flags.coeffs)
	}

	err = coeffs.WriteFile(out, container.WithCoefficients(result.Coefficients))
	if err != nil {
		return err
	}

	frames, dims := result.Coefficients.Dims()

	if flags.record {
		err = recordRun(cmd, ctx, profile.Name, frames, result)
		if err != nil {
			return err
		}
	}

	size := "?"
	if info, statErr := os.Stat(out); statErr == nil {
		size = pathutil.FormatFileSize(info.Size())
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderPairs(cmd.OutOrStdout(), [][2]string{
		{"Input", flags.coeffs},
		{"Output", out},
		{"Size", size},
		{"Layout", result.Layout.String()},
		{"Frames", strconv.Itoa(frames)},
		{"Dims", strconv.Itoa(dims)},
		{"Style", profile.Name},
		{"Governed", yesNo(result.Governed)},
		{"Pause frames", strconv.Itoa(result.PauseFrames)},
		{"Emphasis frames", strconv.Itoa(result.EmphasisFrames)},
		{"Sentence nods", strconv.Itoa(len(result.SentenceEnds))},
		{"Elapsed", pathutil.FormatDuration(time.Since(started).Seconds())},
	}))

	return nil
}

func resolveGovernStyle(
	cmd *cobra.Command,
	ctx *commandContext,
	cfg *config.Config,
	flags governFlags,
	log *logger.Logger,
) (style.Profile, error) {
	if flags.styleFile != "" {
		path, err := pathutil.ResolveStyleFile(flags.styleFile)
		if err != nil {
			return style.Profile{}, err
		}

		return style.Load(path)
	}

	name := flags.style
	if name == "" {
		name = cfg.Governor.Style
	}

	store, err := ctx.profileStore(false)
	if err != nil {
		return style.Profile{}, err
	}

	return profilestore.NewResolver(store, log).Resolve(cmd.Context(), name)
}

func recordRun(cmd *cobra.Command, ctx *commandContext, styleName string, frames int, result *motion.Result) error {
	store, err := ctx.profileStore(true)
	if err != nil {
		return err
	}

	return store.RecordRun(cmd.Context(), core.GovernanceRun{
		RunID:          uuid.NewString(),
		Style:          styleName,
		Frames:         frames,
		Dims:           result.Layout.Dims,
		Compact:        result.Layout.Compact,
		Governed:       result.Governed,
		PauseFrames:    result.PauseFrames,
		EmphasisFrames: result.EmphasisFrames,
		CreatedAt:      time.Now(),
	})
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/book-expert/motion-governor/internal/coeffs"
	"github.com/book-expert/motion-governor/internal/config"
	"github.com/book-expert/motion-governor/internal/core"
	"github.com/book-expert/motion-governor/internal/objectstore"
	"github.com/book-expert/motion-governor/internal/pathutil"
	"github.com/book-expert/motion-governor/internal/worker"
)

// Flag descriptions.
const (
	flagCoeffsDesc    = "Coefficient container to submit"
	flagAudioDesc     = "WAV file uploaded to the audio bucket"
	flagTimingDesc    = "Timing map JSON uploaded next to the coefficients"
	flagStyleDesc     = "Style name resolved by the service"
	flagStyleFileDesc = "Style profile file uploaded with the job"
	flagOutDesc       = "Where to write the governed container (default <stem>_governed<ext>)"
	flagTimeoutDesc   = "How long to wait for the service reply"
	flagKeepDesc      = "Leave the uploaded inputs in the object store"
)

// Error and log messages.
const (
	errFmtConnect     = "failed to connect to NATS at %s: %w"
	errFmtJetStream   = "failed to create JetStream context: %w"
	errFmtUpload      = "failed to upload %s: %w"
	errFmtRequest     = "governance request on %s failed: %w"
	errFmtReply       = "failed to decode service reply: %w"
	errFmtDownload    = "failed to download governed coefficients %s: %w"
	errFmtWriteOutput = "failed to write %s: %w"
	logSubmitting     = "Submitting %s to %s as %s"
	logCleanupFailed  = "Failed to remove uploaded input %s: %v"
)

var (
	errMissingSubmitCoeffs = errors.New("--coeffs is required")
	// errServiceRejected carries the error text of a failed service reply.
	errServiceRejected = errors.New("service rejected the job")
)

const defaultSubmitTimeout = 2 * time.Minute

type submitFlags struct {
	coeffs     string
	audio      string
	timing     string
	style      string
	styleFile  string
	out        string
	timeout    time.Duration
	keepInputs bool
}

// upload records one object placed in a bucket for the job.
type upload struct {
	store core.ObjectStore
	key   string
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var flags submitFlags

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Send a governance job to a running motion-governor service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if flags.coeffs == "" {
				return errMissingSubmitCoeffs
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			log, err := ctx.logger()
			if err != nil {
				return err
			}

			return runSubmit(cmd, cfg, log, flags)
		},
	}

	cmd.Flags().StringVar(&flags.coeffs, "coeffs", "", flagCoeffsDesc)
	cmd.Flags().StringVar(&flags.audio, "audio", "", flagAudioDesc)
	cmd.Flags().StringVar(&flags.timing, "timing", "", flagTimingDesc)
	cmd.Flags().StringVar(&flags.style, "style", "", flagStyleDesc)
	cmd.Flags().StringVar(&flags.styleFile, "style-file", "", flagStyleFileDesc)
	cmd.Flags().StringVarP(&flags.out, "out", "o", "", flagOutDesc)
	cmd.Flags().DurationVar(&flags.timeout, "timeout", defaultSubmitTimeout, flagTimeoutDesc)
	cmd.Flags().BoolVar(&flags.keepInputs, "keep-inputs", false, flagKeepDesc)

	return cmd
}

func runSubmit(cmd *cobra.Command, cfg *config.Config, log *logger.Logger, flags submitFlags) error {
	natsConnection, err := nats.Connect(cfg.NATS.URL, nats.Name("motiongov"))
	if err != nil {
		return fmt.Errorf(errFmtConnect, cfg.NATS.URL, err)
	}
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf(errFmtJetStream, err)
	}

	coeffStore, err := objectstore.New(jetstreamContext, cfg.NATS.CoeffsObjectStoreBucket)
	if err != nil {
		return err
	}

	audioStore, err := objectstore.New(jetstreamContext, cfg.NATS.AudioObjectStoreBucket)
	if err != nil {
		return err
	}

	jobCtx, cancel := context.WithTimeout(cmd.Context(), flags.timeout)
	defer cancel()

	var uploads []upload

	defer func() {
		if !flags.keepInputs {
			cleanupUploads(log, uploads)
		}
	}()

	put := func(store core.ObjectStore, path string) (string, error) {
		if path == "" {
			return "", nil
		}

		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return "", fmt.Errorf(errFmtUpload, path, readErr)
		}

		key := uuid.NewString() + "-" + pathutil.SanitizeKey(filepath.Base(path))

		uploadErr := store.Upload(jobCtx, key, data)
		if uploadErr != nil {
			return "", fmt.Errorf(errFmtUpload, path, uploadErr)
		}

		uploads = append(uploads, upload{store: store, key: key})

		return key, nil
	}

	event := worker.GovernRequestedEvent{
		Header: events.EventHeader{
			Timestamp:  time.Now(),
			WorkflowID: uuid.NewString(),
			EventID:    uuid.NewString(),
		},
		Style: flags.style,
	}

	if event.CoeffKey, err = put(coeffStore, flags.coeffs); err != nil {
		return err
	}

	if event.AudioKey, err = put(audioStore, flags.audio); err != nil {
		return err
	}

	if event.TimingKey, err = put(coeffStore, flags.timing); err != nil {
		return err
	}

	if event.StyleKey, err = put(coeffStore, flags.styleFile); err != nil {
		return err
	}

	log.Info(logSubmitting, flags.coeffs, cfg.NATS.GovernorSubject, event.Header.WorkflowID)

	reply, err := requestGovernance(jobCtx, natsConnection, cfg.NATS.GovernorSubject, event)
	if err != nil {
		return err
	}

	data, err := coeffStore.Download(jobCtx, reply.CoeffKey)
	if err != nil {
		return fmt.Errorf(errFmtDownload, reply.CoeffKey, err)
	}

	uploads = append(uploads, upload{store: coeffStore, key: reply.CoeffKey})

	out := flags.out
	if out == "" {
		out = coeffs.GovernedPath(flags.coeffs)
	}

	err = os.WriteFile(out, data, 0o600)
	if err != nil {
		return fmt.Errorf(errFmtWriteOutput, out, err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderPairs(cmd.OutOrStdout(), [][2]string{
		{"Workflow", reply.Header.WorkflowID},
		{"Output", out},
		{"Layout", reply.Layout},
		{"Frames", strconv.Itoa(reply.Frames)},
		{"Style", reply.Style},
		{"Governed", yesNo(reply.Governed)},
		{"Pause frames", strconv.Itoa(reply.PauseFrames)},
		{"Emphasis frames", strconv.Itoa(reply.EmphasisFrames)},
	}))

	return nil
}

func requestGovernance(
	ctx context.Context,
	natsConnection *nats.Conn,
	subject string,
	event worker.GovernRequestedEvent,
) (*worker.CoeffsGovernedEvent, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf(errFmtRequest, subject, err)
	}

	msg, err := natsConnection.RequestWithContext(ctx, subject, payload)
	if err != nil {
		return nil, fmt.Errorf(errFmtRequest, subject, err)
	}

	var reply worker.CoeffsGovernedEvent

	err = json.Unmarshal(msg.Data, &reply)
	if err != nil {
		return nil, fmt.Errorf(errFmtReply, err)
	}

	if reply.Error != "" {
		return nil, fmt.Errorf("%w: %s", errServiceRejected, reply.Error)
	}

	return &reply, nil
}

// cleanupUploads uses a fresh context so it still runs after the job context expires.
func cleanupUploads(log *logger.Logger, uploads []upload) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, item := range uploads {
		err := item.store.Delete(ctx, item.key)
		if err != nil {
			log.Warn(logCleanupFailed, item.key, err)
		}
	}
}

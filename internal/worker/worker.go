// Package worker provides a NATS worker that governs motion coefficient jobs.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/motion-governor/internal/coeffs"
	"github.com/book-expert/motion-governor/internal/core"
	"github.com/book-expert/motion-governor/internal/intent"
	"github.com/book-expert/motion-governor/internal/motion"
	"github.com/book-expert/motion-governor/internal/style"
)

const (
	defaultHandleTimeout = 30 * time.Second
	governedKeyExt       = ".coeffs"
)

var (
	// ErrCoeffKeyEmpty indicates a request without a coefficient key.
	ErrCoeffKeyEmpty = errors.New("coeff_key cannot be empty")
	// ErrMissingDependency indicates a worker constructed without a required collaborator.
	ErrMissingDependency = errors.New("missing worker dependency")
)

// Config wires a NatsWorker.
type Config struct {
	Subject    string
	QueueGroup string
	// CoeffStore holds coefficient containers, timing maps and style files.
	CoeffStore core.ObjectStore
	// AudioStore holds waveforms. Nil means CoeffStore.
	AudioStore core.ObjectStore
	Styles     core.StyleResolver
	// Recorder is optional.
	Recorder core.RunRecorder
	Options  motion.Options
	Timeout  time.Duration
}

// NatsWorker listens for governance jobs on a NATS subject and processes them.
type NatsWorker struct {
	natsConnection *nats.Conn
	cfg            Config
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker.
func NewNatsWorker(natsConnection *nats.Conn, cfg Config, log *logger.Logger) (*NatsWorker, error) {
	switch {
	case natsConnection == nil:
		return nil, fmt.Errorf("%w: nats connection", ErrMissingDependency)
	case cfg.Subject == "":
		return nil, fmt.Errorf("%w: subject", ErrMissingDependency)
	case cfg.CoeffStore == nil:
		return nil, fmt.Errorf("%w: coefficient store", ErrMissingDependency)
	case cfg.Styles == nil:
		return nil, fmt.Errorf("%w: style resolver", ErrMissingDependency)
	}

	if cfg.AudioStore == nil {
		cfg.AudioStore = cfg.CoeffStore
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHandleTimeout
	}

	return &NatsWorker{natsConnection: natsConnection, cfg: cfg, log: log}, nil
}

// Run subscribes and blocks until ctx is cancelled, then drains the subscription.
func (w *NatsWorker) Run(ctx context.Context) error {
	var (
		sub *nats.Subscription
		err error
	)

	if w.cfg.QueueGroup != "" {
		sub, err = w.natsConnection.QueueSubscribe(w.cfg.Subject, w.cfg.QueueGroup, w.handleMessage)
	} else {
		sub, err = w.natsConnection.Subscribe(w.cfg.Subject, w.handleMessage)
	}

	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.cfg.Subject, err)
	}

	w.log.System("Listening for governance jobs on subject: %s", w.cfg.Subject)

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.Timeout)
	defer cancel()

	event, err := parseEvent(msg)
	if err != nil {
		w.log.Error("Failed to parse governance event: %v", err)

		replyErr := w.publishReplyEvent(msg, &CoeffsGovernedEvent{Error: err.Error()})
		if replyErr != nil {
			w.log.Error("Failed to publish reply for unparseable event: %v", replyErr)
		}

		return
	}

	reply, err := w.Process(ctx, event)
	if err != nil {
		w.log.Error("Failed to govern job for workflow %s: %v", event.Header.WorkflowID, err)

		reply = &CoeffsGovernedEvent{Header: event.Header, Error: err.Error()}
	}

	err = w.publishReplyEvent(msg, reply)
	if err != nil {
		w.log.Error("Failed to publish reply event for workflow %s: %v", event.Header.WorkflowID, err)
	}
}

// Process governs one job: it downloads the inputs, resolves the style, governs,
// uploads the result and records the run.
func (w *NatsWorker) Process(ctx context.Context, event *GovernRequestedEvent) (*CoeffsGovernedEvent, error) {
	if event.CoeffKey == "" {
		return nil, ErrCoeffKeyEmpty
	}

	raw, err := w.cfg.CoeffStore.Download(ctx, event.CoeffKey)
	if err != nil {
		return nil, fmt.Errorf("failed to download coefficients for key '%s': %w", event.CoeffKey, err)
	}

	container, err := coeffs.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode coefficients for key '%s': %w", event.CoeffKey, err)
	}

	profile, err := w.resolveStyle(ctx, event)
	if err != nil {
		return nil, err
	}

	governor, err := motion.New(profile, w.cfg.Options, w.log)
	if err != nil {
		return nil, fmt.Errorf("failed to create governor: %w", err)
	}

	result, err := governor.GovernBestEffort(motion.Request{
		Coefficients: container.Coefficients,
		Audio:        w.fetchAudio(ctx, event),
		Timing:       w.fetchTiming(ctx, event),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to govern coefficients: %w", err)
	}

	data, err := container.WithCoefficients(result.Coefficients).Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode governed coefficients: %w", err)
	}

	outputKey := uuid.NewString() + coeffs.GovernedSuffix + governedKeyExt

	err = w.cfg.CoeffStore.Upload(ctx, outputKey, data)
	if err != nil {
		return nil, fmt.Errorf("failed to upload governed coefficients for key '%s': %w", outputKey, err)
	}

	frames, dims := result.Coefficients.Dims()
	w.record(ctx, profile.Name, frames, result)

	return &CoeffsGovernedEvent{
		Header:         event.Header,
		CoeffKey:       outputKey,
		Governed:       result.Governed,
		Layout:         result.Layout.String(),
		Frames:         frames,
		Dims:           dims,
		PauseFrames:    result.PauseFrames,
		EmphasisFrames: result.EmphasisFrames,
		Style:          profile.Name,
	}, nil
}

// resolveStyle prefers an uploaded style file and falls back to the named style.
func (w *NatsWorker) resolveStyle(ctx context.Context, event *GovernRequestedEvent) (style.Profile, error) {
	if event.StyleKey != "" {
		data, err := w.cfg.CoeffStore.Download(ctx, event.StyleKey)
		if err == nil {
			var profile style.Profile

			profile, err = style.Unmarshal(data, style.FormatForPath(event.StyleKey))
			if err == nil {
				return profile, nil
			}
		}

		w.log.Warn("Style file '%s' unusable, resolving style %q instead: %v", event.StyleKey, event.Style, err)
	}

	profile, err := w.cfg.Styles.Resolve(ctx, event.Style)
	if err != nil {
		return style.Profile{}, fmt.Errorf("failed to resolve style %q: %w", event.Style, err)
	}

	return profile, nil
}

// fetchAudio returns nil when there is no audio or it cannot be downloaded.
func (w *NatsWorker) fetchAudio(ctx context.Context, event *GovernRequestedEvent) []byte {
	if event.AudioKey == "" {
		return nil
	}

	data, err := w.cfg.AudioStore.Download(ctx, event.AudioKey)
	if err != nil {
		w.log.Warn("Audio '%s' unavailable, using uniform intent: %v", event.AudioKey, err)

		return nil
	}

	return data
}

// fetchTiming returns nil when there is no timing map or it cannot be used.
func (w *NatsWorker) fetchTiming(ctx context.Context, event *GovernRequestedEvent) *intent.TimingMap {
	if event.TimingKey == "" {
		return nil
	}

	data, err := w.cfg.CoeffStore.Download(ctx, event.TimingKey)
	if err != nil {
		w.log.Warn("Timing map '%s' unavailable, skipping script intent: %v", event.TimingKey, err)

		return nil
	}

	timing, err := intent.DecodeTimingMap(data)
	if err != nil {
		w.log.Warn("Timing map '%s' unusable, skipping script intent: %v", event.TimingKey, err)

		return nil
	}

	return timing
}

func (w *NatsWorker) record(ctx context.Context, styleName string, frames int, result *motion.Result) {
	if w.cfg.Recorder == nil {
		return
	}

	err := w.cfg.Recorder.RecordRun(ctx, core.GovernanceRun{
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
	if err != nil {
		w.log.Warn("Failed to record governance run: %v", err)
	}
}

// publishReplyEvent marshals and responds with the CoeffsGovernedEvent.
func (w *NatsWorker) publishReplyEvent(msg *nats.Msg, replyEvent *CoeffsGovernedEvent) error {
	if msg.Reply == "" {
		return nil
	}

	replyData, err := json.Marshal(replyEvent)
	if err != nil {
		return fmt.Errorf("failed to marshal reply event: %w", err)
	}

	err = msg.Respond(replyData)
	if err != nil {
		return fmt.Errorf("failed to publish reply event: %w", err)
	}

	return nil
}

func parseEvent(msg *nats.Msg) (*GovernRequestedEvent, error) {
	var event GovernRequestedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	return &event, nil
}

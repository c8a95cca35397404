package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/book-expert/motion-governor/internal/coeffs"
	"github.com/book-expert/motion-governor/internal/motion"
	"github.com/book-expert/motion-governor/internal/objectstore"
	"github.com/book-expert/motion-governor/internal/profilestore"
	"github.com/book-expert/motion-governor/internal/style"
	"github.com/book-expert/motion-governor/internal/worker"
)

// startService runs a JetStream server with a governance worker attached and returns
// a CLI config file pointing at it.
func startService(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()

	opts := test.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	opts.StoreDir = filepath.Join(dir, "jetstream")
	server := test.RunServer(&opts)
	t.Cleanup(server.Shutdown)

	conn, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	jetstreamContext, err := conn.JetStream()
	require.NoError(t, err)

	coeffStore, err := objectstore.New(jetstreamContext, "MOTION_COEFFS")
	require.NoError(t, err)

	audioStore, err := objectstore.New(jetstreamContext, "AUDIO_FILES")
	require.NoError(t, err)

	log, err := logger.New(dir, "service.log")
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	instance, err := worker.NewNatsWorker(conn, worker.Config{
		Subject:    "motion.govern",
		CoeffStore: coeffStore,
		AudioStore: audioStore,
		Styles:     profilestore.NewResolver(nil, log),
		Options:    motion.DefaultOptions(),
	}, log)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)

		_ = instance.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})

	cfgPath := filepath.Join(dir, "cli.toml")
	body := fmt.Sprintf("[nats]\nurl = %q\n\n[paths]\nbase_logs_dir = %q\nprofile_db = %q\n",
		server.ClientURL(), filepath.Join(dir, "logs"), filepath.Join(dir, "profiles.db"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o600))

	return cfgPath
}

func TestSubmit(t *testing.T) {
	t.Parallel()

	cfgPath := startService(t)
	dir := t.TempDir()
	coeffPath, timingPath := writeInputs(t, dir)

	stylePath := filepath.Join(dir, "house.toml")
	require.NoError(t, style.Save(style.Default().WithName("house"), stylePath))

	var (
		out string
		err error
	)

	// The worker subscribes asynchronously; retry until it answers.
	require.Eventually(t, func() bool {
		out, err = execute(t, "-c", cfgPath, "submit",
			"--coeffs", coeffPath, "--timing", timingPath, "--style-file", stylePath, "--timeout", "2s")

		return err == nil
	}, 10*time.Second, 100*time.Millisecond)

	assert.Regexp(t, `Style\s+│\s+house\s+│`, out)
	assert.Regexp(t, `Pause frames\s+│\s+25\s+│`, out)

	governed, err := coeffs.ReadFile(coeffs.GovernedPath(coeffPath))
	require.NoError(t, err)
	assert.InDelta(t, 0.7, governed.Coefficients.At(60, 0), 1e-12)
}

func TestSubmit_ServiceRejects(t *testing.T) {
	t.Parallel()

	cfgPath := startService(t)
	dir := t.TempDir()

	data := make([]float64, 3*50)
	badPath := filepath.Join(dir, "odd.coeffs")
	require.NoError(t, coeffs.WriteFile(badPath, coeffs.New(mat.NewDense(3, 50, data))))

	var err error

	require.Eventually(t, func() bool {
		_, err = execute(t, "-c", cfgPath, "submit", "--coeffs", badPath, "--timeout", "2s")

		return err != nil && !errors.Is(err, nats.ErrNoResponders)
	}, 10*time.Second, 100*time.Millisecond)

	require.ErrorIs(t, err, errServiceRejected)
	assert.Contains(t, err.Error(), "unsupported coefficient layout")
}

func TestSubmit_RequiresCoeffs(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "submit")
	require.ErrorIs(t, err, errMissingSubmitCoeffs)
}

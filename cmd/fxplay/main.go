package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"

	"github.com/linuxmatters/fxplay/internal/backend"
	"github.com/linuxmatters/fxplay/internal/backend/gst"
	"github.com/linuxmatters/fxplay/internal/cli"
	"github.com/linuxmatters/fxplay/internal/config"
	"github.com/linuxmatters/fxplay/internal/graph"
	"github.com/linuxmatters/fxplay/internal/logging"
	"github.com/linuxmatters/fxplay/internal/player"
	"github.com/linuxmatters/fxplay/internal/stream"
)

var (
	version = "0.0.1"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, func() backend.Backend { return gst.New() })
	stop()
	os.Exit(code)
}

// run plays one source and returns the process exit code. newBackend is only
// called once the command line and the source are valid.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, newBackend func() backend.Backend) int {
	opts := &config.Options{}
	exited, exitCode := false, 0
	parser, err := config.NewParser(opts,
		kong.Vars{"version": version},
		kong.Help(cli.StyledHelpPrinter(kong.HelpOptions{Compact: true})),
		kong.Writers(stdout, stderr),
		kong.Exit(func(code int) { exited, exitCode = true, code }),
	)
	if err != nil {
		cli.PrintError(stderr, err.Error())
		return 1
	}

	kctx, err := config.Parse(parser, args)
	if exited {
		// --help was handled by the help printer
		return exitCode
	}
	if err != nil {
		cli.PrintError(stderr, err.Error())
		return 1
	}

	if opts.Version {
		cli.PrintVersion(stdout, version)
		return 0
	}

	if len(args) == 0 {
		cli.PrintError(stderr, config.ErrNoSource.Error())
		_ = kctx.PrintUsage(false)
		return 1
	}

	logger := logging.New(logging.Config{Level: opts.LogLevel, Output: stderr, Console: true})

	cfg, _, err := config.Resolve(opts, logging.WithComponent(logger, "config"))
	if err != nil {
		cli.PrintError(stderr, err.Error())
		return 1
	}
	logger.Info().
		Str("source", cfg.Source).
		Str("uri", cfg.URI).
		Stringer("mode", cfg.Mode).
		Msg("configuration resolved")

	g, err := graph.Build(newBackend(), cfg, logging.WithComponent(logger, "graph"))
	if err != nil {
		cli.PrintError(stderr, err.Error())
		return 1
	}
	logger.Info().Stringer("layout", g.Describe()).Msg("graph built")

	var video backend.Unit
	if g.Video != nil {
		video = g.Video.Entry()
	}
	attacher := stream.NewAttacher(g.Audio.Entry(), video, logging.WithComponent(logger, "stream"))
	sub, err := attacher.Register(g.Source)
	if err != nil {
		_ = g.Close()
		cli.PrintError(stderr, err.Error())
		return 1
	}

	var popts []player.Option
	if cfg.SpeedSet {
		popts = append(popts, player.WithSpeed(cfg.Speed))
	}
	ctrl := player.New(g, sub, logging.WithComponent(logger, "player"), popts...)

	code, runErr := play(ctx, ctrl, stderr)
	if err := ctrl.Shutdown(); err != nil {
		logger.Warn().Err(err).Msg("shutdown incomplete")
	}

	if opts.Logs {
		writeReport(stdout, logger, logging.ReportData{
			Config:  cfg,
			Layout:  g.Describe(),
			Skipped: g.Skipped,
			Session: ctrl.Session(),
			Streams: attacher.Stats(),
			Err:     runErr,
		})
	}
	return code
}

// play starts the pipeline and runs it to completion. A refused start is fatal;
// an error notification has already been logged and ends playback normally.
func play(ctx context.Context, ctrl *player.Controller, stderr io.Writer) (int, error) {
	if err := ctrl.Start(); err != nil {
		cli.PrintError(stderr, err.Error())
		return 1, err
	}

	_, err := ctrl.Run(ctx)
	var berr *player.BackendError
	if err != nil && !errors.As(err, &berr) {
		cli.PrintError(stderr, err.Error())
		return 1, err
	}
	return 0, err
}

func writeReport(stdout io.Writer, logger zerolog.Logger, data logging.ReportData) {
	dir, err := os.Getwd()
	if err != nil {
		logger.Warn().Err(err).Msg("session report not written")
		return
	}
	path, err := logging.GenerateReport(dir, data)
	if err != nil {
		logger.Warn().Err(err).Msg("session report not written")
		return
	}
	cli.PrintKeyValue(stdout, "Report", path)
}

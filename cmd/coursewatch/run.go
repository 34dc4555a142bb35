package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/entrhq/coursewatch/pkg/credentials"
	"github.com/entrhq/coursewatch/pkg/failure"
	"github.com/entrhq/coursewatch/pkg/metrics"
	"github.com/entrhq/coursewatch/pkg/playback"
	"github.com/entrhq/coursewatch/pkg/report"
	"github.com/entrhq/coursewatch/pkg/types"
	"github.com/entrhq/coursewatch/pkg/watch"
)

func runWatch(cmd *cobra.Command, opts *options) error {
	a, err := newApp(cmd, opts)
	if err != nil {
		return err
	}
	defer a.close()

	g, ctx := errgroup.WithContext(cmd.Context())
	runCtx, stopMetrics := context.WithCancel(ctx)
	defer stopMetrics()

	if a.cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		a.sink = types.MultiSink{a.console, metrics.MustNewMetrics(reg)}

		srv, err := metrics.Listen(a.cfg.Metrics.Addr, reg)
		if err != nil {
			return fmt.Errorf("failed to start metrics endpoint: %w", err)
		}
		a.logger.Infof("metrics on http://%s/metrics", srv.Addr())
		g.Go(func() error { return srv.Serve(runCtx) })
	}

	g.Go(func() error {
		defer stopMetrics()
		return a.watch(runCtx)
	})
	return g.Wait()
}

func (a *app) watch(ctx context.Context) error {
	a.banner("coursewatch")

	if err := a.launch(); err != nil {
		return err
	}
	defer a.hold(ctx)

	ok, err := a.login(ctx)
	if err != nil {
		a.logger.Errorf("login failed: %v", err)
		if failure.Classify(err) == failure.KindSurfaceClosed {
			a.console.Infof("The browser was closed before login finished")
			return nil
		}
		return err
	}
	if !ok {
		a.console.PrintRemediation()
		return errReported
	}
	a.console.Successf("logged in")

	targets, err := a.targets(ctx)
	if err != nil {
		if failure.Classify(err) == failure.KindSurfaceClosed {
			a.console.Infof("The browser was closed before any target was opened")
			return nil
		}
		a.console.Errorf("%v", err)
		a.console.PrintRemediation()
		return errReported
	}
	if len(targets) == 0 {
		a.console.PrintRemediation()
		return nil
	}

	monitor := playback.NewMonitor(a.session, a.validator, a.cfg.Playback,
		playback.WithSink(a.sink),
		playback.WithLogger(a.logger.With("playback")),
	)
	loop := watch.NewLoop(a.session, monitor,
		watch.WithPause(a.cfg.Targets.Pause),
		watch.WithSink(a.sink),
		watch.WithLogger(a.logger.With("watch")),
	)

	result := loop.Run(ctx, targets)
	a.console.Summary(result, report.RunInfo{RunID: a.logger.RunID(), LogPath: a.logger.LogPath()})

	switch result.Stop {
	case failure.KindNone, failure.KindSurfaceClosed, failure.KindInterrupted:
		return nil
	default:
		return errReported
	}
}

func runImport(cmd *cobra.Command, opts *options) error {
	opts.skipValidate = true
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	site := opts.siteURL
	if site == "" {
		site = cfg.Auth.LandingURL
	}
	store := credentials.NewFileStore(cfg.Auth.CredentialsFile)
	n, err := credentials.ImportFile(opts.exportFile, store, credentials.ImportOptions{SiteURL: site})
	if err != nil {
		return err
	}

	console := report.NewConsole(report.ParseLevel(cfg.Logging.Verbosity), cmd.OutOrStdout())
	console.Successf("wrote %d cookie(s) to %s", n, store.Path())
	return nil
}

func runDiscover(cmd *cobra.Command, opts *options) error {
	a, err := newApp(cmd, opts)
	if err != nil {
		return err
	}
	defer a.close()
	ctx := cmd.Context()

	if err := a.launch(); err != nil {
		return err
	}
	ok, err := a.login(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errReported
	}

	targets, err := a.targets(ctx)
	if err != nil {
		return err
	}
	for _, t := range targets {
		fmt.Fprintln(cmd.OutOrStdout(), t)
	}
	return nil
}

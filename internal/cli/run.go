package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/Paintersrp/procwarden/internal/config"
	"github.com/Paintersrp/procwarden/internal/hooks"
	"github.com/Paintersrp/procwarden/internal/logging"
	"github.com/Paintersrp/procwarden/internal/metrics"
	"github.com/Paintersrp/procwarden/internal/supervise"
)

// forwardedSignals are relayed from the runner to the supervised group.
var forwardedSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT}

// run supervises cfg.Command until its tree drained and returns the exit
// status of the runner. A non-nil error is reported by the caller.
func run(ctx context.Context, cfg *config.Config, stderr io.Writer) (int, error) {
	logging.Configure(logging.Config{
		Level:  cfg.Logging.Level,
		Output: stderr,
		Format: logging.Format(cfg.Logging.Format),
	})
	log := logging.WithComponent("cli")

	if len(cfg.Command) == 0 {
		return ExitRunnerError, errors.New("no command given")
	}

	code, err := superviseCommand(ctx, cfg, stderr)
	if cfg.Hooks.OnExit != "" {
		marker, markErr := hooks.MarkExit(cfg.Hooks.OnExit, err == nil && code == 0)
		if markErr != nil {
			log.Error().Err(markErr).Msg("on-exit hook")
			if err == nil {
				return ExitRunnerError, markErr
			}
		} else {
			log.Debug().Str("path", marker).Msg("wrote exit marker")
		}
	}
	return code, err
}

func superviseCommand(ctx context.Context, cfg *config.Config, stderr io.Writer) (int, error) {
	log := logging.WithComponent("cli")

	// Subscribe before waiting and launching so that no signal is lost to the
	// default handler while the tree is being set up.
	sigs := make(chan os.Signal, 4)
	signal.Notify(sigs, forwardedSignals...)
	defer signal.Stop(sigs)

	if code, err := waitHooks(ctx, cfg.Hooks.Wait, sigs); err != nil {
		return code, err
	}

	var metricsSrv *metrics.Server
	if cfg.Metrics.Addr != "" {
		srv, err := metrics.Listen(cfg.Metrics.Addr)
		if err != nil {
			return ExitRunnerError, err
		}
		metricsSrv = srv
		log.Info().Str("addr", srv.Addr()).Msg("serving metrics")
	}

	switch {
	case !cfg.SubreaperEnabled():
	case !supervise.SubreaperSupported():
		log.Warn().Msg("child subreaper not available on this platform, orphans will not be adopted")
	default:
		if err := supervise.EnableSubreaper(); err != nil {
			log.Warn().Err(err).Msg("orphans will not be adopted")
		}
	}

	tree, err := supervise.Launch(ctx, supervise.Spec{
		Command:    cfg.Command[0],
		Args:       cfg.Command[1:],
		Env:        cfg.Env,
		Workdir:    cfg.Workdir,
		NewSession: cfg.Session,
		Stdin:      os.Stdin,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
	})
	if err != nil {
		return launchExitCode(err), err
	}

	var events chan supervise.Event
	if cfg.Output.Events {
		events = make(chan supervise.Event, 64)
	}
	sup, err := supervise.New(tree, supervise.Options{
		PollInterval: cfg.Supervision.PollInterval.Duration,
		GracePeriod:  cfg.Supervision.GracePeriod.Duration,
		KillAfter:    cfg.Supervision.KillAfter.Duration,
		Events:       events,
	})
	if err != nil {
		_ = syscall.Kill(-tree.GroupID, syscall.SIGKILL)
		return ExitRunnerError, err
	}

	auxCtx, stopAux := context.WithCancel(context.Background())
	defer stopAux()

	var summary *supervise.Summary
	g := new(errgroup.Group)
	g.Go(func() error {
		defer stopAux()
		if events != nil {
			defer close(events)
		}
		s, err := sup.Run(ctx)
		summary = s
		return err
	})
	g.Go(func() error {
		for {
			select {
			case sig := <-sigs:
				log.Info().Str(logging.FieldSignal, sig.String()).Msg("relaying signal")
				sup.Relay().Forward(sig.(syscall.Signal))
			case <-auxCtx.Done():
				return nil
			}
		}
	})
	if events != nil {
		g.Go(func() error {
			enc := json.NewEncoder(stderr)
			for ev := range events {
				encodeEvent(enc, stderr, ev)
			}
			return nil
		})
	}
	if metricsSrv != nil {
		g.Go(func() error {
			return metricsSrv.Run(auxCtx)
		})
	}
	if err := g.Wait(); err != nil && summary == nil {
		return ExitRunnerError, err
	} else if err != nil {
		log.Warn().Err(err).Msg("auxiliary task failed")
	}

	if err := reportSummary(cfg, summary, stderr); err != nil {
		return ExitRunnerError, err
	}
	return summary.ExitCode(cfg.Supervision.TimeoutIsOK), nil
}

// waitHooks blocks until every wait marker exists. A signal received in the
// meantime aborts the wait with the status of a signaled runner.
func waitHooks(ctx context.Context, paths []string, sigs <-chan os.Signal) (int, error) {
	if len(paths) == 0 {
		return 0, nil
	}
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	caught := make(chan os.Signal, 1)
	stop := make(chan struct{})
	watching := make(chan struct{})
	go func() {
		defer close(watching)
		select {
		case sig := <-sigs:
			caught <- sig
			cancel()
		case <-stop:
		}
	}()

	err := hooks.WaitFor(waitCtx, paths)
	close(stop)
	<-watching

	select {
	case sig := <-caught:
		if s, ok := sig.(syscall.Signal); ok {
			return exitSignalBase + int(s), fmt.Errorf("wait hook: interrupted by %s", supervise.SignalName(s))
		}
		return ExitRunnerError, fmt.Errorf("wait hook: interrupted by %s", sig)
	default:
	}
	if err != nil {
		return ExitRunnerError, fmt.Errorf("wait hook: %w", err)
	}
	return 0, nil
}

package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kroma-labs/outbound/httpclient"
)

type pollFlags struct {
	interval    time.Duration
	count       int
	metricsAddr string
}

func (a *app) newPollCommand() *cobra.Command {
	var pf pollFlags

	cmd := &cobra.Command{
		Use:   "poll URL",
		Short: "GET a URL repeatedly and log each outcome",
		Long: `poll issues a GET every --interval until interrupted or until --count
calls have completed. Failed calls are logged and polling continues.

With --metrics-addr the client's OpenTelemetry metrics are served in the
Prometheus format at /metrics.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if pf.interval <= 0 {
				return errors.New("--interval must be positive")
			}
			return a.poll(cmd, args[0], pf)
		},
	}

	cmd.Flags().DurationVar(&pf.interval, "interval", 5*time.Second, "Time between calls")
	cmd.Flags().IntVar(&pf.count, "count", 0, "Stop after this many calls (0 polls forever)")
	cmd.Flags().StringVar(&pf.metricsAddr, "metrics-addr", "", `Serve Prometheus metrics on this address, e.g. ":9464"`)

	return cmd
}

func (a *app) poll(cmd *cobra.Command, url string, pf pollFlags) error {
	reqOpts, err := a.requestOptions()
	if err != nil {
		return err
	}

	s, err := a.newSession(cmd, true)
	if err != nil {
		return err
	}
	defer s.close(context.WithoutCancel(cmd.Context()))

	metricsAddr := pf.metricsAddr
	if metricsAddr == "" {
		metricsAddr = s.cfg.Telemetry.MetricsAddr
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	pollCtx, stopPolling := context.WithCancel(ctx)
	defer stopPolling()

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", s.tel.MetricsHandler)
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			s.log.Info().Str("addr", metricsAddr).Msg("serving metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-pollCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer stopPolling()
		return a.pollLoop(pollCtx, s, url, pf, reqOpts)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) && cmd.Context().Err() != nil {
		return nil
	}
	return err
}

func (a *app) pollLoop(
	ctx context.Context,
	s *session,
	url string,
	pf pollFlags,
	reqOpts []httpclient.RequestOption,
) error {
	ticker := time.NewTicker(pf.interval)
	defer ticker.Stop()

	for n := 1; ; n++ {
		start := time.Now()
		payload, err := s.client.Get(ctx, url, reqOpts...)
		elapsed := time.Since(start)

		switch {
		case err == nil:
			s.log.Info().
				Int("call", n).
				Int("status", payload.StatusCode).
				Str("body_kind", payload.Kind().String()).
				Str("duration", formatDuration(elapsed)).
				Msg("poll succeeded")
		case httpclient.IsAborted(err):
			return nil
		default:
			herr, _ := httpclient.AsError(err)
			event := s.log.Warn().Int("call", n).Str("duration", formatDuration(elapsed))
			if herr != nil {
				event = event.Str("code", herr.Code()).Int("attempts", herr.Attempts)
				if status := httpclient.StatusCodeOf(err); status != 0 {
					event = event.Int("status", status)
				}
			}
			event.Err(err).Msg("poll failed")
		}

		if pf.count > 0 && n >= pf.count {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Periodically refresh the active selection",
	Long: `Periodically refresh the active selection until interrupted.

Each interval fetches the next page for the active selection and reports
newly cached papers. When metrics are enabled, a Prometheus endpoint is
served for the lifetime of the watch.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(a.cfg.Metrics.Path, promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: a.cfg.Metrics.Address, Handler: mux}
		go func() {
			a.logger.Info().Str("address", a.cfg.Metrics.Address).Msg("metrics listener starting")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error().Err(err).Msg("metrics listener failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Watching %s every %s\n", a.session.ActiveKey(), a.cfg.Watch.Interval)

	ticker := time.NewTicker(a.cfg.Watch.Interval)
	defer ticker.Stop()

	refresh := func() {
		before, _ := a.session.Feed()
		if err := a.session.Refresh(ctx, false); err != nil {
			a.logger.Error().Err(err).Msg("refresh failed")
			return
		}
		if a.session.HasError() {
			fmt.Fprintln(out, "Refresh failed on every endpoint; will retry next interval.")
			return
		}
		after, _ := a.session.Feed()
		if fresh := len(after) - len(before); fresh > 0 {
			fmt.Fprintf(out, "%s: %d new papers\n", time.Now().Format(time.RFC3339), fresh)
			a.printPapers(out, after[len(before):])
		}
	}

	refresh()
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "Stopping.")
			return nil
		case <-ticker.C:
			refresh()
		}
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"inferd/internal/httpapi"
	"inferd/internal/runner"
)

var (
	serveAddr  string
	serveWarm  string
	shutdownIn time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long:  `Serve chat, speech and transcription sessions over HTTP. SIGHUP reloads the settings from --config; SIGINT/SIGTERM shut down gracefully.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			cfg.Addr = serveAddr
		}
		log, err := newLogger(cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return err
		}
		eng, err := buildEngine(cfg, log)
		if err != nil {
			return err
		}

		httpapi.SetLogger(log)
		httpapi.SetDefaultLogLevel(cfg.LogLevel)
		httpapi.SetMaxBodyBytes(cfg.HTTP.MaxBodyBytes)
		httpapi.SetSessionTimeout(time.Duration(cfg.HTTP.SessionTimeoutSeconds) * time.Second)
		httpapi.SetCORSOptions(cfg.HTTP.CORS.Enabled, cfg.HTTP.CORS.Origins, cfg.HTTP.CORS.Methods, cfg.HTTP.CORS.Headers)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		baseCtx, cancelBase := context.WithCancel(context.Background())
		defer cancelBase()
		httpapi.SetBaseContext(baseCtx)

		for _, name := range splitCSV(serveWarm) {
			c, err := runner.ParseCapability(name)
			if err != nil {
				return err
			}
			if picked, err := eng.mgr.Warm(ctx, c); err != nil {
				log.Warn().Err(err).Str("capability", name).Msg("warm-up skipped")
			} else {
				log.Info().Str("capability", name).Str("runner", picked).Msg("warming")
			}
		}

		srv := &http.Server{
			Addr:              cfg.Addr,
			Handler:           httpapi.NewMux(eng.service()),
			ReadHeaderTimeout: 10 * time.Second,
		}
		errCh := make(chan error, 1)
		go func() {
			log.Info().Str("addr", cfg.Addr).Int("runners", eng.reg.Len()).Msg("inferd listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
	loop:
		for {
			select {
			case <-hup:
				if cfgFile == "" {
					log.Warn().Msg("SIGHUP ignored: no --config file")
					continue
				}
				if err := eng.reload(cfgFile); err != nil {
					log.Error().Err(err).Msg("reload failed; keeping current settings")
				}
			case err := <-errCh:
				if err != nil {
					return err
				}
				break loop
			case <-ctx.Done():
				break loop
			}
		}

		log.Info().Msg("shutting down")
		cancelBase()
		n := eng.coord.CancelAll()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownIn)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown")
		}
		if err := eng.mgr.UnloadAll(sctx); err != nil {
			log.Error().Err(err).Msg("unload runners")
		}
		log.Info().Int("cancelled_sessions", n).Msg("stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "HTTP listen address (overrides config)")
	serveCmd.Flags().StringVar(&serveWarm, "warm", "", "comma-separated capabilities to load at startup, e.g. llm,tts")
	serveCmd.Flags().DurationVar(&shutdownIn, "shutdown-timeout", 10*time.Second, "grace period for in-flight requests and runner unloads")
}

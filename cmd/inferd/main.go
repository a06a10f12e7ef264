package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"inferd/internal/config"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:           "inferd",
	Short:         "On-device inference orchestration daemon",
	Long:          `inferd selects, loads and runs inference backends (LLM, VLM, ASR, TTS) on the device and streams their results, with an optional Guardian safety pass over generated text.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (.yaml, .json or .toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug|info|warn|error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: console|json (overrides config)")
	rootCmd.AddCommand(serveCmd, runnersCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig reads --config (if any), applies flag overrides and defaults.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	if cfgFile != "" {
		c, err := config.Load(cfgFile)
		if err != nil {
			return cfg, err
		}
		cfg = c
	}
	f := cmd.Flags()
	if f.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if f.Changed("log-format") {
		cfg.LogFormat = logFormat
	}
	cfg.ApplyDefaults()
	return cfg, cfg.Validate()
}

// newLogger builds the process logger: human-readable console output or
// one JSON object per line.
func newLogger(level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log level: %w", err)
	}
	var l zerolog.Logger
	switch strings.ToLower(format) {
	case "json":
		l = zerolog.New(os.Stderr)
	case "console", "":
		l = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", format)
	}
	return l.Level(lvl).With().Timestamp().Logger(), nil
}

// splitCSV splits a comma-separated flag value, dropping empty items.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

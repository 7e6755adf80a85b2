package main

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/AltairaLabs/specter/analysis"
	"github.com/AltairaLabs/specter/analysis/openai"
	"github.com/AltairaLabs/specter/config"
	"github.com/AltairaLabs/specter/logger"
	"github.com/AltairaLabs/specter/metrics"
	"github.com/AltairaLabs/specter/overlay"
	"github.com/AltairaLabs/specter/session"
	"github.com/AltairaLabs/specter/transcribe"
	"github.com/AltairaLabs/specter/version"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "specter",
	Short:         "Screen and voice assistant pipeline",
	Long:          "specter captures audio, transcribes it in real time and streams analysis answers with per-session history.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.GetVersionInfo())
	},
}

// app bundles the wired components shared by subcommands.
type app struct {
	cfg      *config.Config
	sessions *session.Manager
	overlay  *overlay.Overlay
	store    session.HistoryStore
}

func buildApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Verbose {
		logger.SetVerbose(true)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var store session.HistoryStore
	if cfg.Redis.Enabled() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		var opts []session.RedisOption
		if cfg.Redis.TTL > 0 {
			opts = append(opts, session.WithTTL(time.Duration(cfg.Redis.TTL)))
		}
		store = session.NewRedisStore(client, opts...)
	} else {
		fs, err := session.NewFileStore(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		store = fs
	}

	sessions := session.NewManager()
	backend := openai.NewClient(cfg.API.BaseURL, cfg.API.Key,
		openai.WithModel(analysisModel(cfg)))

	orch := analysis.New(analysis.Config{
		Backend:    backend,
		Sessions:   sessions,
		Store:      store,
		LoadPrompt: cfg.LoadPrompt,
	})

	ov := overlay.New(overlay.Config{
		Sessions:     sessions,
		Orchestrator: orch,
		Transcribe: transcribe.Config{
			Endpoint: cfg.API.RealtimeURL,
			APIKey:   cfg.API.Key,
			Model:    cfg.API.TranscriptionModel,
		},
		Microphone: stdinAcquirer(),
	})

	if cfg.MetricsAddr != "" {
		exporter := metrics.NewExporter(cfg.MetricsAddr)
		go func() {
			if err := exporter.Start(); err != nil {
				logger.Warn("metrics exporter stopped", "error", err)
			}
		}()
	}

	return &app{cfg: cfg, sessions: sessions, overlay: ov, store: store}, nil
}

func analysisModel(cfg *config.Config) string {
	if cfg.API.AnalysisModel != "" {
		return cfg.API.AnalysisModel
	}
	return openai.DefaultModel
}

//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Command quill-server answers questions from a store of reference
// documents, refusing when none of them is relevant.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pgEdge/quill-rag-server/internal/config"
	"github.com/pgEdge/quill-rag-server/internal/pipeline"
	"github.com/pgEdge/quill-rag-server/internal/server"
)

// Version information - set via ldflags during build
var (
	version   = "0.1.0"
	buildTime = "unknown"
	gitCommit = "unknown"
)

var (
	configPath string
	envFile    string
	logLevel   string

	level  = new(slog.LevelVar)
	logger *slog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "quill-server",
	Short: "Grounded question answering over a document store",
	Long: `quill-server embeds a question, finds the closest reference document and
asks a language model to answer from it. When no document is close enough it
replies with a fixed refusal instead of guessing.

Configuration is read from --config, /etc/pgedge/quill-server.yaml or
quill-server.yaml next to the binary. A .env file, if present, is loaded
into the environment first so API keys can be kept there.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	RunE:              runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the configuration")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd, ingestCmd, askCmd, countCmd, openapiCmd, versionCmd)
}

// setup loads the dotenv file and installs the logger.
func setup(cmd *cobra.Command, _ []string) error {
	if err := loadEnvFile(envFile); err != nil {
		return err
	}

	if logLevel != "" {
		l, err := parseLevel(logLevel)
		if err != nil {
			return err
		}
		level.Set(l)
	}

	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return nil
}

// loadEnvFile loads path into the environment. A missing default file is
// not an error; variables already set win.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return l, fmt.Errorf("invalid log level %q", s)
	}
	return l, nil
}

// loadConfig loads the configuration and applies server.log_level unless
// --log-level was given.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel == "" && cfg.Server.LogLevel != "" {
		l, err := parseLevel(cfg.Server.LogLevel)
		if err != nil {
			return nil, err
		}
		level.Set(l)
	}
	return cfg, nil
}

// selectPipeline narrows cfg to the named pipeline. An empty name is
// accepted when only one pipeline is configured.
func selectPipeline(cfg *config.Config, name string) (*config.Config, error) {
	if name == "" {
		if len(cfg.Pipelines) == 1 {
			return cfg, nil
		}
		names := make([]string, len(cfg.Pipelines))
		for i, p := range cfg.Pipelines {
			names[i] = p.Name
		}
		return nil, fmt.Errorf("--pipeline is required, choose one of: %s", strings.Join(names, ", "))
	}

	for _, p := range cfg.Pipelines {
		if p.Name == name {
			narrowed := *cfg
			narrowed.Pipelines = []config.Pipeline{p}
			return &narrowed, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", pipeline.ErrPipelineNotFound, name)
}

// openPipeline builds a manager holding only the selected pipeline.
func openPipeline(name string) (*pipeline.Manager, *pipeline.Pipeline, config.Pipeline, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, config.Pipeline{}, err
	}
	cfg, err = selectPipeline(cfg, name)
	if err != nil {
		return nil, nil, config.Pipeline{}, err
	}
	pCfg := cfg.Pipelines[0]

	pm, err := pipeline.NewManagerWithLogger(pipeline.ManagerConfig{
		Config: cfg,
		Logger: logger,
	})
	if err != nil {
		return nil, nil, config.Pipeline{}, fmt.Errorf("failed to create pipeline manager: %w", err)
	}

	p, err := pm.Get(pCfg.Name)
	if err != nil {
		_ = pm.Close()
		return nil, nil, config.Pipeline{}, err
	}
	return pm, p, pCfg, nil
}

var openapiCmd = &cobra.Command{
	Use:   "openapi",
	Short: "Print the OpenAPI v3 specification as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(server.BuildOpenAPISpec()); err != nil {
			return fmt.Errorf("failed to encode OpenAPI spec: %w", err)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Quill RAG Server\n")
		fmt.Fprintf(out, "  Version:    %s\n", version)
		fmt.Fprintf(out, "  Build Time: %s\n", buildTime)
		fmt.Fprintf(out, "  Git Commit: %s\n", gitCommit)
	},
}

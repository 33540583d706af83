package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	urfave "github.com/urfave/cli/v2"

	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/adapters"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/analysis"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/config"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/monitoring"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/resilience"
)

const (
	scorerKey = "scorer"
	loggerKey = "logger"
	closerKey = "closer"
)

var (
	version = "v0.0.1-default"

	debugFlag = &urfave.BoolFlag{
		Name:  "debug",
		Usage: "Prints verbose logs to stderr (optional, default: false)",
	}

	configFlag = &urfave.StringFlag{
		Name:    "config",
		Usage:   "Path to a YAML config file",
		EnvVars: []string{"CONFIG_FILE"},
	}

	githubTokenFlag = &urfave.StringFlag{
		Name:    "github-token",
		Usage:   "GitHub API token used for license and review lookups",
		EnvVars: []string{"GITHUB_TOKEN"},
	}
)

type scorer interface {
	ScoreURL(ctx context.Context, modelURL, codeURL, datasetURL string) (*analysis.ScoreReport, error)
}

func main() {
	if err := newApp(os.Stdout, os.Stderr, nil).Run(os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

// newApp builds the CLI. Ratings go to stdout, logs to stderr. A non-nil s
// replaces the provider-backed aggregator.
func newApp(stdout, stderr io.Writer, s scorer) *urfave.App {
	metadata := map[string]interface{}{}
	if s != nil {
		metadata[scorerKey] = s
	}

	return &urfave.App{
		Name:            "modelmeter",
		Version:         version,
		Usage:           "Score registry models for reuse readiness",
		HideHelpCommand: true,
		Writer:          stdout,
		ErrWriter:       stderr,
		Metadata:        metadata,
		Flags: []urfave.Flag{
			debugFlag,
			configFlag,
			githubTokenFlag,
		},
		Commands: []*urfave.Command{
			scoreCmd,
			rateCmd,
		},
		Before: setup,
		After: func(c *urfave.Context) error {
			if closer, ok := c.App.Metadata[closerKey].(io.Closer); ok {
				return closer.Close()
			}
			return nil
		},
	}
}

func setup(c *urfave.Context) error {
	level := slog.LevelInfo
	if c.Bool(debugFlag.Name) {
		level = slog.LevelDebug
	}
	logger := monitoring.NewLoggerWithWriter(c.App.ErrWriter, level)
	slog.SetDefault(logger.Logger)
	c.App.Metadata[loggerKey] = logger

	if _, ok := c.App.Metadata[scorerKey]; ok {
		return nil
	}

	cfg, err := config.Load(c.String(configFlag.Name))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if token := c.String(githubTokenFlag.Name); token != "" {
		cfg.GitHubToken = token
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	source, err := adapters.NewGitHubAdapter(adapters.GitHubConfig{
		Token:        cfg.GitHubToken,
		BaseURL:      cfg.GitHubAPIURL,
		PRSampleSize: cfg.ReviewSampleSize,
	}, nil)
	if err != nil {
		return err
	}

	hub := adapters.NewHub(
		adapters.NewHuggingFaceAdapter(cfg.HFBaseURL, cfg.HFToken, nil),
		source,
		adapters.WithDegradationManager(resilience.NewDegradationManager(cfg.Degradation)),
		adapters.WithLogger(logger),
	)

	c.App.Metadata[closerKey] = hub
	c.App.Metadata[scorerKey] = analysis.NewAggregator(hub, cfg.AnalysisWeights(),
		analysis.WithEvaluatorTimeout(cfg.EvaluatorTimeout),
		analysis.WithLogger(logger.Logger),
	)
	return nil
}

func getScorer(c *urfave.Context) scorer {
	return c.App.Metadata[scorerKey].(scorer)
}

func getLogger(c *urfave.Context) *monitoring.Logger {
	return c.App.Metadata[loggerKey].(*monitoring.Logger)
}

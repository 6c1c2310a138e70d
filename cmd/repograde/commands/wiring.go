// Package commands implements the repograde CLI commands.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Sumatoshi-tech/repograde/internal/analyzers/origin"
	"github.com/Sumatoshi-tech/repograde/internal/analyzers/security"
	"github.com/Sumatoshi-tech/repograde/internal/config"
	"github.com/Sumatoshi-tech/repograde/internal/judge"
	"github.com/Sumatoshi-tech/repograde/internal/pipeline"
)

// Fallback durations when a configured value fails to parse. They match
// the config defaults.
const (
	fallbackCloneTimeout    = 5 * time.Minute
	fallbackNodeTimeout     = 3 * time.Minute
	fallbackReadTimeout     = 30 * time.Second
	fallbackWriteTimeout    = 60 * time.Second
	fallbackShutdownTimeout = 15 * time.Second
)

// buildPipeline assembles the analysis pipeline from configuration. The
// judge and the Gemini origin scorer are attached only when an API key
// is configured.
func buildPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pipeline.Pipeline, error) {
	var evaluator pipeline.Evaluator

	var scorers []origin.Scorer

	if cfg.Judge.APIKey != "" {
		j, err := judge.New(ctx, cfg.Judge.APIKey, cfg.Judge.Model, cfg.Judge.SummaryLimit, logger)
		if err != nil {
			return nil, fmt.Errorf("init judge: %w", err)
		}

		evaluator = j

		scorer, scorerErr := origin.NewGeminiScorer(ctx, cfg.Judge.APIKey, cfg.Judge.Model)
		if scorerErr != nil {
			return nil, fmt.Errorf("init gemini scorer: %w", scorerErr)
		}

		scorers = append(scorers, scorer)
	} else {
		logger.Info("judge disabled: no API key configured")
	}

	pipeCfg := pipeline.Config{
		WorkDir:         cfg.Pipeline.WorkDir,
		CloneTimeout:    config.ParseDuration(cfg.Pipeline.CloneTimeout, fallbackCloneTimeout),
		NodeTimeout:     config.ParseDuration(cfg.Pipeline.NodeTimeout, fallbackNodeTimeout),
		MaxCommits:      cfg.Analysis.MaxCommits,
		MaxFileBytes:    cfg.Analysis.MaxFileBytes,
		MaxCompareFiles: cfg.Analysis.MaxCompareFiles,
		Security: security.Config{
			PenaltyPerLeak: cfg.Analysis.SecurityPerLeak,
			MaxPenalty:     cfg.Analysis.SecurityMaxDrop,
			ScoreFloor:     cfg.Analysis.SecurityFloor,
		},
		Origin: origin.Config{
			EntropyMid: cfg.Analysis.OriginEntropyMid,
			TokenNorm:  cfg.Analysis.OriginTokenNorm,
		},
	}

	return pipeline.New(pipeCfg, evaluator, scorers, logger), nil
}

package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jinford/wiki-keepalive/internal/module/keepalive/domain"
)

// DefaultMaxWorkers は同時に処理するWikiの上限
const DefaultMaxWorkers = 4

// TargetProcessor は1つのWikiを処理します
type TargetProcessor interface {
	Process(ctx context.Context, target domain.WikiTarget) domain.TargetReport
}

// Orchestrator は全Wikiを並列数の上限つきで処理します
type Orchestrator struct {
	processor TargetProcessor
	workers   int
	sink      domain.LogSink
	logger    *slog.Logger
}

// NewOrchestrator は新しいOrchestratorを作成します
func NewOrchestrator(processor TargetProcessor, workers int, sink domain.LogSink, logger *slog.Logger) *Orchestrator {
	if workers <= 0 {
		workers = DefaultMaxWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		processor: processor,
		workers:   workers,
		sink:      sink,
		logger:    logger,
	}
}

// RunAll は全Wikiを処理し、すべて完了してから戻ります
//
// Wiki同士の処理順序は保証しません。結果は targets と同じ順序で返します。
func (o *Orchestrator) RunAll(ctx context.Context, targets []domain.WikiTarget) domain.CycleReport {
	report := domain.CycleReport{
		ID:        uuid.New(),
		StartedAt: time.Now(),
		Targets:   make([]domain.TargetReport, len(targets)),
	}
	logger := o.logger.With("cycle_id", report.ID.String())

	o.sink.Log("", "🔄 全Wikiの更新を開始します...")
	logger.Info("更新サイクルを開始します", "targets", len(targets), "workers", o.workers)

	var g errgroup.Group
	g.SetLimit(o.workers)

	for i, target := range targets {
		g.Go(func() error {
			report.Targets[i] = o.processOne(ctx, target)
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = time.Now()
	logger.Info("更新サイクルが完了しました",
		"duration", report.Duration().String(),
		"updated", report.Count(domain.OutcomeUpdated),
		"not_found", report.Count(domain.OutcomeNotFound),
		"locked", report.Count(domain.OutcomeLocked),
		"failed", report.Count(domain.OutcomeFailed))

	return report
}

// processOne は1つのWikiを処理します。panicはそのWikiの失敗として扱う
func (o *Orchestrator) processOne(ctx context.Context, target domain.WikiTarget) (report domain.TargetReport) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			o.sink.Log(target.Description, fmt.Sprintf("[X] 予期しないエラー: %v", err))
			o.logger.Error("Wikiの処理中にpanicしました", "target", target.Description, "error", err)
			report = domain.TargetReport{
				Target:       target.Description,
				Host:         target.Host,
				SessionError: err.Error(),
				FinishedAt:   time.Now(),
			}
		}
	}()
	return o.processor.Process(ctx, target)
}

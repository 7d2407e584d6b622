package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jinford/wiki-keepalive/internal/module/keepalive/domain"
)

// DefaultPageDelay はページ間の待機時間。外部サービスのレート制限を避けるための意図的な間隔
const DefaultPageDelay = 20 * time.Second

// WikiProcessor は1つのWikiの全ページを順番に更新します
type WikiProcessor struct {
	sessions  domain.SessionFactory
	creds     domain.Credentials
	updater   *PageUpdater
	sink      domain.LogSink
	logger    *slog.Logger
	pageDelay time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
}

// WikiProcessorOption は WikiProcessor のオプション
type WikiProcessorOption func(*WikiProcessor)

// WithPageDelay はページ間の待機時間を指定する
func WithPageDelay(d time.Duration) WikiProcessorOption {
	return func(p *WikiProcessor) {
		if d >= 0 {
			p.pageDelay = d
		}
	}
}

// WithSleeper は待機処理を差し替える（テスト用）
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) WikiProcessorOption {
	return func(p *WikiProcessor) {
		if sleep != nil {
			p.sleep = sleep
		}
	}
}

// WithProcessorLogger はロガーを差し替える
func WithProcessorLogger(logger *slog.Logger) WikiProcessorOption {
	return func(p *WikiProcessor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewWikiProcessor は新しいWikiProcessorを作成します
func NewWikiProcessor(sessions domain.SessionFactory, creds domain.Credentials, updater *PageUpdater, sink domain.LogSink, opts ...WikiProcessorOption) *WikiProcessor {
	p := &WikiProcessor{
		sessions:  sessions,
		creds:     creds,
		updater:   updater,
		sink:      sink,
		logger:    slog.Default(),
		pageDelay: DefaultPageDelay,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process はWikiにログインし、設定順にページを更新します
//
// ログインに失敗した場合はこのWikiのみを中断します。ページ単位の失敗は次のページへ進みます。
func (p *WikiProcessor) Process(ctx context.Context, target domain.WikiTarget) domain.TargetReport {
	desc := target.Description
	report := domain.TargetReport{
		Target:    desc,
		Host:      target.Host,
		StartedAt: time.Now(),
	}

	p.sink.Log(desc, fmt.Sprintf("🌐 Wikiの処理を開始します: %s", desc))

	session, err := p.sessions.Authenticate(ctx, target.Host, target.Path, p.creds)
	if err != nil {
		p.sink.Log(desc, fmt.Sprintf("[X] 接続またはログインできません: %v", err))
		p.logger.Warn("ログインに失敗しました", "target", desc, "host", target.Host, "error", err)
		report.SessionError = err.Error()
		report.FinishedAt = time.Now()
		return report
	}

	for i, title := range target.Pages {
		report.Results = append(report.Results, p.updater.Update(ctx, session, desc, title))

		if i < len(target.Pages)-1 {
			if err := p.sleep(ctx, p.pageDelay); err != nil {
				p.sink.Log(desc, fmt.Sprintf("⏹ 中断しました。残り %d ページをスキップします", len(target.Pages)-i-1))
				break
			}
			p.sink.Log(desc, fmt.Sprintf("⏳ %s 待機しました", p.pageDelay))
		}
	}

	report.FinishedAt = time.Now()
	p.sink.Log(desc, fmt.Sprintf("✅ 完了: %s", desc))
	p.logger.Info("Wikiの処理が完了しました",
		"target", desc,
		"updated", report.Count(domain.OutcomeUpdated),
		"not_found", report.Count(domain.OutcomeNotFound),
		"locked", report.Count(domain.OutcomeLocked),
		"failed", report.Count(domain.OutcomeFailed))

	return report
}

// sleepContext は d だけ待機します。contextがキャンセルされた場合はエラーを返す
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

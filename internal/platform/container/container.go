package container

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/jinford/wiki-keepalive/internal/module/keepalive/adapter/logsink"
	"github.com/jinford/wiki-keepalive/internal/module/keepalive/adapter/mediawiki"
	"github.com/jinford/wiki-keepalive/internal/module/keepalive/application"
	"github.com/jinford/wiki-keepalive/internal/module/keepalive/domain"
	"github.com/jinford/wiki-keepalive/internal/platform/config"
)

// ServiceContainer はBotの依存関係を保持する。
type ServiceContainer struct {
	Sink         domain.LogSink
	Sessions     domain.SessionFactory
	Updater      *application.PageUpdater
	Processor    *application.WikiProcessor
	Orchestrator *application.Orchestrator
	Prober       *application.Prober

	cfg     *config.Config
	logger  *slog.Logger
	closers []io.Closer
}

type containerOptions struct {
	logger   *slog.Logger
	sessions domain.SessionFactory
	sink     domain.LogSink
	sleeper  func(ctx context.Context, d time.Duration) error
}

// ContainerOption は ServiceContainer 構築時のオプション
type ContainerOption func(*containerOptions)

// WithLogger はロガーを差し替える
func WithLogger(logger *slog.Logger) ContainerOption {
	return func(opts *containerOptions) {
		opts.logger = logger
	}
}

// WithSessionFactory はWikiへの接続を差し替える
func WithSessionFactory(sessions domain.SessionFactory) ContainerOption {
	return func(opts *containerOptions) {
		opts.sessions = sessions
	}
}

// WithSink はログの出力先を差し替える
func WithSink(sink domain.LogSink) ContainerOption {
	return func(opts *containerOptions) {
		opts.sink = sink
	}
}

// WithSleeper はページ間の待機処理を差し替える
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) ContainerOption {
	return func(opts *containerOptions) {
		opts.sleeper = sleep
	}
}

// New は設定からコンテナを生成する。
func New(cfg *config.Config, opts ...ContainerOption) (*ServiceContainer, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	options := containerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	c := &ServiceContainer{cfg: cfg, logger: options.logger}

	// LogSink (log.txt + 標準出力)
	sink := options.sink
	if sink == nil {
		if cfg.Log.File == "" {
			return nil, errors.New("ログファイルのパスが設定されていません")
		}
		writer, closer := logsink.NewFile(logsink.FileConfig{
			Path:      cfg.Log.File,
			MaxSizeMB: cfg.Log.MaxSizeMB,
			Console:   true,
		})
		sink = writer
		c.closers = append(c.closers, closer)
	}
	c.Sink = sink

	// SessionFactory (MediaWiki API)
	sessions := options.sessions
	if sessions == nil {
		sessions = mediawiki.NewClient(
			mediawiki.WithScheme(cfg.MediaWiki.Scheme),
			mediawiki.WithTimeout(cfg.MediaWiki.HTTPTimeout),
			mediawiki.WithUserAgent(cfg.MediaWiki.UserAgent),
			mediawiki.WithLogger(options.logger),
		)
	}
	c.Sessions = sessions

	c.Updater = application.NewPageUpdater(sink, cfg.EditSummary)

	processorOpts := []application.WikiProcessorOption{
		application.WithPageDelay(cfg.Schedule.PageDelay),
		application.WithProcessorLogger(options.logger),
	}
	if options.sleeper != nil {
		processorOpts = append(processorOpts, application.WithSleeper(options.sleeper))
	}
	c.Processor = application.NewWikiProcessor(sessions, cfg.Credentials, c.Updater, sink, processorOpts...)

	c.Orchestrator = application.NewOrchestrator(c.Processor, cfg.Schedule.MaxWorkers, sink, options.logger)
	c.Prober = application.NewProber(sessions, cfg.Credentials, sink)

	return c, nil
}

// Scheduler は対象Wikiを定期実行するスケジューラーを生成する。
func (c *ServiceContainer) Scheduler(targets []domain.WikiTarget) *application.Scheduler {
	return application.NewScheduler(application.SchedulerConfig{
		Interval:      c.cfg.Schedule.RunInterval,
		ShutdownGrace: c.cfg.Schedule.ShutdownGrace,
	}, c.Orchestrator, targets, c.Sink, c.logger)
}

// Banner は新しい実行の区切りをログに書き込む。
func (c *ServiceContainer) Banner() {
	if b, ok := c.Sink.(interface{ Banner() }); ok {
		b.Banner()
	}
}

// Logger はコンテナのロガーを返す。
func (c *ServiceContainer) Logger() *slog.Logger {
	return c.logger
}

// Close は保持しているリソースを解放する。
func (c *ServiceContainer) Close() error {
	var errs []error
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

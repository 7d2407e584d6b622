package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jinford/wiki-keepalive/internal/module/keepalive/domain"
)

const (
	// DefaultRunInterval は更新サイクルの間隔
	DefaultRunInterval = 10 * time.Minute

	// DefaultShutdownGrace は停止要求後に実行中のサイクルを待つ時間
	DefaultShutdownGrace = 30 * time.Second
)

// CycleRunner は全Wikiを1巡します
type CycleRunner interface {
	RunAll(ctx context.Context, targets []domain.WikiTarget) domain.CycleReport
}

// SchedulerConfig はスケジューラーの設定です
type SchedulerConfig struct {
	Interval      time.Duration
	ShutdownGrace time.Duration
}

// Scheduler は起動直後に1回、その後は一定間隔で更新サイクルを実行します
type Scheduler struct {
	config  SchedulerConfig
	runner  CycleRunner
	targets []domain.WikiTarget
	sink    domain.LogSink
	logger  *slog.Logger
	cron    *cron.Cron

	mu      sync.Mutex
	stopped bool
	running sync.WaitGroup
	cycles  int
}

// NewScheduler は新しいSchedulerを作成します
func NewScheduler(config SchedulerConfig, runner CycleRunner, targets []domain.WikiTarget, sink domain.LogSink, logger *slog.Logger) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultRunInterval
	}
	if config.ShutdownGrace <= 0 {
		config.ShutdownGrace = DefaultShutdownGrace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		config:  config,
		runner:  runner,
		targets: targets,
		sink:    sink,
		logger:  logger,
		cron:    cron.New(cron.WithLogger(NewCronLogger(logger))),
	}
}

// Run はcontextがキャンセルされるまでスケジュール実行を続けます（ブロッキング）
//
// キャンセル後は新しいサイクルを開始せず、実行中のサイクルを ShutdownGrace だけ待ちます。
// 待ち時間を過ぎた場合はサイクルのcontextをキャンセルします。
func (s *Scheduler) Run(ctx context.Context) error {
	startedAt := time.Now()

	// サイクルは停止シグナルで直ちに中断させない
	runCtx, cancelRun := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRun()

	job := cron.NewChain(cron.SkipIfStillRunning(NewCronLogger(s.logger))).
		Then(cron.FuncJob(func() { s.trigger(runCtx) }))

	s.cron.Schedule(cron.Every(s.config.Interval), job)
	s.cron.Start()
	s.logger.Info("スケジューラーを開始しました", "interval", s.config.Interval.String(), "targets", len(s.targets))
	s.sink.Log("", fmt.Sprintf("🤖 Botが稼働中です。%s ごとに更新します...", s.config.Interval))

	// 起動直後の1回目
	go job.Run()

	<-ctx.Done()
	s.logger.Info("停止要求を受け付けました。スケジューラーを停止します")

	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	// cron側の実行中ジョブは waitRunning で待つ
	s.cron.Stop()

	if !s.waitRunning(s.config.ShutdownGrace) {
		s.logger.Warn("実行中のサイクルが猶予時間内に終わらなかったため中断します", "grace", s.config.ShutdownGrace.String())
		cancelRun()
		s.running.Wait()
	}

	elapsed := time.Since(startedAt).Minutes()
	s.sink.Log("", fmt.Sprintf("🏁 処理を終了しました。稼働時間: %.2f 分", elapsed))
	return nil
}

// Cycles は開始したサイクル数を返します
func (s *Scheduler) Cycles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycles
}

// trigger は停止済みでなければ1サイクルを実行します
func (s *Scheduler) trigger(ctx context.Context) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.running.Add(1)
	s.cycles++
	s.mu.Unlock()
	defer s.running.Done()

	s.runner.RunAll(ctx, s.targets)
}

// waitRunning は実行中のサイクルの終了を最大 timeout だけ待ちます
func (s *Scheduler) waitRunning(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// cronLogger はcronのログをslogへ流します
type cronLogger struct {
	logger *slog.Logger
}

// NewCronLogger はslogをcron.Loggerとして使うアダプターを作成します
func NewCronLogger(logger *slog.Logger) cron.Logger {
	return &cronLogger{logger: logger}
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

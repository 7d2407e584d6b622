package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/jinford/wiki-keepalive/internal/interface/tui"
	"github.com/jinford/wiki-keepalive/internal/module/keepalive/adapter/logsink"
	"github.com/jinford/wiki-keepalive/internal/platform/lock"
)

// PanelAction はコントロールパネルを起動する
func PanelAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("env"))
	if err != nil {
		return err
	}

	all, err := loadTargets(cmd, cfg)
	if err != nil {
		return err
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("実行ファイルの取得に失敗: %w", err)
	}

	controller := &processController{
		executable: executable,
		envFile:    cmd.String("env"),
		configFile: cmd.String("config"),
		pidFile:    cfg.PIDFile,
		logFile:    cfg.Log.File,
	}
	return tui.Run(all, controller)
}

// defaultStartupWait は起動直後の異常終了を検出するまでの待ち時間
const defaultStartupWait = 2 * time.Second

// processController はBotを子プロセスとして起動・停止する
type processController struct {
	executable  string
	envFile     string
	configFile  string
	pidFile     string
	logFile     string
	startupWait time.Duration
}

// runArgs は子プロセスに渡す引数を組み立てる
func (p *processController) runArgs(only []string) []string {
	args := []string{"run", "--env", p.envFile}
	if p.configFile != "" {
		args = append(args, "--config", p.configFile)
	}
	return append(args, "--only", strings.Join(only, ","))
}

func (p *processController) Start(only []string) error {
	if len(only) == 0 {
		return tui.ErrNothingSelected
	}

	// 標準出力の内容はログファイルにも書かれるため捨てる。起動時のエラーを残すため標準エラー出力はログファイルへ
	logFile, err := os.OpenFile(p.logFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("ログファイルを開けません: %w", err)
	}

	child := exec.Command(p.executable, p.runArgs(only)...)
	child.Stderr = logFile
	child.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := child.Start(); err != nil {
		logFile.Close()
		return fmt.Errorf("Botの起動に失敗: %w", err)
	}

	exited := make(chan error, 1)
	go func() {
		exited <- child.Wait()
		logFile.Close()
	}()

	wait := p.startupWait
	if wait <= 0 {
		wait = defaultStartupWait
	}
	select {
	case err := <-exited:
		if err == nil {
			err = errors.New("exit status 0")
		}
		return fmt.Errorf("Botが起動直後に終了しました (%v)。詳細は %s を確認してください", err, p.logFile)
	case <-time.After(wait):
		return nil
	}
}

func (p *processController) Stop() error {
	_, err := lock.Signal(p.pidFile, syscall.SIGINT)
	if errors.Is(err, lock.ErrNotRunning) {
		return errors.New("Botは稼働していません")
	}
	return err
}

func (p *processController) Status() (tui.BotStatus, error) {
	status, err := lock.ReadStatus(p.pidFile)
	if err != nil {
		return tui.BotStatus{}, err
	}
	return tui.BotStatus{PID: status.PID, Running: status.Running}, nil
}

func (p *processController) Tail(n int) ([]string, error) {
	return logsink.Tail(p.logFile, n)
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/jinford/wiki-keepalive/internal/module/keepalive/adapter/logsink"
	"github.com/jinford/wiki-keepalive/internal/platform/lock"
)

// StatusAction はBotの稼働状態とログの末尾を表示する
func StatusAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("env"))
	if err != nil {
		return err
	}

	status, err := lock.ReadStatus(cfg.PIDFile)
	if err != nil {
		return err
	}

	lines, err := logsink.Tail(cfg.Log.File, int(cmd.Int("lines")))
	if err != nil {
		return err
	}

	printStatus(os.Stdout, status, lines)
	return nil
}

func printStatus(w io.Writer, status lock.Status, lines []string) {
	switch {
	case status.Running:
		fmt.Fprintf(w, "状態: 稼働中 (pid %d)\n", status.PID)
	case status.PID != 0:
		fmt.Fprintf(w, "状態: 停止中 (古いPIDファイル: pid %d)\n", status.PID)
	default:
		fmt.Fprintln(w, "状態: 停止中")
	}

	if len(lines) == 0 {
		return
	}
	fmt.Fprintln(w, "\n--- 最近のログ ---")
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}

// StopAction は稼働中のBotに停止シグナルを送る
func StopAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("env"))
	if err != nil {
		return err
	}

	pid, err := lock.Signal(cfg.PIDFile, syscall.SIGINT)
	if errors.Is(err, lock.ErrNotRunning) {
		fmt.Println("Botは稼働していません")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("停止シグナルを送信しました (pid %d)\n", pid)
	return nil
}

package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/jinford/wiki-keepalive/internal/platform/lock"
)

// RunAction はBotを起動し、停止シグナルを受けるまで定期実行する
func RunAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	pidFile, err := lock.AcquirePIDFile(appCtx.Config.PIDFile)
	if err != nil {
		return err
	}
	defer func() {
		if err := pidFile.Release(); err != nil {
			appCtx.Logger().Warn("PIDファイルの削除に失敗しました", "error", err)
		}
	}()

	c := appCtx.Container
	c.Banner()

	if !cmd.Bool("skip-probe") {
		if err := c.Prober.Probe(ctx, appCtx.Targets[0]); err != nil {
			return fmt.Errorf("ログイン確認に失敗しました: %w", err)
		}
	}

	appCtx.Logger().Info("Botを起動します",
		"targets", len(appCtx.Targets),
		"interval", appCtx.Config.Schedule.RunInterval,
		"pid_file", pidFile.Path(),
	)

	return c.Scheduler(appCtx.Targets).Run(ctx)
}

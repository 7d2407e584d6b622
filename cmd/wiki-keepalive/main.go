package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/jinford/wiki-keepalive/cmd/wiki-keepalive/commands"
	"github.com/jinford/wiki-keepalive/internal/platform/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 構造化ログの設定（コマンド実行時に LOG_LEVEL / LOG_FORMAT で再設定される）
	logger.New(logger.DefaultConfig())

	app := &cli.Command{
		Name:     "wiki-keepalive",
		Usage:    "MediaWikiのページを定期的に更新し、Wikiを稼働状態に保つBot",
		Commands: buildCommands(),
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func envFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "env",
		Usage: "環境変数ファイルパス",
		Value: ".env",
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "config",
		Usage: "対象Wikiの設定ファイル（未指定時は WIKI_TARGETS_FILE）",
	}
}

func onlyFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:  "only",
		Usage: "処理するWiki名（複数指定可、カンマ区切り可）",
	}
}

func buildCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "run",
			Usage: "Botを起動し、一定間隔で全Wikiを更新",
			Flags: []cli.Flag{
				envFlag(),
				configFlag(),
				onlyFlag(),
				&cli.BoolFlag{
					Name:  "skip-probe",
					Usage: "起動時のログイン確認を省略",
				},
			},
			Action: commands.RunAction,
		},
		{
			Name:  "once",
			Usage: "全Wikiを1巡だけ更新して結果を表示",
			Flags: []cli.Flag{
				envFlag(),
				configFlag(),
				onlyFlag(),
			},
			Action: commands.OnceAction,
		},
		{
			Name:  "check",
			Usage: "Wikiへのログインを確認",
			Flags: []cli.Flag{
				envFlag(),
				configFlag(),
				onlyFlag(),
				&cli.BoolFlag{
					Name:  "all",
					Usage: "すべてのWikiを確認",
				},
			},
			Action: commands.CheckAction,
		},
		{
			Name:  "targets",
			Usage: "対象Wikiの一覧を表示",
			Flags: []cli.Flag{
				envFlag(),
				configFlag(),
				onlyFlag(),
			},
			Action: commands.TargetsAction,
		},
		{
			Name:  "status",
			Usage: "Botの稼働状態と最近のログを表示",
			Flags: []cli.Flag{
				envFlag(),
				&cli.IntFlag{
					Name:  "lines",
					Usage: "表示するログの行数",
					Value: 10,
				},
			},
			Action: commands.StatusAction,
		},
		{
			Name:   "stop",
			Usage:  "稼働中のBotを停止",
			Flags:  []cli.Flag{envFlag()},
			Action: commands.StopAction,
		},
		{
			Name:  "init",
			Usage: "対話形式で .env と設定ファイルを作成",
			Flags: []cli.Flag{
				envFlag(),
				&cli.StringFlag{
					Name:  "config",
					Usage: "作成する設定ファイル",
					Value: "wikis.yaml",
				},
				&cli.BoolFlag{
					Name:  "force",
					Usage: "既存のファイルを上書き",
				},
			},
			Action: commands.InitAction,
		},
		{
			Name:  "panel",
			Usage: "コントロールパネルを起動",
			Flags: []cli.Flag{
				envFlag(),
				configFlag(),
			},
			Action: commands.PanelAction,
		},
	}
}

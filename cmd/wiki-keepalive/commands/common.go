package commands

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/jinford/wiki-keepalive/internal/module/keepalive/adapter/targets"
	"github.com/jinford/wiki-keepalive/internal/module/keepalive/domain"
	"github.com/jinford/wiki-keepalive/internal/platform/config"
	"github.com/jinford/wiki-keepalive/internal/platform/container"
	"github.com/jinford/wiki-keepalive/internal/platform/logger"
)

// newContainer はテストで差し替えられる
var newContainer = container.New

// AppContext はコマンド実行に必要な共通コンテキストを保持する
type AppContext struct {
	Config    *config.Config
	Container *container.ServiceContainer
	Targets   []domain.WikiTarget
}

// loadConfig は設定を読み込み、ロガーを初期化する
func loadConfig(envFile string) (*config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	logger.New(logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
	})

	return cfg, nil
}

// loadTargets は対象Wikiを読み込み、--only で絞り込む
func loadTargets(cmd *cli.Command, cfg *config.Config) ([]domain.WikiTarget, error) {
	path := cmd.String("config")
	if path == "" {
		path = cfg.TargetsFile
	}

	all, err := targets.Load(path)
	if err != nil {
		return nil, err
	}

	selected, err := targets.Filter(all, cmd.StringSlice("only"))
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return nil, errors.New("対象のWikiがありません")
	}
	return selected, nil
}

// NewAppContext は設定と対象Wikiを読み込み、AppContext を作成する
// Wikiに接続するコマンド用のため、認証情報がない場合はエラーとする
func NewAppContext(cmd *cli.Command) (*AppContext, error) {
	cfg, err := loadConfig(cmd.String("env"))
	if err != nil {
		return nil, err
	}

	if err := cfg.RequireCredentials(); err != nil {
		return nil, err
	}

	selected, err := loadTargets(cmd, cfg)
	if err != nil {
		return nil, err
	}

	cont, err := newContainer(cfg)
	if err != nil {
		return nil, fmt.Errorf("コンテナの初期化に失敗: %w", err)
	}

	return &AppContext{
		Config:    cfg,
		Container: cont,
		Targets:   selected,
	}, nil
}

// Close はAppContextが保持するリソースをクリーンアップする
func (ac *AppContext) Close() {
	if ac.Container != nil {
		if err := ac.Container.Close(); err != nil {
			slog.Warn("リソースの解放に失敗しました", "error", err)
		}
	}
}

// Logger はAppContextのロガーを返す
func (ac *AppContext) Logger() *slog.Logger {
	if ac.Container != nil {
		return ac.Container.Logger()
	}
	return slog.Default()
}

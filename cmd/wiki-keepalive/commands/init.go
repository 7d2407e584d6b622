package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/urfave/cli/v3"

	"github.com/jinford/wiki-keepalive/internal/module/keepalive/adapter/targets"
	"github.com/jinford/wiki-keepalive/internal/module/keepalive/domain"
)

// initAnswers は init コマンドで入力された内容
type initAnswers struct {
	Credentials domain.Credentials
	Target      domain.WikiTarget
}

// InitAction は対話形式で .env と対象Wikiの設定ファイルを作成する
func InitAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	configFile := cmd.String("config")
	if configFile == "" {
		configFile = "wikis.yaml"
	}
	force := cmd.Bool("force")

	if !force {
		for _, path := range []string{envFile, configFile} {
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s は既に存在します (上書きする場合は --force)", path)
			}
		}
	}

	answers, err := promptInitAnswers()
	if err != nil {
		return err
	}

	if err := writeInitFiles(envFile, configFile, answers, force); err != nil {
		return err
	}

	fmt.Printf("✓ %s を作成しました\n", envFile)
	fmt.Printf("✓ %s を作成しました\n", configFile)
	return nil
}

// === ヘルパー関数 ===

// promptInitAnswers はインタラクティブに初期設定の入力を受け付けます
func promptInitAnswers() (*initAnswers, error) {
	answers := &initAnswers{}

	// Username
	promptUser := promptui.Prompt{
		Label:    "Botのユーザー名 (例: MyBot@keepalive)",
		Validate: requireInput,
	}
	username, err := promptUser.Run()
	if err != nil {
		return nil, err
	}
	answers.Credentials.Username = username

	// Password
	promptPass := promptui.Prompt{
		Label:    "Botのパスワード",
		Mask:     '*',
		Validate: requireInput,
	}
	password, err := promptPass.Run()
	if err != nil {
		return nil, err
	}
	answers.Credentials.Password = password

	// Wiki
	promptDesc := promptui.Prompt{
		Label:    "Wikiの名前",
		Default:  "Main wiki",
		Validate: requireInput,
	}
	desc, err := promptDesc.Run()
	if err != nil {
		return nil, err
	}

	promptHost := promptui.Prompt{
		Label:    "ホスト名 (例: example.fandom.com)",
		Validate: requireInput,
	}
	host, err := promptHost.Run()
	if err != nil {
		return nil, err
	}

	promptPath := promptui.Select{
		Label: "スクリプトパス",
		Items: []string{"/", "/w/", "/wiki/"},
	}
	_, path, err := promptPath.Run()
	if err != nil {
		return nil, err
	}

	promptPages := promptui.Prompt{
		Label:    "更新するページ (カンマ区切り)",
		Default:  "Main Page",
		Validate: requireInput,
	}
	pagesStr, err := promptPages.Run()
	if err != nil {
		return nil, err
	}

	answers.Target = domain.WikiTarget{
		Description: desc,
		Host:        host,
		Path:        path,
		Pages:       splitAndTrim(pagesStr),
	}
	return answers, nil
}

// writeInitFiles は入力内容から .env と設定ファイルを書き出します
func writeInitFiles(envFile, configFile string, answers *initAnswers, force bool) error {
	data, err := targets.Marshal([]domain.WikiTarget{answers.Target})
	if err != nil {
		return fmt.Errorf("設定ファイルの生成に失敗: %w", err)
	}
	// 書き出す前に読み込み時と同じ検証を行う
	if _, err := targets.Parse(data); err != nil {
		return err
	}

	env := fmt.Sprintf("WIKI_USER=%s\nWIKI_PASS=%s\nWIKI_TARGETS_FILE=%s\n",
		quoteEnv(answers.Credentials.Username),
		quoteEnv(answers.Credentials.Password),
		quoteEnv(configFile),
	)

	if err := writeFile(envFile, []byte(env), 0o600, force); err != nil {
		return err
	}
	return writeFile(configFile, data, 0o644, force)
}

func writeFile(path string, data []byte, perm os.FileMode, force bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, perm)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s は既に存在します (上書きする場合は --force)", path)
		}
		return fmt.Errorf("%s の作成に失敗: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("%s の書き込みに失敗: %w", path, err)
	}
	return f.Close()
}

func requireInput(input string) error {
	if strings.TrimSpace(input) == "" {
		return errors.New("入力してください")
	}
	return nil
}

// quoteEnv は godotenv が読み戻せるように値をクォートします
func quoteEnv(value string) string {
	if !strings.ContainsAny(value, " #\"'\\=$") {
		return value
	}
	replacer := strings.NewReplacer(`\`, `\\`, `"`, `\"`, `$`, `\$`)
	return `"` + replacer.Replace(value) + `"`
}

// splitAndTrim はカンマ区切りの文字列を分割し、空白を除去します
func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

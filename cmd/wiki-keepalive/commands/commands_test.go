package commands

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/jinford/wiki-keepalive/internal/module/keepalive/adapter/targets"
	"github.com/jinford/wiki-keepalive/internal/module/keepalive/domain"
	testutil "github.com/jinford/wiki-keepalive/internal/module/keepalive/testing"
	"github.com/jinford/wiki-keepalive/internal/platform/config"
	"github.com/jinford/wiki-keepalive/internal/platform/container"
	"github.com/jinford/wiki-keepalive/internal/platform/lock"
)

const testWikis = `
wikis:
  - desc: Main wiki
    path: /
    hostcheck: a.example.com
    pages: [Main Page, Developer]
  - desc: Vietnamese wiki
    path: /vi/
    hostcheck: b.example.com
    pages: [Main_Page]
`

type testEnv struct {
	dir        string
	envFile    string
	configFile string
	pidFile    string
	logFile    string
}

// setupEnv はテスト用の環境変数と設定ファイルを用意します
func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		dir:        dir,
		envFile:    filepath.Join(dir, "missing.env"),
		configFile: filepath.Join(dir, "wikis.yaml"),
		pidFile:    filepath.Join(dir, "bot.pid"),
		logFile:    filepath.Join(dir, "log.txt"),
	}
	require.NoError(t, os.WriteFile(env.configFile, []byte(testWikis), 0o644))

	t.Setenv("WIKI_USER", "bot")
	t.Setenv("WIKI_PASS", "pw")
	t.Setenv("WIKI_TARGETS_FILE", env.configFile)
	t.Setenv("WIKI_PID_FILE", env.pidFile)
	t.Setenv("WIKI_LOG_FILE", env.logFile)
	t.Setenv("WIKI_PAGE_DELAY", "0s")
	t.Setenv("WIKI_RUN_INTERVAL", "1h")
	t.Setenv("WIKI_SHUTDOWN_GRACE", "5s")
	t.Setenv("LOG_LEVEL", "error")
	return env
}

func newFakeWiki() *testutil.FakeWiki {
	return testutil.NewFakeWiki().
		AddPage("a.example.com", "Main Page", "main").
		AddPage("a.example.com", "Developer", "dev").
		AddPage("b.example.com", "Main_Page", "vi")
}

// useFakeWiki はコンテナの接続先とログ出力をテスト用に差し替えます
func useFakeWiki(t *testing.T, wiki *testutil.FakeWiki) *testutil.RecordingSink {
	t.Helper()
	sink := &testutil.RecordingSink{}
	previous := newContainer
	newContainer = func(cfg *config.Config, opts ...container.ContainerOption) (*container.ServiceContainer, error) {
		return container.New(cfg, append(opts, container.WithSessionFactory(wiki), container.WithSink(sink))...)
	}
	t.Cleanup(func() { newContainer = previous })
	return sink
}

func runCommand(ctx context.Context, action cli.ActionFunc, flags []cli.Flag, args ...string) error {
	cmd := &cli.Command{
		Name:   "test",
		Flags:  flags,
		Action: action,
	}
	return cmd.Run(ctx, append([]string{"test"}, args...))
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "env", Value: ".env"},
		&cli.StringFlag{Name: "config"},
		&cli.StringSliceFlag{Name: "only"},
		&cli.BoolFlag{Name: "skip-probe"},
		&cli.BoolFlag{Name: "all"},
	}
}

func TestOnceAction(t *testing.T) {
	env := setupEnv(t)
	wiki := newFakeWiki()
	sink := useFakeWiki(t, wiki)

	err := runCommand(context.Background(), OnceAction, commonFlags(), "--env", env.envFile)
	require.NoError(t, err)

	assert.Len(t, wiki.Saves(), 3)
	assert.Contains(t, sink.Messages("Main wiki"), "✅ 完了: Main wiki")
	assert.Contains(t, sink.Messages("Vietnamese wiki"), "✅ 完了: Vietnamese wiki")
}

func TestOnceAction_Only(t *testing.T) {
	env := setupEnv(t)
	wiki := newFakeWiki()
	useFakeWiki(t, wiki)

	err := runCommand(context.Background(), OnceAction, commonFlags(),
		"--env", env.envFile, "--config", env.configFile, "--only", "Vietnamese wiki")
	require.NoError(t, err)

	saves := wiki.Saves()
	require.Len(t, saves, 1)
	assert.Equal(t, "b.example.com", saves[0].Host)
}

func TestOnceAction_UnknownOnly(t *testing.T) {
	env := setupEnv(t)
	useFakeWiki(t, newFakeWiki())

	err := runCommand(context.Background(), OnceAction, commonFlags(), "--env", env.envFile, "--only", "Nope")
	assert.ErrorIs(t, err, targets.ErrUnknownTarget)
}

func TestOnceAction_MissingCredentials(t *testing.T) {
	env := setupEnv(t)
	t.Setenv("WIKI_PASS", "")
	wiki := newFakeWiki()
	useFakeWiki(t, wiki)

	err := runCommand(context.Background(), OnceAction, commonFlags(), "--env", env.envFile)
	assert.ErrorIs(t, err, domain.ErrMissingCredentials)
	assert.Empty(t, wiki.Logins())
}

func TestOnceAction_AllLoginsFail(t *testing.T) {
	env := setupEnv(t)
	wiki := newFakeWiki().
		FailLogin("a.example.com", domain.ErrLoginFailed).
		FailLogin("b.example.com", domain.ErrLoginFailed)
	useFakeWiki(t, wiki)

	err := runCommand(context.Background(), OnceAction, commonFlags(), "--env", env.envFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "接続できませんでした")
}

func TestCheckAction(t *testing.T) {
	env := setupEnv(t)

	wiki := newFakeWiki()
	useFakeWiki(t, wiki)
	require.NoError(t, runCommand(context.Background(), CheckAction, commonFlags(), "--env", env.envFile))
	assert.Equal(t, []string{"a.example.com"}, wiki.Logins())
	assert.Empty(t, wiki.Saves())

	wiki = newFakeWiki().FailLogin("b.example.com", domain.ErrLoginFailed)
	useFakeWiki(t, wiki)
	err := runCommand(context.Background(), CheckAction, commonFlags(), "--env", env.envFile, "--all")
	require.Error(t, err)
	assert.ElementsMatch(t, []string{"a.example.com", "b.example.com"}, wiki.Logins())
}

func TestRunAction_RunsUntilCancelled(t *testing.T) {
	env := setupEnv(t)
	wiki := newFakeWiki()
	sink := useFakeWiki(t, wiki)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- runCommand(ctx, RunAction, commonFlags(), "--env", env.envFile)
	}()

	require.Eventually(t, func() bool { return len(wiki.Saves()) == 3 }, 5*time.Second, 10*time.Millisecond)

	status, err := lock.ReadStatus(env.pidFile)
	require.NoError(t, err)
	assert.True(t, status.Running)
	assert.Equal(t, os.Getpid(), status.PID)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not stop")
	}

	// ログイン確認は先頭のWikiに対して行われる
	assert.Equal(t, "a.example.com", wiki.Logins()[0])

	messages := sink.Messages("")
	require.NotEmpty(t, messages)
	assert.True(t, strings.HasPrefix(messages[len(messages)-1], "🏁 処理を終了しました"))

	_, err = os.Stat(env.pidFile)
	assert.True(t, os.IsNotExist(err))
}

func TestRunAction_ProbeFailure(t *testing.T) {
	env := setupEnv(t)
	wiki := newFakeWiki().FailLogin("a.example.com", domain.ErrLoginFailed)
	useFakeWiki(t, wiki)

	err := runCommand(context.Background(), RunAction, commonFlags(), "--env", env.envFile)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrLoginFailed)
	assert.Empty(t, wiki.Saves())

	_, statErr := os.Stat(env.pidFile)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunAction_AlreadyRunning(t *testing.T) {
	env := setupEnv(t)
	wiki := newFakeWiki()
	useFakeWiki(t, wiki)
	holder, err := lock.AcquirePIDFile(env.pidFile)
	require.NoError(t, err)
	defer holder.Release()

	err = runCommand(context.Background(), RunAction, commonFlags(), "--env", env.envFile)
	assert.ErrorIs(t, err, lock.ErrAlreadyRunning)
	assert.Empty(t, wiki.Logins())
}

func TestRenderCycleSummary(t *testing.T) {
	report := domain.CycleReport{
		Targets: []domain.TargetReport{
			{
				Target: "Main wiki",
				Host:   "a.example.com",
				Results: []domain.PageUpdateResult{
					{Title: "Main Page", Outcome: domain.OutcomeUpdated},
					{Title: "Developer", Outcome: domain.OutcomeLocked},
				},
			},
			{Target: "Vietnamese wiki", Host: "b.example.com", SessionError: "login failed"},
		},
	}

	var buf bytes.Buffer
	renderCycleSummary(&buf, report)

	out := buf.String()
	assert.Contains(t, out, "Main wiki")
	assert.Contains(t, out, "Vietnamese wiki")
	assert.Contains(t, out, "login failed")
	assert.Contains(t, out, "サイクルID")
}

func TestRenderTargets(t *testing.T) {
	var buf bytes.Buffer
	renderTargets(&buf, "https", []domain.WikiTarget{
		{Description: "Main wiki", Host: "a.example.com", Path: "/", Pages: []string{"Main Page"}},
		{Description: "Vietnamese wiki", Host: "b.example.com", Path: "/vi/", Pages: []string{"A", "B"}},
	})

	out := buf.String()
	assert.Contains(t, out, "https://a.example.com/api.php")
	assert.Contains(t, out, "https://b.example.com/vi/api.php")
	assert.Contains(t, out, "合計: 2 Wiki")
}

func TestPrintStatus(t *testing.T) {
	tests := []struct {
		name   string
		status lock.Status
		lines  []string
		want   []string
	}{
		{name: "稼働中", status: lock.Status{PID: 12, Running: true}, lines: []string{"[ts] hello"}, want: []string{"稼働中 (pid 12)", "[ts] hello"}},
		{name: "古いPIDファイル", status: lock.Status{PID: 12}, want: []string{"古いPIDファイル"}},
		{name: "停止中", want: []string{"状態: 停止中"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printStatus(&buf, tt.status, tt.lines)
			for _, want := range tt.want {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestStopAction_NotRunning(t *testing.T) {
	env := setupEnv(t)
	assert.NoError(t, runCommand(context.Background(), StopAction, commonFlags(), "--env", env.envFile))
}

func TestProcessController(t *testing.T) {
	env := setupEnv(t)
	p := &processController{
		executable: "/bin/false",
		envFile:    ".env",
		configFile: "wikis.yaml",
		pidFile:    env.pidFile,
		logFile:    env.logFile,
	}

	assert.Equal(t,
		[]string{"run", "--env", ".env", "--config", "wikis.yaml", "--only", "Main wiki,Vietnamese wiki"},
		p.runArgs([]string{"Main wiki", "Vietnamese wiki"}),
	)

	assert.Error(t, p.Start(nil))

	status, err := p.Status()
	require.NoError(t, err)
	assert.False(t, status.Running)

	lines, err := p.Tail(10)
	require.NoError(t, err)
	assert.Empty(t, lines)

	assert.Error(t, p.Stop())
}

// writeScript はテスト用の実行ファイルを作成します
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-bot")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestProcessController_StartReportsEarlyExit(t *testing.T) {
	env := setupEnv(t)
	p := &processController{
		executable:  writeScript(t, `echo "WIKI_USER と WIKI_PASS を設定してください" >&2; exit 1`),
		envFile:     ".env",
		pidFile:     env.pidFile,
		logFile:     env.logFile,
		startupWait: 5 * time.Second,
	}

	err := p.Start([]string{"Main wiki"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "起動直後に終了しました")

	// 子プロセスの標準エラー出力はログファイルに残る
	data, err := os.ReadFile(env.logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "WIKI_USER と WIKI_PASS を設定してください")
}

func TestProcessController_StartKeepsRunningChild(t *testing.T) {
	env := setupEnv(t)
	p := &processController{
		executable:  writeScript(t, `sleep 1`),
		envFile:     ".env",
		pidFile:     env.pidFile,
		logFile:     env.logFile,
		startupWait: 100 * time.Millisecond,
	}

	assert.NoError(t, p.Start([]string{"Main wiki"}))
}

func TestWriteInitFiles(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	configFile := filepath.Join(dir, "wikis.yaml")

	answers := &initAnswers{
		Credentials: domain.Credentials{Username: "MyBot@keepalive", Password: "p@ss word#1"},
		Target: domain.WikiTarget{
			Description: "Main wiki",
			Host:        "example.fandom.com",
			Path:        "/",
			Pages:       splitAndTrim("Main Page, Developer ,"),
		},
	}
	require.NoError(t, writeInitFiles(envFile, configFile, answers, false))

	loaded, err := targets.Load(configFile)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, []string{"Main Page", "Developer"}, loaded[0].Pages)

	values, err := godotenv.Read(envFile)
	require.NoError(t, err)
	assert.Equal(t, "MyBot@keepalive", values["WIKI_USER"])
	assert.Equal(t, "p@ss word#1", values["WIKI_PASS"])
	assert.Equal(t, configFile, values["WIKI_TARGETS_FILE"])

	info, err := os.Stat(envFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// 既存ファイルは --force なしでは上書きしない
	err = writeInitFiles(envFile, configFile, answers, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "既に存在します")

	answers.Target.Pages = []string{"Home"}
	require.NoError(t, writeInitFiles(envFile, configFile, answers, true))
	loaded, err = targets.Load(configFile)
	require.NoError(t, err)
	assert.Equal(t, []string{"Home"}, loaded[0].Pages)
}

func TestWriteInitFiles_InvalidTarget(t *testing.T) {
	dir := t.TempDir()
	answers := &initAnswers{
		Credentials: domain.Credentials{Username: "u", Password: "p"},
		Target:      domain.WikiTarget{Description: "W", Host: "example.com", Path: "wiki", Pages: []string{"A"}},
	}

	err := writeInitFiles(filepath.Join(dir, ".env"), filepath.Join(dir, "wikis.yaml"), answers, false)
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, ".env"))
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestRequireInput(t *testing.T) {
	assert.Error(t, requireInput("   "))
	assert.NoError(t, requireInput("bot"))
}

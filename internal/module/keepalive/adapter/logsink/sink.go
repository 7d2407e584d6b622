package logsink

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

const timestampLayout = "2006-01-02 15:04:05"

// Writer は "[時刻] [Wiki名] メッセージ" 形式の行を追記するログ出力先です
//
// 1行ごとに1回のWriteで書き込むため、並行して呼び出されても行が混ざりません。
type Writer struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

// Option は Writer のオプション
type Option func(*Writer)

// WithClock は時刻関数を差し替える（テスト用）
func WithClock(now func() time.Time) Option {
	return func(w *Writer) {
		if now != nil {
			w.now = now
		}
	}
}

// New は out に書き込む Writer を作成します
func New(out io.Writer, opts ...Option) *Writer {
	w := &Writer{out: out, now: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// FileConfig はログファイルの設定
type FileConfig struct {
	Path      string
	MaxSizeMB int
	Console   bool // 標準出力にも同じ行を出力する
}

// NewFile はローテーション付きのログファイルへ書き込む Writer を作成します
//
// 返り値の io.Closer でファイルを閉じます。
func NewFile(cfg FileConfig, opts ...Option) (*Writer, io.Closer) {
	file := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: 3,
		LocalTime:  true,
	}

	var out io.Writer = file
	if cfg.Console {
		out = io.MultiWriter(os.Stdout, file)
	}
	return New(out, opts...), file
}

// Log は1行を追記します。書き込みに失敗した場合は標準エラー出力へ報告する
func (w *Writer) Log(wiki, message string) {
	line := w.format(wiki, message)

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := io.WriteString(w.out, line); err != nil {
		fmt.Fprintf(os.Stderr, "log sink write failed: %v\n", err)
	}
}

// Banner はプロセス起動時の区切り行を書き込みます
func (w *Writer) Banner() {
	line := fmt.Sprintf("\n=== 新規実行: %s ===\n", w.now().Format(timestampLayout))

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := io.WriteString(w.out, line); err != nil {
		fmt.Fprintf(os.Stderr, "log sink write failed: %v\n", err)
	}
}

func (w *Writer) format(wiki, message string) string {
	message = strings.TrimRight(message, "\n")
	timestamp := w.now().Format(timestampLayout)
	if wiki == "" {
		return fmt.Sprintf("[%s] %s\n", timestamp, message)
	}
	return fmt.Sprintf("[%s] [%s] %s\n", timestamp, wiki, message)
}

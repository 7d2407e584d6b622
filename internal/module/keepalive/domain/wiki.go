package domain

import (
	"context"

	"github.com/samber/mo"
)

// SessionFactory はWikiホストへログインしてセッションを確立します
type SessionFactory interface {
	Authenticate(ctx context.Context, host, path string, creds Credentials) (Session, error)
}

// Session は1つのWikiに対する認証済みの接続です
//
// 1回の処理パスの間だけ使用し、Wiki間で共有しません。
type Session interface {
	// GetPage はページを解決します。ページが存在しない場合は mo.None を返します。
	GetPage(ctx context.Context, title string) (mo.Option[Page], error)
}

// Page は存在が確認されたページのハンドル
type Page interface {
	Title() string
	ReadText(ctx context.Context) (string, error)
	// Save は本文を保存します。保護されたページでは ErrProtectedPage を包んだエラーを返します。
	Save(ctx context.Context, text, summary string) error
}

// LogSink は追記専用のログ出力先です
//
// 並行して呼び出されても1行単位で書き込まれる必要があります。
type LogSink interface {
	Log(wiki, message string)
}

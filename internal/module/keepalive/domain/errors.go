package domain

import "errors"

var (
	// ErrProtectedPage はページが保護されていて編集できない場合のエラー
	ErrProtectedPage = errors.New("page is protected")

	// ErrLoginFailed はWikiへのログインが拒否された場合のエラー
	ErrLoginFailed = errors.New("login failed")

	// ErrMissingCredentials は認証情報が設定されていない場合のエラー
	ErrMissingCredentials = errors.New("WIKI_USER or WIKI_PASS is not set")
)

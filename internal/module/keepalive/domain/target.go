package domain

// WikiTarget は処理対象のWikiサイトと更新するページの一覧です
//
// 起動時に一度だけ読み込まれ、以降は変更されません。
// Description はログの相関にのみ使用します。
type WikiTarget struct {
	Description string
	Host        string
	Path        string
	Pages       []string
}

// Credentials はWikiへのログインに使用する認証情報
type Credentials struct {
	Username string
	Password string
}

// IsZero はユーザー名またはパスワードが欠けているかを返します
func (c Credentials) IsZero() bool {
	return c.Username == "" || c.Password == ""
}

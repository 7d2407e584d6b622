package mediawiki

import (
	"fmt"

	"github.com/jinford/wiki-keepalive/internal/module/keepalive/domain"
)

// protectedCodes はページ保護を示すAPIエラーコード。ブロックなどアカウント単位の拒否は含めない
var protectedCodes = map[string]bool{
	"protectedpage":                true,
	"cascadeprotected":             true,
	"protectednamespace":           true,
	"protectednamespace-interface": true,
	"protectedtitle":               true,
	"customcssjsprotected":         true,
	"customcssprotected":           true,
	"customjsprotected":            true,
	"permissiondenied":             true,
	"cantcreate":                   true,
	"cantcreate-anon":              true,
}

// APIError はMediaWiki APIが返したエラーです
type APIError struct {
	Code string
	Info string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mediawiki api error %s: %s", e.Code, e.Info)
}

// Unwrap は保護系のエラーコードのとき domain.ErrProtectedPage を返します
func (e *APIError) Unwrap() error {
	if protectedCodes[e.Code] {
		return domain.ErrProtectedPage
	}
	return nil
}

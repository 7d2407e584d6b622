package mediawiki

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/samber/mo"
	"github.com/tidwall/gjson"

	"github.com/jinford/wiki-keepalive/internal/module/keepalive/domain"
)

// Session はログイン済みのMediaWiki APIセッション
type Session struct {
	endpoint  string
	userAgent string
	http      *http.Client

	mu        sync.Mutex
	csrfToken string
}

// Endpoint はセッションの api.php URL を返します
func (s *Session) Endpoint() string {
	return s.endpoint
}

func (s *Session) login(ctx context.Context, creds domain.Credentials) error {
	res, err := s.get(ctx, url.Values{
		"action": {"query"},
		"meta":   {"tokens"},
		"type":   {"login"},
	})
	if err != nil {
		return fmt.Errorf("failed to fetch login token: %w", err)
	}
	token := res.Get("query.tokens.logintoken").String()
	if token == "" {
		return fmt.Errorf("failed to fetch login token: empty token")
	}

	res, err = s.post(ctx, url.Values{
		"action":     {"login"},
		"lgname":     {creds.Username},
		"lgpassword": {creds.Password},
		"lgtoken":    {token},
	})
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}

	if result := res.Get("login.result").String(); result != "Success" {
		reason := res.Get("login.reason").String()
		if reason == "" {
			reason = result
		}
		return fmt.Errorf("%w: %s", domain.ErrLoginFailed, reason)
	}
	return nil
}

// GetPage はページの存在を確認します
func (s *Session) GetPage(ctx context.Context, title string) (mo.Option[domain.Page], error) {
	res, err := s.get(ctx, url.Values{
		"action": {"query"},
		"prop":   {"info"},
		"titles": {title},
	})
	if err != nil {
		return mo.None[domain.Page](), fmt.Errorf("failed to look up page %q: %w", title, err)
	}

	page := res.Get("query.pages.0")
	if !page.Exists() || page.Get("missing").Bool() || page.Get("invalid").Bool() {
		return mo.None[domain.Page](), nil
	}

	resolved := page.Get("title").String()
	if resolved == "" {
		resolved = title
	}
	return mo.Some[domain.Page](&Page{session: s, title: resolved}), nil
}

// editToken はCSRFトークンを返します。取得済みのものはセッション内で再利用する
func (s *Session) editToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.csrfToken != "" {
		return s.csrfToken, nil
	}

	res, err := s.get(ctx, url.Values{
		"action": {"query"},
		"meta":   {"tokens"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to fetch csrf token: %w", err)
	}
	token := res.Get("query.tokens.csrftoken").String()
	if token == "" || token == "+\\" {
		return "", fmt.Errorf("failed to fetch csrf token: session is not logged in")
	}
	s.csrfToken = token
	return token, nil
}

func (s *Session) resetEditToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.csrfToken = ""
}

func (s *Session) get(ctx context.Context, params url.Values) (gjson.Result, error) {
	params = withFormat(params)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return gjson.Result{}, err
	}
	return s.do(req)
}

func (s *Session) post(ctx context.Context, params url.Values) (gjson.Result, error) {
	params = withFormat(params)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req)
}

func (s *Session) do(req *http.Request) (gjson.Result, error) {
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.http.Do(req)
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, s.endpoint)
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("invalid JSON response from %s", s.endpoint)
	}

	res := gjson.ParseBytes(body)
	if apiErr := res.Get("error"); apiErr.Exists() {
		return gjson.Result{}, &APIError{
			Code: apiErr.Get("code").String(),
			Info: apiErr.Get("info").String(),
		}
	}
	return res, nil
}

func withFormat(params url.Values) url.Values {
	params.Set("format", "json")
	params.Set("formatversion", "2")
	return params
}

// Page はMediaWiki上の既存ページ
type Page struct {
	session *Session
	title   string
}

// Title は正規化されたページ名を返します
func (p *Page) Title() string {
	return p.title
}

// ReadText は最新版のウィキテキストを取得します
func (p *Page) ReadText(ctx context.Context) (string, error) {
	res, err := p.session.get(ctx, url.Values{
		"action":  {"query"},
		"prop":    {"revisions"},
		"rvprop":  {"content"},
		"rvslots": {"main"},
		"titles":  {p.title},
	})
	if err != nil {
		return "", fmt.Errorf("failed to read page %q: %w", p.title, err)
	}

	content := res.Get("query.pages.0.revisions.0.slots.main.content")
	if !content.Exists() {
		// slots に対応していない古いMediaWiki
		content = res.Get("query.pages.0.revisions.0.content")
	}
	if !content.Exists() {
		return "", fmt.Errorf("failed to read page %q: no revision content", p.title)
	}
	return content.String(), nil
}

// Save は本文を保存します。トークンが失効していた場合は取り直して1度だけ再送する
func (p *Page) Save(ctx context.Context, text, summary string) error {
	err := p.save(ctx, text, summary)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code == "badtoken" {
		p.session.resetEditToken()
		err = p.save(ctx, text, summary)
	}
	return err
}

func (p *Page) save(ctx context.Context, text, summary string) error {
	token, err := p.session.editToken(ctx)
	if err != nil {
		return err
	}

	res, err := p.session.post(ctx, url.Values{
		"action":   {"edit"},
		"title":    {p.title},
		"text":     {text},
		"summary":  {summary},
		"nocreate": {"1"},
		"token":    {token},
	})
	if err != nil {
		return fmt.Errorf("failed to save page %q: %w", p.title, err)
	}

	if result := res.Get("edit.result").String(); result != "Success" {
		return fmt.Errorf("failed to save page %q: edit result %q", p.title, result)
	}
	return nil
}

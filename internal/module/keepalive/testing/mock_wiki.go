package testing

import (
	"context"
	"fmt"
	"sync"

	"github.com/samber/mo"

	"github.com/jinford/wiki-keepalive/internal/module/keepalive/domain"
)

// MockSessionFactory はテスト用のモックSessionFactoryです
type MockSessionFactory struct {
	AuthenticateFunc func(ctx context.Context, host, path string, creds domain.Credentials) (domain.Session, error)
}

func (m *MockSessionFactory) Authenticate(ctx context.Context, host, path string, creds domain.Credentials) (domain.Session, error) {
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx, host, path, creds)
	}
	return &MockSession{}, nil
}

// MockSession はテスト用のモックSessionです
type MockSession struct {
	GetPageFunc func(ctx context.Context, title string) (mo.Option[domain.Page], error)
}

func (m *MockSession) GetPage(ctx context.Context, title string) (mo.Option[domain.Page], error) {
	if m.GetPageFunc != nil {
		return m.GetPageFunc(ctx, title)
	}
	return mo.None[domain.Page](), nil
}

// MockPage はテスト用のモックPageです
type MockPage struct {
	TitleValue   string
	ReadTextFunc func(ctx context.Context) (string, error)
	SaveFunc     func(ctx context.Context, text, summary string) error
}

func (m *MockPage) Title() string {
	return m.TitleValue
}

func (m *MockPage) ReadText(ctx context.Context) (string, error) {
	if m.ReadTextFunc != nil {
		return m.ReadTextFunc(ctx)
	}
	return "", nil
}

func (m *MockPage) Save(ctx context.Context, text, summary string) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, text, summary)
	}
	return nil
}

// FakeWiki はメモリ上のページを持つSessionFactoryの実装です
//
// ホストごとにページ本文を保持し、保存された本文と保存順を記録します。
type FakeWiki struct {
	mu        sync.Mutex
	pages     map[string]map[string]string
	protected map[string]bool
	failing   map[string]error
	authErr   map[string]error
	saves     []SavedEdit
	logins    []string
}

// SavedEdit は FakeWiki に保存された編集の記録
type SavedEdit struct {
	Host    string
	Title   string
	Text    string
	Summary string
}

// NewFakeWiki は空の FakeWiki を作成します
func NewFakeWiki() *FakeWiki {
	return &FakeWiki{
		pages:     make(map[string]map[string]string),
		protected: make(map[string]bool),
		failing:   make(map[string]error),
		authErr:   make(map[string]error),
	}
}

// AddPage はページを追加します
func (w *FakeWiki) AddPage(host, title, text string) *FakeWiki {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pages[host] == nil {
		w.pages[host] = make(map[string]string)
	}
	w.pages[host][title] = text
	return w
}

// Protect はページを保護状態にします
func (w *FakeWiki) Protect(host, title string) *FakeWiki {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.protected[host+"|"+title] = true
	return w
}

// FailSave はページ保存時に指定したエラーを返すようにします
func (w *FakeWiki) FailSave(host, title string, err error) *FakeWiki {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failing[host+"|"+title] = err
	return w
}

// FailLogin はホストへのログインを失敗させます
func (w *FakeWiki) FailLogin(host string, err error) *FakeWiki {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.authErr[host] = err
	return w
}

// Text は現在のページ本文を返します
func (w *FakeWiki) Text(host, title string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pages[host][title]
}

// Saves は保存された編集を保存順に返します
func (w *FakeWiki) Saves() []SavedEdit {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]SavedEdit(nil), w.saves...)
}

// Logins はログインを試みたホストを返します
func (w *FakeWiki) Logins() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.logins...)
}

func (w *FakeWiki) Authenticate(ctx context.Context, host, path string, creds domain.Credentials) (domain.Session, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.logins = append(w.logins, host)
	if err := w.authErr[host]; err != nil {
		return nil, err
	}
	return &fakeSession{wiki: w, host: host}, nil
}

type fakeSession struct {
	wiki *FakeWiki
	host string
}

func (s *fakeSession) GetPage(ctx context.Context, title string) (mo.Option[domain.Page], error) {
	s.wiki.mu.Lock()
	defer s.wiki.mu.Unlock()
	if _, ok := s.wiki.pages[s.host][title]; !ok {
		return mo.None[domain.Page](), nil
	}
	return mo.Some[domain.Page](&fakePage{session: s, title: title}), nil
}

type fakePage struct {
	session *fakeSession
	title   string
}

func (p *fakePage) Title() string {
	return p.title
}

func (p *fakePage) ReadText(ctx context.Context) (string, error) {
	return p.session.wiki.Text(p.session.host, p.title), nil
}

func (p *fakePage) Save(ctx context.Context, text, summary string) error {
	w := p.session.wiki
	w.mu.Lock()
	defer w.mu.Unlock()
	key := p.session.host + "|" + p.title
	if w.protected[key] {
		return fmt.Errorf("edit %q: %w", p.title, domain.ErrProtectedPage)
	}
	if err := w.failing[key]; err != nil {
		return err
	}
	w.pages[p.session.host][p.title] = text
	w.saves = append(w.saves, SavedEdit{Host: p.session.host, Title: p.title, Text: text, Summary: summary})
	return nil
}

// SinkEntry は RecordingSink に記録された1行
type SinkEntry struct {
	Wiki    string
	Message string
}

// RecordingSink はログ行をメモリに記録するLogSinkです
type RecordingSink struct {
	mu      sync.Mutex
	entries []SinkEntry
}

func (s *RecordingSink) Log(wiki, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, SinkEntry{Wiki: wiki, Message: message})
}

// Entries は記録された行を記録順に返します
func (s *RecordingSink) Entries() []SinkEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SinkEntry(nil), s.entries...)
}

// Messages は指定したWikiの行のメッセージのみを返します
func (s *RecordingSink) Messages(wiki string) []string {
	var out []string
	for _, e := range s.Entries() {
		if e.Wiki == wiki {
			out = append(out, e.Message)
		}
	}
	return out
}

package application

import (
	"context"
	"fmt"

	"github.com/jinford/wiki-keepalive/internal/module/keepalive/domain"
)

// Prober はスケジュール開始前にWikiへのログインを確認します
type Prober struct {
	sessions domain.SessionFactory
	creds    domain.Credentials
	sink     domain.LogSink
}

// NewProber は新しいProberを作成します
func NewProber(sessions domain.SessionFactory, creds domain.Credentials, sink domain.LogSink) *Prober {
	return &Prober{sessions: sessions, creds: creds, sink: sink}
}

// Probe はログインのみを行い、失敗した場合はエラーを返します
func (p *Prober) Probe(ctx context.Context, target domain.WikiTarget) error {
	if _, err := p.sessions.Authenticate(ctx, target.Host, target.Path, p.creds); err != nil {
		p.sink.Log("", fmt.Sprintf("[X] 接続テストに失敗しました: %s: %v", target.Description, err))
		return fmt.Errorf("login probe for %q: %w", target.Description, err)
	}
	p.sink.Log("", fmt.Sprintf("[✔] テスト用Wikiへのログインに成功しました: %s", target.Description))
	return nil
}

package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jinford/wiki-keepalive/internal/module/keepalive/domain"
)

// DefaultEditSummary は編集時に付与する要約
const DefaultEditSummary = "Wikiを稼働状態に保つための自動更新"

// PageUpdater は1ページのマーカーを更新します
type PageUpdater struct {
	sink    domain.LogSink
	summary string
	now     func() time.Time
}

// PageUpdaterOption は PageUpdater のオプション
type PageUpdaterOption func(*PageUpdater)

// WithClock はタイムスタンプに使う時刻関数を差し替える
func WithClock(now func() time.Time) PageUpdaterOption {
	return func(u *PageUpdater) {
		if now != nil {
			u.now = now
		}
	}
}

// NewPageUpdater は新しいPageUpdaterを作成します
func NewPageUpdater(sink domain.LogSink, summary string, opts ...PageUpdaterOption) *PageUpdater {
	if summary == "" {
		summary = DefaultEditSummary
	}
	u := &PageUpdater{
		sink:    sink,
		summary: summary,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Update はページを取得してマーカーを差し替え、保存します
//
// 失敗はすべて結果として返し、エラーを呼び出し元へ伝播しません。
func (u *PageUpdater) Update(ctx context.Context, session domain.Session, wiki, title string) (result domain.PageUpdateResult) {
	defer func() {
		if r := recover(); r != nil {
			result = u.failed(wiki, title, fmt.Errorf("panic: %v", r))
		}
	}()

	found, err := session.GetPage(ctx, title)
	if err != nil {
		return u.failed(wiki, title, err)
	}
	page, ok := found.Get()
	if !ok {
		u.sink.Log(wiki, fmt.Sprintf("[⚠] ページが存在しません: %s", title))
		return domain.PageUpdateResult{Title: title, Outcome: domain.OutcomeNotFound}
	}

	u.sink.Log(wiki, fmt.Sprintf("[🟢] ページを取得しました: %s", title))

	current, err := page.ReadText(ctx)
	if err != nil {
		return u.failed(wiki, title, err)
	}

	timestamp := u.now().Format(domain.TimestampLayout)
	updated := domain.PatchMarker(current, timestamp)

	if err := page.Save(ctx, updated, u.summary); err != nil {
		if errors.Is(err, domain.ErrProtectedPage) {
			u.sink.Log(wiki, fmt.Sprintf("[🔒] ページが保護されています: %s", title))
			return domain.PageUpdateResult{Title: title, Outcome: domain.OutcomeLocked}
		}
		return u.failed(wiki, title, err)
	}

	u.sink.Log(wiki, fmt.Sprintf("[✓] 更新しました: %s", title))
	return domain.PageUpdateResult{Title: title, Outcome: domain.OutcomeUpdated}
}

func (u *PageUpdater) failed(wiki, title string, err error) domain.PageUpdateResult {
	u.sink.Log(wiki, fmt.Sprintf("[X] 更新に失敗しました: %s: %v", title, err))
	return domain.PageUpdateResult{Title: title, Outcome: domain.OutcomeFailed, Reason: err.Error()}
}

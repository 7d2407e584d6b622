package domain

import (
	"time"

	"github.com/google/uuid"
)

// Outcome はページ更新の結果種別
type Outcome string

const (
	OutcomeUpdated  Outcome = "updated"
	OutcomeNotFound Outcome = "not_found"
	OutcomeLocked   Outcome = "locked"
	OutcomeFailed   Outcome = "failed"
)

// PageUpdateResult は1ページ分の更新結果です。永続化はせずログにのみ残します。
type PageUpdateResult struct {
	Title   string
	Outcome Outcome
	Reason  string // OutcomeFailed のときのエラー内容
}

// TargetReport は1つのWikiに対する処理結果のまとめ
type TargetReport struct {
	Target       string
	Host         string
	SessionError string
	Results      []PageUpdateResult
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Count は指定した結果種別のページ数を返します
func (r TargetReport) Count(outcome Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == outcome {
			n++
		}
	}
	return n
}

// CycleReport は全Wikiを1巡した結果です
type CycleReport struct {
	ID         uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	Targets    []TargetReport
}

// Count は全Wikiを通した指定結果種別のページ数を返します
func (r CycleReport) Count(outcome Outcome) int {
	n := 0
	for _, t := range r.Targets {
		n += t.Count(outcome)
	}
	return n
}

// Duration は1巡に要した時間
func (r CycleReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

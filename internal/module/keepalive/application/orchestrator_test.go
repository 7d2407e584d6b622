package application_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/wiki-keepalive/internal/module/keepalive/application"
	"github.com/jinford/wiki-keepalive/internal/module/keepalive/domain"
	testutil "github.com/jinford/wiki-keepalive/internal/module/keepalive/testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type processorFunc func(ctx context.Context, target domain.WikiTarget) domain.TargetReport

func (f processorFunc) Process(ctx context.Context, target domain.WikiTarget) domain.TargetReport {
	return f(ctx, target)
}

func makeTargets(n int) []domain.WikiTarget {
	targets := make([]domain.WikiTarget, n)
	for i := range targets {
		targets[i] = domain.WikiTarget{
			Description: fmt.Sprintf("wiki-%d", i),
			Host:        fmt.Sprintf("wiki%d.example.com", i),
			Path:        "/",
			Pages:       []string{"Main Page"},
		}
	}
	return targets
}

func TestOrchestrator_RunAll_BoundedConcurrency(t *testing.T) {
	var active, peak int32
	processor := processorFunc(func(ctx context.Context, target domain.WikiTarget) domain.TargetReport {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return domain.TargetReport{Target: target.Description}
	})

	orch := application.NewOrchestrator(processor, 4, &testutil.RecordingSink{}, discardLogger())
	report := orch.RunAll(context.Background(), makeTargets(10))

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(4))
	assert.Greater(t, atomic.LoadInt32(&peak), int32(1))
	require.Len(t, report.Targets, 10)
	for i, tr := range report.Targets {
		assert.Equal(t, fmt.Sprintf("wiki-%d", i), tr.Target)
	}
	assert.NotEqual(t, [16]byte{}, [16]byte(report.ID))
	assert.False(t, report.FinishedAt.Before(report.StartedAt))
}

func TestOrchestrator_RunAll_DefaultWorkers(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	processor := processorFunc(func(ctx context.Context, target domain.WikiTarget) domain.TargetReport {
		mu.Lock()
		seen[target.Description] = true
		mu.Unlock()
		return domain.TargetReport{Target: target.Description}
	})

	orch := application.NewOrchestrator(processor, 0, &testutil.RecordingSink{}, nil)
	orch.RunAll(context.Background(), makeTargets(2))

	assert.Len(t, seen, 2)
}

func TestOrchestrator_RunAll_LoginFailureIsolated(t *testing.T) {
	targets := makeTargets(3)
	wiki := testutil.NewFakeWiki()
	for _, tg := range targets {
		wiki.AddPage(tg.Host, "Main Page", "body")
	}
	wiki.FailLogin(targets[1].Host, errors.New("login rejected"))

	sink := &testutil.RecordingSink{}
	updater := application.NewPageUpdater(sink, "")
	processor := application.NewWikiProcessor(wiki, domain.Credentials{Username: "u", Password: "p"}, updater, sink,
		application.WithPageDelay(0))
	orch := application.NewOrchestrator(processor, 4, sink, discardLogger())

	report := orch.RunAll(context.Background(), targets)

	assert.Equal(t, "login rejected", report.Targets[1].SessionError)
	assert.Equal(t, 1, report.Targets[0].Count(domain.OutcomeUpdated))
	assert.Equal(t, 1, report.Targets[2].Count(domain.OutcomeUpdated))
	assert.Equal(t, 2, report.Count(domain.OutcomeUpdated))
	assert.Len(t, wiki.Saves(), 2)
	assert.ElementsMatch(t, []string{targets[0].Host, targets[1].Host, targets[2].Host}, wiki.Logins())
}

func TestOrchestrator_RunAll_RecoversPanic(t *testing.T) {
	processor := processorFunc(func(ctx context.Context, target domain.WikiTarget) domain.TargetReport {
		if target.Description == "wiki-0" {
			panic("unexpected")
		}
		return domain.TargetReport{Target: target.Description, Results: []domain.PageUpdateResult{{Outcome: domain.OutcomeUpdated}}}
	})

	sink := &testutil.RecordingSink{}
	orch := application.NewOrchestrator(processor, 2, sink, discardLogger())
	report := orch.RunAll(context.Background(), makeTargets(2))

	assert.Contains(t, report.Targets[0].SessionError, "unexpected")
	assert.Equal(t, "wiki-0", report.Targets[0].Target)
	assert.Equal(t, 1, report.Targets[1].Count(domain.OutcomeUpdated))
	assert.NotEmpty(t, sink.Messages("wiki-0"))
}

func TestOrchestrator_RunAll_NoTargets(t *testing.T) {
	orch := application.NewOrchestrator(processorFunc(func(ctx context.Context, target domain.WikiTarget) domain.TargetReport {
		t.Fatal("processor must not be called")
		return domain.TargetReport{}
	}), 4, &testutil.RecordingSink{}, discardLogger())

	report := orch.RunAll(context.Background(), nil)
	assert.Empty(t, report.Targets)
}

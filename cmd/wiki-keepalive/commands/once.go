package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/jinford/wiki-keepalive/internal/module/keepalive/domain"
)

// OnceAction は全Wikiを1巡だけ更新し、結果を表示する
func OnceAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	c := appCtx.Container
	c.Banner()

	report := c.Orchestrator.RunAll(ctx, appCtx.Targets)
	renderCycleSummary(os.Stdout, report)

	failed := 0
	for _, t := range report.Targets {
		if t.SessionError != "" {
			failed++
		}
	}
	if failed == len(report.Targets) {
		return fmt.Errorf("すべてのWikiに接続できませんでした (%d件)", failed)
	}
	return nil
}

// renderCycleSummary はWikiごとの結果を表で出力する
func renderCycleSummary(w io.Writer, report domain.CycleReport) {
	table := tablewriter.NewWriter(w)
	table.Header("Wiki", "Host", "Updated", "Not Found", "Locked", "Failed", "Error")

	for _, t := range report.Targets {
		table.Append(
			t.Target,
			t.Host,
			fmt.Sprintf("%d", t.Count(domain.OutcomeUpdated)),
			fmt.Sprintf("%d", t.Count(domain.OutcomeNotFound)),
			fmt.Sprintf("%d", t.Count(domain.OutcomeLocked)),
			fmt.Sprintf("%d", t.Count(domain.OutcomeFailed)),
			t.SessionError,
		)
	}

	table.Render()

	fmt.Fprintf(w, "\nサイクルID: %s\n", report.ID)
	fmt.Fprintf(w, "所要時間:   %s\n", report.Duration().Round(time.Millisecond))
}

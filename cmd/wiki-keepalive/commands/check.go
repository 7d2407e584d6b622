package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/jinford/wiki-keepalive/internal/module/keepalive/domain"
)

type probeResult struct {
	target domain.WikiTarget
	err    error
}

// CheckAction はWikiへのログインを確認する
// --all を指定しない場合は先頭のWikiのみを確認する
func CheckAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	probeTargets := appCtx.Targets
	if !cmd.Bool("all") {
		probeTargets = probeTargets[:1]
	}

	results := make([]probeResult, 0, len(probeTargets))
	failed := 0
	for _, target := range probeTargets {
		err := appCtx.Container.Prober.Probe(ctx, target)
		if err != nil {
			failed++
		}
		results = append(results, probeResult{target: target, err: err})
	}

	renderProbeResults(os.Stdout, results)

	if failed > 0 {
		return fmt.Errorf("%d件のWikiにログインできませんでした", failed)
	}
	return nil
}

func renderProbeResults(w io.Writer, results []probeResult) {
	table := tablewriter.NewWriter(w)
	table.Header("Wiki", "Host", "Result")

	for _, r := range results {
		status := "OK"
		if r.err != nil {
			status = r.err.Error()
		}
		table.Append(r.target.Description, r.target.Host, status)
	}

	table.Render()
}

package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/jinford/wiki-keepalive/internal/module/keepalive/adapter/mediawiki"
	"github.com/jinford/wiki-keepalive/internal/module/keepalive/domain"
)

// TargetsAction は設定されたWikiの一覧を表示する
func TargetsAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("env"))
	if err != nil {
		return err
	}

	selected, err := loadTargets(cmd, cfg)
	if err != nil {
		return err
	}

	renderTargets(os.Stdout, cfg.MediaWiki.Scheme, selected)
	return nil
}

func renderTargets(w io.Writer, scheme string, list []domain.WikiTarget) {
	table := tablewriter.NewWriter(w)
	table.Header("Wiki", "Endpoint", "Pages")

	for _, t := range list {
		table.Append(
			t.Description,
			mediawiki.Endpoint(scheme, t.Host, t.Path),
			strings.Join(t.Pages, ", "),
		)
	}

	table.Render()
	fmt.Fprintf(w, "\n合計: %d Wiki\n", len(list))
}

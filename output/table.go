package output

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/use-agent/shopcsv/models"
)

// Summary renders a short table of the collected shops to w.
func Summary(w io.Writer, records []models.ShopRecord) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "店舗名", "ジャンル", "電話番号", "都道府県", "URL", "SSL"})

	for i, r := range records {
		t.AppendRow(table.Row{i + 1, r.Name, r.Category, r.Tel, r.Prefecture, r.OfficialURL, r.SSL})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "total", len(records)})

	t.SetStyle(table.StyleRounded)
	t.Render()
}

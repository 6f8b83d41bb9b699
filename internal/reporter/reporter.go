// Package reporter renders the final summary a stopped bot leaves behind.
package reporter

import (
	"fmt"
	"os"

	"bitunix-trend-bot-go/internal/storage"

	"github.com/jedib0t/go-pretty/v6/table"
)

// FinalReport 汇总一个已停止机器人的最终状态
type FinalReport struct {
	BotID          string
	Symbol         string
	Strategy       string
	StopReason     string
	RealizedPnL    float64
	OpenTradesLeft int
	Journal        *storage.Summary // nil when the journal is disabled
}

// PrintFinal renders the report as a table on stdout.
func PrintFinal(r FinalReport) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("Bot %s - final report", r.BotID))

	t.AppendRows([]table.Row{
		{"Symbol", r.Symbol},
		{"Strategy", r.Strategy},
		{"Stop reason", r.StopReason},
		{"Realized PnL", fmt.Sprintf("$%.6f", r.RealizedPnL)},
		{"Open trades left", r.OpenTradesLeft},
	})

	if r.Journal != nil {
		winRate := 0.0
		if r.Journal.TotalTrades > 0 {
			winRate = float64(r.Journal.WinningTrades) / float64(r.Journal.TotalTrades) * 100
		}
		t.AppendSeparator()
		t.AppendRows([]table.Row{
			{"Closed trades", r.Journal.TotalTrades},
			{"Winning trades", r.Journal.WinningTrades},
			{"Losing trades", r.Journal.LosingTrades},
			{"Win rate", fmt.Sprintf("%.2f%%", winRate)},
			{"Journaled PnL", fmt.Sprintf("$%.6f", r.Journal.TotalPnL)},
		})
	}

	t.SetStyle(table.StyleLight)
	t.Render()
}

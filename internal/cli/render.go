package cli

import (
	"fxledger/internal/domain"
	"fxledger/internal/ledger"
	"fxledger/internal/present"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

func portfolioTable(v *ledger.Valuation) string {
	t := newTable("CURRENCY", "BALANCE", "VALUE ("+string(v.Base)+")")
	for _, h := range v.Holdings {
		t.Row(string(h.Code), present.Balance(h.Balance), present.Money(h.Value, v.Base))
	}
	return t.String()
}

func ratesTable(quotes []domain.Quote) string {
	t := newTable("PAIR", "RATE", "UPDATED")
	for _, q := range quotes {
		t.Row(string(q.From)+"_"+string(q.To), present.Rate(q.Rate), present.Timestamp(q.UpdatedAt))
	}
	return t.String()
}

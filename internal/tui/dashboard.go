// Package tui is the rates dashboard served over SSH.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fxledger/internal/domain"
	"fxledger/internal/present"
	"fxledger/internal/rates"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const defaultReload = 15 * time.Second

type RateView interface {
	Snapshot(ctx context.Context) (domain.RateTable, bool, error)
}

type Refresher interface {
	Refresh(ctx context.Context, opts rates.RefreshOptions) (*rates.RefreshResult, error)
}

// Services is what one dashboard session needs. Refresher may be nil, which
// disables the refresh key.
type Services struct {
	Rates     RateView
	Refresher Refresher
	Base      domain.Code
	Username  string
	Reload    time.Duration
}

type ratesLoadedMsg struct {
	table  domain.RateTable
	stale  bool
	quotes []domain.Quote
	err    error
}

type refreshDoneMsg struct {
	result *rates.RefreshResult
	err    error
}

type reloadTickMsg time.Time

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	staleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type Model struct {
	svc        Services
	table      table.Model
	width      int
	height     int
	lastLoad   domain.RateTable
	stale      bool
	refreshing bool
	status     string
	err        error
}

func NewModel(svc Services) *Model {
	if svc.Reload <= 0 {
		svc.Reload = defaultReload
	}
	t := table.New(
		table.WithColumns(columns(svc.Base)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).Bold(true)
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	t.SetStyles(styles)
	return &Model{svc: svc, table: t}
}

func columns(base domain.Code) []table.Column {
	return []table.Column{
		{Title: "CODE", Width: 6},
		{Title: "RATE (" + string(base) + ")", Width: 18},
		{Title: "KIND", Width: 8},
		{Title: "NAME", Width: 20},
		{Title: "UPDATED", Width: 20},
	}
}

// SetSize adapts the table to the terminal.
func (m *Model) SetSize(width, height int) {
	m.width, m.height = width, height
	if h := height - 6; h > 3 {
		m.table.SetHeight(h)
	}
	if width > 0 {
		m.table.SetWidth(width)
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.load(), m.tick())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			if m.svc.Refresher == nil || m.refreshing {
				return m, nil
			}
			m.refreshing = true
			m.status = "refreshing..."
			return m, m.refresh()
		}
	case ratesLoadedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.lastLoad, m.stale = msg.table, msg.stale
			m.table.SetRows(rows(msg.quotes))
		}
		return m, nil
	case refreshDoneMsg:
		m.refreshing = false
		if msg.err != nil {
			m.status = "refresh failed: " + msg.err.Error()
			return m, nil
		}
		m.status = fmt.Sprintf("refresh %s: %d rates", msg.result.Outcome, msg.result.TotalRates)
		return m, m.load()
	case reloadTickMsg:
		return m, tea.Batch(m.load(), m.tick())
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("fxledger rates"))
	if m.svc.Username != "" {
		b.WriteString("  " + footerStyle.Render("user "+m.svc.Username))
	}
	b.WriteString("\n")

	last := "never"
	if m.lastLoad.Refreshed() {
		last = present.Timestamp(m.lastLoad.LastRefresh)
	}
	b.WriteString("last refresh: " + last)
	if m.stale {
		b.WriteString(" " + staleStyle.Render("[STALE]"))
	}
	b.WriteString("\n\n")

	b.WriteString(m.table.View())
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()) + "\n")
	}
	if m.status != "" {
		b.WriteString(m.status + "\n")
	}
	help := "↑/↓ move • q quit"
	if m.svc.Refresher != nil {
		help = "↑/↓ move • r refresh • q quit"
	}
	b.WriteString(footerStyle.Render(help))
	return b.String()
}

// load reads the cache without enforcing the TTL so a stale table is still shown.
func (m *Model) load() tea.Cmd {
	view, base := m.svc.Rates, m.svc.Base
	return func() tea.Msg {
		ctx := context.Background()
		snap, stale, err := view.Snapshot(ctx)
		if err != nil {
			return ratesLoadedMsg{err: err}
		}
		if !snap.Refreshed() {
			return ratesLoadedMsg{table: snap, err: fmt.Errorf("rate cache is empty, press r to refresh")}
		}
		quotes, err := quotesFrom(snap, base)
		return ratesLoadedMsg{table: snap, stale: stale, quotes: quotes, err: err}
	}
}

func (m *Model) refresh() tea.Cmd {
	r := m.svc.Refresher
	return func() tea.Msg {
		res, err := r.Refresh(context.Background(), rates.RefreshOptions{})
		return refreshDoneMsg{result: res, err: err}
	}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.svc.Reload, func(t time.Time) tea.Msg { return reloadTickMsg(t) })
}

func quotesFrom(snap domain.RateTable, base domain.Code) ([]domain.Quote, error) {
	out := make([]domain.Quote, 0, len(snap.Rates))
	for _, code := range snap.Codes() {
		if code == base {
			continue
		}
		rate, err := rates.Convert(snap, code, base)
		if err != nil {
			return nil, err
		}
		updated := snap.LastRefresh
		if e, ok := snap.Rates[code]; ok && !e.ObservedAt.IsZero() {
			updated = e.ObservedAt
		}
		out = append(out, domain.Quote{From: code, To: base, Rate: rate, UpdatedAt: updated})
	}
	return out, nil
}

func rows(quotes []domain.Quote) []table.Row {
	out := make([]table.Row, 0, len(quotes))
	for _, q := range quotes {
		kind, name := "", ""
		if c, ok := domain.LookupCurrency(q.From); ok {
			kind, name = string(c.Kind), c.Name
		}
		out = append(out, table.Row{string(q.From), present.Rate(q.Rate), kind, name, present.Timestamp(q.UpdatedAt)})
	}
	return out
}

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rmax-ai/alertgraph/pkg/catalog"
	"github.com/rmax-ai/alertgraph/pkg/client"
	"github.com/rmax-ai/alertgraph/pkg/graph"
	"github.com/rmax-ai/alertgraph/pkg/registry"
)

const (
	pollRate       = time.Second
	fetchTimeout   = 800 * time.Millisecond
	viewportHeight = 20
)

var (
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			Width(100)

	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1).
			Width(100)

	tabStyle       = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("241"))
	activeTabStyle = lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(lipgloss.Color("205")).Underline(true)

	alertTimeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(20)
	alertRegionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Width(24)
	alertUserStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))
)

// fetcher is the part of the SDK the dashboard polls.
type fetcher interface {
	Catalog(ctx context.Context) (catalog.Catalog, error)
	Stats(ctx context.Context) (registry.Stats, error)
	SearchByCategory(ctx context.Context, category string) (client.SearchResult, error)
}

type tickMsg time.Time

type catalogMsg struct {
	categories []catalog.Category
	err        error
}

type dataMsg struct {
	category string
	stats    registry.Stats
	alerts   []graph.Match
	err      error
}

type model struct {
	api        fetcher
	spinner    spinner.Model
	viewport   viewport.Model
	categories []catalog.Category
	selected   int
	stats      registry.Stats
	alerts     []graph.Match
	err        error
	ready      bool
}

func initialModel(api fetcher) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		api:        api,
		spinner:    s,
		viewport:   newViewport(100),
		categories: catalog.Default().Categories,
	}
}

func newViewport(width int) viewport.Model {
	vp := viewport.New(width, viewportHeight)
	vp.Style = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		PaddingRight(2)
	return vp
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		fetchCatalog(m.api),
		fetchData(m.api, m.currentCategory()),
		tick(),
	)
}

func (m model) currentCategory() string {
	if len(m.categories) == 0 {
		return ""
	}
	return m.categories[m.selected%len(m.categories)].Key
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab", "right":
			return m.selectCategory(m.selected + 1)
		case "shift+tab", "left":
			return m.selectCategory(m.selected - 1)
		}
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tickMsg:
		cmds = append(cmds, fetchData(m.api, m.currentCategory()), tick())

	case catalogMsg:
		if msg.err == nil && len(msg.categories) > 0 {
			m.categories = msg.categories
			m.selected = 0
		}

	case dataMsg:
		m.ready = true
		if msg.err != nil {
			m.err = msg.err
			break
		}
		m.err = nil
		m.stats = msg.stats
		// Drop results for a category the user has already tabbed away from.
		if msg.category == m.currentCategory() {
			m.alerts = msg.alerts
			m.updateViewportContent()
		}

	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = viewportHeight
	}

	return m, tea.Batch(cmds...)
}

func (m model) selectCategory(i int) (tea.Model, tea.Cmd) {
	n := len(m.categories)
	if n == 0 {
		return m, nil
	}
	m.selected = ((i % n) + n) % n
	m.alerts = nil
	m.updateViewportContent()
	return m, fetchData(m.api, m.currentCategory())
}

func (m *model) updateViewportContent() {
	var sb strings.Builder
	if len(m.alerts) == 0 {
		sb.WriteString(subtleStyle.Render("No active alerts in this category."))
	}
	for _, match := range m.alerts {
		a, ok := match.Payload.(graph.Alert)
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "%s %s %s %s\n",
			alertTimeStyle.Render(a.CreatedAt.Format(time.DateTime)),
			alertRegionStyle.Render(a.Region),
			a.Description,
			alertUserStyle.Render("("+a.UserID+")"),
		)
	}
	m.viewport.SetContent(sb.String())
}

func (m model) View() string {
	if !m.ready {
		return fmt.Sprintf("\n%s Connecting...", m.spinner.View())
	}

	var summary strings.Builder
	summary.WriteString(lipgloss.NewStyle().Bold(true).Underline(true).Render("Alert Graph") + "\n\n")
	fmt.Fprintf(&summary, "Nodes: %d   Edges: %d   Users: %d   Active alerts: %d\n",
		m.stats.Nodes, m.stats.Edges, m.stats.Users, m.stats.ActiveAlerts)
	for _, cc := range m.stats.ByCategory {
		fmt.Fprintf(&summary, "• %s: %d\n", cc.Name, cc.Count)
	}
	topPane := paneStyle.Render(summary.String())

	tabs := make([]string, 0, len(m.categories))
	for i, c := range m.categories {
		if i == m.selected {
			tabs = append(tabs, activeTabStyle.Render(c.Name))
		} else {
			tabs = append(tabs, tabStyle.Render(c.Name))
		}
	}
	header := headerStyle.Render(fmt.Sprintf("%s %s", m.spinner.View(), lipgloss.JoinHorizontal(lipgloss.Top, tabs...)))

	var status string
	if m.err != nil {
		status = errorStyle.Render(fmt.Sprintf("Offline: %v", m.err))
	} else {
		status = okStyle.Render(fmt.Sprintf("Online • %d alerts shown", len(m.alerts)))
	}
	footer := subtleStyle.Render(fmt.Sprintf("\n%s\nTab switches category • q quits", status))

	return lipgloss.JoinVertical(lipgloss.Left, topPane, header, m.viewport.View(), footer)
}

func fetchCatalog(api fetcher) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		cat, err := api.Catalog(ctx)
		return catalogMsg{categories: cat.Categories, err: err}
	}
}

func fetchData(api fetcher, category string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		stats, err := api.Stats(ctx)
		if err != nil {
			return dataMsg{category: category, err: err}
		}
		res, err := api.SearchByCategory(ctx, category)
		if err != nil {
			return dataMsg{category: category, err: err}
		}
		return dataMsg{category: category, stats: stats, alerts: res.Alerts}
	}
}

func tick() tea.Cmd {
	return tea.Tick(pollRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func main() {
	api := client.NewClient(os.Getenv("ALERTGRAPH_URL")).WithRetries(0, nil)
	p := tea.NewProgram(initialModel(api), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}

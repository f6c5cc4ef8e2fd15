// Package tui implements 'hookgate watch', a terminal monitor that polls
// the gateway's /status endpoint and renders recent callback activity.
package tui

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/hookgate/internal/events"
)

const pollInterval = 2 * time.Second

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	badStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	headerBorder  = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderBottom(true)
	tableSelStyle = lipgloss.NewStyle().Bold(true)
)

// statusPayload mirrors the JSON served by the gateway's /status endpoint.
type statusPayload struct {
	Service  string            `json:"service"`
	Uptime   string            `json:"uptime"`
	Totals   events.Counters   `json:"totals"`
	Recent   []events.Activity `json:"recent"`
	Endpoint []string          `json:"endpoints"`
}

type (
	tickMsg   time.Time
	statusMsg statusPayload
	errMsg    struct{ err error }
)

// Model is the bubbletea model for the watch screen.
type Model struct {
	baseURL string
	token   string
	client  *http.Client

	width  int
	height int

	status    statusPayload
	connected bool
	lastErr   string
	lastID    int64
	activity  []events.Activity

	table table.Model
}

// New creates a watch model polling the gateway at baseURL. A non-empty
// token is sent as a bearer credential for guarded /status endpoints.
func New(baseURL, token string) *Model {
	columns := []table.Column{
		{Title: "Time", Width: 8},
		{Title: "Endpoint", Width: 24},
		{Title: "Kind", Width: 10},
		{Title: "Outcome", Width: 9},
		{Title: "Reason", Width: 10},
		{Title: "Type", Width: 8},
	}

	styles := table.DefaultStyles()
	styles.Selected = tableSelStyle
	tbl := table.New(
		table.WithColumns(columns),
		table.WithHeight(14),
		table.WithStyles(styles),
	)

	return &Model{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 5 * time.Second},
		table:   tbl,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.fetchStatus(),
		tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) }),
		tea.EnterAltScreen,
	)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		return m, tea.Batch(
			m.fetchStatus(),
			tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) }),
		)

	case statusMsg:
		m.status = statusPayload(msg)
		m.connected = true
		m.lastErr = ""
		m.mergeActivity(msg.Recent)
		m.table.SetRows(m.rows())
		return m, nil

	case errMsg:
		m.connected = false
		m.lastErr = msg.err.Error()
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) View() string {
	conn := okStyle.Render("connected")
	if !m.connected {
		conn = badStyle.Render("disconnected")
	}

	header := headerBorder.Render(fmt.Sprintf("%s  %s  %s",
		titleStyle.Render("hookgate watch"),
		dimStyle.Render(m.baseURL),
		conn,
	))

	totals := fmt.Sprintf("uptime %s   accepted %s   rejected %s",
		m.status.Uptime,
		okStyle.Render(fmt.Sprintf("%d", m.status.Totals.Accepted)),
		badStyle.Render(fmt.Sprintf("%d", m.status.Totals.Rejected)),
	)

	footer := dimStyle.Render("q: quit")
	if m.lastErr != "" {
		footer = badStyle.Render(m.lastErr)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		totals,
		"",
		m.table.View(),
		footer,
	)
}

// mergeActivity appends unseen activity, newest last, capped to the table's
// worth of rows.
func (m *Model) mergeActivity(recent []events.Activity) {
	for _, act := range recent {
		if act.ID <= m.lastID {
			continue
		}
		m.activity = append(m.activity, act)
		m.lastID = act.ID
	}
	if len(m.activity) > 100 {
		m.activity = m.activity[len(m.activity)-100:]
	}
}

func (m *Model) rows() []table.Row {
	rows := make([]table.Row, 0, len(m.activity))
	// Newest first.
	for i := len(m.activity) - 1; i >= 0; i-- {
		act := m.activity[i]
		rows = append(rows, table.Row{
			act.At.Local().Format("15:04:05"),
			act.Endpoint,
			act.Kind,
			string(act.Outcome),
			act.Reason,
			act.MsgType,
		})
	}
	return rows
}

func (m *Model) fetchStatus() tea.Cmd {
	url := fmt.Sprintf("%s/status?since=%d", m.baseURL, m.lastID)
	return func() tea.Msg {
		req, err := http.NewRequest(http.MethodGet, url, nil)
		if err != nil {
			return errMsg{err}
		}
		if m.token != "" {
			req.Header.Set("Authorization", "Bearer "+m.token)
		}
		resp, err := m.client.Do(req)
		if err != nil {
			return errMsg{err}
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return errMsg{fmt.Errorf("status endpoint returned %d", resp.StatusCode)}
		}

		var payload statusPayload
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return errMsg{fmt.Errorf("decode status: %w", err)}
		}
		return statusMsg(payload)
	}
}

// Run starts the watch TUI and blocks until the user quits.
func Run(baseURL, token string) error {
	p := tea.NewProgram(New(baseURL, token))
	_, err := p.Run()
	return err
}

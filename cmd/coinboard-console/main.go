package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"coinboard/internal/board"
	"coinboard/internal/config"
	"coinboard/internal/market"
	"coinboard/internal/session"
	"coinboard/internal/util"
	"coinboard/pkg/coinboard"
)

// Styles.
var (
	pinnedStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	symbolStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	symbolHlStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75"))
	gainStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	colHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	priceStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	noteStyle      = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("3"))
	panelStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8")).Padding(0, 1)
	chartStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	highlightBG    = lipgloss.Color("236")
)

// hlStyle returns a copy of s with the highlight background applied when hl is true.
func hlStyle(s lipgloss.Style, hl bool) lipgloss.Style {
	if hl {
		return s.Background(highlightBG)
	}
	return s
}

func directionLabel(d market.ChangeDirection) string {
	switch d {
	case market.ChangeUp:
		return "Gainers"
	case market.ChangeDown:
		return "Losers"
	default:
		return "All changes"
	}
}

func changeStyle(pct *float64) lipgloss.Style {
	if pct == nil {
		return dimStyle
	}
	if *pct < 0 {
		return lossStyle
	}
	return gainStyle
}

const chartHeight = 8

// Messages.
type tickMsg time.Time

type boardLoadedMsg struct {
	rows   []market.Row
	status board.Status
	err    error
}

type refreshRequestedMsg struct{ err error }

type searchSettledMsg struct{ seq uint64 }

type historyLoadedMsg struct {
	seq     uint64
	assetID string
	days    int
	points  market.HistorySeries
	err     error
}

type clearNoticeMsg struct{}

// sender hands the running program's Send to the debounce timer goroutine.
// The field is set before Run, so it is visible by the first keystroke.
type sender struct {
	send func(tea.Msg)
}

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Model.
type model struct {
	client  *coinboard.Client
	session *session.Controller
	deb     *board.Debouncer
	out     *sender
	logger  *slog.Logger

	pollInterval time.Duration

	// Board state.
	rows    []market.Row
	status  board.Status
	loadErr string

	// Filter state. pendingTerm is what the user typed; it is promoted to
	// filter.Term only after the debounce settles.
	filter      market.FilterState
	pendingTerm string
	searchSeq   uint64
	search      textinput.Model

	// Detail panel.
	panelAsset  string
	panelDays   int
	panelPoints market.HistorySeries
	panelErr    string
	panelBusy   bool

	// Transient notice shown in the header, auto-dismissed.
	notice string

	// Selection index into the filtered rows.
	selected int

	viewport      viewport.Model
	ready         bool
	width, height int
}

func initialModel(client *coinboard.Client, debounce time.Duration, pollInterval time.Duration, out *sender, logger *slog.Logger) model {
	ti := textinput.New()
	ti.Placeholder = "search name, symbol, or pair"
	ti.Prompt = "/ "
	ti.CharLimit = 64
	return model{
		client:       client,
		session:      session.NewController(),
		deb:          board.NewDebouncer(debounce),
		out:          out,
		logger:       logger,
		pollInterval: pollInterval,
		filter:       market.FilterState{Direction: market.ChangeAll},
		search:       ti,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.loadBoard(), tickCmd(m.pollInterval))
}

func (m model) loadBoard() tea.Cmd {
	client := m.client
	filter := m.filter
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		rows, status, err := client.Board(ctx, coinboard.BoardQuery{Search: filter.Term, Change: filter.Direction})
		return boardLoadedMsg{rows: rows, status: status, err: err}
	}
}

func (m model) requestRefresh() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return refreshRequestedMsg{err: client.Refresh(ctx)}
	}
}

func (m model) loadHistory(req session.HistoryRequest) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		points, err := client.History(ctx, req.AssetID, req.Days)
		return historyLoadedMsg{seq: req.Seq, assetID: req.AssetID, days: req.Days, points: points, err: err}
	}
}

// scheduleSearch restarts the debounce timer for the current input. The seq
// lets Update discard settle messages from superseded keystrokes.
func (m *model) scheduleSearch() {
	m.searchSeq++
	seq := m.searchSeq
	send := m.out
	m.deb.Trigger(func() {
		if send.send != nil {
			send.send(searchSettledMsg{seq: seq})
		}
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.search.Focused() {
			switch msg.String() {
			case "esc":
				m.search.Blur()
				return m, nil
			case "enter":
				m.search.Blur()
				return m, nil
			case "ctrl+c":
				m.deb.Stop()
				return m, tea.Quit
			}
			m.search, cmd = m.search.Update(msg)
			if m.search.Value() != m.pendingTerm {
				m.pendingTerm = m.search.Value()
				m.scheduleSearch()
			}
			return m, cmd
		}

		switch msg.String() {
		case "q", "ctrl+c":
			m.deb.Stop()
			return m, tea.Quit
		case "/":
			return m, m.search.Focus()
		case "r":
			return m, m.requestRefresh()
		case "tab":
			switch m.filter.Direction {
			case market.ChangeAll:
				m.filter.Direction = market.ChangeUp
			case market.ChangeUp:
				m.filter.Direction = market.ChangeDown
			default:
				m.filter.Direction = market.ChangeAll
			}
			m.selected = 0
			return m, m.loadBoard()
		case "up":
			if m.selected > 0 {
				m.selected--
			}
			m.syncViewport()
			return m, nil
		case "down":
			if m.selected < len(m.rows)-1 {
				m.selected++
			}
			m.syncViewport()
			return m, nil
		case "enter":
			if m.selected < 0 || m.selected >= len(m.rows) {
				return m, nil
			}
			req, ok := m.session.Select(m.rows[m.selected].ID)
			if !ok {
				return m, nil
			}
			m.panelAsset = req.AssetID
			m.panelDays = req.Days
			m.panelPoints = nil
			m.panelErr = ""
			m.panelBusy = true
			m.syncViewport()
			return m, m.loadHistory(req)
		case "esc":
			if m.panelAsset != "" {
				m.session.Dismiss()
				m.panelAsset = ""
				m.panelPoints = nil
				m.panelErr = ""
				m.panelBusy = false
				m.syncViewport()
			}
			return m, nil
		case "1", "7", "3", "9":
			days := map[string]int{"1": 1, "7": 7, "3": 30, "9": 90}[msg.String()]
			req, ok := m.session.SetLookback(days)
			if !ok {
				return m, nil
			}
			m.panelDays = req.Days
			m.panelBusy = true
			m.syncViewport()
			return m, m.loadHistory(req)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		headerH := 2
		footerH := 1
		vpHeight := m.height - headerH - footerH
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.MouseWheelEnabled = true
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.syncViewport()
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.loadBoard(), tickCmd(m.pollInterval))

	case boardLoadedMsg:
		if msg.err != nil {
			m.loadErr = msg.err.Error()
			m.logger.Warn("board load failed", "error", msg.err)
		} else {
			m.loadErr = ""
			m.rows = msg.rows
			m.status = msg.status
			if m.selected >= len(m.rows) {
				m.selected = len(m.rows) - 1
			}
			if m.selected < 0 {
				m.selected = 0
			}
		}
		m.syncViewport()
		return m, nil

	case refreshRequestedMsg:
		if msg.err != nil {
			m.loadErr = msg.err.Error()
			m.logger.Warn("refresh request failed", "error", msg.err)
			m.syncViewport()
			return m, nil
		}
		// Poll shortly after so the loading state and then the new rows show.
		return m, tea.Batch(m.loadBoard(), tickCmd(time.Second))

	case searchSettledMsg:
		if msg.seq != m.searchSeq {
			return m, nil
		}
		if m.pendingTerm == m.filter.Term {
			return m, nil
		}
		m.filter.Term = m.pendingTerm
		m.selected = 0
		return m, m.loadBoard()

	case historyLoadedMsg:
		if !m.session.Accept(msg.seq) {
			m.logger.Info("dropping stale history response", "asset", msg.assetID, "days", msg.days)
			return m, nil
		}
		m.panelBusy = false
		if msg.err != nil {
			m.panelErr = msg.err.Error()
			m.panelPoints = nil
			m.notice = "Failed to load chart data"
			m.logger.Warn("history load failed", "asset", msg.assetID, "error", msg.err)
			m.syncViewport()
			return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg { return clearNoticeMsg{} })
		}
		m.panelErr = ""
		m.panelPoints = msg.points
		m.syncViewport()
		return m, nil

	case clearNoticeMsg:
		m.notice = ""
		return m, nil
	}

	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

func (m *model) syncViewport() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderContent())
	m.ensureVisible()
}

// ensureVisible scrolls the viewport so the selected row is on screen.
func (m *model) ensureVisible() {
	line := m.selected + 1 // one header line above the rows
	yOff := m.viewport.YOffset
	vpH := m.viewport.Height
	if line < yOff {
		m.viewport.SetYOffset(line)
	} else if line >= yOff+vpH {
		m.viewport.SetYOffset(line - vpH + 1)
	}
}

func (m model) View() string {
	if !m.ready {
		return "Loading..."
	}

	state := "idle"
	switch {
	case m.status.Loading:
		state = "refreshing..."
	case !m.status.RefreshedAt.IsZero():
		state = "as of " + m.status.RefreshedAt.Local().Format("15:04:05")
	}
	headerText := fmt.Sprintf(" coinboard    rows: %d    filter: %s    %s ",
		len(m.rows), directionLabel(m.filter.Direction), state)
	switch {
	case m.notice != "":
		headerText = fmt.Sprintf(" coinboard    %s ", m.notice)
	case m.loadErr != "":
		headerText = fmt.Sprintf(" coinboard    error: %s ", m.loadErr)
	case m.status.LastError != "":
		headerText = fmt.Sprintf(" coinboard    refresh failed: %s ", m.status.LastError)
	}
	headerBar := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("4")).
		Render(padOrTrunc(headerText, m.width))

	searchLine := m.search.View()
	if !m.search.Focused() && m.filter.Term == "" {
		searchLine = dimStyle.Render("  press / to search")
	}

	footerText := " q quit  / search  tab direction  r refresh  up/dn select  enter chart  1/7/3/9 window  esc close"
	footerBar := lipgloss.NewStyle().
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("8")).
		Render(padOrTrunc(footerText, m.width))

	return headerBar + "\n" + searchLine + "\n" + m.viewport.View() + "\n" + footerBar
}

func (m model) renderContent() string {
	var b strings.Builder

	if m.status.Loading && len(m.rows) == 0 {
		b.WriteString(dimStyle.Render("  Loading market data..."))
		b.WriteString("\n")
		return b.String()
	}
	if len(m.rows) == 0 {
		b.WriteString(dimStyle.Render("  No matches found."))
		b.WriteString("\n")
		return b.String()
	}

	colLine := fmt.Sprintf("  %-5s %-22s %-8s %14s %9s %10s  %-12s",
		"#", "Name", "Symbol", "Price", "24h%", "Vol", "Pair")
	b.WriteString(colHeaderStyle.Render(colLine))
	b.WriteString("\n")

	for i, row := range m.rows {
		hl := i == m.selected
		rank := fmt.Sprintf("  %-5s", board.FormatRank(row.Rank))
		name := padOrTrunc(truncate(row.Name, 22), 22)
		sym := fmt.Sprintf("%-8s", strings.ToUpper(row.Symbol))
		price := fmt.Sprintf("%14s", board.FormatPrice(row.Price))
		change := fmt.Sprintf("%9s", board.FormatChange(row.Change24Pct))
		vol := fmt.Sprintf("%10s", board.FormatVolume(row.Volume24))
		pair := fmt.Sprintf("  %-12s", row.Pair)

		nameStyle := priceStyle
		symStyle := symbolStyle
		if row.Quote != nil {
			nameStyle = pinnedStyle
		}
		if hl {
			symStyle = symbolHlStyle
		}

		b.WriteString(hlStyle(dimStyle, hl).Render(rank))
		b.WriteString(hlStyle(nameStyle, hl).Render(name))
		b.WriteString(hlStyle(symStyle, hl).Render(sym))
		b.WriteString(hlStyle(priceStyle, hl).Render(price))
		b.WriteString(hlStyle(changeStyle(row.Change24Pct), hl).Render(change))
		b.WriteString(hlStyle(dimStyle, hl).Render(vol))
		b.WriteString(hlStyle(dimStyle, hl).Render(pair))
		if row.Quote != nil && row.Quote.Note != "" {
			b.WriteString(" ")
			b.WriteString(noteStyle.Render(row.Quote.Note))
		}
		b.WriteString("\n")
	}

	if m.panelAsset != "" {
		b.WriteString("\n")
		b.WriteString(m.renderPanel())
		b.WriteString("\n")
	}
	return b.String()
}

func (m model) renderPanel() string {
	title := fmt.Sprintf("%s  %dd", m.panelAsset, m.panelDays)
	stats := ""
	note := ""
	for _, row := range m.rows {
		if row.ID != m.panelAsset {
			continue
		}
		title = fmt.Sprintf("%s (%s)  %s  %dd", row.Name, strings.ToUpper(row.Symbol), row.Pair, m.panelDays)
		stats = fmt.Sprintf("price %s   24h %s   vol %s   rank %s",
			board.FormatPrice(row.Price),
			board.FormatChange(row.Change24Pct),
			board.FormatVolume(row.Volume24),
			board.FormatRank(row.Rank))
		if row.Quote != nil {
			note = row.Quote.Note
		}
		break
	}

	var body string
	switch {
	case m.panelBusy:
		body = dimStyle.Render("loading chart...")
	case m.panelErr != "":
		body = dimStyle.Render("No chart data.")
	case len(m.panelPoints) == 0:
		body = dimStyle.Render("No chart data.")
	default:
		width := m.width - 10
		if width < 20 {
			width = 20
		}
		body = chartStyle.Render(renderSparkline(m.panelPoints, width, chartHeight))
		first := m.panelPoints[0].Price
		last := m.panelPoints[len(m.panelPoints)-1].Price
		delta := 0.0
		if first != 0 {
			delta = (last - first) / first * 100
		}
		body += "\n" + dimStyle.Render(fmt.Sprintf("start %s  end %s  ",
			board.FormatFloat(first, 6), board.FormatFloat(last, 6))) +
			changeStyle(&delta).Render(board.FormatChange(&delta))
	}

	content := pinnedStyle.Render(title)
	if stats != "" {
		content += "\n" + dimStyle.Render(stats)
	}
	if note != "" {
		content += "\n" + noteStyle.Render(note)
	}
	return panelStyle.Render(content + "\n" + body)
}

// renderSparkline plots the series as rows of block characters, newest point
// on the right. Points are bucketed down to the target width.
func renderSparkline(points market.HistorySeries, width, height int) string {
	if len(points) == 0 || height < 1 {
		return ""
	}

	// Bucket to width columns by averaging.
	cols := make([]float64, 0, width)
	if len(points) <= width {
		for _, p := range points {
			cols = append(cols, p.Price)
		}
	} else {
		per := float64(len(points)) / float64(width)
		for i := 0; i < width; i++ {
			lo := int(float64(i) * per)
			hi := int(float64(i+1) * per)
			if hi > len(points) {
				hi = len(points)
			}
			if lo >= hi {
				lo = hi - 1
			}
			sum := 0.0
			for _, p := range points[lo:hi] {
				sum += p.Price
			}
			cols = append(cols, sum/float64(hi-lo))
		}
	}

	min, max := cols[0], cols[0]
	for _, v := range cols {
		min = math.Min(min, v)
		max = math.Max(max, v)
	}
	span := max - min
	if span == 0 {
		span = 1
	}

	grid := make([][]rune, height)
	for r := range grid {
		grid[r] = make([]rune, len(cols))
		for c := range grid[r] {
			grid[r][c] = ' '
		}
	}
	for c, v := range cols {
		level := int((v - min) / span * float64(height*8-1))
		full := level / 8
		rem := level % 8
		for r := 0; r < full && r < height; r++ {
			grid[height-1-r][c] = '█'
		}
		if full < height && rem > 0 {
			grid[height-1-full][c] = []rune("▁▂▃▄▅▆▇█")[rem-1]
		}
	}

	var b strings.Builder
	for _, row := range grid {
		b.WriteString(string(row))
		b.WriteString("\n")
	}
	b.WriteString(fmt.Sprintf("high %s  low %s", board.FormatFloat(max, 6), board.FormatFloat(min, 6)))
	return b.String()
}

// truncate shortens s to at most n cells, appending an ellipsis when cut.
// Asset names from the listing can carry multi-byte runes.
func truncate(s string, n int) string {
	if runewidth.StringWidth(s) <= n {
		return s
	}
	if n <= 1 {
		return runewidth.Truncate(s, n, "")
	}
	return runewidth.Truncate(s, n, "…")
}

// padOrTrunc pads s with spaces to width cells, or truncates if longer.
func padOrTrunc(s string, width int) string {
	if runewidth.StringWidth(s) >= width {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.FillRight(s, width)
}

func main() {
	cfgPath := "config/coinboard.yaml"
	if p := os.Getenv("COINBOARD_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	serverURL := fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	if u := os.Getenv("COINBOARD_SERVER"); u != "" {
		serverURL = u
	}

	logPath := fmt.Sprintf("/tmp/coinboard-console-%s.log", time.Now().Format("2006-01-02"))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger := util.NewLoggerTo(logFile, cfg.Logging.Level, "text")

	client := coinboard.NewClient(serverURL)
	logger.Info("console starting", "server", serverURL)

	pollInterval := 5 * time.Second
	out := &sender{}
	p := tea.NewProgram(
		initialModel(client, cfg.SearchDebounce(), pollInterval, out, logger),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	out.send = p.Send

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

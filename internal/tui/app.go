package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/convo-console/internal"
)

// Backend is what the console needs from the admin API
type Backend interface {
	internal.ConversationFetcher
	ListConversations(ctx context.Context, opts internal.ListOptions) (*internal.ConversationList, error)
}

// Options tunes paging in the console
type Options struct {
	PageSize        int
	ListPageSize    int
	ScrollThreshold int
	Query           string
	UserID          string
}

type mode int

const (
	modeList mode = iota
	modeSearch
	modeDetail
)

type Model struct {
	ctx     context.Context
	backend Backend
	opts    Options

	width  int
	height int
	mode   mode

	// list view
	list        *internal.ConversationList
	listPage    int
	listLoading bool
	listErr     error
	cursor      int
	offset      int
	searchInput textinput.Model

	// detail view; session counts opens so late results can be told apart
	session     int
	openID      string
	openTitle   string
	opening     bool
	loader      *internal.Loader
	fetching    bool
	detailLines []string
	vp          viewport.Model
	status      string

	quitting bool
}

// NewModel creates the console model. The first list page is fetched by Init.
func NewModel(ctx context.Context, backend Backend, opts Options) Model {
	if opts.PageSize <= 0 {
		opts.PageSize = internal.DefaultPageSize
	}
	if opts.ListPageSize <= 0 {
		opts.ListPageSize = 20
	}
	if opts.ScrollThreshold < 0 {
		opts.ScrollThreshold = 0
	}

	si := textinput.New()
	si.Placeholder = "search titles..."
	si.CharLimit = 100
	si.SetValue(opts.Query)

	return Model{
		ctx:         ctx,
		backend:     backend,
		opts:        opts,
		width:       120,
		height:      30,
		listPage:    1,
		listLoading: true,
		searchInput: si,
		vp:          viewport.New(120, 28),
	}
}

// listLoadedMsg carries a fetched list page
type listLoadedMsg struct {
	page int
	list *internal.ConversationList
	err  error
}

func (m Model) fetchList() tea.Cmd {
	ctx, backend := m.ctx, m.backend
	opts := internal.ListOptions{
		Page:     m.listPage,
		PageSize: m.opts.ListPageSize,
		Query:    strings.TrimSpace(m.searchInput.Value()),
		UserID:   m.opts.UserID,
	}
	return func() tea.Msg {
		list, err := backend.ListConversations(ctx, opts)
		return listLoadedMsg{page: opts.Page, list: list, err: err}
	}
}

func (m Model) Init() tea.Cmd {
	return m.fetchList()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.clampOffset()
		m.resizeViewport()
		cmd := m.maybeLoadMore()
		return m, cmd

	case listLoadedMsg:
		if msg.page != m.listPage {
			return m, nil
		}
		m.listLoading = false
		m.listErr = msg.err
		if msg.err == nil {
			msg.list.Items = internal.NewDeduplicator().DeduplicateConversations(msg.list.Items)
			m.list = msg.list
			m.cursor = 0
			m.offset = 0
		}
		return m, nil

	case detailOpenedMsg:
		return m.updateDetailOpened(msg)

	case pageLoadedMsg:
		return m.updatePageLoaded(msg)

	case tea.KeyMsg:
		switch m.mode {
		case modeList:
			return m.updateList(msg)
		case modeSearch:
			return m.updateSearch(msg)
		case modeDetail:
			return m.updateDetail(msg)
		}
	}
	return m, nil
}

func (m Model) items() []internal.ConversationSummary {
	if m.list == nil {
		return nil
	}
	return m.list.Items
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	items := m.items()

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			m.clampOffset()
		}

	case "down", "j":
		if m.cursor < len(items)-1 {
			m.cursor++
			m.clampOffset()
		}

	case "home", "g":
		m.cursor = 0
		m.clampOffset()

	case "end", "G":
		m.cursor = max(0, len(items)-1)
		m.clampOffset()

	case "n", "right":
		if m.list != nil && m.list.HasNextPage() && !m.listLoading {
			m.listPage++
			m.listLoading = true
			return m, m.fetchList()
		}

	case "p", "left":
		if m.listPage > 1 && !m.listLoading {
			m.listPage--
			m.listLoading = true
			return m, m.fetchList()
		}

	case "r":
		m.listLoading = true
		return m, m.fetchList()

	case "/":
		m.mode = modeSearch
		cmd := m.searchInput.Focus()
		return m, cmd

	case "enter":
		if len(items) > 0 {
			return m.enterDetail(items[m.cursor].ID)
		}
	}

	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.searchInput.Blur()
		m.mode = modeList
		return m, nil

	case "enter":
		m.searchInput.Blur()
		m.mode = modeList
		m.listPage = 1
		m.listLoading = true
		return m, m.fetchList()
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.mode == modeDetail {
		return m.viewDetail()
	}

	var b strings.Builder

	info := ""
	if m.list != nil {
		info = fmt.Sprintf("  page %d  %d conversations", m.listPage, m.list.Total)
	}
	if q := m.searchInput.Value(); q != "" {
		info += fmt.Sprintf("  matching %q", q)
	}
	b.WriteString(titleStyle.Render("Conversations") + dimStyle.Render(info) + "\n")
	b.WriteString(m.renderHeader() + "\n")

	items := m.items()
	visible := m.visibleRows()
	end := min(m.offset+visible, len(items))

	rendered := 0
	switch {
	case m.listErr != nil:
		b.WriteString(errorLineStyle.Render("  "+m.listErr.Error()) + "\n")
		rendered = 1
	case m.listLoading && m.list == nil:
		b.WriteString("  Loading...\n")
		rendered = 1
	case len(items) == 0:
		b.WriteString("  No conversations found.\n")
		rendered = 1
	default:
		for i := m.offset; i < end; i++ {
			b.WriteString(m.renderRow(items[i], i == m.cursor) + "\n")
		}
		rendered = end - m.offset
	}
	for i := rendered; i < visible; i++ {
		b.WriteString("\n")
	}

	if m.mode == modeSearch {
		b.WriteString(statusBarStyle.Render("Search: ") + m.searchInput.View())
	} else {
		b.WriteString(helpStyle.Render("  Enter: open  /: search  n/p: page  r: refresh  q: quit"))
	}

	return b.String()
}

type colWidths struct {
	id       int
	updated  int
	messages int
	user     int
	title    int
}

func (m Model) colWidths() colWidths {
	w := colWidths{
		id:       12,
		updated:  12,
		messages: 6,
		user:     14,
	}
	used := w.id + w.updated + w.messages + w.user + 6
	w.title = m.width - used
	if w.title < 20 {
		w.title = 20
	}
	return w
}

func (m Model) renderHeader() string {
	w := m.colWidths()
	cols := []string{
		pad("ID", w.id),
		pad("Updated", w.updated),
		pad("Msgs", w.messages),
		pad("User", w.user),
		pad("Title", w.title),
	}
	return headerStyle.Render(strings.Join(cols, " "))
}

func (m Model) renderRow(c internal.ConversationSummary, selected bool) string {
	w := m.colWidths()

	updated := ""
	if !c.UpdatedAt.IsZero() {
		updated = c.UpdatedAt.Local().Format("01-02 15:04")
	}
	title := c.Title
	if title == "" {
		title = "(untitled)"
	}

	row := strings.Join([]string{
		pad(c.ID, w.id),
		pad(updated, w.updated),
		pad(fmt.Sprintf("%d", c.MessageCount), w.messages),
		pad(c.UserID, w.user),
		truncate(title, w.title),
	}, " ")

	if selected {
		return lipgloss.PlaceHorizontal(m.width, lipgloss.Left, selectedStyle.Render(row))
	}
	return normalStyle.Render(row)
}

func (m Model) visibleRows() int {
	// title, header and bottom bar
	rows := m.height - 3
	if rows < 1 {
		rows = 1
	}
	return rows
}

func (m *Model) clampOffset() {
	visible := m.visibleRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

func pad(s string, width int) string {
	runes := []rune(s)
	if len(runes) >= width {
		return string(runes[:width])
	}
	return s + strings.Repeat(" ", width-len(runes))
}

func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) > width && width > 2 {
		return string(runes[:width-2]) + ".."
	}
	return s
}

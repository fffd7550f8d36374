package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/convo-console/internal"
)

// detailOpenedMsg is sent when the first page of a conversation arrives
type detailOpenedMsg struct {
	session int
	title   string
	loader  *internal.Loader
	err     error
}

// pageLoadedMsg is sent when a follow-up page fetch completes. loader
// identifies the session the fetch belongs to.
type pageLoadedMsg struct {
	loader *internal.Loader
	added  int
	err    error
}

func (m Model) openConversation(id string) tea.Cmd {
	ctx, backend, pageSize, session := m.ctx, m.backend, m.opts.PageSize, m.session
	return func() tea.Msg {
		loader, err := internal.OpenConversation(ctx, backend, id, pageSize)
		if err != nil {
			return detailOpenedMsg{session: session, err: err}
		}
		return detailOpenedMsg{session: session, title: loader.Snapshot().Title, loader: loader}
	}
}

func (m Model) loadNextPage() tea.Cmd {
	ctx, loader := m.ctx, m.loader
	return func() tea.Msg {
		added, err := loader.RequestNextPage(ctx)
		return pageLoadedMsg{loader: loader, added: added, err: err}
	}
}

func (m Model) enterDetail(id string) (Model, tea.Cmd) {
	m.closeDetail()
	m.session++
	m.openID = id
	m.opening = true
	m.status = ""
	m.mode = modeDetail
	m.resizeViewport()
	return m, m.openConversation(id)
}

// closeDetail drops the open session. Fetches still in flight for it are
// ignored when they complete.
func (m *Model) closeDetail() {
	if m.loader != nil {
		m.loader.Close()
	}
	m.loader = nil
	m.openID = ""
	m.openTitle = ""
	m.opening = false
	m.fetching = false
	m.detailLines = nil
	m.vp.SetContent("")
	m.vp.SetYOffset(0)
}

func (m Model) updateDetailOpened(msg detailOpenedMsg) (tea.Model, tea.Cmd) {
	if msg.session != m.session || !m.opening || m.mode != modeDetail {
		if msg.loader != nil {
			msg.loader.Close()
		}
		return m, nil
	}
	m.opening = false
	if msg.err != nil {
		m.status = msg.err.Error()
		return m, nil
	}
	if m.loader != nil {
		m.loader.Close()
	}
	m.loader = msg.loader
	m.openTitle = msg.title
	m.refreshContent()
	cmd := m.maybeLoadMore()
	return m, cmd
}

func (m Model) updatePageLoaded(msg pageLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.loader != m.loader || m.loader == nil {
		return m, nil
	}
	m.fetching = false
	if msg.err != nil {
		m.status = loadFailureText(msg.err)
		return m, nil
	}
	m.status = ""
	if msg.added == 0 {
		return m, nil
	}
	m.refreshContent()
	// keep filling while the content is shorter than the view
	cmd := m.maybeLoadMore()
	return m, cmd
}

func (m Model) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.closeDetail()
		m.quitting = true
		return m, tea.Quit

	case "esc", "q":
		m.closeDetail()
		m.mode = modeList
		return m, nil

	case "m":
		cmd := m.requestMore()
		return m, cmd

	case "home", "g":
		m.vp.GotoTop()
		return m, nil

	case "end", "G":
		m.vp.GotoBottom()
		cmd := m.maybeLoadMore()
		return m, cmd
	}

	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	if more := m.maybeLoadMore(); more != nil {
		return m, more
	}
	return m, cmd
}

// viewportState maps the view onto the scroll geometry the loader reasons
// about: lines play the role of pixels.
func (m Model) viewportState() internal.Viewport {
	return internal.Viewport{
		ScrollTop:    m.vp.YOffset,
		ScrollHeight: m.vp.TotalLineCount(),
		Height:       m.vp.Height,
	}
}

// maybeLoadMore is the scroll listener. It returns a fetch command when the
// view is near the end of the loaded messages.
func (m *Model) maybeLoadMore() tea.Cmd {
	if m.mode != modeDetail || m.loader == nil || m.fetching {
		return nil
	}
	if !m.loader.ShouldLoad(m.viewportState(), m.opts.ScrollThreshold) {
		return nil
	}
	m.fetching = true
	return m.loadNextPage()
}

// requestMore is the explicit load-more action
func (m *Model) requestMore() tea.Cmd {
	if m.loader == nil || m.fetching || !m.loader.HasMore() {
		return nil
	}
	m.fetching = true
	m.status = ""
	return m.loadNextPage()
}

func (m *Model) refreshContent() {
	if m.loader == nil {
		return
	}
	m.detailLines = renderMessages(m.loader.Messages(), m.contentWidth())
	// appending never moves the lines already on screen
	offset := m.vp.YOffset
	m.vp.SetContent(strings.Join(m.detailLines, "\n"))
	m.vp.SetYOffset(offset)
}

func (m *Model) resizeViewport() {
	m.vp.Width = m.width
	m.vp.Height = m.detailVisibleRows()
	if m.loader != nil {
		m.refreshContent()
	}
}

func (m Model) contentWidth() int {
	w := m.width - 2
	if w < 40 {
		w = 40
	}
	return w
}

func (m Model) detailVisibleRows() int {
	// title bar, status line and help bar
	rows := m.height - 3
	if rows < 1 {
		rows = 1
	}
	return rows
}

func (m Model) viewDetail() string {
	var b strings.Builder

	title := m.openID
	if m.openTitle != "" {
		title = fmt.Sprintf("%s  %s", m.openID, m.openTitle)
	}
	b.WriteString(detailTitleStyle.Render(title))
	b.WriteString("\n")

	switch {
	case m.opening:
		b.WriteString(padLines("\n  Loading...", m.detailVisibleRows()))
	case m.loader == nil:
		b.WriteString(padLines("", m.detailVisibleRows()))
	case len(m.detailLines) == 0:
		b.WriteString(padLines("\n  No messages.", m.detailVisibleRows()))
	default:
		b.WriteString(m.vp.View())
	}
	b.WriteString("\n")

	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("  Esc: back  j/k: scroll  m: load more  g/G: top/bottom"))

	return b.String()
}

func (m Model) statusLine() string {
	if m.status != "" {
		return errorLineStyle.Render("  " + m.status)
	}
	if m.loader == nil {
		return ""
	}
	progress := fmt.Sprintf("  %d/%d messages  page %d", m.loader.Len(), m.loader.Total(), m.loader.CurrentPage())
	switch {
	case m.fetching:
		progress += "  loading more..."
	case m.loader.HasMore():
		progress += "  scroll down or press m for more"
	default:
		progress += "  all loaded"
	}
	return dimStyle.Render(progress)
}

func loadFailureText(err error) string {
	var loadErr *internal.LoadMoreError
	if errors.As(err, &loadErr) {
		return fmt.Sprintf("Failed to load page %d: %v (press m to retry)", loadErr.Page, loadErr.Err)
	}
	return fmt.Sprintf("Failed to load more messages: %v (press m to retry)", err)
}

func padLines(s string, rows int) string {
	lines := strings.Count(s, "\n") + 1
	if lines < rows {
		s += strings.Repeat("\n", rows-lines)
	}
	return s
}

// renderMessages renders messages into display lines
func renderMessages(msgs []internal.Message, width int) []string {
	var lines []string

	for _, msg := range msgs {
		stamp := ""
		if !msg.CreatedAt.IsZero() {
			stamp = "  " + msg.CreatedAt.Local().Format("2006-01-02 15:04")
		}

		switch msg.Role {
		case internal.RoleUser:
			lines = append(lines, userRoleStyle.Render(pad(" USER"+stamp, width)))
		case internal.RoleThinking:
			label := " thinking"
			if d := msg.ThinkingDuration(); d > 0 {
				label = fmt.Sprintf(" thought for %s", d.Round(100*time.Millisecond))
			}
			lines = append(lines, thinkingRoleStyle.Render(label+stamp))
		default:
			lines = append(lines, assistantRoleStyle.Render(pad(" "+strings.ToUpper(string(msg.Role))+stamp, width)))
		}

		if msg.Content != "" {
			textStyle := lipgloss.NewStyle()
			switch msg.Role {
			case internal.RoleAssistant:
				textStyle = textStyle.Foreground(lipgloss.Color("250"))
			case internal.RoleThinking:
				textStyle = thinkingRoleStyle
			}
			for _, wl := range wrapText(msg.Content, width-2) {
				lines = append(lines, " "+textStyle.Render(wl))
			}
		}

		for _, img := range msg.Images {
			label := "[image"
			if img.Width > 0 && img.Height > 0 {
				label += fmt.Sprintf(" %dx%d", img.Width, img.Height)
			}
			label += "] " + img.URL
			lines = append(lines, " "+imageStyle.Render(truncate(label, width-2)))
			if img.Prompt != "" {
				lines = append(lines, " "+dimStyle.Render(truncate("prompt: "+img.Prompt, width-2)))
			}
		}

		lines = append(lines, "")
	}

	return lines
}

// wrapText splits text into lines that fit within maxWidth.
func wrapText(text string, maxWidth int) []string {
	var result []string
	for _, line := range strings.Split(text, "\n") {
		if line == "" {
			result = append(result, "")
			continue
		}
		runes := []rune(line)
		for len(runes) > maxWidth {
			result = append(result, string(runes[:maxWidth]))
			runes = runes[maxWidth:]
		}
		result = append(result, string(runes))
	}
	return result
}

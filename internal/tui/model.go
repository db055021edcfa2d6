package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fyrsmithlabs/connectify/internal/feed"
)

const (
	sparklineWidth  = 30
	sparklineHeight = 2
	historySize     = 30

	visibleCards  = 3
	skeletonCards = 3
	fetchTimeout  = 15 * time.Second

	signInToLike = "You must be logged in to like posts."
)

// Model is the bubbletea feed viewer.
type Model struct {
	feed      *feed.Controller
	likes     *feed.LikeSync
	canLike   func() bool
	viewer    feed.Viewer
	mediaBase string
	now       func() time.Time

	state    feed.State
	cursor   int
	fetching bool
	seen     map[int]bool
	width    int
	quitting bool

	spinner spinner.Model
	loaded  progress.Model
}

// Options configures NewModel.
type Options struct {
	Likes     *feed.LikeSync
	Viewer    feed.Viewer
	MediaBase string
	Now       func() time.Time

	// CanLike reports whether likes may be sent, e.g. a signed-in session.
	// Nil allows them.
	CanLike func() bool
}

// NewModel creates a feed viewer over fc. The first page is requested by Init.
func NewModel(fc *feed.Controller, opts Options) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = labelStyle

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return Model{
		feed:      fc,
		likes:     opts.Likes,
		canLike:   opts.CanLike,
		viewer:    opts.Viewer,
		mediaBase: opts.MediaBase,
		now:       now,
		state:     fc.State(),
		fetching:  true,
		seen:      map[int]bool{},
		spinner:   sp,
		loaded: progress.New(
			progress.WithGradient("#00ffff", "#ff00ff"),
			progress.WithWidth(24),
			progress.WithoutPercentage(),
		),
	}
}

// Message types
type feedMsg struct{ err error }
type likeMsg struct {
	postID int
	err    error
}
type viewMsg struct{ postID int }

// SessionChangedMsg tells the viewer the signed-in user changed, so per-viewer
// fields like is_liked must be reloaded.
type SessionChangedMsg struct{}

// Init starts the spinner and loads the first page.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, fetch(m.feed.Refresh))
}

// fetch runs a feed operation off the UI goroutine.
func fetch(op func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		return feedMsg{err: op(ctx)}
	}
}

func (m Model) toggleLike(id int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		_, err := m.likes.Toggle(ctx, id)
		return likeMsg{postID: id, err: err}
	}
}

func (m Model) recordView(id int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		m.feed.View(ctx, m.viewer, id)
		return viewMsg{postID: id}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case feedMsg:
		m.fetching = false
		m.state = m.feed.State()
		if m.cursor >= len(m.state.Posts) {
			m.cursor = max(0, len(m.state.Posts)-1)
		}
		return m.onCursor()

	case SessionChangedMsg:
		if m.fetching {
			return m, nil
		}
		m.fetching = true
		m.cursor = 0
		return m, fetch(m.feed.Refresh)

	case likeMsg, viewMsg:
		m.state = m.feed.State()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "j", "down":
		if m.cursor < len(m.state.Posts)-1 {
			m.cursor++
		}
		return m.onCursor()

	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
		return m.onCursor()

	case "g", "home":
		m.cursor = 0
		return m.onCursor()

	case "l", " ":
		if m.likes == nil || len(m.state.Posts) == 0 {
			return m, nil
		}
		if m.canLike != nil && !m.canLike() {
			m.feed.SetError(signInToLike)
			m.state = m.feed.State()
			return m, nil
		}
		return m, m.toggleLike(m.state.Posts[m.cursor].ID)

	case "r":
		if m.fetching {
			return m, nil
		}
		m.fetching = true
		m.cursor = 0
		return m, fetch(m.feed.Refresh)

	case "n":
		return m.loadMore()
	}
	return m, nil
}

// loadMore requests the next page unless one is already loading.
func (m Model) loadMore() (tea.Model, tea.Cmd) {
	if m.fetching || !m.state.HasMore {
		return m, nil
	}
	m.fetching = true
	return m, fetch(m.feed.LoadMore)
}

// onCursor records a view for the selected post the first time it is shown
// and loads the next page when the cursor reaches the last post.
func (m Model) onCursor() (tea.Model, tea.Cmd) {
	if len(m.state.Posts) == 0 {
		return m, nil
	}
	var cmds []tea.Cmd
	id := m.state.Posts[m.cursor].ID
	if !m.seen[id] {
		m.seen[id] = true
		cmds = append(cmds, m.recordView(id))
	}
	if m.cursor == len(m.state.Posts)-1 && m.state.HasMore && !m.fetching && m.state.Error == "" {
		m.fetching = true
		cmds = append(cmds, fetch(m.feed.LoadMore))
	}
	return m, tea.Batch(cmds...)
}

// View renders the feed
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderHeader() + "\n\n")

	switch {
	case m.state.IsFirstLoad() || (m.fetching && len(m.state.Posts) == 0 && m.state.Error == ""):
		b.WriteString(m.spinner.View() + dimStyle.Render(" Loading feed…") + "\n")
		b.WriteString(RenderSkeleton(skeletonCards, m.cardWidth()))

	case m.state.Error != "" && len(m.state.Posts) == 0:
		b.WriteString(m.renderRetryPanel())

	case m.state.IsEmpty():
		b.WriteString(dimStyle.Render("No posts yet. Be the first to share something!"))

	default:
		b.WriteString(m.renderCards())
		b.WriteString("\n" + m.renderListFooter())
	}

	b.WriteString("\n" + m.renderFooter())
	return b.String()
}

func (m Model) cardWidth() int {
	if m.width <= 0 {
		return defaultCardWidth
	}
	return min(m.width, defaultCardWidth+8)
}

func (m Model) renderHeader() string {
	header := headerStyle.Render(" Connectify ")
	if len(m.state.Posts) == 0 {
		return header
	}

	ratio := 1.0
	if m.state.TotalCount > 0 {
		ratio = min(1.0, float64(len(m.state.Posts))/float64(m.state.TotalCount))
	}
	line := fmt.Sprintf("%s   %s %s %s",
		header,
		labelStyle.Render("Loaded"),
		valueStyle.Render(fmt.Sprintf("%d/%d", len(m.state.Posts), m.state.TotalCount)),
		m.loaded.ViewAs(ratio),
	)
	return line + "\n" + labelStyle.Render("Likes ") + m.renderLikeSparkline()
}

// renderLikeSparkline charts like counts of the most recent loaded posts.
func (m Model) renderLikeSparkline() string {
	posts := m.state.Posts
	if len(posts) > historySize {
		posts = posts[:historySize]
	}
	spark := sparkline.New(sparklineWidth, sparklineHeight)
	// Oldest first so the newest post is on the right.
	for i := len(posts) - 1; i >= 0; i-- {
		spark.Push(float64(posts[i].LikeCount))
	}
	spark.Draw()
	return sparklineStyle.Render(spark.View())
}

func (m Model) renderCards() string {
	start := m.cursor
	if start > len(m.state.Posts)-visibleCards {
		start = max(0, len(m.state.Posts)-visibleCards)
	}
	end := min(start+visibleCards, len(m.state.Posts))

	now := m.now()
	cards := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		cards = append(cards, RenderCard(m.state.Posts[i], CardOptions{
			MediaBase: m.mediaBase,
			Now:       now,
			Width:     m.cardWidth(),
			Selected:  i == m.cursor,
		}))
	}
	return strings.Join(cards, "\n")
}

func (m Model) renderRetryPanel() string {
	body := errorStyle.Render("⚠ "+m.state.Error) + "\n\n" +
		footerKeyStyle.Render("[r]") + dimStyle.Render(" try again")
	return panelStyle.Render(body)
}

func (m Model) renderListFooter() string {
	switch {
	case m.state.Error != "":
		return errorStyle.Render("⚠ "+m.state.Error) + "  " +
			footerKeyStyle.Render("[n]") + dimStyle.Render(" retry")
	case m.fetching:
		return m.spinner.View() + dimStyle.Render(" Loading more posts…")
	case !m.state.HasMore:
		return dimStyle.Render("You're all caught up")
	default:
		return dimStyle.Render(fmt.Sprintf("Post %d of %d", m.cursor+1, m.state.TotalCount))
	}
}

func (m Model) renderFooter() string {
	return footerKeyStyle.Render("[j/k]") + footerStyle.Render(" move  ") +
		footerKeyStyle.Render("[l]") + footerStyle.Render(" like  ") +
		footerKeyStyle.Render("[n]") + footerStyle.Render(" more  ") +
		footerKeyStyle.Render("[r]") + footerStyle.Render(" refresh  ") +
		footerKeyStyle.Render("[q]") + footerStyle.Render(" quit")
}

// NewProgram wraps m in a full-screen program.
func NewProgram(m Model, opts ...tea.ProgramOption) *tea.Program {
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	return tea.NewProgram(m, opts...)
}

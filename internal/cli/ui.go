package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/valter-silva-au/focus/internal/api"
	"github.com/valter-silva-au/focus/internal/core"
	"github.com/valter-silva-au/focus/internal/storage"
	"github.com/valter-silva-au/focus/internal/timefmt"
	"github.com/valter-silva-au/focus/pkg/models"
)

const defaultFrameInterval = 100 * time.Millisecond

// boardDeps are the services the board drives.
type boardDeps struct {
	ctx      context.Context
	focus    core.FocusController
	sync     *core.Synchronizer
	sorter   *core.SortCoordinator
	prefs    storage.PreferencesStore
	now      func() time.Time
	cfg      models.UIConfig
	loginURL string
	log      *logrus.Logger
}

type boardModel struct {
	deps boardDeps

	tasks    []models.Task
	snap     models.FocusSnapshot
	now      time.Time
	selected models.UnitRef
	width    int

	loading bool
	// framing is set while a frame tick is scheduled. Ticks are only
	// scheduled while a timer runs.
	framing   bool
	notice    string
	noticeSeq int
	// sortSeq tags the live auto-sort tick chain; ticks from an older
	// chain are dropped.
	sortSeq   int
	confirm   string
	// expired is set when the backend rejected the session; the board quits
	// and the login URL is printed.
	expired bool
}

type loadedMsg struct{ err error }

type opDoneMsg struct {
	verb string
	err  error
}

type frameMsg time.Time

type remainingMsg time.Time

type autoSortMsg struct{ seq int }

type noticeExpiredMsg struct{ seq int }

// Style definitions.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	clockStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230"))

	selectedStyle = lipgloss.NewStyle().Reverse(true)

	statusDoing  = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	statusPaused = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))
	statusDone   = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	statusTodo   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	overdueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newBoardModel(deps boardDeps) boardModel {
	if deps.now == nil {
		deps.now = time.Now
	}
	if deps.ctx == nil {
		deps.ctx = context.Background()
	}
	m := boardModel{deps: deps, loading: true, now: deps.now()}
	if deps.prefs != nil {
		if p, err := deps.prefs.Load(); err == nil && p.Selected != nil {
			m.selected = *p.Selected
		}
	}
	return m
}

func (m boardModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.load(), m.remainingTick()}
	if m.deps.sorter != nil && m.deps.sorter.AutoSort() {
		cmds = append(cmds, m.autoSortTick())
	}
	return tea.Batch(cmds...)
}

func (m boardModel) load() tea.Cmd {
	ctx, sync := m.deps.ctx, m.deps.sync
	sortType := models.SortType("")
	if m.deps.sorter != nil {
		sortType = m.deps.sorter.Type()
	}
	return func() tea.Msg {
		return loadedMsg{err: sync.Reload(ctx, sortType)}
	}
}

func (m boardModel) run(verb string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.deps.ctx
	return func() tea.Msg {
		return opDoneMsg{verb: verb, err: fn(ctx)}
	}
}

func (m boardModel) frameTick() tea.Cmd {
	d := m.deps.cfg.FrameInterval
	if d <= 0 {
		d = defaultFrameInterval
	}
	return tea.Tick(d, func(t time.Time) tea.Msg { return frameMsg(t) })
}

func (m boardModel) remainingTick() tea.Cmd {
	d := m.deps.cfg.RemainingInterval
	if d <= 0 {
		d = 30 * time.Second
	}
	return tea.Tick(d, func(t time.Time) tea.Msg { return remainingMsg(t) })
}

func (m boardModel) autoSortTick() tea.Cmd {
	seq := m.sortSeq
	return tea.Tick(m.deps.sorter.Interval(), func(time.Time) tea.Msg { return autoSortMsg{seq: seq} })
}

func (m boardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg.String())

	case loadedMsg:
		m.loading = false
		return m.afterOp("load", msg.err)

	case opDoneMsg:
		return m.afterOp(msg.verb, msg.err)

	case frameMsg:
		m.refresh()
		if m.snap.AnyRunning() {
			return m, m.frameTick()
		}
		m.framing = false
		return m, nil

	case remainingMsg:
		m.now = m.deps.now()
		return m, m.remainingTick()

	case autoSortMsg:
		if m.deps.sorter == nil || !m.deps.sorter.AutoSort() || msg.seq != m.sortSeq {
			return m, nil
		}
		return m, tea.Batch(m.run("auto-sort", m.deps.sorter.Recompute), m.autoSortTick())

	case noticeExpiredMsg:
		if msg.seq == m.noticeSeq {
			m.notice = ""
		}
		return m, nil
	}
	return m, nil
}

// afterOp refreshes the view after a load or an operation, reports the
// error and starts the frame tick if a timer is now running.
func (m boardModel) afterOp(verb string, err error) (tea.Model, tea.Cmd) {
	m.refresh()
	var cmds []tea.Cmd
	if err != nil {
		if m.deps.log != nil {
			m.deps.log.WithError(err).WithField("op", verb).Warn("board operation failed")
		}
		if api.IsUnauthorized(err) {
			m.expired = true
			return m, tea.Quit
		}
		cmds = append(cmds, m.setNotice(fmt.Sprintf("%s failed: %s", verb, friendlyError(err))))
	}
	if m.snap.AnyRunning() && !m.framing {
		m.framing = true
		cmds = append(cmds, m.frameTick())
	}
	return m, tea.Batch(cmds...)
}

func (m *boardModel) refresh() {
	m.tasks = m.deps.sync.Store().Tasks()
	m.snap = m.deps.focus.Snapshot()
	m.now = m.deps.now()
	rows := boardRows(m.tasks)
	for _, r := range rows {
		if r == m.selected {
			return
		}
	}
	if len(rows) > 0 {
		m.selected = rows[0]
	} else {
		m.selected = models.UnitRef{}
	}
}

func (m *boardModel) setNotice(text string) tea.Cmd {
	m.noticeSeq++
	m.notice = text
	seq := m.noticeSeq
	d := m.deps.cfg.NoticeDuration
	if d <= 0 {
		d = 4 * time.Second
	}
	return tea.Tick(d, func(time.Time) tea.Msg { return noticeExpiredMsg{seq: seq} })
}

func friendlyError(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidTransition):
		return "not possible in the unit's current state"
	case errors.Is(err, core.ErrUnitNotFound):
		return "unit no longer exists"
	}
	var te *api.TransportError
	if errors.As(err, &te) {
		return "server unreachable"
	}
	return err.Error()
}

func (m boardModel) handleKey(key string) (tea.Model, tea.Cmd) {
	if m.confirm != "" {
		action := m.confirm
		m.confirm = ""
		if key != "y" {
			return m, nil
		}
		switch action {
		case "reset":
			return m, m.run("reset", func(ctx context.Context) error { return m.deps.focus.Reset(ctx, true) })
		case "delete":
			id := m.selected.ID
			return m, m.run("delete", func(ctx context.Context) error { return m.deps.focus.Delete(ctx, id) })
		}
		return m, nil
	}

	sel := m.selected
	switch key {
	case "q", "esc", "ctrl+c":
		m.saveSelection()
		return m, tea.Quit
	case "up", "k":
		m.moveSelection(-1)
	case "down", "j":
		m.moveSelection(1)
	case "s":
		return m, m.unitOp("start", m.deps.focus.Start)
	case "p":
		return m, m.unitOp("pause", m.deps.focus.Pause)
	case "r":
		return m, m.unitOp("resume", m.deps.focus.Resume)
	case "c":
		return m, m.unitOp("complete", m.deps.focus.Complete)
	case "v":
		return m, m.unitOp("peek", m.deps.focus.Peek)
	case " ", "enter":
		return m, m.toggle()
	case "e":
		return m, m.toggleSubtaskDone()
	case "x":
		if _, _, ok := m.snap.Display(); ok {
			m.confirm = "reset"
		}
	case "d":
		if sel.Kind == models.UnitTask && !sel.IsZero() {
			m.confirm = "delete"
		}
	case "g":
		return m, m.load()
	case "o":
		if m.deps.sorter != nil {
			return m, m.run("sort", m.deps.sorter.Sort)
		}
	case "O":
		if m.deps.sorter != nil {
			return m, m.run("recompute", m.deps.sorter.Recompute)
		}
	case "t":
		if m.deps.sorter != nil {
			next := m.deps.sorter.Type().Next()
			sorter := m.deps.sorter
			return m, m.run("sort", func(ctx context.Context) error {
				if err := sorter.SetType(next); err != nil {
					return err
				}
				return sorter.Sort(ctx)
			})
		}
	case "a":
		if m.deps.sorter != nil {
			on := !m.deps.sorter.AutoSort()
			if err := m.deps.sorter.SetAutoSort(on); err != nil {
				return m, m.setNotice(fmt.Sprintf("auto-sort failed: %s", err))
			}
			m.sortSeq++
			if on {
				return m, m.autoSortTick()
			}
		}
	case "K", "J":
		if m.deps.sorter != nil && sel.Kind == models.UnitTask {
			delta := -1
			if key == "J" {
				delta = 1
			}
			if m.deps.sorter.MoveTask(sel.ID, delta) {
				m.refresh()
			}
		}
	}
	return m, nil
}

func (m boardModel) unitOp(verb string, fn func(context.Context, models.UnitRef) error) tea.Cmd {
	ref := m.selected
	if ref.IsZero() {
		return nil
	}
	return m.run(verb, func(ctx context.Context) error { return fn(ctx, ref) })
}

// toggle starts, pauses or resumes the selected unit depending on its state.
func (m boardModel) toggle() tea.Cmd {
	ref := m.selected
	if ref.IsZero() {
		return nil
	}
	if st, ok := m.snap.StateFor(ref); ok && st.Running() {
		return m.unitOp("pause", m.deps.focus.Pause)
	}
	switch unitStatus(m.tasks, ref) {
	case models.StatusDoing:
		return m.unitOp("pause", m.deps.focus.Pause)
	case models.StatusPaused:
		return m.unitOp("resume", m.deps.focus.Resume)
	case models.StatusTodo:
		return m.unitOp("start", m.deps.focus.Start)
	}
	return nil
}

func (m boardModel) toggleSubtaskDone() tea.Cmd {
	ref := m.selected
	if ref.Kind != models.UnitSubtask {
		return nil
	}
	for _, t := range m.tasks {
		for _, s := range t.Subtasks {
			if s.ID == ref.ID {
				taskID, done := t.ID, !s.Done
				sync := m.deps.sync
				return m.run("subtask", func(ctx context.Context) error {
					_, err := sync.UpsertSubtasks(ctx, taskID, []models.SubtaskEdit{{ID: ref.ID, Done: done}})
					return err
				})
			}
		}
	}
	return nil
}

func (m *boardModel) moveSelection(delta int) {
	rows := boardRows(m.tasks)
	if len(rows) == 0 {
		return
	}
	i := 0
	for j, r := range rows {
		if r == m.selected {
			i = j
			break
		}
	}
	i += delta
	if i < 0 {
		i = 0
	}
	if i >= len(rows) {
		i = len(rows) - 1
	}
	m.selected = rows[i]
}

func (m boardModel) saveSelection() {
	if m.deps.prefs == nil || m.selected.IsZero() {
		return
	}
	sel := m.selected
	_ = m.deps.prefs.Update(func(p *models.Preferences) { p.Selected = &sel })
}

// boardRows lists the selectable units in display order.
func boardRows(tasks []models.Task) []models.UnitRef {
	var rows []models.UnitRef
	for _, t := range tasks {
		rows = append(rows, models.TaskRef(t.ID))
		for _, s := range t.Subtasks {
			rows = append(rows, models.SubtaskRef(s.ID))
		}
	}
	return rows
}

func unitStatus(tasks []models.Task, ref models.UnitRef) models.TaskStatus {
	for _, t := range tasks {
		if ref.Kind == models.UnitTask && t.ID == ref.ID {
			return t.Status
		}
		for _, s := range t.Subtasks {
			if ref.Kind == models.UnitSubtask && s.ID == ref.ID {
				return s.Status
			}
		}
	}
	return ""
}

func unitTitle(tasks []models.Task, ref models.UnitRef) string {
	for _, t := range tasks {
		if ref.Kind == models.UnitTask && t.ID == ref.ID {
			return t.Title
		}
		for _, s := range t.Subtasks {
			if ref.Kind == models.UnitSubtask && s.ID == ref.ID {
				return s.Title
			}
		}
	}
	return ""
}

// boardChrome is the non-timer state shown around the board.
type boardChrome struct {
	sortLine string
	notice   string
	confirm  string
	loading  bool
	width    int
}

func (m boardModel) View() string {
	if m.expired {
		return ""
	}
	c := boardChrome{notice: m.notice, confirm: m.confirm, loading: m.loading, width: m.width}
	if s := m.deps.sorter; s != nil {
		state := "unsorted"
		if s.Sorted() {
			state = "sorted"
		}
		auto := ""
		if s.AutoSort() {
			auto = ", auto"
		}
		c.sortLine = fmt.Sprintf("%s (%s%s)", s.Type(), state, auto)
	}
	return renderBoard(m.tasks, m.snap, m.now, m.selected, c)
}

// renderBoard draws the board from the task list, the running snapshot, the
// current time and the selection.
func renderBoard(tasks []models.Task, snap models.FocusSnapshot, now time.Time, selected models.UnitRef, c boardChrome) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(" focus "))
	if c.sortLine != "" {
		b.WriteString("  " + helpStyle.Render(c.sortLine))
	}
	b.WriteString("\n\n")

	b.WriteString(renderTimer(tasks, snap, now, c.width))
	b.WriteString("\n\n")

	if c.loading {
		b.WriteString("  Loading tasks...\n")
	} else if len(tasks) == 0 {
		b.WriteString("  No tasks. Create one with \"focus create\".\n")
	}
	for _, t := range tasks {
		line := fmt.Sprintf("%s %s", statusStyle(t.Status).Render(fmt.Sprintf("%-6s", t.Status)), t.Title)
		if t.Deadline != nil {
			rem := timefmt.FormatRemaining(t.Deadline, now)
			if t.Deadline.Before(now) && t.Status != models.StatusDone {
				rem = overdueStyle.Render(rem)
			}
			line += "  " + rem
		}
		b.WriteString(renderRow(line, selected == models.TaskRef(t.ID), "  "))
		for _, s := range t.Subtasks {
			check := "[ ]"
			if s.Done {
				check = "[x]"
			}
			sl := fmt.Sprintf("%s %s %s", check, statusStyle(s.Status).Render(fmt.Sprintf("%-6s", s.Status)), s.Title)
			b.WriteString(renderRow(sl, selected == models.SubtaskRef(s.ID), "      "))
		}
	}

	b.WriteString("\n")
	switch {
	case c.confirm == "reset":
		b.WriteString(noticeStyle.Render("Reset the timer to 00:00:00? (y/n)"))
	case c.confirm == "delete":
		b.WriteString(noticeStyle.Render("Delete the selected task? This cannot be undone. (y/n)"))
	case c.notice != "":
		b.WriteString(noticeStyle.Render(c.notice))
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("space: start/pause/resume | c: complete | v: peek | x: reset | d: delete | e: tick subtask | o/O: sort/recompute | t: type | a: auto | J/K: move | g: reload | q: quit"))
	return b.String()
}

func renderTimer(tasks []models.Task, snap models.FocusSnapshot, now time.Time, width int) string {
	ref, st, ok := snap.Display()
	content := clockStyle.Render(timefmt.FormatClock(0)) + "  nothing tracked"
	if ok {
		state := "running"
		switch {
		case st.Peek:
			state = "peek"
		case st.Paused:
			state = "paused"
		}
		content = fmt.Sprintf("%s  %s %q  [%s]",
			clockStyle.Render(timefmt.FormatClock(st.Elapsed(now))), ref.Kind, unitTitle(tasks, ref), state)
	}
	style := panelStyle
	if width > 4 {
		style = style.Width(width - 4)
	}
	return style.Render(content)
}

func renderRow(line string, selected bool, indent string) string {
	if selected {
		return indent + selectedStyle.Render(line) + "\n"
	}
	return indent + line + "\n"
}

func statusStyle(s models.TaskStatus) lipgloss.Style {
	switch s {
	case models.StatusDoing:
		return statusDoing
	case models.StatusPaused:
		return statusPaused
	case models.StatusDone:
		return statusDone
	default:
		return statusTodo
	}
}

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Interactive board with a live focus timer",
	Long: `Launch the interactive board: the task list with subtasks, the focus
timer and deadline countdowns.

Select a unit with the arrow keys and press space to start, pause or
resume it. Reset and delete ask for confirmation. Press q to quit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Focus == nil || Sync == nil {
			return fmt.Errorf("focus services not initialized")
		}
		ctx, cancel := context.WithCancel(cmdContext(cmd))
		defer cancel()

		m := newBoardModel(boardDeps{
			ctx:      ctx,
			focus:    Focus,
			sync:     Sync,
			sorter:   Sorter,
			prefs:    Prefs,
			cfg:      UIConfig,
			loginURL: LoginURL,
			log:      Log,
		})
		final, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
		if err != nil {
			return err
		}
		if bm, ok := final.(boardModel); ok && bm.expired {
			return &ErrLoginRequired{LoginURL: LoginURL, Err: api.ErrUnauthorized}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uiCmd)
}

package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Rick1330/Nexus-Framework/internal/orchestrator"
	"github.com/Rick1330/Nexus-Framework/pkg/models"
)

const defaultMaxLogs = 200

// Controls is the part of the orchestrator the view can steer.
type Controls interface {
	Pause()
	Resume()
	IsPaused() bool
	Cancel(planID string) error
}

// Options configures a WorkflowView.
type Options struct {
	// Controls enables the p and c keys when set.
	Controls Controls
	// Progress is polled every RefreshRate when set.
	Progress    func() (models.Progress, error)
	RefreshRate time.Duration
	// MaxLogs bounds the activity log.
	MaxLogs int
}

// EventMsg wraps an orchestrator event.
type EventMsg struct {
	Event orchestrator.Event
}

// ProgressMsg replaces the progress counters.
type ProgressMsg struct {
	Progress models.Progress
}

// DoneMsg marks the workflow as finished.
type DoneMsg struct {
	Status models.PlanStatus
	Err    error
}

type tickMsg time.Time

// LogEntry is one line of the activity log.
type LogEntry struct {
	Timestamp time.Time
	Level     string
	Message   string
}

type taskRow struct {
	id       string
	title    string
	status   models.TaskStatus
	agentID  string
	attempt  int
	duration time.Duration
}

// WorkflowView is the bubbletea model for a running plan.
type WorkflowView struct {
	planID string
	goal   string
	opts   Options

	rows     []*taskRow
	index    map[string]*taskRow
	progress models.Progress
	tokens   int64
	logs     []LogEntry

	paused     bool
	done       bool
	doneStatus models.PlanStatus
	doneErr    error
	quitting   bool

	width   int
	spinner spinner.Model
	bar     progress.Model
}

// NewWorkflowView builds a view over plan's tasks.
func NewWorkflowView(plan *models.Plan, opts Options) *WorkflowView {
	if opts.MaxLogs <= 0 {
		opts.MaxLogs = defaultMaxLogs
	}
	v := &WorkflowView{
		planID:  plan.ID,
		goal:    plan.GoalID,
		opts:    opts,
		index:   make(map[string]*taskRow, len(plan.Tasks)),
		width:   80,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(statusStyles[models.TaskStatusInProgress])),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
	for _, t := range plan.Tasks {
		row := &taskRow{id: t.ID, title: t.Title, status: t.Status, attempt: t.RetryCount + 1}
		v.rows = append(v.rows, row)
		v.index[t.ID] = row
	}
	v.progress = plan.Progress()
	return v
}

// Init implements tea.Model.
func (v *WorkflowView) Init() tea.Cmd {
	return tea.Batch(v.spinner.Tick, v.tick())
}

func (v *WorkflowView) tick() tea.Cmd {
	if v.opts.Progress == nil || v.opts.RefreshRate <= 0 {
		return nil
	}
	return tea.Tick(v.opts.RefreshRate, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model.
func (v *WorkflowView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return v, v.handleKey(msg.String())

	case tea.WindowSizeMsg:
		v.width = msg.Width
		if w := msg.Width - 20; w > 10 {
			v.bar.Width = w
		}

	case EventMsg:
		v.apply(msg.Event)

	case ProgressMsg:
		v.progress = msg.Progress

	case DoneMsg:
		v.finish(msg.Status, msg.Err)

	case tickMsg:
		if v.done {
			return v, nil
		}
		if p, err := v.opts.Progress(); err == nil {
			v.progress = p
		}
		return v, v.tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd
	}
	return v, nil
}

func (v *WorkflowView) handleKey(key string) tea.Cmd {
	switch key {
	case "q", "ctrl+c":
		v.quitting = true
		return tea.Quit
	case "p":
		if v.opts.Controls == nil || v.done {
			return nil
		}
		if v.opts.Controls.IsPaused() {
			v.opts.Controls.Resume()
			v.paused = false
			v.log("INFO", "resumed")
		} else {
			v.opts.Controls.Pause()
			v.paused = true
			v.log("INFO", "paused, running tasks will finish")
		}
	case "c":
		if v.opts.Controls == nil || v.done {
			return nil
		}
		if err := v.opts.Controls.Cancel(v.planID); err != nil {
			v.log("ERROR", "cancel: "+err.Error())
		} else {
			v.log("WARN", "cancellation requested")
		}
	}
	return nil
}

// apply folds an orchestrator event into the view.
func (v *WorkflowView) apply(e orchestrator.Event) {
	if e.PlanID != "" && e.PlanID != v.planID && e.Type != orchestrator.EventPlanAdapted {
		return
	}

	row := v.index[e.TaskID]
	switch e.Type {
	case orchestrator.EventTaskScheduled, orchestrator.EventTaskStarted:
		if row != nil {
			row.status = models.TaskStatusInProgress
			row.agentID = e.AgentID
			if e.Attempt > 0 {
				row.attempt = e.Attempt
			}
		}
	case orchestrator.EventTaskCompleted:
		if row != nil {
			row.status = models.TaskStatusCompleted
			row.duration = e.Duration
		}
		v.tokens += e.TokensUsed
	case orchestrator.EventTaskRetrying:
		if row != nil {
			row.status = models.TaskStatusPending
			row.attempt++
		}
	case orchestrator.EventTaskSkipped:
		if row != nil {
			row.status = models.TaskStatusSkipped
		}
	case orchestrator.EventTaskFailed:
		if row != nil {
			row.status = models.TaskStatusFailed
		}
	case orchestrator.EventWorkflowCompleted:
		v.finish(models.PlanStatusCompleted, nil)
	case orchestrator.EventWorkflowFailed:
		v.finish(models.PlanStatusFailed, e.Error)
	}

	if v.opts.Progress == nil {
		v.progress = v.countRows()
	}
	v.log(levelFor(e), describe(e))
}

func (v *WorkflowView) finish(status models.PlanStatus, err error) {
	v.done = true
	v.doneStatus = status
	v.doneErr = err
}

func (v *WorkflowView) countRows() models.Progress {
	plan := &models.Plan{}
	for _, r := range v.rows {
		plan.Tasks = append(plan.Tasks, &models.Task{ID: r.id, Status: r.status})
	}
	return plan.Progress()
}

func (v *WorkflowView) log(level, message string) {
	v.logs = append(v.logs, LogEntry{Timestamp: time.Now(), Level: level, Message: message})
	if over := len(v.logs) - v.opts.MaxLogs; over > 0 {
		v.logs = v.logs[over:]
	}
}

func levelFor(e orchestrator.Event) string {
	switch e.Type {
	case orchestrator.EventTaskFailed, orchestrator.EventWorkflowFailed:
		return "ERROR"
	case orchestrator.EventTaskRetrying, orchestrator.EventTaskSkipped:
		return "WARN"
	}
	return "INFO"
}

// describe renders an event as a log line.
func describe(e orchestrator.Event) string {
	name := e.TaskTitle
	if name == "" {
		name = e.TaskID
	}
	var msg string
	switch e.Type {
	case orchestrator.EventTaskScheduled:
		msg = fmt.Sprintf("%s assigned to %s", name, e.AgentID)
	case orchestrator.EventTaskStarted:
		msg = fmt.Sprintf("%s started (attempt %d)", name, e.Attempt)
	case orchestrator.EventTaskCompleted:
		msg = fmt.Sprintf("%s completed in %s", name, e.Duration.Round(time.Millisecond))
	case orchestrator.EventTaskRetrying:
		msg = fmt.Sprintf("%s will be retried", name)
	case orchestrator.EventTaskSkipped:
		msg = fmt.Sprintf("%s skipped", name)
	case orchestrator.EventTaskFailed:
		msg = fmt.Sprintf("%s failed", name)
	default:
		msg = string(e.Type)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Error != nil {
		msg += " (" + e.Error.Error() + ")"
	}
	return msg
}

// Done reports whether the workflow finished and with which status.
func (v *WorkflowView) Done() (bool, models.PlanStatus) {
	return v.done, v.doneStatus
}

// Logs returns a copy of the activity log.
func (v *WorkflowView) Logs() []LogEntry {
	return append([]LogEntry(nil), v.logs...)
}

// View implements tea.Model.
func (v *WorkflowView) View() string {
	if v.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Plan " + v.planID))
	b.WriteString("\n")
	if v.goal != "" {
		b.WriteString(labelStyle.Render("Goal:"))
		b.WriteString(valueStyle.Render(v.goal))
		b.WriteString("\n")
	}

	p := v.progress
	b.WriteString(labelStyle.Render("Progress:"))
	b.WriteString(v.bar.ViewAs(p.Percent / 100))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("Tasks:"))
	b.WriteString(fmt.Sprintf("%d/%d done, %d running, %d failed, %d skipped",
		p.Completed+p.Skipped, p.Total, p.InProgress, p.Failed, p.Skipped))
	if v.tokens > 0 {
		b.WriteString(hintStyle.Render(fmt.Sprintf("  %d tokens", v.tokens)))
	}
	b.WriteString("\n\n")

	b.WriteString(v.viewTasks())
	b.WriteString("\n")
	b.WriteString(v.viewLogs(8))
	b.WriteString("\n")
	b.WriteString(v.viewFooter())
	return b.String()
}

func (v *WorkflowView) viewTasks() string {
	idWidth := 4
	for _, r := range v.rows {
		if len(r.id) > idWidth {
			idWidth = len(r.id)
		}
	}
	idStyle := lipgloss.NewStyle().Width(idWidth + 2)
	statusCol := lipgloss.NewStyle().Width(16)

	var lines []string
	for _, r := range v.rows {
		status := renderStatus(r.status)
		if r.status == models.TaskStatusInProgress && !v.done {
			status = v.spinner.View() + " " + string(r.status)
		}
		line := idStyle.Render(r.id) + statusCol.Render(status) + truncate(r.title, 48)
		if r.agentID != "" && r.status == models.TaskStatusInProgress {
			line += hintStyle.Render("  @" + r.agentID)
		}
		if r.attempt > 1 {
			line += warningStyle.Render(fmt.Sprintf("  attempt %d", r.attempt))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n") + "\n"
}

func (v *WorkflowView) viewLogs(n int) string {
	start := len(v.logs) - n
	if start < 0 {
		start = 0
	}
	var b strings.Builder
	for _, entry := range v.logs[start:] {
		line := fmt.Sprintf("%s %s", entry.Timestamp.Format("15:04:05"), entry.Message)
		switch entry.Level {
		case "ERROR":
			line = errorStyle.Render(line)
		case "WARN":
			line = warningStyle.Render(line)
		default:
			line = hintStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func (v *WorkflowView) viewFooter() string {
	if v.done {
		if v.doneStatus == models.PlanStatusCompleted {
			return successStyle.Render("✓ workflow completed") + hintStyle.Render(" | q to exit")
		}
		msg := "✗ workflow " + string(v.doneStatus)
		if v.doneErr != nil {
			msg += ": " + v.doneErr.Error()
		}
		return errorStyle.Render(msg) + hintStyle.Render(" | q to exit")
	}
	hints := "q quit"
	if v.opts.Controls != nil {
		hints = "p pause/resume | c cancel | " + hints
	}
	if v.paused {
		return warningStyle.Render("paused") + hintStyle.Render(" | "+hints)
	}
	return hintStyle.Render(hints)
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}

// Sender is satisfied by *tea.Program.
type Sender interface {
	Send(msg tea.Msg)
}

// Pump forwards orchestrator events to the program until ctx is done or the
// channel closes.
func Pump(ctx context.Context, p Sender, events <-chan orchestrator.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			p.Send(EventMsg{Event: e})
		}
	}
}

// NewProgram wraps a view in a bubbletea program on the alternate screen.
func NewProgram(v *WorkflowView, opts ...tea.ProgramOption) *tea.Program {
	return tea.NewProgram(v, append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...)
}

// Package tui provides the terminal view for a running workflow.
//
// The view is read-only apart from pause and cancel controls. It shows the
// plan's progress bar, one row per task with its status and agent, and a log
// of recent orchestrator events.
//
// Usage:
//
//	view := tui.NewWorkflowView(plan, tui.Options{Controls: orch})
//	program := tui.NewProgram(view)
//	go tui.Pump(ctx, program, orch.Events())
//	_, err := program.Run()
//
// Pump converts orchestrator events into EventMsg values. When the workflow
// ends, send a DoneMsg so the footer shows the outcome.
package tui

// Package orchestrator runs strategized plans on registered agents.
//
// The orchestrator owns agent availability and every status transition of
// tasks, executions and plans during a run:
//   - Scheduling: a task goes to the first available agent, in id order,
//     whose capabilities cover the task's required capabilities
//   - Workflows: a per-plan run loop dispatches tasks once their
//     dependencies are completed or skipped and finishes the plan
//   - Failure handling: failed attempts are retried, skipped or failed
//     according to the task's fallback policy, and failures propagate to
//     every dependent task
//   - Adaptation: a finished plan can be copied into a new plan that must be
//     strategized again before it runs
//
// Example usage:
//
//	orch := orchestrator.New(st, orchestrator.WithPolicy(cfg.Policy()))
//	_ = orch.RegisterAgent(agent.NewSimulated("sim-1", nil, time.Second))
//	execID, err := orch.StartWorkflow(ctx, planID, nil)
package orchestrator

// Package collab coordinates independent, unreliable model-backed
// participants through a time-boxed multi-round protocol and synthesizes
// their contributions into a single decision artifact.
//
// Invariants:
// - Round numbers are unique and strictly increasing within a session.
// - A contribution is accepted only while its round is active.
// - Consensus is a pure, order-independent function of a round's contributions.
// - Session status transitions are monotone; a terminal session is never reactivated.
// - Token usage totals equal the sum of their per-participant and per-round breakdowns.
//
// Usage:
//
//	mgr, _ := collab.NewManager(collab.ManagerConfig{
//		Registry: registry,
//		Querier:  querier,
//	})
//	session, _ := mgr.StartSession(ctx, "cli", collab.CollaborationRequest{
//		Prompt:      "Design the rollout plan",
//		TimeLimitMs: 60000,
//	})
//	_ = session.Output
package collab

// Package core provides the foundational types shared by the flow engine,
// its operator nodes and the capabilities they call out to:
//
//   - Agent / Node (named user agents and combinator nodes)
//   - Invoker, Judge and ConditionEvaluator (external capabilities)
//   - RunContext (immutable per-node execution snapshot)
//   - NodeError and the failure taxonomy sentinels
//   - Trace (node state transitions recorded during a run)
//   - Limiter (per-run invocation budget)
//
// Concrete agents, the orchestration engine and persistence live in other
// packages; core only exposes small interfaces so they can be swapped or
// faked in tests.
package core

// Package engine executes flow definitions.
//
// The Engine turns a definition.Definition into a tree of agent nodes
// (Build), checks it ahead of time (Validate) and runs it (Execute). A run
// owns its context, trace and invocation budget; the engine tracks active
// runs so they can be cancelled by id.
//
// # Operators
//
//   - sequenceAgent: children run in order, each receiving the previous output
//   - parallelAgent: children run concurrently, output ordered by declaration
//   - oneOfAgent: the first branch whose condition holds runs
//   - forEachAgent: the sub-flow runs once per element of the incoming list
//   - optimizeAgent: the sub-flow is repeated until the judge approves
//   - bestOfAllAgent: all candidates run and the judge selects one
//
// Any other agent name is a leaf handed to the configured core.Invoker.
//
// # Callbacks
//
// A CallbackManager installed through Options.Callbacks observes every node:
//
//	cm := engine.NewCallbackManager(
//	    engine.NewLoggingCallback(engine.CallbackOnError, func(msg string) { log.Print(msg) }),
//	    engine.NewAllowAgentsCallback("writer", "critic"),
//	)
//	eng := engine.New(registry, func(o *engine.Options) {
//	    o.Judge = judge
//	    o.Callbacks = cm
//	})
//
// An error returned from a CallbackBeforeNode callback fails the node with
// core.ErrRejected.
//
// # Errors
//
// Every failure is a *core.NodeError carrying the failing path. Use
// errors.Is with the core sentinels to classify it and core.FailingNode to
// locate the node that originally failed. Execute always returns a Result,
// so traces of failed runs remain available.
package engine

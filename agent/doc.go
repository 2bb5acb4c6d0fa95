// Package agent contains the executable nodes of a compiled flow and the
// user agents they invoke.
//
// Nodes:
//
//  1. InvokeAgent: leaf, renders its input and calls a named user agent
//  2. Combinators: SequentialAgent, ParallelAgent, OneOfAgent,
//     ForEachAgent, OptimizeAgent and BestOfAllAgent
//
// Every node embeds BaseAgent, which records trace events, runs the
// engine's hooks and logs lifecycle transitions. A node locates itself by
// the Path of the RunContext it receives; composite nodes derive their
// children's contexts with RunContext.Child.
//
// User agents implement core.Agent. ModelAgent drives a model.Model and
// Func adapts plain functions. Registry resolves agent names for leaves.
package agent

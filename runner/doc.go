// Package runner runs program flows end to end.
//
// A Runner picks the flow to run (by code, or the program's default),
// resolves the program's input variables, compiles the flow, executes it
// on an engine under a timeout and persists the run record to a
// session.Store. Runs execute synchronously through Run or in the
// background through Start; both can be cancelled by run ID.
package runner

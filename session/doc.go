// Package session holds run records and the stores that keep them.
//
// A Run captures one execution of a flow: its inputs, final output or
// error, convergence and the node trace. The Store interface is kept small
// so the runner does not depend on a concrete backend. InMemoryStore lives
// here; durable backends live in sub-packages (session/sqlite,
// session/redis) and only the wiring layer decides which one to use.
package session

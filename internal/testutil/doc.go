// Package testutil contains scripted fakes used across tests to drive
// flows without real models: an invoker whose agents answer from a script
// and record every call, a judge with queued verdicts and a condition
// evaluator backed by a lookup table. They are not intended for
// production usage.
package testutil

// Package step defines the editable flow model: a recursive, closed union of
// step variants (Call, Sequence, Parallel, OneOf, ForEach, Evaluator,
// BestOfAll) together with positional addressing (Path) and persistent edit
// operations.
//
// Steps carry no identity of their own. A node is addressed by its position
// in the tree, and every edit returns a new tree value: the subtrees that
// were not on the edited path are shared with the previous tree and are
// never mutated. This keeps undo and concurrent editing safe without locks.
//
// Usage:
//
//	root := step.New(step.TypeSequence)
//	root, _ = step.Insert(root, step.Root, 0, step.Call{Agent: "writer", Input: "Draft a post"})
//	root, _ = step.Insert(root, step.Root, 1, step.Call{Agent: "editor", Input: "{{.input}}"})
//
// The package has no dependencies on the compiler or the engine.
package step

package step

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPath is returned when a path does not address a node.
	ErrInvalidPath = errors.New("invalid step path")
	// ErrNotContainer is returned when a list edit targets a node that does
	// not hold a list of children.
	ErrNotContainer = errors.New("step is not a list container")
)

// At returns the node addressed by p.
func At(root Step, p Path) (Step, bool) {
	cur := root
	for _, i := range p {
		children := Children(cur)
		if i < 0 || i >= len(children) {
			return nil, false
		}
		cur = children[i]
	}
	return cur, cur != nil
}

// Replace returns a copy of root in which the node at p is repl. Only the
// nodes on the path are copied; every other subtree is shared with root.
func Replace(root Step, p Path, repl Step) (Step, error) {
	return update(root, p, func(Step) (Step, error) { return repl, nil })
}

// Insert adds s at index of the list container addressed by parent
// (Sequence, Parallel or BestOfAll). An index equal to the list length
// appends.
func Insert(root Step, parent Path, index int, s Step) (Step, error) {
	return update(root, parent, func(n Step) (Step, error) {
		steps, rebuild, ok := list(n)
		if !ok {
			return nil, fmt.Errorf("%w: %s at %s", ErrNotContainer, typeOf(n), parent)
		}
		if index < 0 || index > len(steps) {
			return nil, fmt.Errorf("%w: index %d out of range at %s", ErrInvalidPath, index, parent)
		}
		out := make([]Step, 0, len(steps)+1)
		out = append(out, steps[:index]...)
		out = append(out, s)
		out = append(out, steps[index:]...)
		return rebuild(out), nil
	})
}

// InsertBranch adds b at index of the OneOf addressed by parent.
func InsertBranch(root Step, parent Path, index int, b Branch) (Step, error) {
	return update(root, parent, func(n Step) (Step, error) {
		o, ok := n.(OneOf)
		if !ok {
			return nil, fmt.Errorf("%w: %s at %s", ErrNotContainer, typeOf(n), parent)
		}
		if index < 0 || index > len(o.Branches) {
			return nil, fmt.Errorf("%w: index %d out of range at %s", ErrInvalidPath, index, parent)
		}
		out := make([]Branch, 0, len(o.Branches)+1)
		out = append(out, o.Branches[:index]...)
		out = append(out, b)
		out = append(out, o.Branches[index:]...)
		return OneOf{Branches: out}, nil
	})
}

// SetCondition replaces the condition of branch index of the OneOf at
// parent.
func SetCondition(root Step, parent Path, index int, when string) (Step, error) {
	return update(root, parent, func(n Step) (Step, error) {
		o, ok := n.(OneOf)
		if !ok {
			return nil, fmt.Errorf("%w: %s at %s", ErrNotContainer, typeOf(n), parent)
		}
		if index < 0 || index >= len(o.Branches) {
			return nil, fmt.Errorf("%w: branch %d out of range at %s", ErrInvalidPath, index, parent)
		}
		out := append([]Branch(nil), o.Branches...)
		out[index] = Branch{When: when, Flow: out[index].Flow}
		return OneOf{Branches: out}, nil
	})
}

// Remove deletes the node at p from its parent list (or branch list). The
// single child of ForEach and Evaluator cannot be removed, only replaced.
func Remove(root Step, p Path) (Step, error) {
	parent, index, ok := p.Parent()
	if !ok {
		return nil, fmt.Errorf("%w: cannot remove root", ErrInvalidPath)
	}
	return update(root, parent, func(n Step) (Step, error) {
		if o, ok := n.(OneOf); ok {
			if index >= len(o.Branches) {
				return nil, fmt.Errorf("%w: %s", ErrInvalidPath, p)
			}
			out := make([]Branch, 0, len(o.Branches)-1)
			out = append(out, o.Branches[:index]...)
			out = append(out, o.Branches[index+1:]...)
			return OneOf{Branches: out}, nil
		}
		steps, rebuild, ok := list(n)
		if !ok {
			return nil, fmt.Errorf("%w: %s at %s", ErrNotContainer, typeOf(n), parent)
		}
		if index >= len(steps) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPath, p)
		}
		out := make([]Step, 0, len(steps)-1)
		out = append(out, steps[:index]...)
		out = append(out, steps[index+1:]...)
		return rebuild(out), nil
	})
}

// update rebuilds the spine from root to p, applying fn at p.
func update(root Step, p Path, fn func(Step) (Step, error)) (Step, error) {
	if len(p) == 0 {
		return fn(root)
	}
	children := Children(root)
	i := p[0]
	if i < 0 || i >= len(children) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPath, p)
	}
	child, err := update(children[i], p[1:], fn)
	if err != nil {
		return nil, err
	}
	return withChild(root, i, child), nil
}

// withChild returns a copy of s whose i-th positional child is c. The index
// has already been bounds-checked against Children(s).
func withChild(s Step, i int, c Step) Step {
	switch v := s.(type) {
	case Sequence:
		return Sequence{Steps: replaced(v.Steps, i, c)}
	case Parallel:
		return Parallel{Steps: replaced(v.Steps, i, c)}
	case BestOfAll:
		return BestOfAll{Criteria: v.Criteria, Steps: replaced(v.Steps, i, c)}
	case OneOf:
		out := append([]Branch(nil), v.Branches...)
		out[i] = Branch{When: out[i].When, Flow: c}
		return OneOf{Branches: out}
	case ForEach:
		return ForEach{Item: v.Item, InputFlow: c}
	case Evaluator:
		return Evaluator{Criteria: v.Criteria, MaxIterations: v.MaxIterations, SubFlow: c}
	}
	return s
}

func replaced(steps []Step, i int, c Step) []Step {
	out := append([]Step(nil), steps...)
	out[i] = c
	return out
}

func list(s Step) ([]Step, func([]Step) Step, bool) {
	switch v := s.(type) {
	case Sequence:
		return v.Steps, func(out []Step) Step { return Sequence{Steps: out} }, true
	case Parallel:
		return v.Steps, func(out []Step) Step { return Parallel{Steps: out} }, true
	case BestOfAll:
		return v.Steps, func(out []Step) Step { return BestOfAll{Criteria: v.Criteria, Steps: out} }, true
	}
	return nil, nil, false
}

func typeOf(s Step) string {
	if s == nil {
		return "<nil>"
	}
	return string(s.Type())
}

package step

import (
	"fmt"
	"strconv"
	"strings"
)

// Path addresses a node by the child indices leading to it from the root.
// The zero value (and Root) addresses the root itself.
type Path []int

// Root is the path of the tree root.
var Root = Path{}

// Child returns a new path extended with index i. The receiver is never
// aliased by the result.
func (p Path) Child(i int) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = i
	return out
}

// Parent returns the path of the enclosing node and the index of p within
// it. The root has no parent.
func (p Path) Parent() (Path, int, bool) {
	if len(p) == 0 {
		return nil, 0, false
	}
	return append(Path{}, p[:len(p)-1]...), p[len(p)-1], true
}

// IsRoot reports whether p addresses the root.
func (p Path) IsRoot() bool { return len(p) == 0 }

// Equal reports whether both paths address the same node.
func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// String renders the path as "$" for the root and "$.0.2" otherwise.
func (p Path) String() string {
	var b strings.Builder
	b.WriteString("$")
	for _, i := range p {
		b.WriteByte('.')
		b.WriteString(strconv.Itoa(i))
	}
	return b.String()
}

// MarshalText implements encoding.TextMarshaler.
func (p Path) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Path) UnmarshalText(b []byte) error {
	parsed, err := ParsePath(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePath parses the String form of a path.
func ParsePath(s string) (Path, error) {
	if s != "$" && !strings.HasPrefix(s, "$.") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, s)
	}
	out := Path{}
	if s == "$" {
		return out, nil
	}
	for _, part := range strings.Split(s[2:], ".") {
		i, err := strconv.Atoi(part)
		if err != nil || i < 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, s)
		}
		out = append(out, i)
	}
	return out, nil
}

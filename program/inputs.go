package program

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	ErrMissingInput = errors.New("missing required input")
	ErrInvalidInput = errors.New("invalid input")
)

// InputType is the kind of value an input variable accepts.
type InputType string

const (
	InputShortText  InputType = "shortText"
	InputURL        InputType = "url"
	InputLongText   InputType = "longText"
	InputNumber     InputType = "number"
	InputJSON       InputType = "json"
	InputFileBase64 InputType = "fileBase64"
)

// Valid reports whether t is a known input type. The empty type means
// shortText.
func (t InputType) Valid() bool {
	switch t {
	case "", InputShortText, InputURL, InputLongText, InputNumber, InputJSON, InputFileBase64:
		return true
	}
	return false
}

// InputVariable declares a value supplied when a flow is run. Templates
// see it under its name and under inputs.
type InputVariable struct {
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool      `json:"required,omitempty" yaml:"required,omitempty"`
	Type        InputType `json:"type,omitempty" yaml:"type,omitempty"`
}

// ResolveInputs checks values against the declared input variables.
// Missing optional inputs are set to "". Values for undeclared names are
// passed through unchanged.
func (p Program) ResolveInputs(values map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(values)+len(p.Inputs))
	for k, v := range values {
		out[k] = v
	}

	var errs []error
	for _, in := range p.Inputs {
		v, ok := values[in.Name]
		if !ok || isBlank(v) {
			if in.Required {
				errs = append(errs, fmt.Errorf("%w: %q", ErrMissingInput, in.Name))
				continue
			}
			if !ok {
				out[in.Name] = ""
			}
			continue
		}

		conv, err := in.convert(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w %q: %v", ErrInvalidInput, in.Name, err))
			continue
		}
		out[in.Name] = conv
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func (in InputVariable) convert(v any) (any, error) {
	switch in.Type {
	case InputNumber:
		switch n := v.(type) {
		case int, int32, int64, float32, float64:
			return n, nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
			if err != nil {
				return nil, fmt.Errorf("%q is not a number", n)
			}
			return f, nil
		}
		return nil, fmt.Errorf("expected number, got %T", v)

	case InputURL:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		u, err := url.Parse(strings.TrimSpace(s))
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("%q is not an absolute URL", s)
		}
		return u.String(), nil

	case InputJSON:
		s, ok := v.(string)
		if !ok {
			// Already decoded.
			return v, nil
		}
		if !gjson.Valid(s) {
			return nil, errors.New("not valid JSON")
		}
		return s, nil

	case InputFileBase64:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		data := s
		if strings.HasPrefix(s, "data:") {
			i := strings.Index(s, ";base64,")
			if i < 0 {
				return nil, errors.New("data URL is not base64 encoded")
			}
			data = s[i+len(";base64,"):]
		}
		if _, err := base64.StdEncoding.DecodeString(data); err != nil {
			return nil, errors.New("not valid base64")
		}
		return s, nil

	default:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return fmt.Sprint(v), nil
	}
}

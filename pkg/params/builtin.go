package params

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Types is a registry of named parameter types. It is safe for concurrent use.
type Types struct {
	mu    sync.RWMutex
	types map[string]Type
}

// NewTypes returns a registry pre-populated with the built-in types:
// string, path, query, hash, int, bool, date, json and any.
func NewTypes() *Types {
	t := &Types{types: make(map[string]Type)}
	for _, def := range builtins() {
		t.types[def.Name()] = def
	}
	return t
}

// Type looks up a type by name.
func (t *Types) Type(name string) (Type, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	typ, ok := t.types[name]
	return typ, ok
}

// Define registers (or replaces) a type.
func (t *Types) Define(typ Type) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.types[typ.Name()] = typ
}

// Names returns the registered type names.
func (t *Types) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.types))
	for name := range t.types {
		names = append(names, name)
	}
	return names
}

var (
	slashTilde   = strings.NewReplacer("~", "~~", "/", "~2F")
	unslashTilde = strings.NewReplacer("~~", "~", "~2F", "/")
)

func valToString(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	return slashTilde.Replace(fmt.Sprint(v)), nil
}

func valFromString(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	return unslashTilde.Replace(fmt.Sprint(v)), nil
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

func stringType(name, pattern string, inherit bool) *Definition {
	return &Definition{
		TypeName:  name,
		Regexp:    regexp.MustCompile(pattern),
		IsFn:      isString,
		EncodeFn:  valToString,
		DecodeFn:  valFromString,
		NoInherit: !inherit,
	}
}

func builtins() []Type {
	return []Type{
		stringType("string", `.*`, true),
		stringType("path", `[^/]*`, true),
		stringType("query", `.*`, true),
		stringType("hash", `.*`, false),
		intType(),
		boolType(),
		dateType(),
		jsonType(),
		&Definition{
			TypeName: "any",
			EqualsFn: reflect.DeepEqual,
		},
	}
}

func intType() *Definition {
	d := &Definition{
		TypeName: "int",
		Regexp:   regexp.MustCompile(`-?\d+`),
	}
	d.EncodeFn = func(v any) (any, error) {
		switch n := v.(type) {
		case nil:
			return nil, nil
		case int:
			return strconv.Itoa(n), nil
		case int64:
			return strconv.FormatInt(n, 10), nil
		case int32:
			return strconv.FormatInt(int64(n), 10), nil
		default:
			return nil, fmt.Errorf("%w: %v (%T)", ErrNotInteger, v, v)
		}
	}
	d.DecodeFn = func(v any) (any, error) {
		switch s := v.(type) {
		case nil:
			return nil, nil
		case int:
			return s, nil
		case int64:
			return int(s), nil
		case int32:
			return int(s), nil
		case float64:
			// whole numbers from JSON unmarshaling
			if s == float64(int(s)) {
				return int(s), nil
			}
			return nil, fmt.Errorf("%w: %v", ErrNotInteger, s)
		case json.Number:
			n, err := strconv.Atoi(s.String())
			if err != nil {
				return nil, fmt.Errorf("%w: %q", ErrNotInteger, s.String())
			}
			return n, nil
		case string:
			n, err := strconv.Atoi(s)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", ErrNotInteger, s)
			}
			return n, nil
		default:
			return nil, fmt.Errorf("%w: %v (%T)", ErrNotInteger, v, v)
		}
	}
	// an int value must survive a round trip through its string form
	d.IsFn = func(v any) bool {
		n, ok := v.(int)
		if !ok {
			return false
		}
		back, err := d.DecodeFn(strconv.Itoa(n))
		return err == nil && back == n
	}
	return d
}

func boolType() *Definition {
	return &Definition{
		TypeName: "bool",
		Regexp:   regexp.MustCompile(`0|1`),
		IsFn: func(v any) bool {
			_, ok := v.(bool)
			return ok
		},
		EncodeFn: func(v any) (any, error) {
			b, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("expected bool, got %T", v)
			}
			if b {
				return "1", nil
			}
			return "0", nil
		},
		DecodeFn: func(v any) (any, error) {
			switch s := v.(type) {
			case bool:
				return s, nil
			case string:
				n, err := strconv.Atoi(s)
				if err != nil {
					return nil, fmt.Errorf("expected 0 or 1, got %q", s)
				}
				return n != 0, nil
			default:
				return nil, fmt.Errorf("expected bool, got %T", v)
			}
		},
	}
}

const dateLayout = "2006-01-02"

func dateType() *Definition {
	return &Definition{
		TypeName: "date",
		Regexp:   regexp.MustCompile(`[0-9]{4}-(?:0[1-9]|1[0-2])-[0-9]{2}`),
		IsFn: func(v any) bool {
			_, ok := v.(time.Time)
			return ok
		},
		EncodeFn: func(v any) (any, error) {
			t, ok := v.(time.Time)
			if !ok {
				return nil, nil
			}
			return t.Format(dateLayout), nil
		},
		DecodeFn: func(v any) (any, error) {
			switch s := v.(type) {
			case time.Time:
				return s, nil
			case string:
				t, err := time.Parse(dateLayout, s)
				if err != nil {
					return nil, fmt.Errorf("invalid date %q: %w", s, err)
				}
				return t, nil
			default:
				return nil, fmt.Errorf("expected date, got %T", v)
			}
		},
		// Only the calendar day matters.
		EqualsFn: func(a, b any) bool {
			l, lok := a.(time.Time)
			r, rok := b.(time.Time)
			if !lok || !rok {
				return a == nil && b == nil
			}
			ly, lm, ld := l.Date()
			ry, rm, rd := r.Date()
			return ly == ry && lm == rm && ld == rd
		},
	}
}

func jsonType() *Definition {
	return &Definition{
		TypeName: "json",
		Regexp:   regexp.MustCompile(`[^/]*`),
		IsFn: func(v any) bool {
			switch v.(type) {
			case map[string]any, []any:
				return true
			}
			return false
		},
		EncodeFn: func(v any) (any, error) {
			b, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			return string(b), nil
		},
		DecodeFn: func(v any) (any, error) {
			s, ok := v.(string)
			if !ok {
				return v, nil
			}
			var out any
			if err := json.Unmarshal([]byte(s), &out); err != nil {
				return nil, fmt.Errorf("invalid json param: %w", err)
			}
			return out, nil
		},
		EqualsFn: reflect.DeepEqual,
	}
}

package requirement

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/cgast/veriq/pkg/design"
)

// Check is a declarative verification: compare the value at Target with
// Expected using the named check type.
type Check struct {
	Type     string `yaml:"type" json:"type"`         // "gte", "gt", "lte", "lt", "eq", "ne", "len_gte", "len_lte", "not_empty", "matches_regex", "one_of"
	Target   string `yaml:"target" json:"target"`     // design path: "$.capacity_wh", "@mass.total"
	Expected any    `yaml:"expected" json:"expected"` // the expected value/bound/pattern
	Message  string `yaml:"message" json:"message"`   // human-readable failure description
}

func (c Check) String() string {
	if c.Expected == nil {
		return fmt.Sprintf("%s(%s)", c.Type, c.Target)
	}
	return fmt.Sprintf("%s(%s, %v)", c.Type, c.Target, c.Expected)
}

// Checker evaluates one check type. The value is already resolved from the
// check target.
type Checker struct {
	// Prepare validates Expected at declaration time. Optional.
	Prepare func(expected any) error
	Eval    func(actual design.Value, c Check) (Verdict, error)
}

// Checks maps check type names to checkers. It is an explicit registry so
// that hosts can add domain checks without global state.
type Checks struct {
	mu       sync.RWMutex
	checkers map[string]Checker
}

// NewChecks creates an empty registry.
func NewChecks() *Checks {
	return &Checks{checkers: make(map[string]Checker)}
}

// DefaultChecks returns a registry holding the built-in check types.
func DefaultChecks() *Checks {
	c := NewChecks()
	c.Register("gte", compare(">=", func(a, b float64) bool { return a >= b }))
	c.Register("gt", compare(">", func(a, b float64) bool { return a > b }))
	c.Register("lte", compare("<=", func(a, b float64) bool { return a <= b }))
	c.Register("lt", compare("<", func(a, b float64) bool { return a < b }))
	c.Register("eq", equality(true))
	c.Register("ne", equality(false))
	c.Register("len_gte", length(">=", func(a, b int) bool { return a >= b }))
	c.Register("len_lte", length("<=", func(a, b int) bool { return a <= b }))
	c.Register("not_empty", Checker{Eval: checkNotEmpty})
	c.Register("matches_regex", Checker{Prepare: prepareRegex, Eval: checkMatchesRegex})
	c.Register("one_of", Checker{Prepare: prepareOneOf, Eval: checkOneOf})
	return c
}

// Register adds or replaces a checker.
func (c *Checks) Register(name string, checker Checker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkers[name] = checker
}

// Get returns the checker for a check type.
func (c *Checks) Get(name string) (Checker, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ch, ok := c.checkers[name]
	return ch, ok
}

// Types lists the registered check types, sorted.
func (c *Checks) Types() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.checkers))
	for k := range c.checkers {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Compile turns a check into a Procedure. Unknown types, unparsable targets
// and invalid expected values are declaration errors.
func (c *Checks) Compile(check Check) (Procedure, error) {
	checker, ok := c.Get(check.Type)
	if !ok {
		return nil, fmt.Errorf("unknown check type: %q", check.Type)
	}
	target, err := design.ParsePath(check.Target)
	if err != nil {
		return nil, fmt.Errorf("check %s: %w", check.Type, err)
	}
	if checker.Prepare != nil {
		if err := checker.Prepare(check.Expected); err != nil {
			return nil, fmt.Errorf("check %s: %w", check.Type, err)
		}
	}
	return &checkProcedure{check: check, target: target, eval: checker.Eval}, nil
}

type checkProcedure struct {
	check  Check
	target design.Path
	eval   func(design.Value, Check) (Verdict, error)
}

func (p *checkProcedure) Evaluate(inst *design.Instance) (Verdict, error) {
	v, err := inst.FetchPath(p.target)
	if err != nil {
		return Verdict{}, err
	}
	verdict, err := p.eval(v, p.check)
	if err != nil {
		return Verdict{}, fmt.Errorf("%s: %w", p.check, err)
	}
	if !verdict.Holds && p.check.Message != "" {
		verdict.Message = p.check.Message
	}
	return verdict, nil
}

func (p *checkProcedure) String() string { return p.check.String() }

func compare(op string, holds func(a, b float64) bool) Checker {
	return Checker{
		Prepare: func(expected any) error {
			_, err := toFloat(expected)
			return err
		},
		Eval: func(actual design.Value, c Check) (Verdict, error) {
			a, err := actual.Float()
			if err != nil {
				return Verdict{}, err
			}
			b, _ := toFloat(c.Expected)
			if holds(a, b) {
				return Holds(), nil
			}
			return Failf("%s = %v, want %s %v", c.Target, a, op, b), nil
		},
	}
}

func length(op string, holds func(a, b int) bool) Checker {
	return Checker{
		Prepare: func(expected any) error {
			_, err := toInt(expected)
			return err
		},
		Eval: func(actual design.Value, c Check) (Verdict, error) {
			n, err := actual.Len()
			if err != nil {
				return Verdict{}, err
			}
			want, _ := toInt(c.Expected)
			if holds(n, want) {
				return Holds(), nil
			}
			return Failf("len(%s) = %d, want %s %d", c.Target, n, op, want), nil
		},
	}
}

func equality(wantEqual bool) Checker {
	return Checker{
		Prepare: func(expected any) error {
			_, err := design.FromGo(expected)
			return err
		},
		Eval: func(actual design.Value, c Check) (Verdict, error) {
			expected, err := design.FromGo(c.Expected)
			if err != nil {
				return Verdict{}, err
			}
			equal := sameValue(actual, expected)
			switch {
			case equal == wantEqual:
				return Holds(), nil
			case wantEqual:
				return Failf("%s = %v, want %v", c.Target, actual.Interface(), expected.Interface()), nil
			default:
				return Failf("%s = %v, want anything else", c.Target, actual.Interface()), nil
			}
		},
	}
}

func checkNotEmpty(actual design.Value, c Check) (Verdict, error) {
	if actual.IsNone() {
		return Failf("%s is not set", c.Target), nil
	}
	if n, err := actual.Len(); err == nil && n == 0 {
		return Failf("%s is empty", c.Target), nil
	}
	return Holds(), nil
}

func prepareRegex(expected any) error {
	s, ok := expected.(string)
	if !ok {
		return fmt.Errorf("pattern must be a string, got %T", expected)
	}
	if _, err := regexp.Compile(s); err != nil {
		return fmt.Errorf("invalid pattern %q: %w", s, err)
	}
	return nil
}

func checkMatchesRegex(actual design.Value, c Check) (Verdict, error) {
	s, err := actual.Text()
	if err != nil {
		return Verdict{}, err
	}
	pattern := c.Expected.(string)
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Verdict{}, err
	}
	if re.MatchString(s) {
		return Holds(), nil
	}
	return Failf("%s = %q does not match %q", c.Target, s, pattern), nil
}

func prepareOneOf(expected any) error {
	v, err := design.FromGo(expected)
	if err != nil {
		return err
	}
	if v.Kind() != design.ValueList {
		return fmt.Errorf("one_of expects a list, got %s", v.Kind())
	}
	return nil
}

func checkOneOf(actual design.Value, c Check) (Verdict, error) {
	options, err := design.FromGo(c.Expected)
	if err != nil {
		return Verdict{}, err
	}
	got := actual.Interface()
	for _, o := range options.Items() {
		if sameValue(actual, o) {
			return Holds(), nil
		}
	}
	return Failf("%s = %v, want one of %v", c.Target, got, options.Interface()), nil
}

// sameValue compares an instance value with an expected one. A numeric
// string is read as a number when the instance value is a number, since
// interpolated manifest params are always strings.
func sameValue(actual, expected design.Value) bool {
	if actual.Kind() == design.ValueNumber && expected.Kind() == design.ValueString {
		a, _ := actual.Float()
		s, _ := expected.Text()
		b, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return err == nil && a == b
	}
	if actual.Kind() != expected.Kind() {
		return false
	}
	switch actual.Kind() {
	case design.ValueList:
		items, want := actual.Items(), expected.Items()
		if len(items) != len(want) {
			return false
		}
		for i := range items {
			if !sameValue(items[i], want[i]) {
				return false
			}
		}
		return true
	case design.ValueObject:
		keys := actual.Keys()
		if len(keys) != len(expected.Keys()) {
			return false
		}
		for _, k := range keys {
			a, _ := actual.Field(k)
			b, err := expected.Field(k)
			if err != nil || !sameValue(a, b) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(actual.Interface(), expected.Interface())
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("expected value %q is not a number", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("expected value %v (%T) is not a number", v, v)
	}
}

func toInt(v any) (int, error) {
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("expected value %v is not an integer", v)
	}
	return int(f), nil
}

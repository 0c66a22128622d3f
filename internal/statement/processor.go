package statement

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
)

// Constructor builds a record from the merged fields of one line.
type Constructor[T any] func(Fields) (T, error)

// CleanFunc rewrites the coerced groups of a match before they are merged
// over the extra fields.
type CleanFunc func(Fields) (Fields, error)

// Processor recognizes one line shape within a statement format. It is a
// plain value: WithClean and WithDateLayouts return modified copies.
type Processor[T any] struct {
	name      string
	pattern   *regexp.Regexp
	construct Constructor[T]
	clean     CleanFunc
	coercer   Coercer
}

// NewProcessor compiles pattern and pairs it with a record constructor.
func NewProcessor[T any](name, pattern string, construct Constructor[T]) (Processor[T], error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Processor[T]{}, fmt.Errorf("compiling pattern for %s: %w", name, err)
	}
	return NewProcessorFromRegexp(name, re, construct)
}

// NewProcessorFromRegexp wraps an already compiled pattern.
func NewProcessorFromRegexp[T any](name string, re *regexp.Regexp, construct Constructor[T]) (Processor[T], error) {
	if re == nil {
		return Processor[T]{}, fmt.Errorf("processor %s: nil pattern", name)
	}
	if construct == nil {
		return Processor[T]{}, fmt.Errorf("processor %s: nil constructor", name)
	}
	if !slices.ContainsFunc(re.SubexpNames(), func(s string) bool { return s != "" }) {
		return Processor[T]{}, fmt.Errorf("processor %s: pattern %q has no named groups", name, re.String())
	}
	return Processor[T]{
		name:      name,
		pattern:   re,
		construct: construct,
		coercer:   DefaultCoercer(),
	}, nil
}

// MustProcessor is NewProcessor for patterns known to be valid. Panics on error.
func MustProcessor[T any](name, pattern string, construct Constructor[T]) Processor[T] {
	p, err := NewProcessor(name, pattern, construct)
	if err != nil {
		panic(err)
	}
	return p
}

// WithClean returns a copy of p that runs clean on the coerced groups.
func (p Processor[T]) WithClean(clean CleanFunc) Processor[T] {
	p.clean = clean
	return p
}

// WithDateLayouts returns a copy of p that tries layouts, in order, for its
// date groups.
func (p Processor[T]) WithDateLayouts(layouts ...string) Processor[T] {
	p.coercer.DateLayouts = slices.Clone(layouts)
	return p
}

// WithCoercer returns a copy of p using c for its groups.
func (p Processor[T]) WithCoercer(c Coercer) Processor[T] {
	p.coercer = c
	return p
}

// Name returns the processor name.
func (p Processor[T]) Name() string { return p.name }

// Pattern returns the source text of the processor's pattern.
func (p Processor[T]) Pattern() string { return p.pattern.String() }

// TryProcess matches line and builds a record from it. ok is false when the
// pattern does not match at the start of line; err is then always nil. Once
// the line matches, ok is true and any coercion, clean or construction
// failure is returned in err.
func (p Processor[T]) TryProcess(line string, extra Fields) (rec T, ok bool, err error) {
	loc := p.pattern.FindStringSubmatchIndex(line)
	if loc == nil || loc[0] != 0 {
		return rec, false, nil
	}

	groups, err := p.groups(line, loc)
	if err != nil {
		return rec, true, err
	}

	cleaned := groups
	if p.clean != nil {
		cleaned, err = p.clean(groups)
		if err != nil {
			return rec, true, fmt.Errorf("cleaning fields: %w", err)
		}
	}

	fields := extra.Clone()
	fields.Merge(cleaned)

	rec, err = p.construct(fields)
	if err != nil {
		if !errors.Is(err, ErrRecordConstruction) {
			err = fmt.Errorf("%w: %w", ErrRecordConstruction, err)
		}
		return rec, true, err
	}
	return rec, true, nil
}

// groups coerces every named group of a match. loc is the index slice from
// FindStringSubmatchIndex; a -1 start marks a group that did not match.
func (p Processor[T]) groups(line string, loc []int) (Fields, error) {
	names := p.pattern.SubexpNames()
	groups := make(Fields, len(names))
	for i, name := range names {
		if i == 0 || name == "" {
			continue
		}
		start, end := loc[2*i], loc[2*i+1]
		present := start >= 0
		if _, seen := groups[name]; seen && !present {
			// Alternations may reuse a name; keep the branch that matched.
			continue
		}
		raw := ""
		if present {
			raw = line[start:end]
		}
		v, err := p.coercer.Coerce(name, raw, present)
		if err != nil {
			return nil, err
		}
		groups[name] = v
	}
	return groups, nil
}

// Package statement turns bank statement lines into typed transaction
// records.
//
// An Importer holds an ordered list of Processors for one statement source.
// Each line is offered to the processors in registration order and the
// first whose pattern matches claims it. Lines nobody claims are skipped.
// A claimed line that yields bad data (an unparseable amount or date, or
// fields the record constructor rejects) stops the import with a
// *LineError unless the caller opts into WithSkipInvalid.
package statement

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/text/encoding"
)

// Importer drives a set of processors over a statement.
type Importer[T any] struct {
	name       string
	processors []Processor[T]
	encoding   encoding.Encoding
	log        zerolog.Logger
}

// Option configures an Importer.
type Option func(*options)

type options struct {
	encoding encoding.Encoding
	log      zerolog.Logger
}

// WithEncoding sets the character encoding of statements read by Process.
func WithEncoding(enc encoding.Encoding) Option {
	return func(o *options) { o.encoding = enc }
}

// WithLogger sets the logger used for skipped lines and run summaries.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// New creates an Importer with no processors.
func New[T any](name string, opts ...Option) *Importer[T] {
	o := options{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Importer[T]{
		name:     name,
		encoding: o.encoding,
		log:      o.log.With().Str("importer", name).Logger(),
	}
}

// Name returns the importer name.
func (i *Importer[T]) Name() string { return i.name }

// Register appends p to the processors. Registration order is match order.
// Register must not be called while a Process run is in flight.
func (i *Importer[T]) Register(p Processor[T]) {
	i.processors = append(i.processors, p)
}

// Processors returns the registered processors in match order.
func (i *Importer[T]) Processors() []Processor[T] {
	out := make([]Processor[T], len(i.processors))
	copy(out, i.processors)
	return out
}

// ProcessLine offers line to each processor in order. ok is false when no
// processor matched. The first processor that matches decides the result,
// including a failure: later processors are not tried.
func (i *Importer[T]) ProcessLine(line string, extra Fields) (rec T, ok bool, err error) {
	return i.processLine(i.processors, line, extra)
}

func (i *Importer[T]) processLine(procs []Processor[T], line string, extra Fields) (rec T, ok bool, err error) {
	for _, p := range procs {
		rec, ok, err = p.TryProcess(line, extra)
		if !ok {
			continue
		}
		if err != nil {
			return rec, true, &LineError{Importer: i.name, Processor: p.name, Text: line, Err: err}
		}
		return rec, true, nil
	}
	return rec, false, nil
}

// Stats counts what happened during one Process run.
type Stats struct {
	Lines   int // lines read
	Records int // records produced
	Skipped int // lines no processor matched
	Invalid int // matched lines that failed and were skipped via WithSkipInvalid
}

// RunOption configures a single Process run.
type RunOption func(*run)

type run struct {
	stats     *Stats
	onInvalid func(error)
}

// WithStats fills s while the run proceeds.
func WithStats(s *Stats) RunOption {
	return func(r *run) { r.stats = s }
}

// WithSkipInvalid makes the run report matched-but-invalid lines to fn and
// continue, instead of stopping at the first one.
func WithSkipInvalid(fn func(error)) RunOption {
	return func(r *run) { r.onInvalid = fn }
}

// Process returns a single-pass sequence of the records in r. extra is
// merged into every record; a fresh copy is used for each line. Lines that
// no processor recognizes are omitted. A failing line or read error is
// yielded with a zero record and ends the sequence.
func (i *Importer[T]) Process(r io.Reader, extra Fields, opts ...RunOption) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		i.process(r, extra, opts, yield)
	}
}

// ProcessFile is Process over the file at path. The file is opened when
// iteration starts and closed when it ends, including early termination.
func (i *Importer[T]) ProcessFile(path string, extra Fields, opts ...RunOption) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		f, err := os.Open(path)
		if err != nil {
			var zero T
			yield(zero, fmt.Errorf("opening statement: %w", err))
			return
		}
		defer f.Close()

		i.process(f, extra, opts, yield)
	}
}

func (i *Importer[T]) process(r io.Reader, extra Fields, opts []RunOption, yield func(T, error) bool) {
	var rn run
	for _, opt := range opts {
		opt(&rn)
	}
	stats := rn.stats
	if stats == nil {
		stats = &Stats{}
	}
	*stats = Stats{}

	procs := i.processors
	sc := newLineScanner(r, i.encoding)
	var zero T

	for sc.Scan() {
		stats.Lines++
		line := sc.Text()

		rec, ok, err := i.processLine(procs, line, extra)
		if !ok {
			stats.Skipped++
			i.log.Debug().Int("line", stats.Lines).Str("text", line).Msg("no processor matched")
			continue
		}
		if err != nil {
			var le *LineError
			if errors.As(err, &le) {
				le.Number = stats.Lines
			}
			if rn.onInvalid != nil {
				stats.Invalid++
				i.log.Debug().Err(err).Int("line", stats.Lines).Msg("skipping invalid line")
				rn.onInvalid(err)
				continue
			}
			i.log.Debug().Err(err).Int("line", stats.Lines).Msg("import stopped")
			yield(zero, err)
			return
		}

		stats.Records++
		if !yield(rec, nil) {
			return
		}
	}
	if err := sc.Err(); err != nil {
		yield(zero, fmt.Errorf("reading statement line %d: %w", stats.Lines+1, err))
		return
	}

	i.log.Debug().
		Int("lines", stats.Lines).
		Int("records", stats.Records).
		Int("skipped", stats.Skipped).
		Int("invalid", stats.Invalid).
		Msg("statement processed")
}

// Collect drains seq into a slice, stopping at the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for rec, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}

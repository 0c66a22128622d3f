package statement

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

const sampleStatement = `01-03-2024 COFFEE SHOP 4.50
not a transaction line
02-03-2024 SALARY 2500.00
`

func newLineImporter() *Importer[Fields] {
	imp := New[Fields]("sample")
	imp.Register(MustProcessor("line", linePattern, FieldsRecord))
	return imp
}

func TestImporter_EndToEnd(t *testing.T) {
	imp := newLineImporter()

	recs, err := Collect(imp.Process(strings.NewReader(sampleStatement), Fields{"account": "123"}))
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, civil.Date{Year: 2024, Month: 3, Day: 1}, recs[0]["date"])
	assert.Equal(t, "COFFEE SHOP", recs[0]["description"])
	assert.Equal(t, "4.50", recs[0]["amount"].(decimal.Decimal).StringFixed(2))
	assert.Equal(t, "123", recs[0]["account"])

	assert.Equal(t, civil.Date{Year: 2024, Month: 3, Day: 2}, recs[1]["date"])
	assert.Equal(t, "SALARY", recs[1]["description"])
	assert.Equal(t, "2500.00", recs[1]["amount"].(decimal.Decimal).StringFixed(2))
}

func TestImporter_FirstRegisteredWins(t *testing.T) {
	imp := New[string]("order")
	imp.Register(MustProcessor("A", `^(?P<description>.+)$`, func(Fields) (string, error) { return "A", nil }))
	imp.Register(MustProcessor("B", `^(?P<description>.+)$`, func(Fields) (string, error) { return "B", nil }))

	rec, ok, err := imp.ProcessLine("anything", nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "A", rec)
}

func TestImporter_FallsThroughToLaterProcessor(t *testing.T) {
	imp := New[string]("fallthrough")
	imp.Register(MustProcessor("digits", `^(?P<n>\d+)$`, func(Fields) (string, error) { return "digits", nil }))
	imp.Register(MustProcessor("words", `^(?P<w>[a-z]+)$`, func(Fields) (string, error) { return "words", nil }))

	rec, ok, err := imp.ProcessLine("hello", nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "words", rec)

	_, ok, err = imp.ProcessLine("HELLO!", nil)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestImporter_ConstructionFailureShortCircuits(t *testing.T) {
	imp := New[categorized]("strict")
	imp.Register(MustProcessor("uncategorized", linePattern, newCategorized))
	imp.Register(MustProcessor("fallback", `^(?P<description>.+)$`, func(f Fields) (categorized, error) {
		return categorized{Description: "fallback", Category: "misc"}, nil
	}))

	_, ok, err := imp.ProcessLine("01-03-2024 COFFEE SHOP 4.50", nil)
	require.True(t, ok)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRecordConstruction)

	var le *LineError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "strict", le.Importer)
	assert.Equal(t, "uncategorized", le.Processor)
	assert.Equal(t, "01-03-2024 COFFEE SHOP 4.50", le.Text)
}

func TestImporter_ProcessStopsOnInvalidLine(t *testing.T) {
	input := "01-03-2024 COFFEE SHOP 4.50\nheader\n31-02-2024 BAD DATE 1.00\n02-03-2024 SALARY 2500.00\n"
	imp := newLineImporter()

	var got []Fields
	var gotErr error
	for rec, err := range imp.Process(strings.NewReader(input), nil) {
		if err != nil {
			gotErr = err
			break
		}
		got = append(got, rec)
	}

	require.Len(t, got, 1, "records before the failing line are delivered")
	require.Error(t, gotErr)
	assert.ErrorIs(t, gotErr, ErrUnparseableDate)

	var le *LineError
	require.ErrorAs(t, gotErr, &le)
	assert.Equal(t, 3, le.Number)
	assert.Contains(t, gotErr.Error(), "line 3")

	var fe *FieldError
	require.ErrorAs(t, gotErr, &fe)
	assert.Equal(t, "date", fe.Field)
}

func TestImporter_SkipInvalidIsOptIn(t *testing.T) {
	input := "01-03-2024 COFFEE SHOP 4.50\n31-02-2024 BAD DATE 1.00\n02-03-2024 SALARY 2500.00\n"
	imp := newLineImporter()

	var invalid []error
	var stats Stats
	recs, err := Collect(imp.Process(strings.NewReader(input), nil,
		WithSkipInvalid(func(err error) { invalid = append(invalid, err) }),
		WithStats(&stats),
	))
	require.NoError(t, err)
	assert.Len(t, recs, 2)
	require.Len(t, invalid, 1)
	assert.ErrorIs(t, invalid[0], ErrUnparseableDate)
	assert.Equal(t, Stats{Lines: 3, Records: 2, Skipped: 0, Invalid: 1}, stats)
}

func TestImporter_Stats(t *testing.T) {
	imp := newLineImporter()
	var stats Stats
	_, err := Collect(imp.Process(strings.NewReader(sampleStatement), nil, WithStats(&stats)))
	require.NoError(t, err)
	assert.Equal(t, Stats{Lines: 3, Records: 2, Skipped: 1}, stats)
}

func TestImporter_ExtraFieldsFreshPerLine(t *testing.T) {
	imp := New[Fields]("fresh")
	imp.Register(MustProcessor("tagged", `^(?P<tag>[a-z]+)$`, FieldsRecord).WithClean(func(f Fields) (Fields, error) {
		f[f["tag"].(string)] = true
		return f, nil
	}))

	extra := Fields{"account": "123"}
	recs, err := Collect(imp.Process(strings.NewReader("alpha\nbeta\n"), extra))
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Contains(t, recs[0], "alpha")
	assert.NotContains(t, recs[1], "alpha", "a line never observes an earlier line's fields")
	assert.Equal(t, Fields{"account": "123"}, extra)
}

func TestImporter_EarlyBreak(t *testing.T) {
	imp := newLineImporter()
	n := 0
	for _, err := range imp.Process(strings.NewReader(sampleStatement), nil) {
		require.NoError(t, err)
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestImporter_ProcessFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statement.txt")
	require.NoError(t, os.WriteFile(path, []byte(sampleStatement), 0o644))

	imp := newLineImporter()
	recs, err := Collect(imp.ProcessFile(path, nil))
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	// The sequence re-opens the file each time it is ranged over.
	recs, err = Collect(imp.ProcessFile(path, nil))
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	// Breaking early still releases the file.
	for range imp.ProcessFile(path, nil) {
		break
	}
	require.NoError(t, os.Remove(path))
}

func TestImporter_ProcessFileMissing(t *testing.T) {
	imp := newLineImporter()
	_, err := Collect(imp.ProcessFile(filepath.Join(t.TempDir(), "nope.txt"), nil))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestImporter_SingleReaderSinglePass(t *testing.T) {
	imp := newLineImporter()
	r := strings.NewReader(sampleStatement)
	seq := imp.Process(r, nil)

	recs, err := Collect(seq)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	recs, err = Collect(seq)
	require.NoError(t, err)
	assert.Empty(t, recs, "the source was consumed by the first pass")
}

func TestImporter_CRLFAndBOM(t *testing.T) {
	input := "\ufeff01-03-2024 COFFEE SHOP 4.50\r\nfooter\r\n02-03-2024 SALARY 2500.00\r\n"
	recs, err := Collect(newLineImporter().Process(strings.NewReader(input), nil))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "COFFEE SHOP", recs[0]["description"])
}

func TestImporter_Encoding(t *testing.T) {
	latin1, err := charmap.ISO8859_1.NewEncoder().String("01-03-2024 CAFÉ 4,50\n")
	require.NoError(t, err)

	imp := New[Fields]("latin", WithEncoding(charmap.ISO8859_1))
	imp.Register(MustProcessor("line", linePattern, FieldsRecord))

	recs, err := Collect(imp.Process(strings.NewReader(latin1), nil))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "CAFÉ", recs[0]["description"])
	assert.Equal(t, "4.50", recs[0]["amount"].(decimal.Decimal).StringFixed(2))
}

func TestImporter_ReadError(t *testing.T) {
	boom := errors.New("disk on fire")
	r := io.MultiReader(strings.NewReader("01-03-2024 COFFEE SHOP 4.50\n"), &failingReader{err: boom})

	recs, err := Collect(newLineImporter().Process(r, nil))
	assert.Len(t, recs, 1)
	assert.ErrorIs(t, err, boom)
}

func TestImporter_Logging(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)

	imp := New[Fields]("logged", WithLogger(log))
	imp.Register(MustProcessor("line", linePattern, FieldsRecord))

	_, err := Collect(imp.Process(strings.NewReader(sampleStatement), nil))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"importer":"logged"`)
	assert.Contains(t, out, "no processor matched")
	assert.Contains(t, out, "statement processed")
}

func TestImporter_Processors(t *testing.T) {
	imp := newLineImporter()
	procs := imp.Processors()
	require.Len(t, procs, 1)
	assert.Equal(t, "line", procs[0].Name())
	assert.Equal(t, "sample", imp.Name())
}

func TestLookupEncoding(t *testing.T) {
	for _, name := range []string{"", "utf-8", "latin1", "windows-1252", "ISO-8859-15"} {
		enc, err := LookupEncoding(name)
		require.NoError(t, err, name)
		assert.NotNil(t, enc, name)
	}
	_, err := LookupEncoding("klingon")
	assert.Error(t, err)
}

type failingReader struct{ err error }

func (r *failingReader) Read([]byte) (int, error) { return 0, r.err }

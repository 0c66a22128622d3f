package commands_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/stmtimport/internal/export"
)

func TestParse_Chase(t *testing.T) {
	out := stdoutOf(t, "parse", testdata(t, "chase_checking.csv"), "--format", "chase", "--account", "chase-1234")
	records := readCSV(t, out)
	require.Len(t, records, 7, "header + 6 transactions")

	assert.Equal(t, append(strings.Split(export.Header, ","), "check"), records[0])
	assert.Equal(t, []string{"2025-01-03", "GITHUB *PRO SUBSCRIPTION", "-4.00", "chase-1234", "", "", "chase_20250103_GITHUBPROS", "ACH_DEBIT", ""}, records[1])
	assert.Equal(t, "1001", records[5][8])
	assert.Equal(t, "STAPLES, INC 0042", records[6][1])
}

func TestParse_RoutesBySource(t *testing.T) {
	// chase_checking.csv matches the default "chase*.csv" source.
	out := stdoutOf(t, "parse", testdata(t, "chase_checking.csv"))
	assert.Len(t, readCSV(t, out), 7)
}

func TestParse_Generic(t *testing.T) {
	out := stdoutOf(t, "parse", testdata(t, "generic_statement.txt"))
	records := readCSV(t, out)
	require.Len(t, records, 5, "header + 4 transactions")

	assert.Equal(t, []string{"2024-03-01", "COFFEE SHOP", "-4.50"}, records[1][:3])
	assert.Equal(t, []string{"2024-03-02", "SALARY", "2500.00"}, records[2][:3])
	assert.Equal(t, []string{"2024-03-05", "RENT MARCH", "-1200.00"}, records[3][:3])
	assert.Equal(t, []string{"2024-03-07", "BOOK STORE", "-19.99"}, records[4][:3])
}

func TestParse_ConfiguredImporter(t *testing.T) {
	out := stdoutOf(t, "parse", testdata(t, "semicolon_eu.csv"), "--format", "semicolon-eu")
	records := readCSV(t, out)
	require.Len(t, records, 3)

	assert.Equal(t, []string{"2024-03-01", "Bäckerei Müller", "-3.20"}, records[1][:3])
	assert.Equal(t, []string{"2024-03-04", "Gehalt März", "2500.00"}, records[2][:3])
}

func TestParse_ExtraFields(t *testing.T) {
	out := stdoutOf(t, "parse", testdata(t, "generic_statement.txt"), "--field", "owner=joint", "--field", "note=march")
	records := readCSV(t, out)
	require.Len(t, records, 5)
	assert.Equal(t, []string{"note", "owner"}, records[0][8:])
	assert.Equal(t, []string{"march", "joint"}, records[1][8:])
}

func TestParse_JSON(t *testing.T) {
	out := stdoutOf(t, "parse", testdata(t, "chase_checking.csv"), "--output", "json")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "2025-01-03", first["date"])
	assert.Equal(t, "-4", first["amount"])
	assert.Equal(t, "ACH_DEBIT", first["type"])
}

func TestParse_UnknownFormat(t *testing.T) {
	out, err := runStmtimport(t, "parse", testdata(t, "chase_checking.csv"), "--format", "nope")
	require.Error(t, err)
	assert.Contains(t, out, `unknown importer "nope"`)
	assert.Contains(t, out, "chase, columnar, generic, semicolon-eu")
}

func TestParse_NoSourceMatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statement.qif")
	require.NoError(t, os.WriteFile(path, []byte("!Type:Bank\n"), 0o644))

	out, err := runStmtimport(t, "parse", path)
	require.Error(t, err)
	assert.Contains(t, out, "no source matches statement.qif")
}

func TestParse_InvalidLineStops(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.txt")
	require.NoError(t, os.WriteFile(path, []byte(brokenStatement), 0o644))

	out, err := runStmtimport(t, "parse", path)
	require.Error(t, err)
	assert.Contains(t, out, "line 2")
	assert.Contains(t, out, "malformed amount")
}

func TestParse_JSONStreamsRecordsBeforeError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.txt")
	require.NoError(t, os.WriteFile(path, []byte(brokenStatement), 0o644))

	stdout, stderr, err := runSplit(t, "parse", path, "-o", "json")
	require.Error(t, err)
	assert.Contains(t, stderr, "line 2")

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 1)
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
	assert.Equal(t, "COFFEE", got["description"])
}

func TestParse_LogsThroughConfiguredLogger(t *testing.T) {
	_, stderr, err := runSplit(t, "parse", testdata(t, "generic_statement.txt"),
		"--log-format", "json", "--log-level", "info")
	require.NoError(t, err, stderr)

	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(stderr)), &line), stderr)
	assert.Equal(t, "parsed statement", line["message"])
	assert.Equal(t, "info", line["level"])
}

func TestParse_SkipInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.txt")
	require.NoError(t, os.WriteFile(path, []byte(brokenStatement), 0o644))

	out := stdoutOf(t, "parse", path, "--skip-invalid", "--log-level", "error")
	records := readCSV(t, out)
	require.Len(t, records, 3)
	assert.Equal(t, "COFFEE", records[1][1])
	assert.Equal(t, "TEA", records[2][1])
}

func TestParse_ExplicitConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "custom.yaml")
	cfg := `importers:
  - name: pipes
    processors:
      - pattern: '^(?P<date>\d{4}-\d{2}-\d{2})\|(?P<amount>[^|]+)\|(?P<description>.*)$'
        clean:
          upper: [description]
          set: {category: misc}
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	stmt := filepath.Join(dir, "s.txt")
	require.NoError(t, os.WriteFile(stmt, []byte("2024-05-01|12.00|refund\n"), 0o644))

	out := stdoutOf(t, "--config", cfgPath, "parse", stmt, "--format", "pipes")
	records := readCSV(t, out)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"2024-05-01", "REFUND", "12.00", "", "misc"}, records[1][:5])

	_, err := runStmtimport(t, "--config", filepath.Join(dir, "missing.yaml"), "formats")
	assert.Error(t, err)
}

func TestFormats(t *testing.T) {
	out := stdoutOf(t, "formats")
	assert.Equal(t, "chase\n  1. transaction\ncolumnar\n  1. dmy\n  2. iso\ngeneric\n  1. dmy\n  2. iso\nsemicolon-eu\n  1. booking\n", out)

	verbose := stdoutOf(t, "formats", "--verbose")
	assert.Contains(t, verbose, `(?P<date>\d{2}-\d{2}-\d{4})`)
}

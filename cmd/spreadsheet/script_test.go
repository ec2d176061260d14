package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
)

func runScript(t *testing.T, script string, strict bool) (string, *Runner, error) {
	t.Helper()
	var out bytes.Buffer
	runner := NewRunner(spreadsheet.NewSheet(spreadsheet.WithInvariantChecks(true)), &out, strict, nil)
	err := runner.Run(strings.NewReader(script))
	return out.String(), runner, err
}

func TestRunnerCommands(t *testing.T) {
	out, runner, err := runScript(t, `
# a small budget
SET A1 10
SET A2 20
SET a3 =sum(A1:A2)
SET B1 total is
GET A3
SIZE
PRINT values
PRINT texts
`, true)
	require.NoError(t, err)
	assert.Equal(t, 0, runner.Failures())
	assert.Equal(t, "A3\t30\n"+
		"3 2\n"+
		"10\ttotal is\n20\t\n30\t\n"+
		"10\ttotal is\n20\t\n=SUM(A1:A2)\t\n", out)
}

func TestRunnerClear(t *testing.T) {
	out, _, err := runScript(t, "SET A1 1\nSET B2 =A1*2\nCLEAR B2\nSIZE\nGET B2\n", true)
	require.NoError(t, err)
	assert.Equal(t, "1 1\nB2\t\n", out)
}

func TestRunnerStrictStops(t *testing.T) {
	out, _, err := runScript(t, "SET A1 =B1\nSET B1 =A1\nGET A1\n", true)
	require.Error(t, err)

	var scriptErr *ScriptError
	require.ErrorAs(t, err, &scriptErr)
	assert.Equal(t, 2, scriptErr.Line)
	assert.ErrorIs(t, err, spreadsheet.ErrCircularDependency)
	assert.Empty(t, out)
}

func TestRunnerLenientContinues(t *testing.T) {
	out, runner, err := runScript(t, "SET A0 1\nBOGUS\nPRINT nothing\nSET A1 =1/0\nGET A1\n", false)
	require.NoError(t, err)
	assert.Equal(t, 3, runner.Failures())
	assert.Contains(t, out, "error: line 1:")
	assert.Contains(t, out, "error: line 2: unknown command")
	assert.Contains(t, out, "error: line 3:")
	assert.True(t, strings.HasSuffix(out, "A1\t#DIV/0!\n"))
}

func TestEvalCommandReadsStdin(t *testing.T) {
	cmd := newEvalCmd()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader("SET A1 2\nSET A2 =A1^10\nGET A2\n"))
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--strict"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "A2\t1024\n", out.String())
}

func TestEvalCommandReportsFailures(t *testing.T) {
	cmd := newEvalCmd()
	cmd.SetIn(strings.NewReader("SET A1 =(\n"))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SilenceUsage = true

	assert.Error(t, cmd.Execute())
}

func TestExportImportCommands(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "budget.txt")
	book := filepath.Join(dir, "budget.xlsx")
	writeFile(t, script, "SET A1 4\nSET B1 =SQRT(A1)+1\nSET C1 note\n")

	export := newExportCmd()
	export.SetArgs([]string{script, book})
	require.NoError(t, export.Execute())

	var values bytes.Buffer
	imp := newImportCmd()
	imp.SetOut(&values)
	imp.SetArgs([]string{book})
	require.NoError(t, imp.Execute())
	assert.Equal(t, "4\t3\tnote\n", values.String())

	var texts bytes.Buffer
	imp = newImportCmd()
	imp.SetOut(&texts)
	imp.SetArgs([]string{book, "--texts"})
	require.NoError(t, imp.Execute())
	assert.Equal(t, "4\t=SQRT(A1)+1\tnote\n", texts.String())
}

package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/gookit/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dbsmedya/goclean/pkg/cleaner"
)

func capturePlanOutput(t *testing.T, fn func()) string {
	t.Helper()
	enabled := color.Enable
	color.Enable = false
	defer func() { color.Enable = enabled }()

	var buf bytes.Buffer
	setOutputWriter(&buf)
	defer resetOutputWriter()

	fn()
	return buf.String()
}

func samplePlan() *cleaner.Plan {
	return &cleaner.Plan{
		Strategy: "truncate",
		Dialect:  "mysql",
		Schema:   "app_test",
		Excluded: []string{"schema_migrations"},
		Tables: []cleaner.PlanEntry{
			{Table: "orders", Rows: 3, Action: cleaner.ActionDelete},
			{Table: "logs", Rows: 5, Action: cleaner.ActionDelete},
			{Table: "users", Rows: 0, Action: cleaner.ActionSkip},
		},
	}
}

func TestPlanCommandStructure(t *testing.T) {
	assert.NotNil(t, planCmd)
	assert.Equal(t, "plan", planCmd.Use)
	assert.NotEmpty(t, planCmd.Short)
	assert.Contains(t, planCmd.Long, "Example:")
	assert.Contains(t, planCmd.Long, "goclean plan")
	assert.NotNil(t, planCmd.RunE)
}

func TestPlanCommandFlags(t *testing.T) {
	output := planCmd.Flags().Lookup("output")
	assert.NotNil(t, output)
	assert.Equal(t, "o", output.Shorthand)
	assert.Equal(t, "text", output.DefValue)
}

func TestPlanIsAddedToRoot(t *testing.T) {
	found := false
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == "plan" {
			found = true
			break
		}
	}
	assert.True(t, found, "plan command should be added to root command")
}

func TestRunPlan_InvalidOutput(t *testing.T) {
	original := planOutput
	defer func() { planOutput = original }()
	planOutput = "xml"

	err := runPlan(planCmd, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output format")
}

func TestPrintPlan(t *testing.T) {
	out := capturePlanOutput(t, func() { printPlan(samplePlan()) })

	assert.Contains(t, out, "Clean Plan: app_test")
	assert.Contains(t, out, "Strategy: truncate")
	assert.Contains(t, out, "Dialect:  mysql")
	assert.Contains(t, out, "2 to empty, 1 skipped")
	assert.Contains(t, out, "[Deletion Order]")
	assert.Contains(t, out, "[Excluded]")
	assert.Contains(t, out, "• schema_migrations")

	assert.Less(t, strings.Index(out, "orders"), strings.Index(out, "logs"))
	assert.Less(t, strings.Index(out, "logs"), strings.Index(out, "users"))
}

func TestPrintPlanTable_Alignment(t *testing.T) {
	out := capturePlanOutput(t, func() {
		printPlanTable([]cleaner.PlanEntry{
			{Table: "a", Rows: 12345, Action: cleaner.ActionDelete},
			{Table: "注文", Rows: cleaner.UnknownRows, Action: cleaner.ActionSkip},
		})
	})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)

	// Every row ends its action column at the same terminal cell.
	actionCol := strings.Index(lines[0], "ACTION")
	assert.Equal(t, actionCol, strings.Index(lines[1], "delete"))
	// The wide name takes four cells but six bytes.
	assert.Equal(t, actionCol+2, strings.Index(lines[2], "skip"))
	assert.Contains(t, lines[2], "?")
}

func TestPrintPlanTable_Empty(t *testing.T) {
	out := capturePlanOutput(t, func() { printPlanTable(nil) })
	assert.Contains(t, out, "(no tables)")
}

func TestFormatRows(t *testing.T) {
	assert.Equal(t, "0", formatRows(0))
	assert.Equal(t, "42", formatRows(42))
	assert.Equal(t, "?", formatRows(cleaner.UnknownRows))
}

func TestWritePlanYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writePlanYAML(&buf, samplePlan()))

	assert.Contains(t, buf.String(), "strategy: truncate")
	assert.Contains(t, buf.String(), "  - table: orders")

	var decoded cleaner.Plan
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, *samplePlan(), decoded)
}

func TestPrintHeader(t *testing.T) {
	out := capturePlanOutput(t, func() { printHeader("Clean Plan: %s", "db") })

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Repeat("=", len("Clean Plan: db")+4), lines[0])
	assert.Equal(t, "  Clean Plan: db", lines[1])
}

func TestPrintSection(t *testing.T) {
	out := capturePlanOutput(t, func() { printSection("Overview") })
	assert.Equal(t, "[Overview]\n----------\n", out)
}

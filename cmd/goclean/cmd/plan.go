package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dbsmedya/goclean/internal/database"
	"github.com/dbsmedya/goclean/pkg/cleaner"
)

// outputWriter is used for printing output, can be overridden in tests
var outputWriter io.Writer = os.Stdout

// setOutputWriter sets the output writer (used for testing)
func setOutputWriter(w io.Writer) {
	outputWriter = w
}

// resetOutputWriter resets output to stdout (used for testing)
func resetOutputWriter() {
	outputWriter = os.Stdout
}

var planOutput string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show what a clean would delete",
	Long: `Plan connects to the database and lists the tables the next clean would
empty, in the order it would empty them, with current row counts.
Nothing is deleted.

The plan shows:
  - Strategy, dialect and schema
  - Deletion order (dependent tables first for ordered-delete)
  - Tables skipped because they are already empty
  - Excluded tables

Example:
  goclean plan --config goclean.yaml
  goclean plan --output yaml`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planOutput, "output", "o", "text",
		"Output format (text, yaml)")

	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	if planOutput != "text" && planOutput != "yaml" {
		return fmt.Errorf("invalid output format %q (want text or yaml)", planOutput)
	}

	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	opts, err := cleanerOptions(cfg)
	if err != nil {
		return err
	}
	c, err := cleaner.New(opts, log)
	if err != nil {
		return fmt.Errorf("failed to create cleaner: %w", err)
	}

	ctx := context.Background()
	dbManager := database.NewManager(&cfg.Database)
	if err := dbManager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbManager.Close()

	conn, err := dbManager.Connection()
	if err != nil {
		return err
	}

	plan, err := c.Plan(ctx, conn)
	if err != nil {
		return fmt.Errorf("failed to compute plan: %w", err)
	}

	if planOutput == "yaml" {
		return writePlanYAML(outputWriter, plan)
	}
	printPlan(plan)
	return nil
}

// writePlanYAML encodes the plan for machine consumption.
func writePlanYAML(w io.Writer, plan *cleaner.Plan) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(plan); err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	return enc.Close()
}

func printPlan(plan *cleaner.Plan) {
	printHeader("Clean Plan: %s", plan.Schema)

	fmt.Fprintln(outputWriter)
	printSection("Overview")
	fmt.Fprintf(outputWriter, "  Strategy: %s\n", plan.Strategy)
	fmt.Fprintf(outputWriter, "  Dialect:  %s\n", plan.Dialect)
	fmt.Fprintf(outputWriter, "  Tables:   %d to empty, %d skipped\n",
		len(plan.Deleted()), len(plan.Tables)-len(plan.Deleted()))

	fmt.Fprintln(outputWriter)
	printSection("Deletion Order")
	printPlanTable(plan.Tables)

	if len(plan.Excluded) > 0 {
		fmt.Fprintln(outputWriter)
		printSection("Excluded")
		for _, name := range plan.Excluded {
			fmt.Fprintf(outputWriter, "  • %s\n", name)
		}
	}
}

// printPlanTable prints one aligned row per entry. Widths are measured in
// terminal cells so wide table names keep the columns straight.
func printPlanTable(entries []cleaner.PlanEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(outputWriter, "  (no tables)")
		return
	}

	numWidth := len(fmt.Sprintf("[%d]", len(entries)))
	nameWidth := runewidth.StringWidth("TABLE")
	rowsWidth := len("ROWS")
	for _, e := range entries {
		nameWidth = max(nameWidth, runewidth.StringWidth(e.Table))
		rowsWidth = max(rowsWidth, len(formatRows(e.Rows)))
	}

	fmt.Fprintf(outputWriter, "  %s %s  %s  %s\n",
		strings.Repeat(" ", numWidth),
		runewidth.FillRight("TABLE", nameWidth),
		runewidth.FillLeft("ROWS", rowsWidth),
		"ACTION",
	)
	for i, e := range entries {
		fmt.Fprintf(outputWriter, "  %s %s  %s  %s\n",
			runewidth.FillRight(fmt.Sprintf("[%d]", i+1), numWidth),
			runewidth.FillRight(e.Table, nameWidth),
			runewidth.FillLeft(formatRows(e.Rows), rowsWidth),
			actionLabel(e.Action),
		)
	}
}

func formatRows(n int64) string {
	if n == cleaner.UnknownRows {
		return "?"
	}
	return strconv.FormatInt(n, 10)
}

func actionLabel(action string) string {
	if action == cleaner.ActionSkip {
		return color.Gray.Sprint(action)
	}
	return color.Red.Sprint(action)
}

// printHeader prints a formatted header
func printHeader(format string, args ...interface{}) {
	title := fmt.Sprintf(format, args...)
	width := runewidth.StringWidth(title) + 4
	fmt.Fprintln(outputWriter, strings.Repeat("=", width))
	fmt.Fprintf(outputWriter, "  %s\n", color.Bold.Sprint(title))
	fmt.Fprintln(outputWriter, strings.Repeat("=", width))
}

// printSection prints a section header
func printSection(title string) {
	fmt.Fprintf(outputWriter, "[%s]\n", title)
	fmt.Fprintln(outputWriter, strings.Repeat("-", runewidth.StringWidth(title)+2))
}

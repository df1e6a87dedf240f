// Package emitter checks which AI search helper tables exist and emits the
// SQL needed to create them.
package emitter

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/TheIdeem/supabase-mcp-server/internal/schema"
	"github.com/TheIdeem/supabase-mcp-server/internal/storage"
	"go.uber.org/zap"
)

// Status is the outcome of probing one table.
type Status int

const (
	StatusUnconfirmed Status = iota
	StatusExists
	StatusMissing
)

func (s Status) String() string {
	switch s {
	case StatusExists:
		return "exists"
	case StatusMissing:
		return "missing"
	default:
		return "unconfirmed"
	}
}

// TableResult holds the probe outcome for a table. Err is set unless the
// table exists.
type TableResult struct {
	Table  string
	Status Status
	Err    error
}

// Report describes a completed run.
type Report struct {
	Tables     []TableResult
	OutputPath string
}

// AllExist reports whether every probed table was found.
func (r *Report) AllExist() bool {
	for _, t := range r.Tables {
		if t.Status != StatusExists {
			return false
		}
	}
	return true
}

// Summary is a short plain-text account of the run.
func (r *Report) Summary() string {
	var b strings.Builder
	b.WriteString("AI search helper schema check\n")
	for _, t := range r.Tables {
		fmt.Fprintf(&b, "%s: %s\n", t.Table, t.Status)
	}
	if r.OutputPath != "" {
		fmt.Fprintf(&b, "SQL written to %s", r.OutputPath)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Emitter probes the tables of a schema definition and writes its SQL.
type Emitter struct {
	prober     storage.Prober
	def        schema.Definition
	out        io.Writer
	outputPath string
	logger     *zap.Logger
}

// New returns an Emitter printing to out and writing the SQL file to outputPath.
func New(prober storage.Prober, def schema.Definition, out io.Writer, outputPath string, logger *zap.Logger) *Emitter {
	return &Emitter{
		prober:     prober,
		def:        def,
		out:        out,
		outputPath: outputPath,
		logger:     logger,
	}
}

func classify(err error) Status {
	switch {
	case err == nil:
		return StatusExists
	case storage.IsRelationMissing(err):
		return StatusMissing
	default:
		return StatusUnconfirmed
	}
}

// Check probes every table of the definition once, in order.
func (e *Emitter) Check(ctx context.Context) []TableResult {
	results := make([]TableResult, 0, len(e.def.Tables))
	for _, t := range e.def.Tables {
		err := e.prober.Probe(ctx, t.Name)
		result := TableResult{Table: t.Name, Status: classify(err), Err: err}
		if result.Status == StatusUnconfirmed {
			e.logger.Warn("Failed to check table", zap.String("table", t.Name), zap.Error(err))
		} else {
			e.logger.Debug("Checked table", zap.String("table", t.Name), zap.Stringer("status", result.Status))
		}
		results = append(results, result)
	}
	return results
}

// Run probes the tables, prints the DDL of the missing ones and the trigger
// DDL, then writes the consolidated SQL file whatever the probes returned.
// Only a failed file write is returned as an error.
func (e *Emitter) Run(ctx context.Context) (*Report, error) {
	fmt.Fprintln(e.out, "Creating tables for the AI search helper...")

	report := &Report{OutputPath: e.outputPath}
	for i, result := range e.Check(ctx) {
		e.printResult(e.def.Tables[i], result)
		report.Tables = append(report.Tables, result)
	}

	fmt.Fprintln(e.out, "To create the function and trigger that keep updated_at current, run the following SQL:")
	fmt.Fprintln(e.out)
	fmt.Fprint(e.out, schema.TriggerDDL(e.def))

	if err := e.WriteSQL(); err != nil {
		return report, err
	}
	e.logger.Info("Wrote schema file", zap.String("path", e.outputPath))

	fmt.Fprintf(e.out, "\nComplete SQL file written: %s\n", e.outputPath)
	fmt.Fprintln(e.out, "\nTo create the tables, run this SQL file in the Supabase SQL editor.")
	if !report.AllExist() {
		fmt.Fprintln(e.out, "\nSome tables could not be created automatically.")
		fmt.Fprintln(e.out, "Use the Supabase SQL editor to run the generated SQL file.")
	}
	fmt.Fprintln(e.out, "\nDone.")
	return report, nil
}

func (e *Emitter) printResult(t schema.Table, result TableResult) {
	switch result.Status {
	case StatusExists:
		fmt.Fprintf(e.out, "Table %s already exists.\n", t.Name)
	case StatusMissing:
		fmt.Fprintf(e.out, "Table %s does not exist. Creation required.\n", t.Name)
		fmt.Fprintln(e.out, "Tables cannot be created through the Supabase REST API.")
		fmt.Fprintln(e.out, "Run the following SQL in the Supabase SQL editor:")
		fmt.Fprintln(e.out)
		fmt.Fprint(e.out, schema.TableDDL(t))
		fmt.Fprintln(e.out)
	default:
		fmt.Fprintf(e.out, "Error checking table %s: %v\n", t.Name, result.Err)
	}
}

// WriteSQL writes the consolidated SQL document, replacing any existing file.
func (e *Emitter) WriteSQL() error {
	if err := os.WriteFile(e.outputPath, []byte(schema.Render(e.def)), 0644); err != nil {
		return fmt.Errorf("error writing %s: %w", e.outputPath, err)
	}
	return nil
}

// Command critic-validate checks manuscript transcription files against
// the encoding profile and resolves their correction, abbreviation, and
// language tables.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/tanakhcc/critic-engine/core/document"
	"github.com/tanakhcc/critic-engine/internal/diag"
	"github.com/tanakhcc/critic-engine/internal/engine"
	"github.com/tanakhcc/critic-engine/internal/index"
	"github.com/tanakhcc/critic-engine/internal/logging"
	"github.com/tanakhcc/critic-engine/internal/structure"
	"github.com/tanakhcc/critic-engine/internal/tei"
	"github.com/tanakhcc/critic-engine/internal/versification"
)

const version = "0.1.0"

// CLI defines the command-line interface for critic-validate.
var CLI struct {
	LogLevel  string `name:"log-level" enum:"debug,info,warn,error" default:"info" help:"Log level"`
	LogFormat string `name:"log-format" enum:"text,json" default:"text" help:"Log output format"`

	Validate ValidateCmd `cmd:"" default:"withargs" help:"Validate transcription files"`
	Schemes  SchemesCmd  `cmd:"" help:"List the known versification schemes"`
	Version  VersionCmd  `cmd:"" help:"Print version information"`
}

// ValidateCmd validates one or more transcription files.
type ValidateCmd struct {
	Files []string `arg:"" type:"existingfile" help:"Transcription files (.xml, transparently .xml.xz)"`

	Layout      string   `enum:"auto,manuscript,page" default:"auto" help:"File layout: manuscript (page>column>line), page (column>line), or auto-detect"`
	Scheme      []string `help:"Additional versification schemes as name=shorthand pairs"`
	Index       string   `type:"path" help:"Write resolved tables to this SQLite database"`
	Concurrency int      `short:"j" help:"Parallel document workers (default: one per file)"`
	JSON        bool     `help:"Emit results as JSON on stdout"`
}

// Run implements the validate command.
func (c *ValidateCmd) Run(_ *kong.Context) error {
	ctx := context.Background()

	registry := versification.NewRegistry()
	for _, s := range c.Scheme {
		name, short, ok := strings.Cut(s, "=")
		if !ok || name == "" || short == "" {
			return fmt.Errorf("invalid --scheme %q, want name=shorthand", s)
		}
		registry.Register(versification.Scheme{Name: name, Shorthand: short})
	}

	// Load everything up front. A file that fails to load still yields a
	// result so the exit status and report cover every input.
	var docs []*input
	for _, path := range c.Files {
		d, err := tei.LoadFile(path)
		docs = append(docs, &input{path: path, doc: d, loadErr: err})
	}

	layout := structure.LayoutMode(c.Layout)
	if c.Layout == "auto" {
		layout = structure.LayoutPage
		for _, d := range docs {
			if d.doc != nil {
				layout = structure.Detect(d.doc)
				break
			}
		}
	}

	batch := &engine.Batch{Opts: engine.Options{
		Layout:      layout,
		Registry:    registry,
		Concurrency: c.Concurrency,
	}}
	results, _, err := batch.Run(ctx, loaded(docs))
	if err != nil {
		return err
	}

	// Stitch load failures back into file order.
	all := make([]*engine.Result, 0, len(docs))
	next := 0
	for _, d := range docs {
		if d.loadErr != nil {
			all = append(all, loadFailure(d))
			continue
		}
		all = append(all, results[next])
		next++
	}

	if c.Index != "" {
		store, err := index.Open(c.Index)
		if err != nil {
			return err
		}
		defer store.Close()
		for _, res := range all {
			if res.Anchors == nil {
				continue
			}
			if err := store.SaveResult(ctx, res); err != nil {
				return err
			}
		}
	}

	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(all); err != nil {
			return err
		}
	} else {
		printReport(all)
	}

	rejected := 0
	for _, res := range all {
		if res.Rejected {
			rejected++
		}
	}
	if rejected > 0 {
		return fmt.Errorf("%d of %d documents rejected", rejected, len(all))
	}
	return nil
}

// input pairs an input path with its load outcome.
type input struct {
	path    string
	doc     *document.Document
	loadErr error
}

func loaded(docs []*input) []*document.Document {
	var out []*document.Document
	for _, d := range docs {
		if d.loadErr == nil {
			out = append(out, d.doc)
		}
	}
	return out
}

// loadFailure turns an unloadable file into a rejected result carrying the
// load error as its single diagnostic.
func loadFailure(d *input) *engine.Result {
	r := diag.New()
	r.Report(d.loadErr)
	return &engine.Result{
		DocumentID:  d.path,
		Rejected:    true,
		Diagnostics: r.Diagnostics(),
	}
}

func printReport(results []*engine.Result) {
	for _, res := range results {
		status := "ok"
		if res.Rejected {
			status = "REJECTED"
		}
		fmt.Printf("%s: %s (%d errors, %d warnings, %d passages, %d abbreviations)\n",
			res.DocumentID, status, res.Errors(), res.Warnings(),
			len(res.Versions), len(res.Abbreviations))
		for _, d := range res.Diagnostics {
			loc := d.Location
			if loc == "" {
				loc = "-"
			}
			fmt.Printf("  %-7s %-28s %s: %s\n", d.Severity, d.Rule, loc, d.Message)
		}
	}
}

// SchemesCmd lists the versification schemes the registry knows.
type SchemesCmd struct{}

// Run implements the schemes command.
func (s *SchemesCmd) Run(_ *kong.Context) error {
	for _, scheme := range versification.NewRegistry().Schemes() {
		note := ""
		if scheme.EditorialOnly {
			note = " (editorial confirmation required)"
		}
		fmt.Printf("%-24s %s%s\n", scheme.Name, scheme.Shorthand, note)
	}
	return nil
}

// VersionCmd prints the version.
type VersionCmd struct{}

// Run implements the version command.
func (v *VersionCmd) Run(_ *kong.Context) error {
	fmt.Printf("critic-validate %s\n", version)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("critic-validate"),
		kong.Description("Manuscript transcription validator and version resolver"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)

	logging.InitLogger(logLevel(CLI.LogLevel), logFormat(CLI.LogFormat))

	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}

func logLevel(s string) logging.Level {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func logFormat(s string) logging.Format {
	if s == "json" {
		return logging.FormatJSON
	}
	return logging.FormatText
}

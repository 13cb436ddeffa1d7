// Command examparse builds exams from question PDFs.
//
// Usage:
//
//	examparse create -exam az-900 ./pdfs/Part1.pdf ./pdfs/Part2.pdf
//	examparse append -exam az-900 -review review.xlsx ./pdfs/Part3.pdf
//	examparse list
//	examparse show -exam az-900 -json
//	examparse export -exam az-900 -o az-900.xlsx
//
// Every subcommand accepts -config (JSON file), -store, -data-dir and
// -verbose. EXAMPARSE_* environment variables override the config file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/brunobiangulo/examparse"
	"github.com/brunobiangulo/examparse/exam"
	"github.com/brunobiangulo/examparse/merge"
)

const usage = `usage: examparse <command> [flags] [files...]

commands:
  create   build a new exam from documents
  append   add documents to an exam, creating it when missing
  list     list stored exams
  show     print an exam
  export   write the review workbook of an exam
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	config  string
	store   string
	dataDir string
	exam    string
	review  string
	out     string
	json    bool
	verbose bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	cmd, args := args[0], args[1:]

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	var o options
	fs.StringVar(&o.config, "config", "", "Path to config file (JSON)")
	fs.StringVar(&o.store, "store", "", "Exam store: jsonl or sqlite (overrides config)")
	fs.StringVar(&o.dataDir, "data-dir", "", "Exam data directory (overrides config)")
	fs.BoolVar(&o.verbose, "verbose", false, "Debug logging")
	switch cmd {
	case "create", "append":
		fs.StringVar(&o.exam, "exam", "", "Exam name")
		fs.StringVar(&o.review, "review", "", "Also write a review workbook of this run")
	case "show":
		fs.StringVar(&o.exam, "exam", "", "Exam name")
		fs.BoolVar(&o.json, "json", false, "Print the records as JSON lines")
	case "export":
		fs.StringVar(&o.exam, "exam", "", "Exam name")
		fs.StringVar(&o.out, "o", "", "Output .xlsx path (default <exam>.xlsx)")
	case "list":
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

	engine, err := openEngine(o)
	if err != nil {
		fmt.Fprintf(stderr, "examparse: %v\n", err)
		return 1
	}
	defer engine.Close()

	switch cmd {
	case "create", "append":
		err = runMerge(ctx, engine, cmd, o, fs.Args(), stdout)
	case "list":
		err = runList(ctx, engine, stdout)
	case "show":
		err = runShow(ctx, engine, o, stdout)
	case "export":
		err = runExport(ctx, engine, o, stdout)
	}
	if err != nil {
		fmt.Fprintf(stderr, "examparse: %v\n", err)
		return 1
	}
	return 0
}

func openEngine(o options) (examparse.Engine, error) {
	cfg, err := examparse.LoadConfig(o.config)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if o.store != "" {
		cfg.Store = o.store
	}
	if o.dataDir != "" {
		cfg.DataDir = o.dataDir
	}
	return examparse.New(cfg)
}

func runMerge(ctx context.Context, e examparse.Engine, cmd string, o options, paths []string, w io.Writer) error {
	if o.exam == "" {
		return errors.New("-exam is required")
	}
	if len(paths) == 0 {
		return errors.New("no documents given")
	}

	var report *merge.Report
	var err error
	if cmd == "create" {
		report, err = e.Create(ctx, o.exam, paths)
	} else {
		report, err = e.Append(ctx, o.exam, paths)
	}
	if err != nil {
		return err
	}
	printReport(w, report)

	if o.review != "" {
		if err := e.ExportReview(ctx, o.exam, report, o.review); err != nil {
			return err
		}
		fmt.Fprintf(w, "review written to %s\n", o.review)
	}
	return nil
}

func printReport(w io.Writer, r *merge.Report) {
	fmt.Fprintf(w, "exam %s, run %s: %d questions added\n", r.Exam, r.RunID, r.Questions())
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DOCUMENT\tQUESTIONS\tIDS\tIMAGES\tWARNINGS")
	for _, d := range r.Documents {
		ids := "-"
		if d.FirstID > 0 {
			ids = fmt.Sprintf("%d-%d", d.FirstID, d.LastID)
		}
		if d.Failed {
			ids = "failed"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%d\n", d.Document, d.Questions, ids, d.Images, len(d.Warnings))
	}
	tw.Flush()

	counts := make(map[exam.Kind]int)
	for _, wr := range r.Warnings() {
		counts[wr.Kind]++
	}
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "  %s: %d\n", k, counts[exam.Kind(k)])
	}
}

func runList(ctx context.Context, e examparse.Engine, w io.Writer) error {
	exams, err := e.ListExams(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EXAM\tQUESTIONS\tIMAGES\tSOURCES")
	for _, x := range exams {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", x.Name, x.Stats.TotalQuestions, x.Stats.Images, strings.Join(x.Stats.SourcePDFs, ", "))
	}
	return tw.Flush()
}

func runShow(ctx context.Context, e examparse.Engine, o options, w io.Writer) error {
	if o.exam == "" {
		return errors.New("-exam is required")
	}
	ex, err := e.Exam(ctx, o.exam)
	if err != nil {
		return err
	}
	if o.json {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		for _, q := range ex.Questions {
			if err := enc.Encode(q); err != nil {
				return err
			}
		}
		return nil
	}
	for _, q := range ex.Questions {
		answer, ok := q.AuthoritativeAnswer()
		if !ok {
			answer = "?"
		}
		fmt.Fprintf(w, "#%d [%s] %s p%d\n  %s\n", q.QuestionID, q.QuestionType, q.SourcePDF, q.PageNumber, firstLine(q.Question))
		for _, c := range q.Choices {
			fmt.Fprintf(w, "    %s. %s\n", c.Letter, firstLine(c.Text))
		}
		fmt.Fprintf(w, "  answer: %s\n", answer)
	}
	return nil
}

func runExport(ctx context.Context, e examparse.Engine, o options, w io.Writer) error {
	if o.exam == "" {
		return errors.New("-exam is required")
	}
	out := o.out
	if out == "" {
		out = o.exam + ".xlsx"
	}
	if err := e.ExportReview(ctx, o.exam, nil, out); err != nil {
		return err
	}
	fmt.Fprintf(w, "review written to %s\n", out)
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"chronogate/internal/capability"
	"chronogate/internal/config"
	"chronogate/internal/gate"
	"chronogate/internal/report"
	"chronogate/internal/runner"
	"chronogate/internal/server"
)

const version = "0.3.0"

// configFile is looked up in the working directory; the environment
// overrides whatever it contains.
const configFile = "chronogate.yaml"

// command describes a CLI subcommand.
type command struct {
	name  string
	short string
	usage string
	long  string
	run   func(args []string) error
}

var commands = []command{
	{
		name:  "validate",
		short: "Check a script against the allowlist",
		usage: "chronogate validate <script.py> [report.md]",
		long: `Validate a script without rewriting it.

Prints each violation on its own line. When a report path is given, a
markdown report with YAML frontmatter is written there as well.

Exits non-zero when the script is rejected.
`,
		run: runValidate,
	},
	{
		name:  "rewrite",
		short: "Rename legacy identifiers and validate the result",
		usage: "chronogate rewrite <script.py>",
		long: `Apply the policy's legacy renames, validate the rewritten script,
and print the rewritten source to stdout. Renames and violations go to
stderr so the output can be piped.
`,
		run: runRewrite,
	},
	{
		name:  "exec",
		short: "Validate, rewrite, and run a script",
		usage: "chronogate exec <script.py>",
		long: `Run a script through the full gate pipeline and, if it passes,
execute it with the configured interpreter under the configured timeout.
`,
		run: runExec,
	},
	{
		name:  "probe",
		short: "Probe class members and print a capability snapshot",
		usage: "chronogate probe <class> [<class>...]",
		long: `Probe the configured interpreter for the members of one or more
fully-qualified classes (e.g. pychrono.core.ChSystemNSC) and print the
resulting snapshot YAML, suitable for the snapshot_path config entry.
`,
		run: runProbe,
	},
	{
		name:  "review",
		short: "Inspect a gate result interactively",
		usage: "chronogate review <script.py>",
		long: `Open a scrollable view of the gate's verdict for a script: the
renames applied, every violation, and the rewritten source.

Keys: j/k or arrows to scroll, q to quit.
`,
		run: runReview,
	},
	{
		name:  "serve",
		short: "Run the HTTP gate service",
		usage: "chronogate serve",
		long: `Serve the gate over HTTP on the configured listen address.

All API routes require the configured bearer token; without one the
service answers 500 to everything.
`,
		run: runServe,
	},
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "chronogate — policy gate for untrusted simulation scripts\n\n")
	fmt.Fprintf(w, "Usage:\n  chronogate <command> [arguments]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", cmd.name, cmd.short)
	}
	fmt.Fprintf(w, "\nRun 'chronogate help <command>' for details on a specific command.\n")
}

func printCommandHelp(w io.Writer, name string) {
	for _, cmd := range commands {
		if cmd.name == name {
			fmt.Fprintf(w, "Usage: %s\n\n%s", cmd.usage, cmd.long)
			return
		}
	}
	fmt.Fprintf(w, "chronogate: unknown command %q\n\nRun 'chronogate help' for usage.\n", name)
}

func dispatch(args []string) error {
	if len(args) == 0 || args[0] == "--help" || args[0] == "-h" {
		printUsage(os.Stdout)
		return nil
	}
	switch args[0] {
	case "help":
		if len(args) >= 2 {
			printCommandHelp(os.Stdout, args[1])
		} else {
			printUsage(os.Stdout)
		}
		return nil
	case "version", "--version":
		fmt.Println(version)
		return nil
	}
	for _, cmd := range commands {
		if cmd.name == args[0] {
			return cmd.run(args[1:])
		}
	}
	return fmt.Errorf("unknown command %q\n\nRun 'chronogate help' for usage.", args[0])
}

// loadEnvironment assembles the config, capability cache, and gate shared
// by every subcommand.
func loadEnvironment() (config.Config, *gate.Gate, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return cfg, nil, err
	}
	cfg, err = config.FromEnv(cfg)
	if err != nil {
		return cfg, nil, err
	}
	caps := capability.NewCache(&capability.PythonProber{Python: cfg.PythonBin})
	if cfg.SnapshotPath != "" {
		if err := caps.LoadSnapshot(cfg.SnapshotPath); err != nil {
			return cfg, nil, err
		}
	}
	return cfg, gate.New(cfg.AllowlistPath, caps), nil
}

// ---------------------------------------------------------------------------
// validate
// ---------------------------------------------------------------------------

func runValidate(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: chronogate validate <script.py> [report.md]")
	}
	cfg, g, err := loadEnvironment()
	if err != nil {
		return err
	}
	src, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	res, err := g.Validate(string(src))
	if err != nil {
		return err
	}
	if len(args) >= 2 {
		doc, err := report.Render(args[0], string(src), cfg.AllowlistPath, res, time.Now())
		if err != nil {
			return err
		}
		if err := os.WriteFile(args[1], doc, 0o644); err != nil {
			return err
		}
		fmt.Printf("report written to %s\n", args[1])
	}
	if res.OK {
		fmt.Printf("%s: ok\n", args[0])
		return nil
	}
	for _, v := range res.Violations {
		fmt.Fprintf(os.Stderr, "%s\n", v)
	}
	return fmt.Errorf("%s: %d violation(s)", args[0], len(res.Violations))
}

// ---------------------------------------------------------------------------
// rewrite
// ---------------------------------------------------------------------------

func runRewrite(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: chronogate rewrite <script.py>")
	}
	_, g, err := loadEnvironment()
	if err != nil {
		return err
	}
	src, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	res, err := g.RewriteAndValidate(string(src))
	if err != nil {
		return err
	}
	for _, r := range res.Renames {
		fmt.Fprintf(os.Stderr, "renamed %s %s -> %s\n", r.Kind, r.Old, r.New)
	}
	for _, v := range res.Violations {
		fmt.Fprintf(os.Stderr, "%s\n", v)
	}
	fmt.Print(res.Rewritten)
	if !res.OK {
		return fmt.Errorf("%s: %d violation(s)", args[0], len(res.Violations))
	}
	return nil
}

// ---------------------------------------------------------------------------
// exec
// ---------------------------------------------------------------------------

func runExec(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: chronogate exec <script.py>")
	}
	cfg, g, err := loadEnvironment()
	if err != nil {
		return err
	}
	src, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	res, err := g.RewriteAndValidate(string(src))
	if err != nil {
		return err
	}
	if !res.OK {
		for _, v := range res.Violations {
			fmt.Fprintf(os.Stderr, "%s\n", v)
		}
		return fmt.Errorf("%s: rejected, not executing", args[0])
	}
	out, err := runner.Run(context.Background(), res.Rewritten, runner.Options{
		Python:  cfg.PythonBin,
		Timeout: cfg.ExecTimeout(),
	})
	if err != nil {
		return err
	}
	os.Stdout.WriteString(out.Stdout)
	os.Stderr.WriteString(out.Stderr)
	if out.TimedOut {
		return fmt.Errorf("%s: timed out after %s", args[0], cfg.ExecTimeout())
	}
	if out.ReturnCode != 0 {
		return fmt.Errorf("%s: exit status %d", args[0], out.ReturnCode)
	}
	return nil
}

// ---------------------------------------------------------------------------
// probe
// ---------------------------------------------------------------------------

func runProbe(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: chronogate probe <class> [<class>...]")
	}
	cfg, _, err := loadEnvironment()
	if err != nil {
		return err
	}
	caps := capability.NewCache(&capability.PythonProber{Python: cfg.PythonBin})
	var missed []string
	for _, fqcn := range args {
		if _, known := caps.Lookup(fqcn); !known {
			missed = append(missed, fqcn)
		}
	}
	snap, err := caps.Snapshot()
	if err != nil {
		return err
	}
	os.Stdout.Write(snap)
	if len(missed) > 0 {
		return fmt.Errorf("could not probe: %s", strings.Join(missed, ", "))
	}
	return nil
}

// ---------------------------------------------------------------------------
// review
// ---------------------------------------------------------------------------

func runReview(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: chronogate review <script.py>")
	}
	_, g, err := loadEnvironment()
	if err != nil {
		return err
	}
	src, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	res, err := g.RewriteAndValidate(string(src))
	if err != nil {
		return err
	}
	m := newReviewModel(args[0], reviewContent(res))
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

// reviewContent renders a gate result as the scrollable review body.
func reviewContent(res *gate.Result) string {
	var b strings.Builder
	if res.OK {
		b.WriteString("verdict: PASS\n")
	} else {
		fmt.Fprintf(&b, "verdict: FAIL (%d violation(s))\n", len(res.Violations))
	}
	if len(res.Renames) > 0 {
		b.WriteString("\nrenames:\n")
		for _, r := range res.Renames {
			fmt.Fprintf(&b, "  %s %s -> %s\n", r.Kind, r.Old, r.New)
		}
	}
	if len(res.Violations) > 0 {
		b.WriteString("\nviolations:\n")
		for _, v := range res.Violations {
			fmt.Fprintf(&b, "  %s\n", v)
		}
	}
	b.WriteString("\nrewritten source:\n\n")
	b.WriteString(res.Rewritten)
	return b.String()
}

// reviewModel is a bubbletea model showing one gate result in a viewport.
type reviewModel struct {
	title   string
	content string
	vp      viewport.Model
	ready   bool
}

func newReviewModel(title, content string) reviewModel {
	return reviewModel{title: title, content: content}
}

func (m reviewModel) Init() tea.Cmd {
	return nil
}

func (m reviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		if !m.ready {
			m.vp = viewport.New(msg.Width, msg.Height-2)
			m.vp.SetContent(m.content)
			m.ready = true
		} else {
			m.vp.Width = msg.Width
			m.vp.Height = msg.Height - 2
		}
	}
	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

func (m reviewModel) View() string {
	if !m.ready {
		return "loading..."
	}
	return fmt.Sprintf("%s — q to quit\n%s\n", m.title, m.vp.View())
}

// ---------------------------------------------------------------------------
// serve
// ---------------------------------------------------------------------------

func runServe(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("usage: chronogate serve")
	}
	cfg, g, err := loadEnvironment()
	if err != nil {
		return err
	}
	return server.New(cfg, g, version).ListenAndServe()
}

func main() {
	if err := dispatch(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

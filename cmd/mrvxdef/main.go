// Command mrvxdef converts tables named in a model file into MRV-backed
// structures (spec.md §6). Invocation pattern and flag handling follow
// cmd/psqldef/psqldef.go: go-flags for options, $PGPASS precedence, an
// x/term password prompt, and a usage-message-then-exit(1) for missing args.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/jessevdk/go-flags"
	"golang.org/x/term"

	"github.com/mrvx-tools/mrvxdef/driver"
	"github.com/mrvx-tools/mrvxdef/logging"
	"github.com/mrvx-tools/mrvxdef/model"
	"github.com/mrvx-tools/mrvxdef/mrverrors"
)

var verboseStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("242")).Faint(true)

type cliOptions struct {
	Password string `short:"W" long:"password" description:"PostgreSQL user password, overridden by $PGPASS" value-name:"password"`
	Prompt   bool   `long:"password-prompt" description:"Force password prompt"`
	DryRun   bool   `long:"dry-run" description:"Print the generated DDL instead of executing it"`
	Verbose  bool   `long:"verbose" description:"Print classification/diagnostic detail to stderr"`
	Help     bool   `long:"help" description:"Show this help"`
}

func parseArgs(argv []string) (*cliOptions, []string, *flags.Parser) {
	var opts cliOptions
	parser := flags.NewParser(&opts, flags.None)
	parser.Usage = "[option...] <model.yml> [<initial-nodes>]"
	args, err := parser.ParseArgs(argv)
	if err != nil {
		log.Fatal(err)
	}
	return &opts, args, parser
}

func main() {
	opts, args, parser := parseArgs(os.Args[1:])

	if opts.Help {
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}

	if len(args) < 1 {
		fmt.Println("Usage: mrvxdef <model.yml> [<initial-nodes>]")
		os.Exit(1)
	}

	var override *int
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Printf("invalid initial-nodes override %q: %v\n", args[1], err)
			os.Exit(1)
		}
		override = &n
	}

	m, err := model.Load(args[0], override)
	if err != nil {
		fail(err)
	}

	if opts.Password != "" {
		m.Password = opts.Password
	}
	if opts.Prompt {
		fmt.Print("Enter Password: ")
		pass, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			fail(err)
		}
		m.Password = string(pass)
	}

	var logger logging.Logger = logging.StdoutLogger{}
	if opts.Verbose {
		logger = verboseLogger{}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := driver.Run(ctx, m, driver.Options{DryRun: opts.DryRun, Verbose: opts.Verbose}, logger); err != nil {
		fail(err)
	}
}

// verboseLogger mirrors logging.StdoutLogger but also echoes every line,
// faint-styled, to stderr: the --verbose diagnostic channel.
type verboseLogger struct{}

func (verboseLogger) Print(v ...any) {
	fmt.Print(v...)
	fmt.Fprint(os.Stderr, verboseStyle.Render(fmt.Sprint(v...)))
}
func (verboseLogger) Printf(format string, v ...any) {
	fmt.Printf(format, v...)
	fmt.Fprint(os.Stderr, verboseStyle.Render(fmt.Sprintf(format, v...)))
}
func (verboseLogger) Println(v ...any) {
	fmt.Println(v...)
	fmt.Fprintln(os.Stderr, verboseStyle.Render(fmt.Sprint(v...)))
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, mrverrors.Format(err))
	os.Exit(1)
}

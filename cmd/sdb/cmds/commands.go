// Package cmds implements the sdb command line interface.
package cmds

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TURING-V2/serenity/cmd/sdb/cmds/helphelpers"
	"github.com/TURING-V2/serenity/pkg/config"
	"github.com/TURING-V2/serenity/pkg/debug"
	"github.com/TURING-V2/serenity/pkg/logflags"
	"github.com/TURING-V2/serenity/pkg/terminal"
)

const version string = "0.9.0"

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should produce debug output.
	logOutput string
	// logDest is the file path or file descriptor where logs should go.
	logDest string
	// sourceRoot is stripped from source paths when reporting positions,
	// overriding the configuration file.
	sourceRoot string

	// rootCommand is the root of the command tree.
	rootCommand *cobra.Command

	conf *config.Config
)

const sdbCommandLongDesc = `sdb is a symbolic debugger for native executables.

It attaches to a running process or launches one under its control, sets
software breakpoints and hardware watchpoints, steps through machine code
and resolves addresses against the symbol and line tables of every loaded
library.`

// New returns an initialized command tree.
func New() *cobra.Command {
	// Config setup and load.
	conf = config.LoadConfig()

	// Main sdb root command.
	rootCommand = &cobra.Command{
		Use:   "sdb",
		Short: "sdb is a debugger for native executables.",
		Long:  sdbCommandLongDesc,
	}

	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable debugger logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", "", "Comma separated list of components that should produce debug output (debug, scan, terminal).")
	rootCommand.PersistentFlags().StringVarP(&logDest, "log-dest", "", "", "Writes logs to the specified file or file descriptor.")
	rootCommand.PersistentFlags().StringVar(&sourceRoot, "source-root", "", "Directory prefix stripped from reported source paths.")

	// 'attach' subcommand.
	attachCommand := &cobra.Command{
		Use:   "attach pid",
		Short: "Attach to running process and begin debugging.",
		Long: `Attach to an already running process and begin debugging it.

This command will cause sdb to take control of an already running process.
You will be able to set breakpoints and begin the debug session as usual.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("you must provide a PID")
			}
			return nil
		},
		Run: attachCmd,
	}
	rootCommand.AddCommand(attachCommand)

	// 'exec' subcommand.
	execCommand := &cobra.Command{
		Use:   "exec <path/to/binary> [flags]",
		Short: "Execute a precompiled binary, and begin a debug session.",
		Long: `Execute a precompiled binary and begin a debug session.

The child is launched stopped, so breakpoints placed before the first
continue take effect from the very first instruction of the program.`,
		Args: cobra.MinimumNArgs(1),
		Run:  execCmd,
	}
	rootCommand.AddCommand(execCommand)

	// 'version' subcommand.
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sdb version: %s\nbuild: %s/%s\n", version, runtime.GOOS, runtime.GOARCH)
		},
	}
	rootCommand.AddCommand(versionCommand)

	defaultHelpFunc := rootCommand.HelpFunc()
	rootCommand.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		helphelpers.Prepare(cmd)
		defaultHelpFunc(cmd, args)
	})

	rootCommand.DisableAutoGenTag = true

	return rootCommand
}

func attachCmd(cmd *cobra.Command, args []string) {
	pid, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid pid: %s\n", args[0])
		os.Exit(1)
	}
	os.Exit(execute(pid, "", conf))
}

func execCmd(cmd *cobra.Command, args []string) {
	os.Exit(execute(0, strings.Join(args, " "), conf))
}

// execute runs a debug session to completion and returns the process
// exit status.
func execute(attachPid int, command string, conf *config.Config) int {
	if err := logflags.Setup(log, logOutput, logDest); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer logflags.Close()

	root := sourceRoot
	if root == "" {
		root = conf.SourceRoot
	}

	var session *debug.DebugSession
	var err error
	if attachPid > 0 {
		session, err = debug.Attach(attachPid, root)
	} else {
		session, err = debug.Launch(command, root)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not start debug session: %v\n", err)
		return 1
	}

	term := terminal.New(session, conf)
	status, err := term.Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	return status
}

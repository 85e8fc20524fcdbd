package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/illarion/jarida/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		runInit(ctx, os.Args[2:])
	case "new":
		runNew(ctx, os.Args[2:])
	case "list", "ls":
		runList(ctx, os.Args[2:])
	case "show":
		runShow(ctx, os.Args[2:])
	case "edit":
		runEdit(ctx, os.Args[2:])
	case "rm":
		runRm(ctx, os.Args[2:])
	case "status":
		runStatus(ctx, os.Args[2:])
	case "passwd":
		runPasswd(ctx, os.Args[2:])
	case "index":
		runIndex(ctx, os.Args[2:])
	case "compact":
		runCompact(ctx, os.Args[2:])
	case "keyring":
		runKeyring(ctx, os.Args[2:])
	case "completion":
		runCompletion(ctx, os.Args[2:])
	case "help", "-h", "--help":
		if len(os.Args) <= 2 {
			printUsage()
			return
		}
		printCommandHelp(os.Args[2])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// parse parses flags anywhere on the command line, so that
// "jarida show <id> -toml" works the same as "jarida show -toml <id>".
func parse(fs *flag.FlagSet, args []string) []string {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func runInit(_ context.Context, args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	home := fs.Bool("home", false, "Create the journal in the home directory")
	rest := parse(fs, args)
	if len(rest) > 1 {
		fmt.Fprintln(os.Stderr, "Usage: jarida init [-home] [dir]")
		os.Exit(1)
	}

	dir := ""
	if len(rest) == 1 {
		dir = rest[0]
	}
	cmd.Init(dir, *home)
}

func runNew(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("new", flag.ExitOnError)
	message := fs.String("m", "", "Entry text (skips the editor)")
	if rest := parse(fs, args); len(rest) > 0 {
		fmt.Fprintln(os.Stderr, "Usage: jarida new [-m text]")
		os.Exit(1)
	}

	cmd.New(ctx, *message)
}

func runList(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	parse(fs, args)

	cmd.List(ctx)
}

func runShow(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	asTOML := fs.Bool("toml", false, "Print entries as TOML")
	rest := parse(fs, args)
	if len(rest) > 1 {
		fmt.Fprintln(os.Stderr, "Usage: jarida show [-toml] [id]")
		os.Exit(1)
	}

	id := ""
	if len(rest) == 1 {
		id = rest[0]
	}
	cmd.Show(ctx, id, *asTOML)
}

func runEdit(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("edit", flag.ExitOnError)
	showDiff := fs.Bool("diff", false, "Print a diff of the changes")
	rest := parse(fs, args)
	if len(rest) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: jarida edit [-diff] <id>")
		os.Exit(1)
	}

	cmd.Edit(ctx, rest[0], *showDiff)
}

func runRm(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("rm", flag.ExitOnError)
	force := fs.Bool("force", false, "Remove without confirmation")
	rest := parse(fs, args)
	if len(rest) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: jarida rm [-force] <id> [id...]")
		os.Exit(1)
	}

	cmd.Remove(ctx, rest, *force)
}

func runStatus(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	parse(fs, args)

	cmd.Status(ctx)
}

func runPasswd(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("passwd", flag.ExitOnError)
	user := fs.String("user", "", "New username")
	parse(fs, args)

	cmd.Passwd(ctx, *user)
}

func runIndex(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	parse(fs, args)

	cmd.Index(ctx)
}

func runCompact(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("compact", flag.ExitOnError)
	parse(fs, args)

	cmd.Compact(ctx)
}

func runKeyring(_ context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: jarida keyring <save|delete|status>")
		os.Exit(1)
	}

	switch args[0] {
	case "save":
		cmd.KeyringSave()
	case "delete":
		cmd.KeyringDelete()
	case "status":
		cmd.KeyringStatus()
	default:
		fmt.Fprintf(os.Stderr, "Unknown keyring command: %s\n", args[0])
		os.Exit(1)
	}
}

func runCompletion(_ context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: jarida completion <bash|zsh|fish>")
		os.Exit(1)
	}
	cmd.Completion(args[0])
}

func printUsage() {
	fmt.Println("jarida - An encrypted journal for the command line")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  jarida <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  init        Create a journal in the current directory")
	fmt.Println("  new         Write a new entry")
	fmt.Println("  list, ls    List entries (no password required)")
	fmt.Println("  show        Decrypt and print entries")
	fmt.Println("  edit        Edit an existing entry")
	fmt.Println("  rm          Remove entries")
	fmt.Println("  status      Show journal status")
	fmt.Println("  passwd      Change password or username")
	fmt.Println("  index       Rebuild the entry index")
	fmt.Println("  compact     Compact the journal database")
	fmt.Println("  keyring     Manage password in OS keyring")
	fmt.Println("  completion  Generate shell completions")
	fmt.Println("  help        Show help for a command")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  jarida init                     # Create a journal here")
	fmt.Println("  jarida new                      # Write an entry in $EDITOR")
	fmt.Println("  jarida show latest              # Read the newest entry")
	fmt.Println()
	fmt.Println("Use 'jarida help <command>' for more information about a command.")
}

func printCommandHelp(command string) {
	switch command {
	case "init":
		fmt.Println("jarida init [-home] [dir]")
		fmt.Println()
		fmt.Println("Creates a .jarida journal in dir (default: current directory).")
		fmt.Println("Prompts for a username and a password used to derive the key.")
		fmt.Println("The password is not stored anywhere - you must remember it.")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  -home    Create the journal in the home journal directory")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  jarida init")
		fmt.Println("  jarida init -home")
	case "new":
		fmt.Println("jarida new [-m text]")
		fmt.Println()
		fmt.Println("Opens the editor and saves the text as a new encrypted entry.")
		fmt.Println("Empty or whitespace-only text is not saved.")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  -m text  Use text as the entry instead of opening the editor")
	case "list", "ls":
		fmt.Println("jarida list")
		fmt.Println()
		fmt.Println("Lists entries in chronological order with their sizes.")
		fmt.Println("Does not require a password.")
	case "show":
		fmt.Println("jarida show [-toml] [id]")
		fmt.Println()
		fmt.Println("Decrypts and prints one entry, or every entry when no id is given.")
		fmt.Println("id may be a full id, a unique prefix of one, or 'latest'.")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  -toml    Print entries as TOML records")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  jarida show latest")
		fmt.Println("  jarida show 20240301")
		fmt.Println("  jarida show -toml > backup.toml")
	case "edit":
		fmt.Println("jarida edit [-diff] <id>")
		fmt.Println()
		fmt.Println("Opens an existing entry in the editor and saves the result.")
		fmt.Println("The entry keeps its id. Empty text is rejected.")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  -diff    Print a unified diff of the changes")
	case "rm":
		fmt.Println("jarida rm [-force] <id> [id...]")
		fmt.Println()
		fmt.Println("Removes entries after confirmation.")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  -force   Remove without asking")
	case "status":
		fmt.Println("jarida status")
		fmt.Println()
		fmt.Println("Shows journal location, encryption details, entry count and size.")
		fmt.Println("Reports when the index has drifted from the entry files.")
		fmt.Println()
		fmt.Println("Does not require a password.")
	case "passwd":
		fmt.Println("jarida passwd [-user name]")
		fmt.Println()
		fmt.Println("Changes the password and re-encrypts every entry.")
		fmt.Println("With -user the username is changed as well.")
		fmt.Println("A password stored in the keyring is updated.")
	case "index":
		fmt.Println("jarida index")
		fmt.Println()
		fmt.Println("Rebuilds the entry index from the entry files and")
		fmt.Println("removes abandoned temporary files.")
		fmt.Println()
		fmt.Println("Does not require a password.")
	case "compact":
		fmt.Println("jarida compact")
		fmt.Println()
		fmt.Println("Compacts the journal database to reclaim unused disk space.")
		fmt.Println("This is automatically done after 'rm' and 'passwd' commands,")
		fmt.Println("but can be run manually if needed.")
		fmt.Println()
		fmt.Println("Does not require a password.")
	case "keyring":
		fmt.Println("jarida keyring <save|delete|status>")
		fmt.Println()
		fmt.Println("Manages the journal password in the OS keyring.")
		fmt.Println("A stored password is used instead of prompting.")
		fmt.Println("Set keyring = true in config.toml to store it on unlock.")
	case "completion":
		fmt.Println("jarida completion <bash|zsh|fish>")
		fmt.Println()
		fmt.Println("Outputs shell completion script for the specified shell.")
		fmt.Println()
		fmt.Println("Setup:")
		fmt.Println("  # Bash - add to ~/.bashrc")
		fmt.Println("  eval \"$(jarida completion bash)\"")
		fmt.Println()
		fmt.Println("  # Zsh - add to ~/.zshrc")
		fmt.Println("  eval \"$(jarida completion zsh)\"")
		fmt.Println()
		fmt.Println("  # Fish - add to ~/.config/fish/config.fish")
		fmt.Println("  jarida completion fish | source")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
	}
}

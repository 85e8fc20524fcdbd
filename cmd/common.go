package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/illarion/jarida/internal/config"
	"github.com/illarion/jarida/internal/core"
	"github.com/illarion/jarida/internal/crypto"
	"github.com/illarion/jarida/internal/entries"
	jerrors "github.com/illarion/jarida/internal/errors"
	"github.com/illarion/jarida/internal/journal"
	"github.com/illarion/jarida/internal/keyring"
	"github.com/illarion/jarida/internal/logging"
	"golang.org/x/term"
)

// EnvDebug enables debug logging when set to any value
const EnvDebug = "JARIDA_DEBUG"

// Logger is shared by all commands; OpenJournal raises its verbosity from
// the configuration
var Logger = logging.Logger{Debug: os.Getenv(EnvDebug) != ""}

// homeJournalDir is where the journal lives when the working directory is
// not inside one: journal_dir from the user config, else home
func homeJournalDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	path, err := config.UserPath()
	if err != nil {
		return home, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		Logger.Warnf("ignoring %s: %s", path, err)
		return home, nil
	}
	if cfg.JournalDir != "" {
		return cfg.JournalDir, nil
	}
	return home, nil
}

// Locator finds journals from the working directory upward, then in the
// home journal directory
func Locator() journal.Locator {
	return journal.Locator{Home: homeJournalDir}
}

// LoadConfig reads the journal's config, falling back to the home config
func LoadConfig(root journal.Root) *config.Config {
	userPath, _ := config.UserPath()
	cfg, err := config.LoadFirst(root.ConfigPath(), userPath)
	if err != nil {
		HandleError(err)
	}
	cfg.ApplyEnv()
	if cfg.Verbose {
		Logger.Verbose = true
	}
	if cfg.Path != "" {
		Logger.Debugf("using config %s", cfg.Path)
	}
	return cfg
}

// OpenJournal locates the journal for the working directory and loads its
// configuration. It exits on failure.
func OpenJournal() (*core.Journal, *config.Config) {
	j, err := core.Open(".", Locator())
	if err != nil {
		HandleError(err)
	}
	Logger.Debugf("journal root %s", j.Root())

	cfg := LoadConfig(j.Root())
	j.SetProgress(newSpinnerProgress())
	return j, cfg
}

// spinnerProgress shows a spinner on stderr while the key is derived
type spinnerProgress struct {
	s *spinner.Spinner
}

func newSpinnerProgress() core.Progress {
	if !term.IsTerminal(int(os.Stderr.Fd())) || Logger.Verbose || Logger.Debug {
		return logProgress{}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	// Ignore color errors - continue without colored spinner if it fails
	_ = s.Color("cyan")
	return &spinnerProgress{s: s}
}

func (p *spinnerProgress) Start(msg string) {
	p.s.Suffix = " " + msg
	p.s.Start()
}

func (p *spinnerProgress) Stop() {
	p.s.Stop()
}

// logProgress replaces the spinner when output is not a terminal or is verbose
type logProgress struct{}

func (logProgress) Start(msg string) { Logger.Infof("%s", msg) }
func (logProgress) Stop()            {}

// GetUsername returns the username from JARIDA_USER, the config or a prompt
func GetUsername(cfg *config.Config) (string, error) {
	if cfg.User != "" {
		return cfg.User, nil
	}
	return core.ReadUsername(os.Stdin, "Username: ")
}

// GetPassword retrieves password from environment or prompts user
// The caller is responsible for calling crypto.ClearBytes on the returned password
func GetPassword(prompt string) ([]byte, error) {
	// Try environment variable first
	password := core.GetPasswordFromEnv()
	if password != nil {
		return password, nil
	}

	// Prompt user
	password, err := core.ReadPassword(prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}

	return password, nil
}

// GetPasswordForInit retrieves password for init and passwd
// Checks environment variable first, then prompts with confirmation
func GetPasswordForInit() ([]byte, error) {
	// Try environment variable first
	password := core.GetPasswordFromEnv()
	if password != nil {
		return password, nil
	}

	// Fall back to confirmation prompt
	return core.ReadPasswordConfirmRetry()
}

// Unlock opens a session, trying the keyring first, then the environment,
// then up to core.MaxAttempts prompts. It exits on failure.
func Unlock(j *core.Journal, cfg *config.Config) *core.Session {
	username, err := GetUsername(cfg)
	if err != nil {
		HandleError(err)
	}

	journalID, err := j.ID()
	if err != nil {
		HandleError(err)
	}

	// Cached password
	if password, err := keyring.GetPassword(journalID, username); err == nil {
		s, err := j.Unlock(crypto.NewCredentials(username, password))
		if err == nil {
			Logger.Debugf("unlocked with keyring password")
			return s
		}
		if !errors.Is(err, jerrors.ErrDecryptionFailed) {
			HandleError(err)
		}
		Logger.Warnf("password in keyring is stale, removing it")
		_ = keyring.DeletePassword(journalID, username)
	}

	// Non-interactive
	if password := core.GetPasswordFromEnv(); password != nil {
		s, err := j.Unlock(crypto.NewCredentials(username, password))
		if err != nil {
			HandleError(err)
		}
		return s
	}

	for attempt := 1; ; attempt++ {
		password, err := core.ReadPassword("Password: ")
		if err != nil {
			HandleError(err)
		}

		var cached []byte
		if cfg.Keyring {
			cached = append([]byte(nil), password...)
		}

		s, err := j.Unlock(crypto.NewCredentials(username, password))
		if err == nil {
			if cached != nil {
				if err := keyring.SavePassword(journalID, username, cached); err != nil {
					Logger.Warnf("could not save password to keyring: %s", err)
				}
				crypto.ClearBytes(cached)
			}
			return s
		}
		crypto.ClearBytes(cached)

		if !errors.Is(err, jerrors.ErrDecryptionFailed) || attempt >= core.MaxAttempts {
			HandleError(err)
		}
		fmt.Fprintln(os.Stderr, "Invalid credentials. Try again.")
		if cfg.User == "" {
			if username, err = GetUsername(cfg); err != nil {
				HandleError(err)
			}
		}
	}
}

// ResolveOrExit resolves an entry id argument
func ResolveOrExit(j *core.Journal, arg string) entries.ID {
	id, err := j.Resolve(arg)
	if err != nil {
		HandleError(err)
	}
	return id
}

// HandleError reports err and exits. Decryption failures always produce
// the same message whatever their cause.
func HandleError(err error) {
	switch {
	case errors.Is(err, jerrors.ErrDecryptionFailed):
		Logger.Errorf("could not decrypt, check username and password")
	case errors.Is(err, jerrors.ErrNoJournalFound):
		Logger.Errorf("no journal found in this directory, its parents or your home directory")
		fmt.Fprintf(os.Stderr, "Run 'jarida init' first\n")
	case errors.Is(err, jerrors.ErrAlreadyInitialized):
		Logger.Errorf("%s", err)
		fmt.Fprintf(os.Stderr, "Use 'jarida status' to see current state\n")
	case errors.Is(err, jerrors.ErrJournalBusy):
		Logger.Errorf("journal is in use by another jarida process")
	case errors.Is(err, jerrors.ErrAccessDenied):
		Logger.Errorf("permission denied: %s", err)
	case errors.Is(err, jerrors.ErrEmptyEntry):
		Logger.Errorf("entry was empty, nothing saved")
	default:
		Logger.Errorf("%s", err)
	}
	os.Exit(1)
}

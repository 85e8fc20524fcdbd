package cmd

import (
	"fmt"
	"os"

	"github.com/illarion/jarida/internal/config"
	"github.com/illarion/jarida/internal/core"
	"github.com/illarion/jarida/internal/crypto"
)

// Init creates a new journal in dir, the current directory, or the home
// journal directory
func Init(dir string, home bool) {
	if home {
		var err error
		if dir, err = homeJournalDir(); err != nil {
			HandleError(err)
		}
	}
	if dir == "" {
		dir = "."
	}

	userPath, _ := config.UserPath()
	cfg, err := config.LoadFirst(userPath)
	if err != nil {
		HandleError(err)
	}
	cfg.ApplyEnv()

	username, err := GetUsername(cfg)
	if err != nil {
		HandleError(err)
	}

	// Read password (env var or prompt with confirmation)
	password, err := GetPasswordForInit()
	if err != nil {
		HandleError(err)
	}

	j, err := initJournal(dir, crypto.NewCredentials(username, password), newSpinnerProgress())
	if err != nil {
		HandleError(err)
	}

	if wrote, err := config.WriteTemplate(j.Root().ConfigPath()); err != nil {
		Logger.Warnf("could not write %s: %s", j.Root().ConfigPath(), err)
	} else if wrote {
		Logger.Infof("wrote %s", j.Root().ConfigPath())
	}

	fmt.Printf("✓ Initialized journal in %s\n", j.Root())
	fmt.Fprintln(os.Stderr, "Remember your username and password: there is no way to recover them.")
}

func initJournal(dir string, creds *crypto.Credentials, progress core.Progress) (*core.Journal, error) {
	progress.Start("deriving key")
	defer progress.Stop()
	return core.Init(dir, creds, crypto.DefaultKDFParams)
}

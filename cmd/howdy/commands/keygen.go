package commands

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/howdynet/howdy/src/config"
	"github.com/howdynet/howdy/src/keys"
)

var (
	privKeyFile           string
	defaultPrivateKeyFile = filepath.Join(config.DefaultDataDir(), config.DefaultKeyfile)
)

// NewKeygenCmd produces a KeygenCmd which creates a new node identity key
func NewKeygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Create new key pair",
		RunE:  keygen,
	}

	AddKeygenFlags(cmd)

	return cmd
}

//AddKeygenFlags adds flags to the keygen command
func AddKeygenFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&privKeyFile, "priv", defaultPrivateKeyFile, "File where the private key will be written")
}

func keygen(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(privKeyFile); err == nil {
		return fmt.Errorf("A key already lives under: %s", path.Dir(privKeyFile))
	}

	dump, err := keys.GeneratePemKey()
	if err != nil {
		return fmt.Errorf("Error generating key: %v", err)
	}

	if err := os.MkdirAll(path.Dir(privKeyFile), 0700); err != nil {
		return fmt.Errorf("Writing private key: %v", err)
	}

	if err := os.WriteFile(privKeyFile, []byte(dump.PrivateKey), 0600); err != nil {
		return fmt.Errorf("Writing private key: %v", err)
	}

	fmt.Printf("Your private key has been saved to: %s\n", privKeyFile)
	fmt.Printf("Your peer ID is: %s\n", dump.PeerID)

	return nil
}

package main

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/sagarc03/bucketry/config"
	"github.com/sagarc03/bucketry/keybackend"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage access keys",
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate an access key pair",
	Long: `Generate a random access key and secret key.

With --file (or auth.keys.file in the configuration) the pair is appended
to that JSON keys file after confirmation. The secret is printed once and
cannot be recovered later.

Examples:
  # Print a new pair
  bucketry keys generate

  # Append a new pair to the configured keys file without asking
  bucketry keys generate --save --yes`,
	Args: cobra.NoArgs,
	RunE: runKeysGenerate,
}

var (
	keysFile string
	keysSave bool
	keysYes  bool
)

func init() {
	keysGenerateCmd.Flags().StringVar(&keysFile, "file", "", "keys file to append to (default: auth.keys.file)")
	keysGenerateCmd.Flags().BoolVar(&keysSave, "save", false, "append the pair to the keys file")
	keysGenerateCmd.Flags().BoolVarP(&keysYes, "yes", "y", false, "do not ask for confirmation")
	keysCmd.AddCommand(keysGenerateCmd)
	rootCmd.AddCommand(keysCmd)
}

func runKeysGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	pair, err := keybackend.GenerateKeyPair()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Access Key: %s\n", pair.AccessKey)
	_, _ = fmt.Fprintf(out, "Secret Key: %s\n", pair.SecretKey)

	path := keysFile
	if path == "" {
		path = cfg.Auth.Keys.File
	}
	if !keysSave && keysFile == "" {
		return nil
	}
	if path == "" {
		return errors.New("no keys file: pass --file or set auth.keys.file")
	}

	if !keysYes {
		prompt := promptui.Prompt{
			Label:     fmt.Sprintf("Append key to %s", path),
			IsConfirm: true,
		}
		if _, promptErr := prompt.Run(); promptErr != nil {
			_, _ = fmt.Fprintln(out, "Not saved.")
			return nil
		}
	}

	if err := keybackend.AppendKeyToFile(path, pair); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "Saved to %s\n", path)
	return nil
}

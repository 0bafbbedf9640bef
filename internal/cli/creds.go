package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/autoreply/internal/credential"
)

// promptSecret asks for a credential value; replaced in tests.
var promptSecret = func(key string) (string, error) {
	var value string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(key).
				Description("Stored in the system keyring").
				EchoMode(huh.EchoModePassword).
				Value(&value).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("value is required")
					}
					return nil
				}),
		),
	).Run()
	return value, err
}

// Keyring writes; replaced in tests.
var (
	setCredential    = credential.Set
	deleteCredential = credential.Delete
)

func credsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "creds",
		Short: "Manage credentials kept in the system keyring",
		Long: "Credentials are read from the environment first and fall back to the\n" +
			"system keyring. Known keys: " + strings.Join(credential.Known, ", ") + ".",
	}

	set := &cobra.Command{
		Use:   "set <key>",
		Short: "Prompt for a secret and store it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := knownKey(args[0])
			if err != nil {
				return err
			}

			value, err := promptSecret(key)
			if err != nil {
				return err
			}
			if err := setCredential(key, value); err != nil {
				return err
			}

			opts.logger.Debug("credential stored", "key", key)
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s.\n", key)
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <key>",
		Short: "Remove a stored secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := knownKey(args[0])
			if err != nil {
				return err
			}
			if err := deleteCredential(key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s.\n", key)
			return nil
		},
	}

	cmd.AddCommand(set, del)
	return cmd
}

func knownKey(arg string) (string, error) {
	key := strings.ToUpper(strings.TrimSpace(arg))
	if !credential.IsKnown(key) {
		return "", fmt.Errorf("unknown credential %q (known: %s)",
			arg, strings.Join(credential.Known, ", "))
	}
	return key, nil
}

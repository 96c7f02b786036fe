package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Manage vaulted credentials",
}

var vaultGetCmd = &cobra.Command{
	Use:   "get [service] [type]",
	Short: "Decrypt and print a stored credential",
	Args:  cobra.ExactArgs(2),
	RunE:  runVaultGet,
}

var vaultPutCmd = &cobra.Command{
	Use:   "put [service] [type] [secret]",
	Short: "Encrypt and store a credential",
	Args:  cobra.ExactArgs(3),
	RunE:  runVaultPut,
}

var vaultListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored credentials (service and type only, never secrets)",
	Args:  cobra.NoArgs,
	RunE:  runVaultList,
}

func init() {
	vaultCmd.AddCommand(vaultGetCmd, vaultPutCmd, vaultListCmd)
}

func runVaultGet(cmd *cobra.Command, args []string) error {
	eng, err := bootEngine()
	if err != nil {
		return err
	}
	defer eng.Close()
	if eng.Vault == nil {
		return fmt.Errorf("vault not configured (set %s)", eng.Config.Credentials.PassphraseEnv)
	}

	cred, err := eng.Vault.Get(args[0], args[1])
	if err != nil {
		return fmt.Errorf("vault get: %w", err)
	}
	fmt.Println(cred.Secret)
	return nil
}

func runVaultPut(cmd *cobra.Command, args []string) error {
	eng, err := bootEngine()
	if err != nil {
		return err
	}
	defer eng.Close()
	if eng.Vault == nil {
		return fmt.Errorf("vault not configured (set %s)", eng.Config.Credentials.PassphraseEnv)
	}

	if err := eng.Vault.Store(args[0], args[1], args[2]); err != nil {
		return fmt.Errorf("vault put: %w", err)
	}
	fmt.Printf("stored credential for %s/%s\n", args[0], args[1])
	return nil
}

func runVaultList(cmd *cobra.Command, args []string) error {
	eng, err := bootEngine()
	if err != nil {
		return err
	}
	defer eng.Close()
	if eng.Vault == nil {
		return fmt.Errorf("vault not configured (set %s)", eng.Config.Credentials.PassphraseEnv)
	}

	creds, err := eng.Vault.List()
	if err != nil {
		return fmt.Errorf("vault list: %w", err)
	}
	for _, c := range creds {
		fmt.Printf("%s\t%s\t%s\n", c.Service, c.Type, c.CreatedAt.Format("2006-01-02"))
	}
	return nil
}

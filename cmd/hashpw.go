/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/debugmarathon/apiserver/internal/auth"
)

var hashScheme string

// hashpwCmd prints a password hash suitable for users.password_hash.
var hashpwCmd = &cobra.Command{
	Use:   "hashpw [password]",
	Short: "Hash a password for seeding staff accounts",
	Long: `Hash a password for seeding staff accounts. The password is read from
the first argument, or from stdin when no argument is given.

	marathon hashpw --scheme pbkdf2 s3cret-pass
`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scheme, err := auth.ParseScheme(hashScheme)
		if err != nil {
			return err
		}

		var password string
		if len(args) == 1 {
			password = args[0]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return errors.New("no password given")
			}
			password = strings.TrimRight(line, "\r\n")
		}

		hashed, err := auth.NewPasswordVerifier().Hash(password, scheme)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), hashed)
		return err
	},
}

func init() {
	rootCmd.AddCommand(hashpwCmd)
	hashpwCmd.Flags().StringVar(&hashScheme, "scheme", string(auth.SchemePBKDF2), "hash scheme: pbkdf2, scrypt or sha256")
}

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bazaarops/tabauth/jwt"
	"github.com/spf13/cobra"
)

var (
	mintUserID string
	mintRoleID string
	mintTTL    time.Duration
	mintKey    string
)

var mintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Mint an HS256 development token carrying uid, rid, and exp",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, _, err := loadRuntime(); err != nil {
			return err
		}
		key := mintKey
		if key == "" {
			key = os.Getenv("TABAUTH_SIGNING_KEY")
		}
		return runMint(mintUserID, mintRoleID, mintTTL, key, os.Stdout)
	},
}

func init() {
	mintCmd.Flags().StringVar(&mintUserID, "uid", "", "user id claim")
	mintCmd.Flags().StringVar(&mintRoleID, "rid", "", "role id claim")
	mintCmd.Flags().DurationVar(&mintTTL, "ttl", time.Hour, "token lifetime")
	mintCmd.Flags().StringVar(&mintKey, "key", "", "HS256 signing key (overrides TABAUTH_SIGNING_KEY)")
	rootCmd.AddCommand(mintCmd)
}

func runMint(uid, rid string, ttl time.Duration, key string, w io.Writer) error {
	if uid == "" || rid == "" {
		return errors.New("--uid and --rid are required")
	}
	if key == "" {
		return errors.New("signing key required: pass --key or set TABAUTH_SIGNING_KEY")
	}

	signer, err := jwt.NewSigner(jwt.SignerConfig{
		TTL:           ttl,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte(key),
		Issuer:        "tabauth-cli",
	})
	if err != nil {
		return err
	}
	token, err := signer.Sign(uid, rid)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, token)
	return nil
}

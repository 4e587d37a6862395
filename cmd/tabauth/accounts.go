package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/bazaarops/tabauth/session"
	"github.com/bazaarops/tabauth/storage"
	"github.com/spf13/cobra"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List the active accounts registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}
		tier, closeTier, err := openDurable(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeTier()

		reg := session.NewRegistry(tier, session.WithCorruptionHook(func(err error) {
			logger.Warn("registry unreadable, showing it as empty", "error", err)
		}))
		return runAccounts(ctx, reg, cfg.Session.StaleAfter, time.Now(), os.Stdout)
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Purge stale entries from the active accounts registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		cfg, _, err := loadRuntime()
		if err != nil {
			return err
		}
		tier, closeTier, err := openDurable(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeTier()

		return runSweep(ctx, tier, cfg.Session.StaleAfter, time.Now(), os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(accountsCmd)
	rootCmd.AddCommand(sweepCmd)
}

type accountRow struct {
	TabID      string    `json:"tabId"`
	UserID     string    `json:"userId"`
	RoleID     string    `json:"roleId"`
	LastActive time.Time `json:"lastActive"`
	Stale      bool      `json:"stale"`
}

func runAccounts(ctx context.Context, reg *session.Registry, staleAfter time.Duration, now time.Time, w io.Writer) error {
	accounts, err := reg.Load(ctx)
	if err != nil {
		return err
	}

	rows := make([]accountRow, 0, len(accounts))
	for tabID, acct := range accounts {
		rows = append(rows, accountRow{
			TabID:      tabID,
			UserID:     acct.UserID,
			RoleID:     acct.RoleID,
			LastActive: time.UnixMilli(acct.LastActive).UTC(),
			Stale:      acct.Stale(now, staleAfter),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].TabID < rows[j].TabID })

	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Fprintln(w, "No active accounts.")
		return nil
	}
	for _, r := range rows {
		marker := ""
		if r.Stale {
			marker = " (stale)"
		}
		fmt.Fprintf(w, "%s  user=%s role=%s last_active=%s%s\n",
			r.TabID, r.UserID, r.RoleID, r.LastActive.Format(time.RFC3339), marker)
	}
	return nil
}

func runSweep(ctx context.Context, tier storage.Tier, staleAfter time.Duration, now time.Time, w io.Writer) error {
	removed, err := session.NewRegistry(tier).Sweep(ctx, now, staleAfter)
	if err != nil {
		return err
	}

	if jsonOutput {
		if removed == nil {
			removed = []string{}
		}
		return json.NewEncoder(w).Encode(map[string]any{"removed": removed})
	}

	fmt.Fprintf(w, "Removed %d stale entries.\n", len(removed))
	for _, id := range removed {
		fmt.Fprintf(w, "  %s\n", id)
	}
	return nil
}

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bazaarops/tabauth"
	"github.com/bazaarops/tabauth/broadcast"
	"github.com/bazaarops/tabauth/storage"
	"github.com/spf13/cobra"
)

var followEvents bool

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Open an interactive tab",
	Long: `shell opens one tab against the configured durable tier and reads commands from stdin.

Commands:
  login <token> [remember]   log in, optionally persisting the session durably
  switch <token>             replace this tab's account
  switch-to <userId>         adopt an account another tab published
  logout                     log out this tab
  check                      restore the session from storage
  state                      print the current identity
  accounts                   list accounts published by open tabs
  tab                        print this tab's id
  sweep                      purge stale registry entries
  quit                       close the tab`,
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

		builder := tabauth.New().
			WithConfig(cfg).
			WithDurable(tier).
			WithLogger(logger)

		if r, ok := tier.(*storage.Redis); ok && cfg.Audit.Enabled {
			pub, err := broadcast.NewPublisher(r.Client(), cfg.Audit.BroadcastChannel, broadcast.WithLogger(logger))
			if err != nil {
				return err
			}
			builder.WithAuditSink(pub)
		}

		store, err := builder.Build(ctx)
		if err != nil {
			return err
		}
		defer store.Close(context.Background())

		if r, ok := tier.(*storage.Redis); ok && followEvents {
			go followOtherTabs(ctx, r, cfg.Audit.BroadcastChannel, store.TabID(ctx), logger, os.Stdout)
		}

		return runShell(ctx, store, os.Stdin, os.Stdout)
	},
}

func init() {
	shellCmd.Flags().BoolVar(&followEvents, "follow", false, "print session events published by other tabs (redis tier only)")
	rootCmd.AddCommand(shellCmd)
}

func runShell(ctx context.Context, store *tabauth.Store, in io.Reader, w io.Writer) error {
	sh := &shell{store: store, out: w}

	// A fresh tab restores whatever session it can find.
	sh.printState(store.CheckAuth(ctx))

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(w, "tabauth> ")
		if !scanner.Scan() {
			fmt.Fprintln(w)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		if quit := sh.exec(ctx, scanner.Text()); quit {
			return nil
		}
	}
}

type shell struct {
	store *tabauth.Store
	out   io.Writer
}

func (sh *shell) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch cmd, args := fields[0], fields[1:]; cmd {
	case "login":
		if len(args) == 0 {
			fmt.Fprintln(sh.out, "usage: login <token> [remember]")
			return false
		}
		remember := len(args) > 1 && (args[1] == "remember" || args[1] == "true")
		sh.printState(sh.store.Login(ctx, args[0], remember))
	case "switch":
		if len(args) != 1 {
			fmt.Fprintln(sh.out, "usage: switch <token>")
			return false
		}
		sh.printState(sh.store.SwitchAccount(ctx, args[0]))
	case "switch-to":
		if len(args) != 1 {
			fmt.Fprintln(sh.out, "usage: switch-to <userId>")
			return false
		}
		if !sh.store.SwitchToAccount(ctx, args[0]) {
			fmt.Fprintf(sh.out, "no other tab is logged in as %s\n", args[0])
		}
		sh.printState(sh.store.State())
	case "logout":
		sh.store.Logout(ctx)
		sh.printState(sh.store.State())
	case "check":
		sh.printState(sh.store.CheckAuth(ctx))
	case "state":
		sh.printState(sh.store.State())
	case "accounts":
		sh.printAccounts(sh.store.ActiveAccountsList(ctx))
	case "tab":
		fmt.Fprintln(sh.out, sh.store.TabID(ctx))
	case "sweep":
		fmt.Fprintf(sh.out, "removed %d stale entries\n", sh.store.Sweep(ctx))
	case "quit", "exit":
		return true
	case "help":
		fmt.Fprintln(sh.out, "commands: login switch switch-to logout check state accounts tab sweep quit")
	default:
		fmt.Fprintf(sh.out, "unknown command %q\n", cmd)
	}
	return false
}

func (sh *shell) printState(st tabauth.State) {
	if jsonOutput {
		_ = json.NewEncoder(sh.out).Encode(st)
		return
	}
	if !st.IsAuthenticated {
		fmt.Fprintln(sh.out, "not logged in")
		return
	}
	fmt.Fprintf(sh.out, "logged in as %s (role %s, expires %s)\n",
		st.UserID, st.RoleID, time.Unix(st.Exp, 0).UTC().Format(time.RFC3339))
}

func (sh *shell) printAccounts(list []tabauth.ActiveAccount) {
	if jsonOutput {
		type row struct {
			TabID      string    `json:"tabId"`
			UserID     string    `json:"userId"`
			RoleID     string    `json:"roleId"`
			LastActive time.Time `json:"lastActive"`
			Current    bool      `json:"current"`
		}
		rows := make([]row, len(list))
		for i, a := range list {
			rows[i] = row{a.TabID, a.UserID, a.RoleID, a.LastActive.UTC(), a.Current}
		}
		_ = json.NewEncoder(sh.out).Encode(rows)
		return
	}
	if len(list) == 0 {
		fmt.Fprintln(sh.out, "no active accounts")
		return
	}
	for _, a := range list {
		marker := " "
		if a.Current {
			marker = "*"
		}
		fmt.Fprintf(sh.out, "%s %s  %s (%s)\n", marker, a.TabID, a.UserID, a.RoleID)
	}
}

func followOtherTabs(ctx context.Context, r *storage.Redis, channel, ownTab string, logger *slog.Logger, w io.Writer) {
	sub, err := broadcast.Subscribe(ctx, r.Client(), channel)
	if err != nil {
		logger.Warn("cannot follow other tabs", "error", err)
		return
	}
	defer sub.Close()

	for ev := range sub.Events() {
		if ev.TabID == ownTab {
			continue
		}
		fmt.Fprintf(w, "\n[%s] %s user=%s\n", ev.TabID, ev.EventType, ev.UserID)
	}
}

package main

import (
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/molt/scummgr/internal/auth"
	"github.com/molt/scummgr/internal/config"
	"github.com/molt/scummgr/internal/storage"
)

// cmdUser manages web accounts directly against the database, so the first
// admin account can be created before the daemon has ever run.
func cmdUser(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: scummgr user <add|list|del|passwd>")
	}
	action := args[0]

	flags := flag.NewFlagSet("user "+action, flag.ExitOnError)
	configPath := flags.String("config", "/etc/scummgr/config.yaml", "path to config file")
	isAdmin := flags.Bool("admin", false, "grant admin access (add only)")
	flags.Parse(args[1:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	store, err := storage.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	switch action {
	case "add":
		if flags.NArg() != 1 {
			return fmt.Errorf("usage: scummgr user add <username> [--admin]")
		}
		username := flags.Arg(0)

		password, err := promptPassword("Password: ")
		if err != nil {
			return err
		}
		confirm, err := promptPassword("Confirm: ")
		if err != nil {
			return err
		}
		if password != confirm {
			return fmt.Errorf("passwords do not match")
		}
		if len(password) < 8 {
			return fmt.Errorf("password must be at least 8 characters")
		}

		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}
		if _, err := store.CreateUser(username, hash, *isAdmin); err != nil {
			return err
		}
		fmt.Printf("created user %s (admin=%v)\n", username, *isAdmin)
		return nil

	case "list":
		users, err := store.ListUsers()
		if err != nil {
			return err
		}
		w := newTabWriter()
		fmt.Fprintln(w, "USERNAME\tADMIN\tCREATED\tLAST LOGIN")
		for _, u := range users {
			lastLogin := "never"
			if u.LastLogin != nil {
				lastLogin = u.LastLogin.Local().Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%v\t%s\t%s\n",
				u.Username, u.IsAdmin,
				u.CreatedAt.Local().Format("2006-01-02"), lastLogin)
		}
		return w.Flush()

	case "del":
		if flags.NArg() != 1 {
			return fmt.Errorf("usage: scummgr user del <username>")
		}
		if err := store.DeleteUser(flags.Arg(0)); err != nil {
			return err
		}
		fmt.Printf("deleted user %s\n", flags.Arg(0))
		return nil

	case "passwd":
		if flags.NArg() != 1 {
			return fmt.Errorf("usage: scummgr user passwd <username>")
		}
		username := flags.Arg(0)

		password, err := promptPassword("New password: ")
		if err != nil {
			return err
		}
		if len(password) < 8 {
			return fmt.Errorf("password must be at least 8 characters")
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}
		if err := store.UpdateUserPassword(username, hash); err != nil {
			return err
		}
		fmt.Printf("password updated for %s\n", username)
		return nil

	default:
		return fmt.Errorf("unknown user action: %s", action)
	}
}

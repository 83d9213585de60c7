// scummgr is a SCUM dedicated-server manager: it tails server logs to
// track player presence, records sessions in SQLite, drives the server's
// RCON port, and serves a web API for dashboards and admin tooling.
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/molt/scummgr/internal/api"
	"github.com/molt/scummgr/internal/auth"
	"github.com/molt/scummgr/internal/collector"
	"github.com/molt/scummgr/internal/config"
	"github.com/molt/scummgr/internal/storage"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = cmdServe(os.Args[2:])
	case "status":
		err = cmdStatus(os.Args[2:])
	case "players":
		err = cmdPlayers(os.Args[2:])
	case "sessions":
		err = cmdSessions(os.Args[2:])
	case "bans":
		err = cmdBans(os.Args[2:])
	case "admins":
		err = cmdAdmins(os.Args[2:])
	case "actions":
		err = cmdActions(os.Args[2:])
	case "kick":
		err = cmdKick(os.Args[2:])
	case "rcon":
		err = cmdRcon(os.Args[2:])
	case "server":
		err = cmdServer(os.Args[2:])
	case "user":
		err = cmdUser(os.Args[2:])
	case "login":
		err = cmdLogin(os.Args[2:])
	case "version":
		fmt.Printf("scummgr %s\n", version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Print(`scummgr - SCUM dedicated server manager

Usage:
  scummgr serve [--config path]            run the manager daemon
  scummgr login [--addr url] [--user name] obtain an API token
  scummgr status                           show managed servers
  scummgr players [--online] [--search q]  list known players
  scummgr sessions <steam-id>              show a player's sessions
  scummgr bans [--add id] [--del id]       list or edit bans
  scummgr admins [--add id] [--del id]     list or edit game admins
  scummgr actions [--player id]            show the admin audit log
  scummgr kick <steam-id> [--reason text]  kick a player
  scummgr rcon <command...>                run a raw RCON command
  scummgr server <start|stop|restart|update> manage the server process
  scummgr user <add|list|del|passwd>       manage web accounts (direct DB)
  scummgr version                          print the version

Client commands read the API address from --addr or SCUMMGR_ADDR and the
token from --token or SCUMMGR_TOKEN.
`)
}

func cmdServe(args []string) error {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := flags.String("config", "/etc/scummgr/config.yaml", "path to config file")
	flags.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if len(cfg.GameServers) == 0 {
		return fmt.Errorf("no game servers configured in %s", *configPath)
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must be set in %s", *configPath)
	}

	store, err := storage.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	if n, err := store.CountUsers(); err == nil && n == 0 {
		log.Printf("no web accounts exist, create one with: scummgr user add <name> --admin")
	}

	authSvc := auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.TokenDuration)
	manager := collector.NewServerManager(cfg, store)
	apiSrv := api.NewServer(store, manager, authSvc, cfg.Server.StaticDir)

	go apiSrv.Hub().Run()
	go apiSrv.Hub().BroadcastEvents(manager.Events())

	if err := manager.Start(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.ListenAddr, cfg.Server.HTTPPort)
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      apiSrv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // WebSocket connections stay open
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("scummgr %s listening on %s", version, addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("received %s, shutting down", sig)
	case err := <-errCh:
		manager.Stop()
		return err
	}

	httpSrv.Close()
	manager.Stop()
	apiSrv.Hub().Stop()
	log.Printf("shutdown complete")
	return nil
}

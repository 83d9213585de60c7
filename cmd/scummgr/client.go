package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/molt/scummgr/internal/domain"
)

// apiClient talks to a running scummgr daemon
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// clientFlags adds the flags every client command shares and returns
// builders for them.
func clientFlags(flags *flag.FlagSet) (addr, token *string) {
	addr = flags.String("addr", envOr("SCUMMGR_ADDR", "http://127.0.0.1:8080"), "manager API address")
	token = flags.String("token", os.Getenv("SCUMMGR_TOKEN"), "API token")
	return addr, token
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newClient(addr, token string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(addr, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *apiClient) do(method, path string, body, target interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contacting %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("request failed: %s", resp.Status)
	}

	if target == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

func (c *apiClient) getJSON(path string, target interface{}) error {
	return c.do(http.MethodGet, path, nil, target)
}

func (c *apiClient) postJSON(path string, body, target interface{}) error {
	return c.do(http.MethodPost, path, body, target)
}

func newTabWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(password), nil
}

func cmdLogin(args []string) error {
	flags := flag.NewFlagSet("login", flag.ExitOnError)
	addr, _ := clientFlags(flags)
	username := flags.String("user", "", "username")
	flags.Parse(args)

	if *username == "" {
		return fmt.Errorf("--user is required")
	}
	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}

	client := newClient(*addr, "")
	var out struct {
		Token                  string `json:"token"`
		PasswordChangeRequired bool   `json:"password_change_required"`
	}
	err = client.postJSON("/api/auth/login", map[string]string{
		"username": *username, "password": password,
	}, &out)
	if err != nil {
		return err
	}

	if out.PasswordChangeRequired {
		fmt.Fprintln(os.Stderr, "note: a password change is required for this account")
	}
	fmt.Println(out.Token)
	return nil
}

func cmdStatus(args []string) error {
	flags := flag.NewFlagSet("status", flag.ExitOnError)
	addr, token := clientFlags(flags)
	flags.Parse(args)

	var statuses []domain.ServerStatus
	if err := newClient(*addr, *token).getJSON("/api/servers", &statuses); err != nil {
		return err
	}

	w := newTabWriter()
	fmt.Fprintln(w, "ID\tNAME\tSTATE\tPLAYERS\tPID\tCPU\tRSS")
	for _, st := range statuses {
		state := "offline"
		if st.Online {
			state = "online"
		}
		pid, cpu, rss := "-", "-", "-"
		if st.Process != nil && st.Process.Running {
			pid = fmt.Sprintf("%d", st.Process.PID)
			cpu = fmt.Sprintf("%.1f%%", st.Process.CPUPercent)
			rss = fmt.Sprintf("%dM", st.Process.MemoryRSS/(1024*1024))
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\t%s\n",
			st.ServerID, st.Name, state, st.PlayerCount, pid, cpu, rss)
	}
	return w.Flush()
}

func cmdPlayers(args []string) error {
	flags := flag.NewFlagSet("players", flag.ExitOnError)
	addr, token := clientFlags(flags)
	online := flags.Bool("online", false, "only players currently online")
	search := flags.String("search", "", "search by name or steam id")
	limit := flags.Int("limit", 50, "maximum rows")
	flags.Parse(args)

	path := fmt.Sprintf("/api/players?limit=%d", *limit)
	if *online {
		path = "/api/players/online"
	} else if *search != "" {
		path = fmt.Sprintf("/api/players/search?q=%s&limit=%d", url.QueryEscape(*search), *limit)
	}

	var players []domain.Player
	if err := newClient(*addr, *token).getJSON(path, &players); err != nil {
		return err
	}

	w := newTabWriter()
	fmt.Fprintln(w, "STEAM ID\tNAME\tSTATUS\tPLAYTIME\tLAST SEEN\tFLAGS")
	for _, p := range players {
		var cmdflags []string
		if p.IsAdmin {
			cmdflags = append(cmdflags, "admin")
		}
		if p.IsBanned {
			cmdflags = append(cmdflags, "banned")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			p.SteamID, p.DisplayName, p.Status,
			formatDuration(p.TotalPlaytime),
			p.LastSeen.Local().Format("2006-01-02 15:04"),
			strings.Join(cmdflags, ","))
	}
	return w.Flush()
}

func cmdSessions(args []string) error {
	flags := flag.NewFlagSet("sessions", flag.ExitOnError)
	addr, token := clientFlags(flags)
	limit := flags.Int("limit", 25, "maximum rows")
	flags.Parse(args)

	if flags.NArg() != 1 {
		return fmt.Errorf("usage: scummgr sessions <steam-id>")
	}
	steamID := flags.Arg(0)

	var sessions []domain.PlayerSession
	path := fmt.Sprintf("/api/players/%s/sessions?limit=%d", steamID, *limit)
	if err := newClient(*addr, *token).getJSON(path, &sessions); err != nil {
		return err
	}

	w := newTabWriter()
	fmt.Fprintln(w, "START\tEND\tDURATION\tIP")
	for _, s := range sessions {
		end := "(open)"
		if s.SessionEnd != nil {
			end = s.SessionEnd.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			s.SessionStart.Local().Format("2006-01-02 15:04"),
			end, formatDuration(s.Duration), s.IPAddress)
	}
	return w.Flush()
}

func cmdBans(args []string) error {
	flags := flag.NewFlagSet("bans", flag.ExitOnError)
	addr, token := clientFlags(flags)
	serverID := flags.Int64("server", 1, "server id")
	add := flags.String("add", "", "steam id to ban")
	del := flags.String("del", "", "steam id to unban")
	reason := flags.String("reason", "", "ban reason")
	flags.Parse(args)

	client := newClient(*addr, *token)

	if *add != "" {
		err := client.postJSON(fmt.Sprintf("/api/servers/%d/bans", *serverID),
			map[string]string{"steam_id": *add, "reason": *reason}, nil)
		if err != nil {
			return err
		}
		fmt.Printf("banned %s\n", *add)
		return nil
	}
	if *del != "" {
		err := client.do(http.MethodDelete,
			fmt.Sprintf("/api/servers/%d/bans/%s", *serverID, *del), nil, nil)
		if err != nil {
			return err
		}
		fmt.Printf("unbanned %s\n", *del)
		return nil
	}

	var bans []domain.Ban
	if err := client.getJSON("/api/bans", &bans); err != nil {
		return err
	}
	w := newTabWriter()
	fmt.Fprintln(w, "STEAM ID\tNAME\tREASON\tBANNED")
	for _, b := range bans {
		when := ""
		if b.BanTimestamp != nil {
			when = b.BanTimestamp.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.SteamID, b.DisplayName, b.Reason, when)
	}
	return w.Flush()
}

func cmdAdmins(args []string) error {
	flags := flag.NewFlagSet("admins", flag.ExitOnError)
	addr, token := clientFlags(flags)
	serverID := flags.Int64("server", 1, "server id")
	add := flags.String("add", "", "steam id to grant admin")
	del := flags.String("del", "", "steam id to revoke admin")
	flags.Parse(args)

	client := newClient(*addr, *token)

	if *add != "" {
		err := client.postJSON(fmt.Sprintf("/api/servers/%d/admins", *serverID),
			map[string]string{"steam_id": *add}, nil)
		if err != nil {
			return err
		}
		fmt.Printf("granted admin to %s\n", *add)
		return nil
	}
	if *del != "" {
		err := client.do(http.MethodDelete,
			fmt.Sprintf("/api/servers/%d/admins/%s", *serverID, *del), nil, nil)
		if err != nil {
			return err
		}
		fmt.Printf("revoked admin from %s\n", *del)
		return nil
	}

	var admins []domain.Player
	if err := client.getJSON("/api/admins", &admins); err != nil {
		return err
	}
	w := newTabWriter()
	fmt.Fprintln(w, "STEAM ID\tNAME\tSINCE")
	for _, a := range admins {
		since := ""
		if a.AdminAddedTimestamp != nil {
			since = a.AdminAddedTimestamp.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", a.SteamID, a.DisplayName, since)
	}
	return w.Flush()
}

func cmdActions(args []string) error {
	flags := flag.NewFlagSet("actions", flag.ExitOnError)
	addr, token := clientFlags(flags)
	player := flags.String("player", "", "filter by target steam id")
	limit := flags.Int("limit", 50, "maximum rows")
	flags.Parse(args)

	path := fmt.Sprintf("/api/actions?limit=%d", *limit)
	if *player != "" {
		path += "&steam_id=" + url.QueryEscape(*player)
	}

	var actions []domain.AdminAction
	if err := newClient(*addr, *token).getJSON(path, &actions); err != nil {
		return err
	}

	w := newTabWriter()
	fmt.Fprintln(w, "TIME\tADMIN\tACTION\tTARGET\tREASON\tOK")
	for _, a := range actions {
		ok := "yes"
		if !a.Success {
			ok = "no"
		}
		target := a.TargetSteamID
		if a.TargetName != "" {
			target = fmt.Sprintf("%s (%s)", a.TargetName, a.TargetSteamID)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			a.Timestamp.Local().Format("2006-01-02 15:04"),
			a.AdminSteamID, a.ActionType, target, a.Reason, ok)
	}
	return w.Flush()
}

func cmdKick(args []string) error {
	flags := flag.NewFlagSet("kick", flag.ExitOnError)
	addr, token := clientFlags(flags)
	serverID := flags.Int64("server", 1, "server id")
	reason := flags.String("reason", "", "kick reason shown to the player")
	flags.Parse(args)

	if flags.NArg() != 1 {
		return fmt.Errorf("usage: scummgr kick <steam-id> [--reason text]")
	}

	err := newClient(*addr, *token).postJSON(
		fmt.Sprintf("/api/servers/%d/kick", *serverID),
		map[string]string{"steam_id": flags.Arg(0), "reason": *reason}, nil)
	if err != nil {
		return err
	}
	fmt.Printf("kicked %s\n", flags.Arg(0))
	return nil
}

func cmdRcon(args []string) error {
	flags := flag.NewFlagSet("rcon", flag.ExitOnError)
	addr, token := clientFlags(flags)
	serverID := flags.Int64("server", 1, "server id")
	flags.Parse(args)

	if flags.NArg() == 0 {
		return fmt.Errorf("usage: scummgr rcon <command...>")
	}
	command := strings.Join(flags.Args(), " ")

	var out struct {
		Response string `json:"response"`
	}
	err := newClient(*addr, *token).postJSON(
		fmt.Sprintf("/api/servers/%d/rcon", *serverID),
		map[string]string{"command": command}, &out)
	if err != nil {
		return err
	}
	fmt.Println(out.Response)
	return nil
}

func cmdServer(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: scummgr server <start|stop|restart|update>")
	}
	action := args[0]

	flags := flag.NewFlagSet("server "+action, flag.ExitOnError)
	addr, token := clientFlags(flags)
	serverID := flags.Int64("server", 1, "server id")
	flags.Parse(args[1:])

	client := newClient(*addr, *token)
	switch action {
	case "start", "stop", "restart":
		err := client.postJSON(fmt.Sprintf("/api/servers/%d/%s", *serverID, action), nil, nil)
		if err != nil {
			return err
		}
		fmt.Printf("server %d: %s requested\n", *serverID, action)
		return nil
	case "update":
		var out struct {
			TaskID string `json:"task_id"`
		}
		err := client.postJSON(fmt.Sprintf("/api/servers/%d/update", *serverID), nil, &out)
		if err != nil {
			return err
		}
		fmt.Printf("update started, task %s\n", out.TaskID)
		return nil
	default:
		return fmt.Errorf("unknown server action: %s", action)
	}
}

func formatDuration(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	if d >= time.Hour {
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
	return fmt.Sprintf("%dm", int(d.Minutes()))
}

package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/robfig/cron/v3"
	daemon "github.com/sevlyar/go-daemon"
	"golang.org/x/term"

	"github.com/bvisser/relogin/internal/artifacts"
	"github.com/bvisser/relogin/internal/browser"
	"github.com/bvisser/relogin/internal/classify"
	"github.com/bvisser/relogin/internal/config"
	"github.com/bvisser/relogin/internal/dialect"
	"github.com/bvisser/relogin/internal/httpapi"
	. "github.com/bvisser/relogin/internal/logging"
	"github.com/bvisser/relogin/internal/service"
	"github.com/bvisser/relogin/internal/session"
)

const version = "0.1.0"

type runContext struct {
	cfg    *config.Config
	svc    *service.Service
	tables *dialect.Provider
}

var cli struct {
	Config string `help:"Path to config file." type:"path"`
	Debug  bool   `help:"Enable debug logging."`

	Serve         serveCmd         `cmd:"" help:"Run the HTTP login service."`
	Login         loginCmd         `cmd:"" help:"Log an account in with credentials."`
	Quick         quickCmd         `cmd:"" help:"Re-enter an account using saved artifacts only."`
	Accounts      accountsCmd      `cmd:"" help:"List accounts with saved artifacts."`
	DeleteAccount deleteAccountCmd `cmd:"" name:"delete-account" help:"Delete all saved data for an account."`
	Purge         purgeCmd         `cmd:"" help:"Delete artifact bundles past the retention window."`
	Version       versionCmd       `cmd:"" help:"Print the version."`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("relogin"),
		kong.Description("Browser-automated login session service."),
		kong.UsageOnError(),
	)

	cfg, err := config.Load(cli.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "relogin: %v\n", err)
		os.Exit(1)
	}

	level := cfg.LogLevel()
	if cli.Debug {
		level = LevelDebug
	}
	Init(&Config{
		Level:      level,
		ShowCaller: cfg.Logging.ShowCaller,
	})

	rc, err := buildRunContext(cfg)
	if err != nil {
		L_fatal("startup failed", "error", err)
	}
	defer rc.tables.Close()

	if err := ctx.Run(rc); err != nil {
		L_fatal("command failed", "error", err)
	}
}

// buildRunContext wires the full service stack from configuration.
func buildRunContext(cfg *config.Config) (*runContext, error) {
	tables, err := dialect.NewProvider(cfg.Site.BaseURL, cfg.Site.TablesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load dialect tables: %w", err)
	}

	store := artifacts.NewStore(cfg.ResolveArtifactsDir(), cfg.Retention())
	caches := browser.NewCacheManager(cfg.ResolveCacheDir())
	driver := browser.NewDriver(browser.Options{
		BinDir:       cfg.ResolveBinDir(),
		AutoDownload: cfg.Browser.AutoDownload,
		Headless:     cfg.Browser.Headless,
		NoSandbox:    cfg.Browser.NoSandbox,
		Stealth:      cfg.Browser.Stealth,
		PageTimeout:  cfg.BrowserTimeout(),
	})

	classifier := classify.New(tables, cfg.ProbeTimeout())
	registry := session.NewRegistry()
	machine := session.NewMachine(driver, caches, store, classifier, tables, registry, session.Options{
		ProbeTimeout:        cfg.ProbeTimeout(),
		SubmitWait:          cfg.SubmitWait(),
		SettleDelay:         cfg.SettleDelay(),
		TypeDelay:           cfg.TypeDelay(),
		SecondFactorTimeout: cfg.SecondFactorTimeout(),
	})

	return &runContext{
		cfg:    cfg,
		svc:    service.New(machine, registry, store, caches),
		tables: tables,
	}, nil
}

type serveCmd struct {
	Daemon bool `help:"Detach and run in the background."`
}

func (c *serveCmd) Run(rc *runContext) error {
	if c.Daemon {
		dctx := &daemon.Context{
			PidFileName: filepath.Join(rc.cfg.ResolveDataDir(), "relogin.pid"),
			PidFilePerm: 0644,
			LogFileName: filepath.Join(rc.cfg.ResolveDataDir(), "relogin.log"),
			LogFilePerm: 0640,
			Umask:       027,
		}
		child, err := dctx.Reborn()
		if err != nil {
			return fmt.Errorf("failed to daemonize: %w", err)
		}
		if child != nil {
			fmt.Printf("relogin daemon started, pid %d\n", child.Pid)
			return nil
		}
		defer dctx.Release()
	}

	L_info("relogin starting", "version", version, "listen", rc.cfg.HTTP.Listen)

	// Pick up dialect table edits without a restart.
	if err := rc.tables.Watch(); err != nil {
		L_warn("dialect table watch unavailable", "error", err)
	}

	// Expired bundles are swept on a schedule so the data directory
	// does not accumulate stale cookie files between logins.
	sched := cron.New()
	if _, err := sched.AddFunc("@hourly", func() {
		n, err := rc.svc.PurgeExpiredArtifacts()
		if err != nil {
			L_warn("scheduled artifact purge failed", "error", err)
			return
		}
		if n > 0 {
			L_info("scheduled artifact purge done", "purged", n)
		}
	}); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	srv := httpapi.NewServer(rc.cfg.HTTP.Listen, rc.svc)
	srv.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	L_info("relogin shutting down")
	if err := srv.Stop(); err != nil {
		L_warn("http shutdown failed", "error", err)
	}
	rc.svc.Shutdown()
	return nil
}

type loginCmd struct {
	Identity string `arg:"" help:"Account identity (username, email or phone)."`
	Secret   string `help:"Account secret. Prompted for when omitted."`
	Dialect  string `default:"auto" help:"Page variant: auto, mobile or desktop."`
}

func (c *loginCmd) Run(rc *runContext) error {
	choice, err := dialect.ParseChoice(c.Dialect)
	if err != nil {
		return err
	}

	secret := c.Secret
	if secret == "" {
		secret, err = promptSecret(fmt.Sprintf("Secret for %s: ", c.Identity))
		if err != nil {
			return err
		}
	}

	result := rc.svc.Login(c.Identity, secret, choice)

	if result.Status == service.StatusSecondFactor {
		result = resolveSecondFactor(rc, result)
	}

	switch result.Status {
	case service.StatusSuccess:
		fmt.Printf("login succeeded (%s), session %s\n", result.Dialect, result.SessionID)
		// One-shot invocation: the artifacts are saved, nothing keeps
		// the browser after the process exits.
		rc.svc.CloseSession(result.SessionID)
		return nil
	default:
		return fmt.Errorf("login failed: %s", result.Detail)
	}
}

// resolveSecondFactor prompts for verification codes on the terminal
// until the session completes, fails or the user gives up.
func resolveSecondFactor(rc *runContext, result service.LoginResult) service.LoginResult {
	for {
		fmt.Printf("A verification code is required for session %s.\n", result.SessionID)
		fmt.Print("Code (empty to cancel): ")

		var code string
		fmt.Scanln(&code)
		code = strings.TrimSpace(code)

		if code == "" {
			rc.svc.CancelSecondFactor(result.SessionID)
			return service.LoginResult{Status: service.StatusFailed, Detail: "second factor cancelled"}
		}

		r := rc.svc.SubmitSecondFactor(result.SessionID, code)
		switch r.Status {
		case service.ResumeStatusSuccess:
			result.Status = service.StatusSuccess
			return result
		case service.ResumeStatusStillPending:
			fmt.Println("Code not accepted, try again.")
		default:
			return service.LoginResult{Status: service.StatusFailed, Detail: r.Detail}
		}
	}
}

func promptSecret(prompt string) (string, error) {
	fmt.Print(prompt)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	secret := strings.TrimSpace(string(raw))
	if secret == "" {
		return "", fmt.Errorf("empty secret")
	}
	return secret, nil
}

type quickCmd struct {
	Identity string `arg:"" help:"Account identity with saved artifacts."`
	Dialect  string `default:"auto" help:"Page variant: auto, mobile or desktop."`
}

func (c *quickCmd) Run(rc *runContext) error {
	choice, err := dialect.ParseChoice(c.Dialect)
	if err != nil {
		return err
	}

	result := rc.svc.QuickLogin(c.Identity, choice)
	if result.Status != service.StatusSuccess {
		return fmt.Errorf("quick login failed: %s", result.Detail)
	}

	fmt.Printf("quick login succeeded (%s), session %s\n", result.Dialect, result.SessionID)
	rc.svc.CloseSession(result.SessionID)
	return nil
}

type accountsCmd struct{}

func (c *accountsCmd) Run(rc *runContext) error {
	identities, err := rc.svc.Identities()
	if err != nil {
		return err
	}
	if len(identities) == 0 {
		fmt.Println("no saved accounts")
		return nil
	}
	for _, id := range identities {
		fmt.Println(id)
	}
	return nil
}

type deleteAccountCmd struct {
	Identity string `arg:"" help:"Account identity to wipe."`
}

func (c *deleteAccountCmd) Run(rc *runContext) error {
	removed, err := rc.svc.DeleteAccountData(c.Identity)
	if err != nil {
		return err
	}
	fmt.Printf("removed %d item(s) for %s\n", removed, c.Identity)
	return nil
}

type purgeCmd struct{}

func (c *purgeCmd) Run(rc *runContext) error {
	purged, err := rc.svc.PurgeExpiredArtifacts()
	if err != nil {
		return err
	}
	fmt.Printf("purged %d expired artifact file(s)\n", purged)
	return nil
}

type versionCmd struct{}

func (c *versionCmd) Run(rc *runContext) error {
	fmt.Printf("relogin %s\n", version)
	return nil
}

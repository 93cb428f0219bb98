package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"litequery/internal/config"
	"litequery/internal/platform/logger"
	"litequery/internal/platform/sqlite"
	"litequery/internal/shared"
	"litequery/pkg/retry"
)

// App wires application components for one command invocation.
type App struct {
	cfg   config.Config
	log   *slog.Logger
	db    *sqlite.Database
	out   io.Writer
	retry retry.Config
}

// New creates a new App for the database named by globals or configuration.
func New(cfg config.Config, g Globals, log *slog.Logger, out io.Writer) (*App, error) {
	path := cfg.DB.Path
	if g.DB != "" {
		path = g.DB
	}
	if path == "" {
		return nil, shared.Configf("database path is not set: use --db or DB_PATH")
	}

	db, err := sqlite.NewDatabase(path, cfg.DBOptions(), log)
	if err != nil {
		return nil, err
	}

	rc := retry.DefaultConfig()
	rc.OnRetry = func(attempt int, err error, next time.Duration) {
		log.Warn("database is busy, retrying", "attempt", attempt, "delay", next, "error", err)
	}

	return &App{cfg: cfg, log: log, db: db, out: out, retry: rc}, nil
}

// Run parses args, builds the App and executes the selected command.
// Command output goes to out, logs go to errOut.
func Run(ctx context.Context, cfg config.Config, args []string, out, errOut io.Writer) error {
	var cli CLI
	parser, err := NewParser(&cli, out, errOut)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	logOpts := logger.Options{
		Env:          cfg.Env,
		ConsoleLevel: cfg.Log.ConsoleLevel,
		FileLevel:    cfg.Log.FileLevel,
		File:         cfg.Log.File,
		App:          "litequery",
		Console:      errOut,
	}
	if cli.LogLevel != "" {
		logOpts.ConsoleLevel = cli.LogLevel
	}
	log := logger.New(logOpts)
	defer func() {
		_ = logger.Close(log)
	}()

	a, err := New(cfg, cli.Globals, log, out)
	if err != nil {
		return err
	}

	kctx.BindTo(ctx, (*context.Context)(nil))
	if err := kctx.Run(a); err != nil {
		log.Debug("command failed", "command", kctx.Command(), "kind", shared.KindOf(err).String(), "error", err)
		return err
	}
	return nil
}

// NewParser builds the command-line parser for cli.
func NewParser(cli *CLI, out, errOut io.Writer) (*kong.Kong, error) {
	return kong.New(cli,
		kong.Name("litequery"),
		kong.Description("Query, write and migrate SQLite databases"),
		kong.Writers(out, errOut),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
}

// Globals are flags shared by every command.
type Globals struct {
	DB       string `name:"db" help:"Database file path (overrides DB_PATH)"`
	LogLevel string `name:"log-level" help:"Console log level: debug, info, warn or error"`
}

// CLI defines the command-line interface.
type CLI struct {
	Globals

	Version VersionCmd `cmd:"" help:"Show or set the schema version (PRAGMA user_version)"`
	Query   QueryCmd   `cmd:"" help:"Run a read-only query and print rows"`
	Exec    ExecCmd    `cmd:"" help:"Run statements in one write transaction"`
	Migrate MigrateCmd `cmd:"" help:"Apply migration files with verification and rollback"`
	Check   CheckCmd   `cmd:"" help:"Check database integrity"`
}

// VersionCmd groups schema version operations.
type VersionCmd struct {
	Show VersionShowCmd `cmd:"" default:"1" help:"Print the schema version"`
	Set  VersionSetCmd  `cmd:"" help:"Set the schema version"`
}

// VersionShowCmd prints the schema version.
type VersionShowCmd struct{}

func (c *VersionShowCmd) Run(ctx context.Context, a *App) error {
	version, err := a.db.Version(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, version)
	return err
}

// VersionSetCmd writes the schema version.
type VersionSetCmd struct {
	Version int32 `arg:"" help:"New schema version"`
}

func (c *VersionSetCmd) Run(ctx context.Context, a *App) error {
	return retry.Do(ctx, a.retry, func(ctx context.Context) error {
		return a.db.SetVersion(ctx, c.Version)
	}, sqlite.IsBusy)
}

// QueryCmd runs a query on a read-only handle.
type QueryCmd struct {
	SQL    string   `arg:"" help:"Query to run"`
	Args   []string `name:"arg" short:"a" help:"Positional parameter value, repeatable"`
	Count  string   `help:"Count query; enables paged enumeration"`
	Buffer int      `help:"Rows per page for paged enumeration (default from DB_BUFFER_SIZE)"`
	Header bool     `help:"Print column names before the first row"`
}

func (c *QueryCmd) Run(ctx context.Context, a *App) error {
	args := parseArgs(c.Args)
	bind := func(s *sqlite.Stmt) error { return s.BindAll(args...) }

	onRow := func(s *sqlite.Stmt, row int) error {
		if row == 0 && c.Header {
			if _, err := fmt.Fprintln(a.out, strings.Join(s.Columns(), "\t")); err != nil {
				return err
			}
		}
		values, err := s.Values()
		if err != nil {
			return err
		}
		return writeRow(a.out, values)
	}

	if c.Count == "" {
		return a.db.Query(ctx, c.SQL, bind, onRow, nil)
	}

	buffer := c.Buffer
	if buffer == 0 {
		buffer = a.cfg.DB.BufferSize
	}
	return a.db.Enumerate(ctx, c.SQL, c.Count, buffer, bind, onRow, nil)
}

// ExecCmd runs statements as operations of one transaction.
type ExecCmd struct {
	SQL    []string `arg:"" help:"Statements to run in order"`
	Args   []string `name:"arg" short:"a" help:"Positional parameter value for a single statement, repeatable"`
	Create bool     `help:"Create the database file if it does not exist"`
}

func (c *ExecCmd) Run(ctx context.Context, a *App) error {
	if len(c.Args) > 0 && len(c.SQL) > 1 {
		return shared.Configf("--arg applies to a single statement, got %d statements", len(c.SQL))
	}

	args := parseArgs(c.Args)
	ops := make([]sqlite.Operation, 0, len(c.SQL))
	for _, stmt := range c.SQL {
		ops = append(ops, sqlite.ExecOp(stmt, args...))
	}

	err := retry.Do(ctx, a.retry, func(ctx context.Context) error {
		if c.Create {
			return a.db.CreateTransaction(ctx, ops...)
		}
		return a.db.WriteTransaction(ctx, ops...)
	}, sqlite.IsBusy)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(a.out, "ok: %d statement(s)\n", len(ops))
	return err
}

// MigrateCmd applies golang-migrate files through the migration workflow.
type MigrateCmd struct {
	Source string `required:"" help:"Migration source URL, e.g. file://migrations"`
	Target int    `default:"-1" help:"Target version, 0 reverts everything, -1 means latest"`
}

func (c *MigrateCmd) Run(ctx context.Context, a *App) error {
	if c.Target < -1 {
		return shared.Configf("target version must be -1 or greater, got %d", c.Target)
	}

	target := uint(c.Target)
	if c.Target == -1 {
		latest, err := sqlite.LatestMigrationVersion(c.Source)
		if err != nil {
			return err
		}
		target = latest
	}

	m := sqlite.FileMigration(a.db.Path(), c.Source, target)
	outcome, err := a.db.Migrate(ctx, m)
	if err != nil {
		return err
	}
	a.log.Info("migration finished", "source", c.Source, "target", target, "outcome", outcome.String())

	_, err = fmt.Fprintf(a.out, "migration to %d %s\n", target, outcome)
	return err
}

// CheckCmd runs an integrity check on a read-only handle.
type CheckCmd struct {
	Full      bool `help:"Run integrity_check instead of quick_check"`
	MaxErrors int  `name:"max-errors" help:"Stop after this many problems (0 uses the engine default)"`
}

func (c *CheckCmd) Run(ctx context.Context, a *App) error {
	report, err := a.db.HealthCheck(ctx, sqlite.HealthCheckOptions{Full: c.Full, MaxErrors: c.MaxErrors})
	for _, problem := range report.Problems {
		if _, werr := fmt.Fprintln(a.out, problem); werr != nil {
			return werr
		}
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(a.out, "ok (version %d)\n", report.Version)
	return err
}

// parseArgs converts command-line parameter values: integers and floats are
// bound as numbers, NULL as SQL NULL, everything else as text.
func parseArgs(raw []string) []any {
	args := make([]any, len(raw))
	for i, s := range raw {
		if s == "NULL" {
			args[i] = nil
		} else if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			args[i] = n
		} else if f, err := strconv.ParseFloat(s, 64); err == nil {
			args[i] = f
		} else {
			args[i] = s
		}
	}
	return args
}

func writeRow(w io.Writer, values []any) error {
	fields := make([]string, len(values))
	for i, v := range values {
		switch v := v.(type) {
		case nil:
			fields[i] = "NULL"
		case []byte:
			fields[i] = string(v)
		case time.Time:
			fields[i] = v.Format(time.RFC3339)
		default:
			fields[i] = fmt.Sprint(v)
		}
	}
	_, err := fmt.Fprintln(w, strings.Join(fields, "\t"))
	return err
}

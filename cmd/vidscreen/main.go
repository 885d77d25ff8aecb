package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/vidscreen/internal/app"
	"github.com/joseph-ayodele/vidscreen/internal/common"
)

const usage = `usage: vidscreen [-inmem] [-db file.sqlite] <command> [flags]

commands:
  add            register a video file (or a directory of them) as uploaded
  process        run the pipeline for one video
  process-all    process every uploaded or failed video
  reanalyze      re-run finished videos that are missing category scores
  clean-orphans  delete videos whose source file is gone
  check          print every video and its state
  export         write an XLSX moderation report
`

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

type command func(ctx context.Context, c *cli, args []string) error

var commands = map[string]command{
	"add":           runAdd,
	"process":       runProcess,
	"process-all":   runProcessAll,
	"reanalyze":     runReanalyze,
	"clean-orphans": runCleanOrphans,
	"check":         runCheck,
	"export":        runExport,
}

// cli is the state every subcommand shares.
type cli struct {
	app    *app.App
	out    io.Writer
	logger *slog.Logger
}

func main() {
	_ = godotenv.Load()

	var (
		inmem  = flag.Bool("inmem", false, "use in-memory SQLite database")
		dbFile = flag.String("db", "", "SQLite file to use when DB_URL is unset")
	)
	flag.Usage = func() { printError("%s", usage) }
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}
	run, ok := commands[flag.Arg(0)]
	if !ok {
		printError("Error: unknown command %q\n\n%s", flag.Arg(0), usage)
		os.Exit(2)
	}

	cfg := common.LoadConfig()
	if os.Getenv("LOG_FORMAT") == "" {
		cfg.Telemetry.LogFormat = "text"
	}
	logger := common.NewLogger(os.Stderr, cfg.Telemetry)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = common.WithRequestID(ctx, uuid.NewString())

	a, err := app.New(ctx, cfg, app.Options{InMemory: *inmem, SQLitePath: *dbFile}, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	c := &cli{app: a, out: os.Stdout, logger: logger}
	if err := run(ctx, c, flag.Args()[1:]); err != nil {
		logger.Error("command failed", "command", flag.Arg(0), "error", err)
		a.Close()
		os.Exit(1)
	}
}

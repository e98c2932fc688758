package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/creatorsmantra/creatorsmantra-be/internal/api/dto"
	"github.com/creatorsmantra/creatorsmantra-be/internal/client"
	"github.com/creatorsmantra/creatorsmantra-be/internal/config"
	"github.com/creatorsmantra/creatorsmantra-be/internal/poller"
	"github.com/creatorsmantra/creatorsmantra-be/internal/scriptgen"
	"github.com/creatorsmantra/creatorsmantra-be/shared/logger"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const usage = `usage: scriptgen [-config path] <command> [flags]

commands:
  submit   queue a script generation job (-wait to poll it)
  poll     wait for an existing job to finish
  cancel   cancel a job that has not finished
`

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		log.Fatal(err)
	}
}

// app carries what every subcommand needs
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	client *client.Client
	stdout io.Writer
	stderr io.Writer
}

func run(args []string, stdout, stderr io.Writer) error {
	// Load .env file if it exists
	_ = godotenv.Load()

	defaultConfigPath := os.Getenv("SCRIPTGEN_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/scriptgen/config.yaml"
	}

	global := flag.NewFlagSet("scriptgen", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := global.String("config", defaultConfigPath, "Path to configuration file")
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		global.Usage()
		return errors.New("missing command")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ValidateCLIConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logCfg := cfg.Logging.LoggerConfig()
	if logCfg.Output == "" || logCfg.Output == "stdout" {
		// stdout carries the result JSON
		logCfg.Output = "stderr"
	}
	appLogger, err := logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	apiClient, err := client.New(cfg.Client.BaseURL, cfg.Client.Timeout)
	if err != nil {
		return err
	}

	a := &app{
		cfg:    cfg,
		logger: appLogger.Logger,
		client: apiClient,
		stdout: stdout,
		stderr: stderr,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, cmdArgs := global.Arg(0), global.Args()[1:]
	switch cmd {
	case "submit":
		return a.submit(ctx, cmdArgs)
	case "poll":
		return a.poll(ctx, cmdArgs)
	case "cancel":
		return a.cancel(ctx, cmdArgs)
	default:
		global.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) submit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	topic := fs.String("topic", "", "Script topic (required)")
	platform := fs.String("platform", scriptgen.PlatformYouTube, "youtube, instagram, tiktok or linkedin")
	creator := fs.String("creator", os.Getenv("USER"), "Creator id")
	title := fs.String("title", "", "Job title, defaults to the topic")
	tone := fs.String("tone", "", "Tone of voice")
	audience := fs.String("audience", "", "Target audience")
	duration := fs.Int("duration", 0, "Target duration in seconds")
	keywords := fs.String("keywords", "", "Comma separated keywords")
	key := fs.String("key", "", "Idempotency key, random when empty")
	wait := fs.Bool("wait", false, "Poll until the job finishes")
	if err := fs.Parse(args); err != nil {
		return err
	}

	brief := scriptgen.Brief{
		Topic:           *topic,
		Platform:        *platform,
		Tone:            *tone,
		Audience:        *audience,
		DurationSeconds: *duration,
		Keywords:        splitList(*keywords),
	}
	brief.Normalize()
	if err := brief.Validate(); err != nil {
		return err
	}

	if *key == "" {
		*key = uuid.NewString()
	}

	job, err := a.client.CreateScript(ctx, &dto.CreateScriptRequest{
		IdempotencyKey: *key,
		CreatorID:      *creator,
		Title:          *title,
		Brief:          brief,
	})
	if err != nil {
		return fmt.Errorf("failed to submit script: %w", err)
	}

	fmt.Fprintf(a.stderr, "queued job %s (%s)\n", job.JobID, job.Status)
	if !*wait {
		return writeJSON(a.stdout, job)
	}

	return a.waitFor(ctx, job.JobID, 0, 0)
}

func (a *app) poll(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("poll", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	jobID := fs.String("job", "", "Job id (required)")
	maxAttempts := fs.Int("max-attempts", 0, "Override poller max_attempts")
	interval := fs.Duration("interval", 0, "Override poller interval")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *jobID == "" {
		return errors.New("-job is required")
	}

	return a.waitFor(ctx, *jobID, *maxAttempts, *interval)
}

func (a *app) cancel(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("cancel", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	jobID := fs.String("job", "", "Job id (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *jobID == "" {
		return errors.New("-job is required")
	}

	payload, err := a.client.CancelScript(ctx, *jobID)
	if err != nil {
		return fmt.Errorf("failed to cancel job: %w", err)
	}

	return writeJSON(a.stdout, payload.Raw)
}

// waitFor polls jobID and prints the terminal payload. A failed job is an error.
func (a *app) waitFor(ctx context.Context, jobID string, maxAttempts int, interval time.Duration) error {
	if maxAttempts == 0 {
		maxAttempts = a.cfg.Poller.MaxAttempts
	}
	if interval == 0 {
		interval = a.cfg.Poller.Interval
	}

	p, err := poller.New(a.client,
		poller.WithMaxAttempts(maxAttempts),
		poller.WithInterval(interval),
		poller.WithLogger(a.logger),
		poller.WithObserver(progressPrinter(a.stderr, maxAttempts)),
	)
	if err != nil {
		return err
	}

	payload, err := p.Poll(ctx, jobID)
	if err != nil {
		return err
	}

	if err := writeJSON(a.stdout, payload.Raw); err != nil {
		return err
	}

	if !payload.Succeeded() {
		return fmt.Errorf("generation failed: %s", payload.Error)
	}
	return nil
}

func progressPrinter(w io.Writer, maxAttempts int) poller.Observer {
	return func(attempt int, payload *poller.StatusPayload, err error) {
		if err != nil {
			fmt.Fprintf(w, "[%d/%d] status request failed: %v\n", attempt, maxAttempts, err)
			return
		}
		line := fmt.Sprintf("[%d/%d] %s %d%%", attempt, maxAttempts, payload.Status, payload.Progress)
		if payload.Message != "" {
			line += " " + payload.Message
		}
		fmt.Fprintln(w, line)
	}
}

func writeJSON(w io.Writer, v any) error {
	if raw, ok := v.(json.RawMessage); ok && len(raw) > 0 {
		var pretty any
		if err := json.Unmarshal(raw, &pretty); err == nil {
			v = pretty
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, ",")
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"ICPVanity/internal/generator"
	"ICPVanity/internal/identity"
	"ICPVanity/internal/logsink"
	"ICPVanity/internal/patterns"
	"ICPVanity/internal/principal"
	"ICPVanity/pkg/appcfg"
	"ICPVanity/pkg/logx"
)

const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 2
	ExitInterrupted = 130
)

const usageHead = `icpvanity — search for an ICP principal starting with a prefix

Usage:
  icpvanity [flags] [prefix] [count]

  prefix   wanted beginning of the principal text (default "aaaaa")
  count    number of independent searches to run (default 1)

Principals use the characters a-z and 2-7, with '-' after every 5 characters.

Flags:
`

type Runner struct {
	Out io.Writer
	Err io.Writer

	// Factory overrides identity generation; nil uses BIP-39 + m/44'/223'/0'/0/0.
	Factory generator.Factory
	Now     func() time.Time
}

func NewRunner() *Runner {
	return &Runner{Out: os.Stdout, Err: os.Stderr, Now: time.Now}
}

type invocation struct {
	configPath   string
	recover      string
	prefix       string
	count        int
	extra        []string
	flags        *pflag.FlagSet
	workers      int
	maxAttempts  uint64
	maxDuration  time.Duration
	progress     uint64
	logLevel     string
	logDir       string
	passphrase   string
	strictPrefix bool
	hideSecrets  bool
}

func newFlagSet(inv *invocation) *pflag.FlagSet {
	fs := pflag.NewFlagSet("icpvanity", pflag.ContinueOnError)
	fs.StringVar(&inv.configPath, "config", appcfg.DefaultPath, "path to app.yaml")
	fs.IntVarP(&inv.workers, "workers", "w", 0, "parallel workers (default from config, 1 = sequential)")
	fs.Uint64Var(&inv.maxAttempts, "max-attempts", 0, "give up after this many attempts (0 = never)")
	fs.DurationVar(&inv.maxDuration, "max-duration", 0, "give up after this long, e.g. 30m (0 = never)")
	fs.Uint64Var(&inv.progress, "progress-every", 0, "attempts between progress lines")
	fs.StringVar(&inv.logLevel, "log-level", "", "debug|info|warn|error")
	fs.StringVar(&inv.logDir, "log-dir", "", "write app.log and results.jsonl under this directory")
	fs.StringVar(&inv.passphrase, "passphrase", "", "BIP-39 passphrase (changes every derived principal)")
	fs.BoolVar(&inv.strictPrefix, "strict", false, "refuse prefixes that can never match")
	fs.BoolVar(&inv.hideSecrets, "hide-secrets", false, "redact mnemonics on the console (requires --log-dir)")
	fs.StringVar(&inv.recover, "recover", "", "print the principal for a mnemonic and exit")
	fs.SortFlags = false
	return fs
}

// parseArgs returns pflag.ErrHelp for -h/--help.
func parseArgs(argv []string, out io.Writer) (*invocation, error) {
	inv := &invocation{}
	fs := newFlagSet(inv)
	fs.SetOutput(out)
	fs.Usage = func() {
		fmt.Fprint(out, usageHead)
		fmt.Fprint(out, fs.FlagUsages())
	}
	if err := fs.Parse(argv); err != nil {
		return nil, err
	}
	inv.flags = fs

	args := fs.Args()
	if len(args) > 0 {
		inv.prefix = args[0]
	}
	inv.count = 1
	if len(args) > 1 {
		inv.count = parseCount(args[1])
	}
	if len(args) > 2 {
		inv.extra = args[2:]
	}
	return inv, nil
}

// parseCount reads the leading decimal digits ("3x" is 3) and falls back to 1
// when there are none or the value is not positive.
func parseCount(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[0] == '+' || s[0] == '-') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func (inv *invocation) apply(cfg *appcfg.Config) {
	changed := inv.flags.Changed
	if changed("workers") {
		cfg.Workers = inv.workers
	}
	if changed("max-attempts") {
		cfg.MaxAttempts = inv.maxAttempts
	}
	if changed("max-duration") {
		cfg.MaxDuration = inv.maxDuration
	}
	if changed("progress-every") && inv.progress > 0 {
		cfg.ProgressEvery = inv.progress
	}
	if changed("log-level") {
		cfg.LogLevel = inv.logLevel
	}
	if changed("log-dir") {
		cfg.LogDir = inv.logDir
	}
	if changed("passphrase") {
		cfg.Passphrase = inv.passphrase
	}
	if changed("strict") {
		cfg.StrictPrefix = inv.strictPrefix
	}
	if changed("hide-secrets") {
		cfg.HideSecretsInConsole = inv.hideSecrets
	}
	if inv.prefix == "" && len(inv.flags.Args()) == 0 {
		inv.prefix = cfg.DefaultPrefix
	}
}

// Run executes one CLI invocation and returns the process exit code.
func (r *Runner) Run(ctx context.Context, argv []string) int {
	inv, err := parseArgs(argv, r.Out)
	if errors.Is(err, pflag.ErrHelp) {
		return ExitOK
	}
	if err != nil {
		fmt.Fprintf(r.Err, "%v\n", err)
		return ExitUsage
	}

	cfg, err := appcfg.Load(inv.configPath)
	notFound := errors.Is(err, os.ErrNotExist)
	if err != nil && !notFound {
		fmt.Fprintf(r.Err, "load app config: %v\n", err)
		return ExitUsage
	}
	inv.apply(cfg)
	if cfg.HideSecretsInConsole && cfg.LogDir == "" && inv.recover == "" {
		fmt.Fprintln(r.Err, "hiding secrets needs log_dir (or --log-dir): the mnemonic would be printed nowhere")
		return ExitUsage
	}

	runDir, err := r.initLogging(cfg)
	if err != nil {
		fmt.Fprintf(r.Err, "log init: %v\n", err)
		return ExitUsage
	}
	defer logx.Close()
	app := logx.S()
	if notFound {
		app.Warnw("app config not found, using defaults", "path", inv.configPath)
	}

	ids := identity.NewFactory()
	ids.Passphrase = cfg.Passphrase

	if inv.recover != "" {
		return r.recoverPrincipal(ids, inv.recover, cfg.HideSecretsInConsole)
	}

	if len(inv.extra) > 0 {
		app.Warnw("ignoring extra arguments", "args", inv.extra)
	}
	if err := patterns.ValidatePrefix(inv.prefix); err != nil {
		if cfg.StrictPrefix {
			app.Errorw("prefix can never match", "prefix", inv.prefix, "err", err)
			fmt.Fprintf(r.Err, "prefix %q can never match: %v\n", inv.prefix, err)
			return ExitUsage
		}
		app.Warnw("prefix can never match, search will not end on its own", "prefix", inv.prefix, "err", err)
	}

	var factory generator.Factory = ids
	if r.Factory != nil {
		factory = r.Factory
	}
	con := &console{w: r.Out, prefix: inv.prefix, hideSecrets: cfg.HideSecretsInConsole}
	engine := generator.New(factory, generator.Options{
		Workers:       cfg.Workers,
		ProgressEvery: cfg.ProgressEvery,
		MaxAttempts:   cfg.MaxAttempts,
		MaxDuration:   cfg.MaxDuration,
		Now:           r.Now,
	}, con)

	app.Infow("search started",
		"prefix", inv.prefix,
		"count", inv.count,
		"workers", cfg.Workers,
		"expected_attempts", humanize.BigComma(patterns.EstimateAttempts(inv.prefix)),
		"passphrase_set", cfg.Passphrase != "",
		"run_dir", runDir,
	)
	con.printStart(inv.prefix, inv.count)

	onResult := func(i int, res *generator.Result) {
		if i > 0 {
			con.printSeparator()
		}
		if inv.count > 1 {
			con.printRun(i+1, inv.count)
		}
		con.printResult(res)
		app.Infow("FOUND",
			"principal", res.Principal,
			"mnemonic", res.Mnemonic,
			"attempts", res.Iterations,
			"elapsed", res.Elapsed.Round(time.Millisecond),
		)
		if runDir != "" {
			rec := logsink.Record{
				Principal:      res.Principal,
				Mnemonic:       res.Mnemonic,
				Prefix:         inv.prefix,
				Iterations:     res.Iterations,
				ElapsedSeconds: res.ElapsedSeconds(),
				FoundAt:        r.now(),
			}
			if err := logsink.WriteResult(runDir, rec); err != nil {
				app.Errorw("results append failed", "principal", res.Principal, "err", err)
			}
		}
	}

	_, err = engine.SearchMultiple(ctx, inv.prefix, inv.count, onResult)
	switch {
	case err == nil:
		app.Infow("search done", "count", inv.count)
		return ExitOK
	case errors.Is(err, generator.ErrCancelled):
		app.Warnw("search interrupted", "err", err)
		return ExitInterrupted
	default:
		app.Errorw("search failed", "err", err)
		fmt.Fprintf(r.Err, "error: %v\n", err)
		return ExitFailure
	}
}

func (r *Runner) initLogging(cfg *appcfg.Config) (string, error) {
	lc := logx.Config{
		Level:                cfg.LogLevel,
		ConsoleOnly:          true,
		HideSecretsInConsole: cfg.HideSecretsInConsole,
		Console:              r.Err,
	}
	var runDir string
	if cfg.LogDir != "" {
		dir, err := logsink.MakeRunDir(cfg.LogDir, "icpvanity", r.now())
		if err != nil {
			return "", err
		}
		runDir = dir
		lc.FilePath = filepath.Join(dir, "app.log")
		lc.ConsoleOnly = false
	}
	return runDir, logx.Init(lc)
}

func (r *Runner) recoverPrincipal(ids *identity.Factory, mn string, hide bool) int {
	id, err := ids.FromMnemonic(mn)
	if err != nil {
		logx.S().Errorw("recover failed", "err", err)
		fmt.Fprintf(r.Err, "error: %v\n", err)
		return ExitFailure
	}
	raw, err := principal.Decode(id.Principal)
	if err != nil {
		logx.S().Errorw("recovered principal does not decode", "principal", id.Principal, "err", err)
		fmt.Fprintf(r.Err, "error: %v\n", err)
		return ExitFailure
	}
	con := &console{w: r.Out, hideSecrets: hide}
	con.printIdentity(id, raw)
	return ExitOK
}

func (r *Runner) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// WithInterrupt cancels the returned context on SIGINT or SIGTERM.
func WithInterrupt(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-ch:
		case <-ctx.Done():
		}
		signal.Stop(ch)
		cancel()
	}()
	return ctx
}

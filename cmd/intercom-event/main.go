package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattjoyce/intercom-event/internal/config"
	"github.com/mattjoyce/intercom-event/internal/dispatch"
	"github.com/mattjoyce/intercom-event/internal/lock"
	"github.com/mattjoyce/intercom-event/internal/log"
	"github.com/mattjoyce/intercom-event/internal/notify"
	"github.com/mattjoyce/intercom-event/internal/retriever"
	"github.com/mattjoyce/intercom-event/internal/webhook"
	"gopkg.in/yaml.v3"
)

const version = "0.1.0"

// configEnv names the fallback config location when --config is omitted.
const configEnv = "INTERCOM_EVENT_CONFIG"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		printUsage()
		return 1
	}

	cmd := args[0]
	rest := args[1:]

	switch cmd {
	case "serve":
		if hasHelpFlag(rest) {
			printServeHelp()
			return 0
		}
		return runServe(rest)
	case "config":
		return runConfigNoun(rest)
	case "version":
		fmt.Printf("intercom-event version %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Print(`intercom-event - Intercom webhook receiver and event router

Usage:
  intercom-event <command> [flags]

Commands:
  serve               Start the webhook endpoint in the foreground
  config check        Validate configuration
  config show         Print the resolved configuration (secrets redacted)
  config get PATH     Read a single value from the resolved configuration
  version             Show version information
  help                Show this help message

The configuration path defaults to $INTERCOM_EVENT_CONFIG, then ./config.yaml.
`)
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "check":
		if hasHelpFlag(actionArgs) {
			printConfigCheckHelp()
			return 0
		}
		return runConfigCheck(actionArgs)
	case "show":
		if hasHelpFlag(actionArgs) {
			printConfigShowHelp()
			return 0
		}
		return runConfigShow(actionArgs)
	case "get":
		if hasHelpFlag(actionArgs) {
			printConfigGetHelp()
			return 0
		}
		return runConfigGet(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: intercom-event config <action> [flags]")
	fmt.Fprintln(w, "Actions: check, show, get")
}

func printServeHelp() {
	fmt.Println("Usage: intercom-event serve [--config PATH]")
	fmt.Println("Start the webhook endpoint in the foreground.")
}

func printConfigCheckHelp() {
	fmt.Println("Usage: intercom-event config check [--config PATH] [--json]")
	fmt.Println("Validate configuration syntax and the retriever and subscriber settings.")
}

func printConfigShowHelp() {
	fmt.Println("Usage: intercom-event config show [--config PATH] [--json]")
	fmt.Println("Show the resolved configuration with secrets redacted.")
}

func printConfigGetHelp() {
	fmt.Println("Usage: intercom-event config get [--config PATH] [--json] <path>")
	fmt.Println("Read a single value from the resolved configuration.")
}

func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(configEnv); env != "" {
		return env
	}
	return "config.yaml"
}

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := config.Load(resolveConfigPath(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")

	fingerprint, _ := cfg.Fingerprint()
	logger.Info("intercom-event starting",
		"version", version,
		"config", cfg.SourcePath,
		"fingerprint", fingerprint,
	)

	if cfg.Service.PIDFile != "" {
		pid, err := lock.Acquire(cfg.Service.PIDFile)
		if err != nil {
			logger.Error("failed to acquire pid file (another instance may be running)", "path", cfg.Service.PIDFile, "error", err)
			return 1
		}
		defer pid.Release()
		logger.Info("acquired pid file", "path", pid.Path())
	}

	srv, err := buildServer(cfg)
	if err != nil {
		logger.Error("failed to build webhook server", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("webhook server failed", "error", err)
		return 1
	}

	logger.Info("intercom-event stopped")
	return 0
}

// buildServer wires the retriever, dispatcher, hub and endpoint from cfg.
func buildServer(cfg *config.Config) (*webhook.Server, error) {
	r, err := retriever.New(cfg.Retriever)
	if err != nil {
		return nil, fmt.Errorf("retriever: %w", err)
	}

	ns := notify.NewNamespace(cfg.Service.Namespace)
	hub := notify.NewHub(cfg.Service.HubSize)

	d := dispatch.New(r,
		dispatch.WithSecret(cfg.Webhook.Secret),
		dispatch.WithNamespace(ns),
		dispatch.WithPublisher(hub),
		dispatch.WithLogger(log.WithComponent("dispatch")),
	)
	if err := d.SubscribeConfigured(cfg.Subscriptions, log.WithComponent("subscriber")); err != nil {
		return nil, err
	}
	for _, p := range d.Registry().Patterns() {
		log.WithComponent("dispatch").Debug("subscription registered", "pattern", p.String())
	}

	wc, err := webhook.FromGlobalConfig(cfg.Webhook)
	if err != nil {
		return nil, fmt.Errorf("webhook: %w", err)
	}
	return webhook.New(wc, d, log.WithComponent("webhook"), webhook.WithHub(hub, ns)), nil
}

type checkResult struct {
	Valid         bool     `json:"valid"`
	Config        string   `json:"config,omitempty"`
	Fingerprint   string   `json:"fingerprint,omitempty"`
	Retriever     string   `json:"retriever,omitempty"`
	Subscriptions int      `json:"subscriptions"`
	Errors        []string `json:"errors,omitempty"`
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output in JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	result := checkResult{Valid: true}
	cfg, err := config.Load(resolveConfigPath(*configPath))
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
	} else {
		result.Config = cfg.SourcePath
		result.Fingerprint, _ = cfg.Fingerprint()
		result.Retriever = cfg.Retriever.Kind
		result.Subscriptions = len(cfg.Subscriptions)
		if _, err := buildServer(cfg); err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, err.Error())
		}
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
	} else {
		printCheckHuman(result)
	}

	if !result.Valid {
		return 1
	}
	return 0
}

func printCheckHuman(r checkResult) {
	if !r.Valid {
		fmt.Println("Configuration INVALID")
		for _, e := range r.Errors {
			fmt.Printf("  ERROR %s\n", e)
		}
		return
	}
	fmt.Println("Configuration OK")
	fmt.Printf("  config:        %s\n", r.Config)
	fmt.Printf("  fingerprint:   %s\n", r.Fingerprint)
	fmt.Printf("  retriever:     %s\n", r.Retriever)
	fmt.Printf("  subscriptions: %d\n", r.Subscriptions)
}

func runConfigShow(args []string) int {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := config.Load(resolveConfigPath(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}

	shown := cfg.Redacted()
	if *jsonOut {
		data, _ := json.MarshalIndent(shown, "", "  ")
		fmt.Println(string(data))
		return 0
	}

	if fp, err := cfg.Fingerprint(); err == nil {
		fmt.Printf("# %s %s\n", cfg.SourcePath, fp)
	}
	data, _ := yaml.Marshal(shown)
	fmt.Print(string(data))
	return 0
}

func runConfigGet(args []string) int {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: intercom-event config get [--config PATH] [--json] <path>\n")
		return 1
	}
	path := fs.Arg(0)

	cfg, err := config.Load(resolveConfigPath(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}

	val, err := cfg.GetPath(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(val, "", "  ")
		fmt.Println(string(data))
	} else {
		fmt.Printf("%v\n", val)
	}
	return 0
}

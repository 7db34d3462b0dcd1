// Command orchestrator is the control-plane entrypoint: a single flag-parsed binary
// exposing the build/orchestrate/testN subcommands of spec §6, generalized from the
// teacher's own --plan/--apply/--server mode switch in orchestrator/cmd/orchestrator.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sri0013/vnf-project/internal/controlplane"
	"github.com/sri0013/vnf-project/internal/scenarios"
	"github.com/sri0013/vnf-project/pkg/config"
)

const (
	appName = "orchestrator"
	version = "v0.1.0"
)

// Exit codes per spec §6: 0 success, 1 configuration error, 2 runtime failure,
// 3 partial-test failure (test subcommands only).
const (
	exitOK               = 0
	exitConfigError      = 1
	exitRuntimeFailure   = 2
	exitPartialTestFail  = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return exitConfigError
	}

	sub := args[0]
	fs := flag.NewFlagSet(appName+" "+sub, flag.ContinueOnError)
	configPath := fs.String("config", "configs/orchestrator.yaml", "path to the orchestrator's YAML configuration")
	logLevel := fs.String("log-level", "", "override log_level from the config file")
	seed := fs.Int64("seed", 1, "deterministic RNG seed for the simulated driver and the learning agent")
	if err := fs.Parse(args[1:]); err != nil {
		return exitConfigError
	}

	switch sub {
	case "build":
		return cmdBuild(*configPath, *logLevel)
	case "orchestrate":
		return cmdOrchestrate(*configPath, *logLevel, *seed)
	case "test1":
		return cmdTest(scenarios.A)
	case "test2":
		return cmdTest(scenarios.B)
	case "test3":
		return cmdTest(scenarios.C)
	case "testall":
		return cmdTest(scenarios.All...)
	case "-h", "--help", "help":
		usage()
		return exitOK
	case "-v", "--version", "version":
		fmt.Printf("%s %s\n", appName, version)
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", sub)
		usage()
		return exitConfigError
	}
}

func usage() {
	fmt.Printf("%s %s - NFV/SFC orchestrator control plane\n\n", appName, version)
	fmt.Println("Usage:")
	fmt.Printf("  %s build       -config path.yaml   validate config + catalog, write a plan artifact\n", appName)
	fmt.Printf("  %s orchestrate -config path.yaml   start the full control plane\n", appName)
	fmt.Printf("  %s test1|test2|test3|testall        run spec.md §8 scenario checks\n", appName)
}

func configureLogging(level string) {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	if level == "debug" {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}

func loadConfig(path, logLevelOverride string) (*config.Config, int) {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return nil, exitConfigError
	}
	if logLevelOverride != "" {
		cfg.LogLevel = logLevelOverride
	}
	configureLogging(cfg.LogLevel)
	return cfg, exitOK
}

// cmdBuild validates the configuration and VNF catalog and writes a plan artifact,
// without starting any goroutine or listener, per spec §2.5's "no side effects" contract.
func cmdBuild(configPath, logLevelOverride string) int {
	cfg, code := loadConfig(configPath, logLevelOverride)
	if code != exitOK {
		return code
	}

	p, err := controlplane.Build(cfg, 1)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
		return exitConfigError
	}

	logrus.WithFields(logrus.Fields{
		"vnf_types":     cfg.VNFTypes,
		"min_instances": cfg.MinInstances,
		"max_instances": cfg.MaxInstances,
	}).Info("configuration and catalog validated")

	if err := os.MkdirAll("artifacts", 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
		return exitRuntimeFailure
	}
	planPath := "artifacts/plan.json"
	if err := writePlan(planPath, cfg, p.Types); err != nil {
		fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
		return exitRuntimeFailure
	}
	fmt.Printf("plan written to %s\n", planPath)
	return exitOK
}

// cmdOrchestrate starts the full control plane and blocks until SIGINT/SIGTERM.
func cmdOrchestrate(configPath, logLevelOverride string, seed int64) int {
	cfg, code := loadConfig(configPath, logLevelOverride)
	if code != exitOK {
		return code
	}

	p, err := controlplane.Build(cfg, seed)
	if err != nil {
		fmt.Fprintf(os.Stderr, "orchestrate failed: %v\n", err)
		return exitRuntimeFailure
	}

	seedCtx, cancelSeed := context.WithTimeout(context.Background(), cfg.RollingUpdate.HealthCheckTimeout+10*time.Second)
	defer cancelSeed()
	if err := p.SeedInstances(seedCtx); err != nil {
		fmt.Fprintf(os.Stderr, "orchestrate failed: %v\n", err)
		return exitRuntimeFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logrus.Info("orchestrator control plane starting")
	if err := p.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "orchestrate failed: %v\n", err)
		return exitRuntimeFailure
	}
	logrus.Info("orchestrator control plane stopped")
	return exitOK
}

// cmdTest runs each scenario against its own isolated Plane and reports PASS/FAIL,
// per spec §8's black-box scenario checks.
func cmdTest(scens ...scenarios.Scenario) int {
	logrus.SetLevel(logrus.ErrorLevel)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second*time.Duration(len(scens)))
	defer cancel()

	failed := false
	for _, s := range scens {
		res := s.Run(ctx)
		switch {
		case res.Err != nil:
			fmt.Printf("FAIL %-32s error: %v\n", s.Name, res.Err)
			failed = true
		case !res.Passed:
			fmt.Printf("FAIL %-32s %s\n", s.Name, res.Detail)
			failed = true
		default:
			fmt.Printf("PASS %-32s %s\n", s.Name, res.Detail)
		}
	}
	if failed {
		return exitPartialTestFail
	}
	return exitOK
}

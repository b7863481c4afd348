package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"recon/internal/config"
	"recon/internal/metrics"
	"recon/internal/metrics/datadog"
	"recon/internal/metrics/prompush"
	"recon/internal/schema"

	// register all backends with the warehouse factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "recon/internal/warehouse/all"

	"flag"
)

// main is the entry point for the recon binary. It loads the run config,
// optionally initializes a metrics backend, and executes the reconciliation.
func main() {
	var (
		cfgPath           string
		asOfFlg           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		datadogAddrFlg    string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/runs/sample.json", "run config JSON path")
	flag.StringVar(&asOfFlg, "as-of", "", "evaluation date as YYYY-MM-DD (default: today, UTC)")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "none", "metrics backend to use (pushgateway, datadog, none)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.StringVar(&datadogAddrFlg, "datadog-addr", "", "DogStatsD address (overrides env DD_AGENT_ADDR)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	run, err := config.Load(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}

	// Validate run config.
	issues := config.ValidateRun(run)
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		log.Printf("configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}

	// If validate flag is set, only validate the configuration and exit.
	if validate {
		log.Printf("configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	asOf, err := resolveAsOf(asOfFlg)
	if err != nil {
		fatalf("%v", err)
	}

	initMetrics(run.Job, metricsBackendFlg, pushGatewayURLFlg, datadogAddrFlg, *verbose)
	defer func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}()

	ctx := context.Background()
	start := time.Now()

	if *verbose {
		log.Printf("run: job=%s warehouse=%s schema=%s output=%s as_of=%s",
			run.Job, run.Warehouse.Kind, run.Warehouse.Schema, run.Output.Table,
			asOf.Format(schema.DateLayout))
	}

	if err := runRecon(ctx, run, asOf, *verbose); err != nil {
		log.Fatalf("%v", err)
	}

	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

// resolveAsOf parses the -as-of flag, defaulting to today's date in UTC. The
// evaluation date is pinned once per run so every rule sees the same clock.
func resolveAsOf(flg string) (time.Time, error) {
	if flg == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	d, err := time.Parse(schema.DateLayout, flg)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse -as-of: %w", err)
	}
	return d, nil
}

// initMetrics installs the selected metrics backend: flag -> env -> default.
func initMetrics(job, backendName, gatewayURL, ddAddr string, verbose bool) {
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	if job == "" {
		job = "recon_job"
	}

	switch backendName {
	case "pushgateway":
		if gatewayURL == "" {
			gatewayURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gatewayURL == "" {
			gatewayURL = "http://localhost:9091"
		}
		b, err := prompush.NewBackend(job, gatewayURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: backend=%v url=%v job_name=%v", backendName, gatewayURL, job)
		metrics.SetBackend(b)

	case "datadog":
		if ddAddr == "" {
			ddAddr = os.Getenv("DD_AGENT_ADDR")
		}
		if ddAddr == "" {
			ddAddr = "127.0.0.1:8125"
		}
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       ddAddr,
			Namespace:  "recon.",
			GlobalTags: []string{"job:" + job},
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: backend=%v addr=%v job_name=%v", backendName, ddAddr, job)
		metrics.SetBackend(b)

	case "", "none":
		// metrics disabled; nop backend remains
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

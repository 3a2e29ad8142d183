package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/GriffinCanCode/qcflow/internal/infrastructure/config"
	"github.com/GriffinCanCode/qcflow/internal/infrastructure/server"
)

func main() {
	// Parse flags
	port := flag.String("port", "", "Server port (overrides PORT)")
	host := flag.String("host", "", "Server host (overrides HOST)")
	source := flag.String("source", "", "Record file glob (overrides SOURCE_PATTERN)")
	checks := flag.String("checks", "", "Comma-separated QC checks (overrides QC_CHECKS)")
	checksFile := flag.String("checks-file", "", "YAML or TOML checks file (overrides CHECKS_FILE)")
	results := flag.String("results", "", "Results file, - for stdout (overrides RESULTS_FILE)")
	workers := flag.Int("workers", 0, "Pipeline workers (overrides PIPELINE_WORKERS)")
	dev := flag.Bool("dev", false, "Development mode: console logs at debug level")
	once := flag.Bool("once", false, "Exit once every record is processed")
	flag.Parse()

	if *checksFile != "" {
		os.Setenv("CHECKS_FILE", *checksFile)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *port != "" {
		cfg.Server.Port = *port
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *source != "" {
		cfg.Source.Pattern = *source
	}
	if *checks != "" {
		cfg.QC.Checks = strings.Split(*checks, ",")
	}
	if *results != "" {
		cfg.Sinks.ResultsFile = *results
	}
	if *workers > 0 {
		cfg.Pipeline.Workers = *workers
	}
	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}
	if *once {
		cfg.Server.ExitOnDone = true
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		log.Printf("Server error: %v", err)
		stop()
		os.Exit(1)
	}
}

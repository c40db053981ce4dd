// Command processor runs a single rent roll workbook through the full
// pipeline from the command line, without starting the HTTP service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"rentroll/internal/ai"
	"rentroll/internal/config"
	"rentroll/internal/exporter"
	"rentroll/internal/infrastructure"
	"rentroll/internal/operations"
	"rentroll/internal/rentroll"
)

func main() {
	in := flag.String("in", "", "path to the rent roll workbook (.xlsx)")
	out := flag.String("out", "", "output CSV file name (defaults to one derived from the property name)")
	flag.Parse()

	if *in == "" {
		fmt.Fprintln(os.Stderr, "usage: processor -in <workbook.xlsx> [-out <name.csv>]")
		os.Exit(2)
	}

	if err := run(*in, *out); err != nil {
		slog.Error("processing failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(inputPath, outputName string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	paths, err := config.ResolvePaths(cfg.Paths)
	if err != nil {
		return fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to ensure directories: %w", err)
	}

	var completer rentroll.Completer
	if cfg.AI.Enabled() {
		completer = ai.NewClient(cfg.AI, logger)
	}

	processor := rentroll.NewProcessor(
		rentroll.PatternConfigFromSettings(cfg.Processing),
		completer,
		logger,
	)
	writer := exporter.NewCSVWriter(paths)

	// No websocket hub on the CLI; progress stays in the logs.
	manager := operations.NewManager(nil, nil, nil, logger)
	defer manager.Broadcaster().Stop()
	if err := operations.RegisterRentRollSteps(manager, processor, writer, nil, logger); err != nil {
		return fmt.Errorf("failed to register pipeline steps: %w", err)
	}

	resp, err := manager.Execute(context.Background(), operations.OperationRequest{
		FilePath:   inputPath,
		OutputName: outputName,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Processed %s\n", inputPath)
	if sheet, ok := resp.Results[operations.ContextKeySelectedSheet].(string); ok {
		fmt.Printf("  sheet:   %s\n", sheet)
	}
	if records, ok := resp.Results[operations.ContextKeyRecordCount].(int); ok {
		fmt.Printf("  records: %d\n", records)
	}
	if output, ok := resp.Results[operations.ContextKeyOutputPath].(string); ok {
		fmt.Printf("  output:  %s\n", output)
	}

	return nil
}

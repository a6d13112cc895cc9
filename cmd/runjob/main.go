// runjob executes one sync job in the foreground and prints its result.
//
//	go run ./cmd/runjob -job products-stocks
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xelth-com/arcasync/internal/app"
	"github.com/xelth-com/arcasync/internal/config"
	"github.com/xelth-com/arcasync/internal/jobs"
)

func main() {
	job := flag.String("job", "", "job to run")
	list := flag.Bool("list", false, "list the available jobs")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	svc, err := app.New(cfg, nil)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	exitCode := 0
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		svc.Close(ctx)
		cancel()
		os.Exit(exitCode)
	}()

	if *list || *job == "" {
		for _, j := range svc.Runner.Jobs() {
			fmt.Printf("%-20s %s\n", j.Name, j.Description)
		}
		return
	}

	run, err := svc.Runner.Start(*job, jobs.TriggerCLI)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	// Ctrl-C cancels the run; the ledger still records it as cancelled
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	select {
	case <-run.Done():
	case <-ctx.Done():
		log.Printf("⚠️  Interrupted, cancelling %s...", run.Job)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		svc.Runner.Shutdown(shutdownCtx)
		cancel()
		<-run.Done()
	}

	res, runErr := run.Result()
	out := map[string]interface{}{
		"runId": run.ID,
		"job":   run.Job,
		"log":   run.LogFile,
	}
	if res != nil {
		out["created"] = res.Created
		out["updated"] = res.Updated
		out["deleted"] = res.Deleted
		out["skipped"] = res.Skipped
		out["errors"] = res.Failed
		out["records"] = res.Processed
		out["failures"] = res.Failures
	}
	if runErr != nil {
		out["error"] = runErr.Error()
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(out)

	if runErr != nil || (res != nil && res.Failed > 0) {
		exitCode = 1
	}
}

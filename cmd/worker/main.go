package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/audisee/docx2daisy/internal/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Printf("Failed to init app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.StartWorkers(); err != nil {
		a.Log.Error("Worker startup failed", "error", err)
		os.Exit(1)
	}
	a.Log.Info("Worker pool running", "concurrency", a.Pool.Size())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	a.Log.Info("Shutting down", "signal", sig.String())
}

package main

import (
	"context"
	"log"

	"github.com/zenoss/zenoss-zep-sub001/internal/app/bootstrap"
)

// Worker process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring.
// 3) Start the occurrence consumer and the aging/archive/index sweeps.
func main() {
	log.Println("summary engine worker starting")
	app, err := bootstrap.BuildWorker()
	if err != nil {
		log.Fatalf("bootstrap worker failed: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("worker shutdown close failed: %v", err)
		}
	}()

	if err := app.Run(context.Background()); err != nil {
		log.Fatalf("summary engine worker stopped with error: %v", err)
	}
}

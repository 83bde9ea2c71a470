// Command enqueue submits a render task to the worker queue and prints
// the assigned job id.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/zoomtile/zoomtile/internal/config"
	"github.com/zoomtile/zoomtile/internal/id"
	"github.com/zoomtile/zoomtile/internal/iiif"
	"github.com/zoomtile/zoomtile/internal/queue"
)

func main() {
	var (
		outputKey  = flag.String("output-key", "", "object key for the rendered output (defaults to renders/<job-id>.<format>)")
		webhookURL = flag.String("webhook", "", "endpoint notified when the render finishes")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <identifier> <region>/<size>/<rotation>/<quality>.<format>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := log.New(os.Stderr, "[enqueue] ", 0)

	args := flag.Args()
	if len(args) != 2 {
		flag.Usage()
		os.Exit(2)
	}

	if _, err := iiif.ParseSelector(args[1]); err != nil {
		logger.Fatalf("bad selector: %v", err)
	}

	cfg := config.Load()
	client := queue.NewClient(cfg.Queue.RedisClientOpt(), cfg.Queue.Name)
	defer client.Close()

	payload := queue.RenderPayload{
		JobID:       id.New(),
		Identifier:  args[0],
		Selector:    args[1],
		OutputKey:   *outputKey,
		WebhookURL:  *webhookURL,
		RequestedAt: time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	info, err := client.EnqueueRender(ctx, payload)
	if err != nil {
		logger.Fatalf("enqueue failed: %v", err)
	}

	fmt.Printf("job_id=%s task_id=%s queue=%s\n", payload.JobID, info.ID, info.Queue)
}

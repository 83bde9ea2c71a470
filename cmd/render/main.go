// Command render resolves one IIIF selector against a local image and
// writes the encoded result to a file, or prints the image's capability
// descriptor as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/zoomtile/zoomtile/internal/codec"
	"github.com/zoomtile/zoomtile/internal/iiif"
	"github.com/zoomtile/zoomtile/internal/render"
	"github.com/zoomtile/zoomtile/internal/resolve"
)

func main() {
	var (
		sourceDir = flag.String("source-dir", ".", "directory holding source images")
		output    = flag.String("o", "", "output file (defaults to <identifier-base>.<format>)")
		infoMode  = flag.Bool("info", false, "print the image descriptor instead of rendering")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <identifier> [<region>/<size>/<rotation>/<quality>.<format>]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := log.New(os.Stderr, "[render] ", 0)

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		os.Exit(2)
	}
	identifier := args[0]

	if err := codec.Startup(); err != nil {
		logger.Fatalf("codec startup failed: %v", err)
	}
	defer codec.Shutdown()

	svc := render.NewService(resolve.Local{Root: *sourceDir}, codec.DefaultRegistry(), nil)
	ctx := context.Background()

	if *infoMode {
		info, err := svc.Info(ctx, identifier)
		if err != nil {
			logger.Fatalf("info failed: %v", err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(info); err != nil {
			logger.Fatalf("encode descriptor: %v", err)
		}
		return
	}

	if len(args) < 2 {
		flag.Usage()
		os.Exit(2)
	}

	sel, err := iiif.ParseSelector(args[1])
	if err != nil {
		logger.Fatalf("bad selector: %v", err)
	}

	outPath := *output
	if outPath == "" {
		outPath = fmt.Sprintf("out.%s", sel.Format)
	}

	f, err := os.Create(outPath)
	if err != nil {
		logger.Fatalf("create output: %v", err)
	}

	if err := svc.Render(ctx, identifier, sel, f); err != nil {
		f.Close()
		os.Remove(outPath)
		logger.Fatalf("render failed: %v", err)
	}
	if err := f.Close(); err != nil {
		logger.Fatalf("close output: %v", err)
	}

	logger.Printf("wrote %s", outPath)
}

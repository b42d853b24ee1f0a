// cmd/raven-import/main.go - turn a list of URLs into a monitors include file
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"ravenwatch/internal/config"
)

func main() {
	var (
		input  = flag.String("input", "-", "URL list to read, one monitor per line (- for stdin)")
		output = flag.String("output", "monitors.yaml", "Output include file")
		prefix = flag.String("prefix", "", "Prefix for generated monitor IDs")
	)
	flag.Parse()

	var r io.Reader = os.Stdin
	if *input != "-" {
		f, err := os.Open(*input)
		if err != nil {
			log.Fatalf("Failed to open input: %v", err)
		}
		defer f.Close()
		r = f
	}

	monitors, skipped, err := parseURLList(r, *prefix)
	if err != nil {
		log.Fatalf("Failed to read URL list: %v", err)
	}
	for _, s := range skipped {
		fmt.Fprintf(os.Stderr, "skipping %s\n", s)
	}

	if err := writeMonitors(monitors, *output); err != nil {
		log.Fatalf("Failed to write monitors: %v", err)
	}

	fmt.Printf("Wrote %d monitors to %s\n", len(monitors), *output)
}

func writeMonitors(monitors []config.MonitorConfig, filename string) error {
	data, err := yaml.Marshal(config.PartialConfig{Monitors: monitors})
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	header := fmt.Sprintf("# Raven monitors\n# Generated by raven-import on %s\n# Contains %d monitors\n\n",
		time.Now().Format("2006-01-02 15:04:05"),
		len(monitors))

	if err := os.WriteFile(filename, append([]byte(header), data...), 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

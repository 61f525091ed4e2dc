// Command demo runs a YAML fixture file of scripted verification
// scenarios against the example publishers and reports each one's
// outcome.
package main

import (
	"fmt"
	"os"

	"github.com/soderholm/streamverify"
	"github.com/soderholm/streamverify/events"
	"github.com/soderholm/streamverify/fixture"
	"github.com/soderholm/streamverify/internal/diagnostics"
)

func main() {
	args := os.Args[1:]

	watchAddr := ""
	var rest []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--watch" && i+1 < len(args) {
			watchAddr = args[i+1]
			i++
			continue
		}
		rest = append(rest, args[i])
	}

	if len(rest) < 1 {
		fmt.Println("Usage: demo [--watch :4200] <fixture.yaml> [defaults.yaml]")
		os.Exit(1)
	}

	defaults := streamverify.DefaultDefaults()
	if len(rest) >= 2 {
		d, err := streamverify.LoadDefaults(rest[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: loading defaults: %v\n", err)
		} else {
			defaults = d
		}
	}

	var bus events.Bus
	if watchAddr != "" {
		mb := events.NewMemoryBus()
		bus = mb
		srv := diagnostics.New(mb)
		srv.StartAsync(watchAddr)
		fmt.Fprintf(os.Stderr, "diagnostics running at http://localhost%s\n", watchAddr)
	}

	if err := run(rest[0], defaults, bus); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(fixturePath string, defaults streamverify.Defaults, bus events.Bus) error {
	f, err := fixture.Load(fixturePath)
	if err != nil {
		return err
	}

	failed := 0
	for _, s := range f.Scenarios {
		mismatch, err := fixture.Run(s, defaults, bus)
		switch {
		case err != nil:
			failed++
			fmt.Printf("ERROR %s: %v\n", s.Name, err)
		case mismatch != "":
			failed++
			fmt.Printf("FAIL  %s\n", mismatch)
		default:
			fmt.Printf("OK    %s\n", s.Name)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios did not match expectations", failed, len(f.Scenarios))
	}
	return nil
}

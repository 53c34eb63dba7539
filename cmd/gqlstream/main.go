package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/hanpama/gqlstream/internal/engine"
	"github.com/hanpama/gqlstream/internal/eventbus"
	"github.com/hanpama/gqlstream/internal/otel"
	"github.com/hanpama/gqlstream/internal/server"
)

const rootUsage = `gqlstream — GraphQL incremental delivery over HTTP

USAGE:
  gqlstream <command> [flags]

COMMANDS:
  serve            Run an incremental-delivery GraphQL endpoint with the demo engine
  help             Show help for any command
`

const serveUsage = `serve FLAGS:
  -server.addr <addr>             HTTP listen address (default: :8080)
  -server.pretty                  Pretty-print JSON payloads
  -server.timeout <duration>      Per-request timeout, e.g. 10s; 0 disables it
                                  so subscriptions can run open-ended (default: 0)
  -server.metadata-header <name>  Forward HTTP header to gRPC metadata. Repeatable
  -demo.events <n>                Subscription events emitted by the demo engine (default: 5)
  -demo.interval <duration>       Delay between demo subscription events (default: 1s)
  -otel.endpoint <addr>           OTLP collector endpoint
  -otel.service <name>            OpenTelemetry service name (default: gqlstream)
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	global := flag.NewFlagSet("gqlstream", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer)) // silence automatic output
	if err := global.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := remaining[0]
	cmdArgs := remaining[1:]
	switch cmd {
	case "serve":
		return cmdServe(cmdArgs)
	case "help":
		return cmdHelp(cmdArgs)
	default:
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string) error {
	if len(args) == 0 {
		fmt.Print(rootUsage)
		return nil
	}
	switch args[0] {
	case "serve":
		fmt.Print(serveUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

type stringListFlag []string

func (s *stringListFlag) String() string { return "" }

func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func cmdServe(args []string) error {
	addr := ":8080"
	pretty := false
	timeout := time.Duration(0)
	demoEvents := 5
	demoInterval := time.Second
	otelEndpoint := ""
	otelService := "gqlstream"
	var metadataHeaders stringListFlag

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&addr, "server.addr", addr, "HTTP listen address")
	fs.BoolVar(&pretty, "server.pretty", pretty, "Pretty-print JSON payloads")
	fs.DurationVar(&timeout, "server.timeout", timeout, "Per-request timeout")
	fs.Var(&metadataHeaders, "server.metadata-header", "Forward HTTP header to gRPC metadata")
	fs.IntVar(&demoEvents, "demo.events", demoEvents, "Subscription events emitted by the demo engine")
	fs.DurationVar(&demoInterval, "demo.interval", demoInterval, "Delay between demo subscription events")
	fs.StringVar(&otelEndpoint, "otel.endpoint", otelEndpoint, "OTLP collector endpoint")
	fs.StringVar(&otelService, "otel.service", otelService, "OpenTelemetry service name")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, serveUsage)
		return err
	}

	eventbus.Use(eventbus.New())
	shutdown, err := otel.Setup(otelEndpoint, otelService)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	eng := engine.NewDemo()
	eng.Events = demoEvents
	eng.Interval = demoInterval

	var sopts []server.Option
	if pretty {
		sopts = append(sopts, server.WithPretty())
	}
	sopts = append(sopts, server.WithTimeout(timeout))
	if len(metadataHeaders) > 0 {
		sopts = append(sopts, server.WithMetadataHeaders(metadataHeaders...))
	}
	h, err := server.New(eng, sopts...)
	if err != nil {
		return fmt.Errorf("server init: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/graphql", h)

	log.Printf("GraphQL server listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}

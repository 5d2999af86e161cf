package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/richard-senior/poolleague/internal/config"
	"github.com/richard-senior/poolleague/internal/logger"
	"github.com/richard-senior/poolleague/pkg/importer"
	"github.com/richard-senior/poolleague/pkg/league"
	"github.com/richard-senior/poolleague/pkg/server"
	"github.com/richard-senior/poolleague/pkg/store"
	"github.com/richard-senior/poolleague/pkg/tools"
	"github.com/richard-senior/poolleague/pkg/transport"
)

const usage = `usage: poolleague [-config file] <command> [args]

commands:
  serve                    MCP server over stdio (default)
  serve-http               JSON-RPC over HTTP
  import <snapshot.json>   load a league snapshot into the database
  fetch <division> [url]   scrape results and fixtures from the league website
  reconcile                match recorded predictions against results
`

func main() {
	configPath := flag.String("config", os.Getenv("POOLLEAGUE_CONFIG"), "YAML configuration file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := cfg.ApplyLogging(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	args := flag.Args()
	command := "serve"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}
	logger.Info("Starting poolleague", command)

	if err := run(cfg, command, args); err != nil {
		logger.Error("Command failed:", command, err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg config.Config, command string, args []string) error {
	st, err := store.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	switch command {
	case "serve":
		s, err := newServer(cfg, st, transport.NewStdioTransport())
		if err != nil {
			return err
		}
		return s.Start()

	case "serve-http":
		s, err := newServer(cfg, st, nil)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return s.ListenAndServe(ctx, cfg.HTTP.Addr, cfg.HTTP.AllowedOrigins)

	case "import":
		if len(args) != 1 {
			return fmt.Errorf("import needs a snapshot file")
		}
		return importSnapshot(st, args[0])

	case "fetch":
		if len(args) < 1 || len(args) > 2 {
			return fmt.Errorf("fetch needs a division and optionally a URL")
		}
		url := cfg.Sources.ResultsURL
		if len(args) == 2 {
			url = args[1]
		}
		if url == "" {
			return fmt.Errorf("no results URL given and sources.results_url is not set")
		}
		if cfg.Sources.CABundle != "" {
			transport.SetCABundle(cfg.Sources.CABundle)
		}
		return fetchDivision(st, args[0], url)

	case "reconcile":
		n, err := st.ReconcilePredictions()
		if err != nil {
			return err
		}
		fmt.Printf("reconciled %d predictions\n", n)
		return nil
	}
	flag.Usage()
	return fmt.Errorf("unknown command: %s", command)
}

func newServer(cfg config.Config, st *store.Store, t transport.Transport) (*server.Server, error) {
	engine, err := league.New(cfg.Engine)
	if err != nil {
		return nil, err
	}
	return server.New(t, tools.NewLeagueToolkit(engine, st)), nil
}

func importSnapshot(st *store.Store, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	ds, err := importer.DecodeSnapshot(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := st.SaveSources(ds); err != nil {
		return err
	}
	fmt.Printf("imported %d divisions, %d results, %d fixtures\n", len(ds.Divisions()), len(ds.Results()), len(ds.Fixtures()))
	return nil
}

func fetchDivision(st *store.Store, division, url string) error {
	ds, err := st.LoadSources()
	if err != nil {
		return err
	}
	page, err := importer.Fetch(url)
	if err != nil {
		return err
	}
	scraped, err := importer.ParseResultsHTML(division, page, ds.Divisions()[division].Teams)
	if err != nil {
		return err
	}
	for _, name := range scraped.Unmatched {
		logger.Warn("No known team matches", name)
	}

	results, fixtures := importer.Merge(ds, division, scraped)
	if err := st.SaveSources(ds); err != nil {
		return err
	}
	fmt.Printf("%s: %d new results, %d new fixtures, %d unmatched names\n", division, results, fixtures, len(scraped.Unmatched))
	return nil
}

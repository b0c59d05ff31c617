package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/kochizu/internal/api"
	"github.com/joeblew999/kochizu/internal/config"
	"github.com/joeblew999/kochizu/internal/logger"
	"github.com/joeblew999/kochizu/internal/resolver"
	"github.com/joeblew999/kochizu/internal/server"
)

// Options defines all CLI flags and env vars for the viewer server.
// Flags: --host, --port, --config, --data-dir, --web-dir, --redis-addr
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_CONFIG, SERVICE_DATA_DIR, SERVICE_WEB_DIR, SERVICE_REDIS_ADDR
type Options struct {
	Host      string `doc:"Host to bind to" default:"0.0.0.0"`
	Port      int    `doc:"Port to listen on" short:"p" default:"8086"`
	Config    string `doc:"Path to kochizu.yaml" short:"c" default:"kochizu.yaml"`
	DataDir   string `doc:"Directory for the DuckDB database, empty to disable" default:".data"`
	WebDir    string `doc:"Path to web/ directory" default:"web"`
	RedisAddr string `doc:"Redis address for the upstream cache, overrides the config file"`
}

func newServer(ctx context.Context, opts *Options, skipLoad bool) (*server.Server, error) {
	return server.New(ctx, server.Config{
		Host:       opts.Host,
		Port:       fmt.Sprintf("%d", opts.Port),
		ConfigFile: opts.Config,
		DataDir:    opts.DataDir,
		WebDir:     opts.WebDir,
		RedisAddr:  opts.RedisAddr,
		SkipLoad:   skipLoad,
	})
}

func loadResolver(ctx context.Context, opts *Options) (*resolver.Resolver, error) {
	app, err := config.Load(opts.Config)
	if err != nil {
		return nil, err
	}
	return server.LoadResolver(ctx, app, app.AllowPartialCatalogs, logger.L())
}

// maxZoom matches the zoom bound of /api/v1/resolve.
const maxZoom = 22

func checkZoom(z int) error {
	if z < 0 || z > maxZoom {
		return fmt.Errorf("zoom %d outside 0-%d", z, maxZoom)
	}
	return nil
}

func fail(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}

func main() {
	_ = godotenv.Load()
	log := logger.Setup()

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		hooks.OnStart(func() {
			srv, err := newServer(context.Background(), opts, false)
			if err != nil {
				log.Error("server_init_failed", "err", err)
				os.Exit(1)
			}
			defer srv.Close()

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("kochizu historical map server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Modes:   %v\n", srv.Resolver().ModeNames())
			fmt.Println()
			fmt.Printf("  Viewer:  %s/viewer\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Printf("  Metrics: %s/metrics\n", baseURL)
			fmt.Println()

			if err := http.ListenAndServe(addr, srv); err != nil {
				log.Error("server_error", "err", err)
				os.Exit(1)
			}
		})
	})

	cli.Root().Use = "kochizu"
	cli.Root().Short = "Historical map viewer: era tile resolution and GSI place lookups"
	cli.Root().Version = api.Version

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv, err := newServer(cmd.Context(), opts, true)
			if err != nil {
				fail("Error building server", err)
			}
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fail("Error marshaling spec", err)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// resolve subcommand: one-off tile lookup without starting the server
	resolveCmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the tile layer for a year and mode",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			year, _ := cmd.Flags().GetInt("year")
			mode, _ := cmd.Flags().GetString("mode")
			centerArg, _ := cmd.Flags().GetString("center")
			zoom, _ := cmd.Flags().GetInt("zoom")

			center, err := api.ParseCenter(centerArg)
			if err != nil {
				fail("Invalid center", err)
			}
			if err := checkZoom(zoom); err != nil {
				fail("Invalid zoom", err)
			}
			r, err := loadResolver(cmd.Context(), opts)
			if err != nil {
				fail("Error loading catalogs", err)
			}
			tile, err := r.Resolve(year, mode, center)
			if err != nil {
				fail("Error resolving", err)
			}
			if center != nil && zoom > 0 {
				tile.CenterTile = tile.At(*center, zoom)
			}
			out, _ := json.MarshalIndent(tile, "", "  ")
			fmt.Println(string(out))
		}),
	}
	resolveCmd.Flags().Int("year", 2025, "Year to resolve")
	resolveCmd.Flags().String("mode", "topo", "Dataset name")
	resolveCmd.Flags().String("center", "", "Map center as lat,lon")
	resolveCmd.Flags().Int("zoom", 0, "With --center, also print the tile URL under the center at this zoom")
	cli.Root().AddCommand(resolveCmd)

	// catalogs subcommand: list loaded datasets
	catalogsCmd := &cobra.Command{
		Use:   "catalogs",
		Short: "List the datasets of the configured catalogs",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			r, err := loadResolver(cmd.Context(), opts)
			if err != nil {
				fail("Error loading catalogs", err)
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MODE\tLABEL\tYEARS\tERAS\tSCHEME")
			for _, m := range r.Modes() {
				years := fmt.Sprintf("%d-%d", m.MinYear, m.MaxYear)
				if m.Open {
					years = fmt.Sprintf("%d-", m.MinYear)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", m.Name, m.Label, years, m.Eras, m.Scheme)
			}
			tw.Flush()
		}),
	}
	cli.Root().AddCommand(catalogsCmd)

	cli.Run()
}

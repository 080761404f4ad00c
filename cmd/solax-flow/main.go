package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"solax-flow/config"
	"solax-flow/internal/api"
	"solax-flow/internal/collector"
	"solax-flow/internal/inverter"
	"solax-flow/internal/layout"
	"solax-flow/internal/logging"
	"solax-flow/internal/metrics"
	"solax-flow/internal/mqtt"
	"solax-flow/internal/render"
	"solax-flow/internal/scheduler"
	"solax-flow/internal/solax"
	"solax-flow/internal/storage"
)

var (
	configFile string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "solax-flow",
		Short:        "SolaX dual inverter flow monitor",
		Long:         "Polls the SolaX realtime API for two inverters and drives a solar/grid/battery/load flow display",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(readCmd())
	rootCmd.AddCommand(testCmd())
	rootCmd.AddCommand(layoutCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}
	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	log, err := logging.New(level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, log, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the monitoring service",
		Long:  "Start the poller, layout scheduler, API server and the configured surfaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}

			boxes := layout.NewRegistry()
			if cfg.Layout.Fixture != "" {
				if boxes, err = layout.LoadFixture(cfg.Layout.Fixture); err != nil {
					return err
				}
				log.Info().Str("fixture", cfg.Layout.Fixture).Msg("layout boxes loaded")
			}

			m := metrics.New()
			projector := render.NewProjector(log, m)

			var db *storage.Database
			if cfg.Database.Enabled {
				db, err = storage.NewDatabase(cfg.Database.Path)
				if err != nil {
					return fmt.Errorf("failed to open database: %w", err)
				}
				defer db.Close()
				projector.Attach(db)
				log.Info().Str("path", cfg.Database.Path).Msg("surface store opened")
			}

			publisher, err := mqtt.NewPublisher(mqtt.PublisherConfig{
				Broker:      cfg.MQTT.Broker,
				ClientID:    cfg.MQTT.ClientID,
				Username:    cfg.MQTT.Username,
				Password:    cfg.MQTT.Password,
				TopicPrefix: cfg.MQTT.TopicPrefix,
				Enabled:     cfg.MQTT.Enabled,
				Logger:      log,
			})
			if err != nil {
				log.Warn().Err(err).Msg("MQTT connection failed, publishing disabled")
			} else {
				defer publisher.Close()
				projector.Attach(publisher)
				if cfg.MQTT.Enabled && cfg.MQTT.Discovery {
					if err := publisher.PublishHomeAssistantDiscovery(cmd.Context(), cfg.Inverters.Slots()); err != nil {
						log.Warn().Err(err).Msg("Home Assistant discovery failed")
					}
				}
			}

			hub := api.NewHub(log, func() render.Patch { return projector.Current().Patch() })
			projector.Attach(hub)

			coll := collector.NewCollector(collector.CollectorConfig{
				Source:    solax.NewClient(cfg.Telemetry.URL),
				Slots:     cfg.Inverters.Slots(),
				Interval:  cfg.Telemetry.Interval,
				Frames:    scheduler.NewFrameTicker(cfg.Layout.FrameInterval),
				Params:    cfg.Layout.Params,
				Boxes:     boxes,
				Projector: projector,
				Metrics:   m,
				Logger:    log,
			})

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return coll.Start(ctx) })

			if cfg.API.Enabled {
				server := api.NewServer(api.ServerConfig{
					Port:      cfg.API.Port,
					Collector: coll,
					Database:  db,
					Boxes:     boxes,
					Metrics:   m,
					Hub:       hub,
					WebPath:   cfg.API.WebPath,
					Logger:    log,
				})
				g.Go(server.Start)
				g.Go(func() error {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					return server.Stop(shutdownCtx)
				})
			}

			log.Info().Str("url", cfg.Telemetry.URL).Msg("solax-flow started, press Ctrl+C to stop")
			err = g.Wait()
			log.Info().Msg("shutting down")
			return err
		},
	}
}

func readCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read",
		Short: "Read and classify one telemetry sample",
		Long:  "Fetch the realtime payload once and print the snapshot, tile states and display text",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}

			coll := collector.NewCollector(collector.CollectorConfig{
				Source: solax.NewClient(cfg.Telemetry.URL),
				Slots:  cfg.Inverters.Slots(),
				Logger: log,
			})
			snap, visual, err := coll.CollectOnce(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read data: %w", err)
			}

			texts := map[string]string{}
			for _, t := range render.StatePatch(snap, visual).Texts {
				texts[t.Key()] = t.Text
			}

			output, err := json.MarshalIndent(map[string]interface{}{
				"snapshot": snap,
				"visual":   visual,
				"texts":    texts,
			}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(output))
			return nil
		},
	}
}

func testCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Test the connection to the telemetry endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup()
			if err != nil {
				return err
			}

			fmt.Printf("Testing connection to %s...\n", cfg.Telemetry.URL)

			start := time.Now()
			raw, err := solax.NewClient(cfg.Telemetry.URL).Realtime(cmd.Context())
			if err != nil {
				fmt.Printf("Connection FAILED: %v\n", err)
				return err
			}
			fmt.Printf("Connection SUCCESS! (%s)\n", time.Since(start).Round(time.Millisecond))

			snap, err := inverter.Normalize(raw, cfg.Inverters.Slots(), time.Now())
			if err != nil {
				fmt.Printf("Warning: %v\n", err)
				return nil
			}

			fmt.Printf("\nInverters:\n")
			for _, side := range inverter.Sides {
				node := snap.Node(side)
				fmt.Printf("  %-5s %-12s %s\n", side, node.Serial, node.Connectivity)
			}
			fmt.Printf("\nRecords in payload: %d\n", len(raw.Inverters))
			return nil
		},
	}
}

func layoutCmd() *cobra.Command {
	var boxesFile string

	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Compute the connector geometry for a box fixture",
		Long:  "Load bounding boxes from a YAML fixture and print the rounded trunk, hub and wire rectangles per side",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup()
			if err != nil {
				return err
			}

			reg, err := layout.LoadFixture(boxesFile)
			if err != nil {
				return err
			}

			out := map[string]interface{}{}
			for _, side := range inverter.Sides {
				in, err := reg.Boxes(side)
				if err == nil {
					var g layout.Geometry
					if g, err = layout.Compute(in, cfg.Layout.Params); err == nil {
						rects := map[string]layout.Rect{}
						for _, r := range render.LayoutPatch(side, g).Rects {
							rects[string(r.Part)] = r.Rect
						}
						out[string(side)] = rects
						continue
					}
				}
				out[string(side)] = map[string]string{"skipped": err.Error()}
			}

			output, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(output))
			return nil
		},
	}

	cmd.Flags().StringVarP(&boxesFile, "boxes", "b", "boxes.yaml", "YAML file with per-side bounding boxes")
	return cmd
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mnemora/mnemora/dialogue"
	"github.com/mnemora/mnemora/geoip"
	"github.com/mnemora/mnemora/internal/profile"
	"github.com/mnemora/mnemora/internal/version"
	"github.com/mnemora/mnemora/memory"
	"github.com/mnemora/mnemora/nlp"
	"github.com/mnemora/mnemora/sensor"
	"github.com/mnemora/mnemora/server"
	"github.com/mnemora/mnemora/store"
	"github.com/mnemora/mnemora/store/db"
)

var rootCmd = &cobra.Command{
	Use:   "mnemora",
	Short: `A conversational agent with layered cognitive memory. Every exchange is decomposed into a graph of sensory, semantic, perceptual, episodic and social memory.`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		// Try to load .env from the current directory; absence is fine.
		_ = godotenv.Load()
		return nil
	},
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile := &profile.Profile{
			Mode:    viper.GetString("mode"),
			Addr:    viper.GetString("addr"),
			Port:    viper.GetInt("port"),
			Data:    viper.GetString("data"),
			Driver:  viper.GetString("driver"),
			DSN:     viper.GetString("dsn"),
			FactDir: viper.GetString("fact-dir"),
			Version: version.GetCurrentVersion(viper.GetString("mode")),
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.Validate(); err != nil {
			slog.Error("invalid profile", "error", err)
			os.Exit(1)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		dbDriver, err := db.NewDriver(ctx, instanceProfile)
		if err != nil {
			slog.Error("failed to create graph driver", "error", err)
			return
		}
		storeInstance := store.New(dbDriver)
		if err := dbDriver.Migrate(ctx); err != nil {
			slog.Error("failed to migrate", "error", err)
			return
		}

		analyzer := nlp.NewAnalyzer()
		sentiment := nlp.NewSentimentAnalyzer()

		var lexicon nlp.Lexicon
		var definer dialogue.Definer
		if instanceProfile.WordNetDir != "" {
			wn, err := nlp.OpenWordNet(instanceProfile.WordNetDir)
			if err != nil {
				slog.Warn("wordnet unavailable, semantic stage disabled", "error", err)
			} else {
				lexicon = wn
				definer = wn
			}
		}

		var geo *geoip.Client
		if instanceProfile.GeoEnabled {
			geo = geoip.NewClient()
		}

		pipeline := memory.NewPipeline(storeInstance, analyzer, sentiment, lexicon, geo)
		worker := memory.NewWorker(instanceProfile.WorkerCount, instanceProfile.QueueSize)
		manager := memory.NewManager(storeInstance, pipeline, worker, instanceProfile.AgentName)

		sensorManager := sensor.NewManager(
			instanceProfile.SensorEndpoint, instanceProfile.SensorInterval,
			storeInstance, worker)
		sensorManager.Start(ctx)

		dispatcher := dialogue.NewDispatcher(storeInstance, analyzer, sentiment, definer, sensorManager)
		engine := dialogue.NewPatternEngine(dialogue.DefaultRules(), "")

		s := server.NewServer(instanceProfile, storeInstance, manager, dispatcher, engine, sensorManager)

		c := make(chan os.Signal, 1)
		// The default signal sent by the `kill` command is SIGTERM, which
		// most process managers use to request a graceful shutdown.
		signal.Notify(c, terminationSignals...)

		if err := s.Start(ctx); err != nil {
			slog.Error("failed to start server", "error", err)
			cancel()
		}

		printGreetings(instanceProfile)

		go func() {
			<-c
			s.Shutdown(ctx)
			cancel()

			// Drain pending memory writes before closing the store.
			drainCtx, drainCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer drainCancel()
			sensorManager.Wait()
			if err := worker.Shutdown(drainCtx); err != nil {
				slog.Warn("background writes not fully drained", "error", err)
			}
			if err := dbDriver.Close(); err != nil {
				slog.Warn("failed to close graph driver", "error", err)
			}
		}()

		<-ctx.Done()
	},
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 28091)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 28091, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "graph driver (neo4j, sqlite)")
	rootCmd.PersistentFlags().String("dsn", "", "graph source name, bolt URI or sqlite path")
	rootCmd.PersistentFlags().String("fact-dir", "", "directory for per-user fact files")

	for _, flag := range []string{"mode", "addr", "port", "data", "driver", "dsn", "fact-dir"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("mnemora")
	viper.AutomaticEnv()
}

func printGreetings(p *profile.Profile) {
	fmt.Printf("Mnemora %s started successfully!\n", p.Version)
	fmt.Printf("Data directory: %s\n", p.Data)
	fmt.Printf("Fact directory: %s\n", p.FactDir)
	fmt.Printf("Graph driver: %s\n", p.Driver)
	fmt.Printf("Mode: %s\n", p.Mode)
	if p.Addr == "" {
		fmt.Printf("Server running on port %d\n", p.Port)
	} else {
		fmt.Printf("Server running on %s:%d\n", p.Addr, p.Port)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}

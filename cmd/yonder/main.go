package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yonder-travel/yonder/internal/profile"
	"github.com/yonder-travel/yonder/plugin/textextract"
	"github.com/yonder-travel/yonder/server"
	"github.com/yonder-travel/yonder/server/assistant"
	"github.com/yonder-travel/yonder/store"
	"github.com/yonder-travel/yonder/store/db"
)

const greetingBanner = `Yonder - plan trips together.`

var rootCmd = &cobra.Command{
	Use:   "yonder",
	Short: "Collaborative trip planning with a conversational assistant",
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile := &profile.Profile{
			Mode:        viper.GetString("mode"),
			Addr:        viper.GetString("addr"),
			Port:        viper.GetInt("port"),
			Data:        viper.GetString("data"),
			Driver:      viper.GetString("driver"),
			DSN:         viper.GetString("dsn"),
			InstanceURL: viper.GetString("instance-url"),
			Version:     "0.1.0",
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.Validate(); err != nil {
			slog.Error("invalid profile", slog.String("error", err.Error()))
			os.Exit(1)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		dbDriver, err := db.NewDBDriver(instanceProfile)
		if err != nil {
			slog.Error("failed to create db driver", slog.String("error", err.Error()))
			os.Exit(1)
		}

		storeInstance := store.New(dbDriver, instanceProfile)
		if err := storeInstance.Migrate(ctx); err != nil {
			slog.Error("failed to migrate database", slog.String("error", err.Error()))
			os.Exit(1)
		}

		if instanceProfile.RedisAddr != "" {
			fanout, err := store.NewRedisFanout(instanceProfile.RedisAddr, instanceProfile.RedisChannel, storeInstance.Watcher())
			if err != nil {
				slog.Error("failed to connect redis fanout", slog.String("error", err.Error()))
				os.Exit(1)
			}
			if err := fanout.Start(ctx); err != nil {
				slog.Error("failed to start redis fanout", slog.String("error", err.Error()))
				os.Exit(1)
			}
			storeInstance.SetFanout(fanout)
		}

		var gateway assistant.Gateway
		if instanceProfile.IsAssistantEnabled() {
			cfg := assistant.DefaultConfig()
			cfg.APIKey = instanceProfile.AssistantAPIKey
			cfg.BaseURL = instanceProfile.AssistantBaseURL
			cfg.Model = instanceProfile.AssistantModel
			cfg.MaxTurns = instanceProfile.AssistantMaxTurns
			cfg.UserRPS = instanceProfile.AssistantRPS
			openaiGateway := assistant.NewOpenAIGateway(cfg)
			if instanceProfile.TikaServerURL != "" {
				openaiGateway.SetExtractor(textextract.NewExtractor(textextract.Config{
					ServerURL: instanceProfile.TikaServerURL,
					MaxChars:  20000,
				}))
			}
			gateway = openaiGateway
		} else {
			slog.Warn("assistant is not enabled; chat replies will fail until it is configured")
			gateway = assistant.NewDisabledGateway()
		}

		s, err := server.NewServer(ctx, instanceProfile, storeInstance, gateway)
		if err != nil {
			slog.Error("failed to create server", slog.String("error", err.Error()))
			os.Exit(1)
		}

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-sigs
			slog.Info("received signal, shutting down", slog.String("signal", sig.String()))
			s.Shutdown(ctx)
			cancel()
		}()

		printGreetings(instanceProfile)

		if err := s.Start(ctx); err != nil {
			slog.Error("failed to start server", slog.String("error", err.Error()))
			cancel()
		}

		// Wait for the shutdown goroutine to finish.
		<-ctx.Done()
		time.Sleep(100 * time.Millisecond)
	},
}

func printGreetings(p *profile.Profile) {
	fmt.Println(greetingBanner)
	fmt.Printf("version %s, mode %s, driver %s\n", p.Version, p.Mode, p.Driver)
	fmt.Printf("listening on %s:%d\n", p.Addr, p.Port)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("failed to run command", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("addr", "")
	viper.SetDefault("port", 8081)
	viper.SetDefault("driver", "sqlite")

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 8081, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver")
	rootCmd.PersistentFlags().String("dsn", "", "database source name (aka. DSN)")
	rootCmd.PersistentFlags().String("instance-url", "", "the url of your yonder instance")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		panic(err)
	}
	viper.SetEnvPrefix("yonder")
	viper.AutomaticEnv()
}

// Command urserver runs the urengine HTTP and WebSocket API server.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/yourusername/urengine/internal/config"
	"github.com/yourusername/urengine/internal/logging"
	"github.com/yourusername/urengine/pkg/api"
	"github.com/yourusername/urengine/pkg/engine"
)

const version = "0.1.0"

// personalities returns the built-in AIs with the configured ones added or
// overriding them by name.
func personalities(cfg *config.Config) []engine.AIDefinition {
	defs := engine.DefaultDefinitions()
	index := make(map[string]int, len(defs))
	for i, d := range defs {
		index[d.Name] = i
	}
	for _, d := range cfg.Definitions() {
		if i, ok := index[d.Name]; ok {
			defs[i] = d
			continue
		}
		index[d.Name] = len(defs)
		defs = append(defs, d)
	}
	return defs
}

func serverConfig(cfg *config.Config) api.ServerConfig {
	return api.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxFastWorkers: cfg.Server.MaxFastWorkers,
		MaxSlowWorkers: cfg.Server.MaxSlowWorkers,
		DefaultAI:      cfg.Engine.DefaultAI,
		RolloutTrials:  cfg.Engine.RolloutTrials,
		MaxTrials:      cfg.Engine.MaxTrials,
		Workers:        cfg.Engine.Workers,
		CacheSize:      cfg.Server.CacheSize,
	}
}

func main() {
	configPath := flag.String("config", "", "Path to config file (default: ./config.yaml, ./config/config.yaml, /etc/urengine/config.yaml)")
	host := flag.String("host", "", "Host to bind to, overriding the config (use 0.0.0.0 for all interfaces)")
	port := flag.Int("port", 0, "Port to listen on, overriding the config")
	watch := flag.Bool("watch", true, "Reload AI personalities when the config file changes")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("urserver v%s\n", version)
		os.Exit(0)
	}

	m, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg := m.Get()
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)
	if path := m.ConfigFilePath(); path != "" {
		logger.Info().Str("file", path).Msg("configuration loaded")
	}

	reg := engine.NewRegistry(
		engine.WithWorkers(cfg.Engine.Workers),
		engine.WithLogger(logger.With().Str("component", "montecarlo").Logger()),
	)
	if err := reg.Replace(personalities(cfg)); err != nil {
		log.Fatal().Err(err).Msg("invalid AI personalities")
	}
	if _, err := reg.Get(cfg.Engine.DefaultAI); err != nil {
		log.Fatal().Err(err).Msg("invalid default AI")
	}
	logger.Info().Strs("ais", reg.Names()).Msg("AI personalities ready")

	if *watch && m.ConfigFilePath() != "" {
		m.Watch(func(next *config.Config, err error) {
			if err != nil {
				logger.Error().Err(err).Msg("config reload failed; keeping previous personalities")
				return
			}
			if err := reg.Replace(personalities(next)); err != nil {
				logger.Error().Err(err).Msg("config reload rejected")
				return
			}
			if next.Engine.DefaultAI != cfg.Engine.DefaultAI || next.Server != cfg.Server {
				logger.Warn().Msg("server and default AI settings take effect after a restart")
			}
			logger.Info().Strs("ais", reg.Names()).Msg("AI personalities reloaded")
		})
	}

	sc := serverConfig(cfg)
	if *host != "" {
		sc.Host = *host
	}
	if *port != 0 {
		sc.Port = *port
	}

	server := api.NewServer(reg, sc, version, logger)
	if err := server.ListenAndServeWithGracefulShutdown(); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

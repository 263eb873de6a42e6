package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gator-chat/internal/utils"
	"gator-chat/simulator"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Options are the simulator's command line flags.
type Options struct {
	EngineURL      string        `short:"u" long:"url" default:"http://localhost:8080" description:"base URL of the chat server"`
	Users          int           `long:"users" default:"20" description:"number of simulated users"`
	Groups         int           `long:"groups" default:"3" description:"number of group conversations"`
	GroupSize      int           `long:"group-size" default:"5" description:"members per group including the creator"`
	Directs        int           `long:"directs" default:"3" description:"direct conversations opened per user"`
	Duration       time.Duration `short:"d" long:"duration" default:"2m" description:"how long to run"`
	Rate           float64       `short:"r" long:"rate" default:"30" description:"messages per user per minute"`
	DeleteRate     float64       `long:"delete-rate" default:"0.05" description:"fraction of messages deleted after sending"`
	DisconnectRate float64       `long:"disconnect-rate" default:"0.01" description:"chance per second a user goes offline"`
	ReconnectRate  float64       `long:"reconnect-rate" default:"0.05" description:"chance per second an offline user returns"`
	Zipf           float64       `long:"zipf" default:"1.07" description:"Zipf skew for partner and conversation choice (must be > 1)"`
	Retries        uint64        `long:"retries" default:"3" description:"retries for failed requests"`
	JWTSecret      string        `long:"jwt-secret" env:"JWT_SECRET" description:"secret the server verifies tokens with"`
	JWTIssuer      string        `long:"jwt-issuer" env:"JWT_ISSUER" default:"gator-chat" description:"token issuer"`
	Debug          bool          `long:"debug" description:"log every failed request"`
}

func (o *Options) simConfig() simulator.SimConfig {
	return simulator.SimConfig{
		NumUsers:         o.Users,
		NumGroups:        o.Groups,
		GroupSize:        o.GroupSize,
		DirectsPerUser:   o.Directs,
		SimulationTime:   o.Duration,
		MessageFrequency: o.Rate,
		DeleteRate:       o.DeleteRate,
		DisconnectRate:   o.DisconnectRate,
		ReconnectRate:    o.ReconnectRate,
		ZipfS:            o.Zipf,
		MaxRetries:       o.Retries,
		EngineURL:        o.EngineURL,
		JWTSecret:        o.JWTSecret,
		JWTIssuer:        o.JWTIssuer,
	}
}

func parseOptions(args []string) (*Options, error) {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	if opts.JWTSecret == "" {
		return nil, errors.New("a JWT secret is required (--jwt-secret or JWT_SECRET)")
	}
	return &opts, nil
}

func main() {
	_ = godotenv.Load()

	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
			os.Exit(1)
		}
		utils.NewLogger(false).Error("Invalid options", "error", err)
		os.Exit(1)
	}
	config := opts.simConfig()
	logger := utils.NewLogger(opts.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, config.SimulationTime)
	defer cancel()

	logger.Info("Simulation configuration",
		"engine_url", config.EngineURL,
		"users", config.NumUsers,
		"groups", config.NumGroups,
		"duration", config.SimulationTime,
		"messages_per_minute", config.MessageFrequency,
		"delete_rate", config.DeleteRate,
		"disconnect_rate", config.DisconnectRate,
		"reconnect_rate", config.ReconnectRate,
		"zipf", config.ZipfS,
	)

	sim := simulator.NewSimulator(config, logger)
	if err := sim.Run(ctx); err != nil {
		logger.Error("Simulation failed", "error", err)
		os.Exit(1)
	}

	metrics := sim.GetMetrics()
	logger.Info("Simulation completed",
		"total_users", metrics.TotalUsers,
		"active_users", metrics.ActiveUsers,
		"conversations", metrics.Conversations,
		"messages", metrics.MessagesSent,
		"deleted", metrics.MessagesDeleted,
		"reads", metrics.ReadsMarked,
		"requests", metrics.TotalRequests,
		"avg_latency", metrics.AverageLatency,
		"errors", metrics.ErrorCount,
	)
}

package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/chardev/chardev/internal/chardevd/config"
	"github.com/chardev/chardev/internal/chardevd/server"
	"github.com/chardev/chardev/internal/common/logtrace"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type cmdoptions struct {
	configFile string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Error().Err(err).Msg("chardevd failed")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	opt := parseFlags()

	if err := config.LoadConfig(opt.configFile); err != nil {
		return errors.Wrap(err, "loading config file")
	}
	cfg := config.Config()
	logtrace.InitLogger(cfg.LogLevel)
	slog := log.With().Str("state", "init").Logger()
	slog.Info().Str("config_file", opt.configFile).Msg("config loaded")
	ctx = log.Logger.WithContext(ctx)

	device, err := server.NewDevice(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "creating device")
	}
	defer device.Close(ctx)

	s, err := server.CreateNewServer(cfg, device)
	if err != nil {
		return errors.Wrap(err, "creating server")
	}
	s.MountHandlers()

	tcpListener, err := net.Listen("tcp", cfg.Address())
	if err != nil {
		return errors.Wrapf(err, "listening on %s", cfg.Address())
	}
	nodeListener, err := server.ListenDeviceNode(cfg.DeviceNode)
	if err != nil {
		tcpListener.Close()
		return errors.Wrapf(err, "registering device node %s", cfg.DeviceNode)
	}
	slog.Info().
		Str("device_node", cfg.DeviceNode).
		Str("address", cfg.Address()).
		Int("capacity", cfg.Capacity).
		Msg("device registered")

	if err := s.Serve(ctx, tcpListener, nodeListener); err != nil {
		return errors.Wrap(err, "server error")
	}
	log.Info().Msg("chardevd stopped")
	return nil
}

func parseFlags() cmdoptions {
	var opt cmdoptions
	flag.StringVar(&opt.configFile, "config", config.DefaultConfigFile, "Path to the config file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [options]\n\n", os.Args[0])
		fmt.Println("Options:")
		flag.PrintDefaults()
	}
	flag.Parse()
	return opt
}

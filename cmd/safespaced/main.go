// Command safespaced runs the edge node daemon: camera capture,
// detection, reporting, and the Central Unit link, controlled over a Unix
// socket by the safespace CLI.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"safespace/internal/config"
	"safespace/internal/ipc"
	"safespace/internal/journal"
	"safespace/internal/logging"
	"safespace/internal/node"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.config/safespace/config.toml)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, path, exists, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if !exists {
		log.Printf("no config file at %s, using defaults", path)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	jstore, err := journal.Open(cfg)
	if err != nil {
		logger.Error("open journal store", logging.Error(err))
		os.Exit(1)
	}
	defer jstore.Close()

	n, err := node.New(cfg, jstore, logger)
	if err != nil {
		logger.Error("create node", logging.Error(err))
		os.Exit(1)
	}
	defer n.Close()

	ipcServer, err := ipc.NewServer(ctx, cfg.SocketPath(), n, cancel, logger)
	if err != nil {
		logger.Error("start IPC server", logging.Error(err))
		os.Exit(1)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := n.Start(ctx); err != nil {
		logger.Error("start node", logging.Error(err))
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("safespaced shutting down")
	n.Stop()
}

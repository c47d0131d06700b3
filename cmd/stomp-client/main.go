package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/config"
	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/console"
	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/database"
	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/event"
	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/game"
	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/logger"
	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/session"
	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/transport"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the JSON configuration file")
	flag.Parse()

	cfg, err := config.ReadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error occured while reading config: %v\n", err)
		os.Exit(1)
	}
	loggerCallback := logger.Init(cfg)
	logger.Debug("Application initializing...")
	cleaner := event.NewCleaner()
	cleaner.Init(loggerCallback)

	var archiver database.Archiver
	if cfg.Archive.Enabled {
		archive, err := database.ConnectArchive(cfg)
		if err != nil {
			logger.ErrorF("Error occured while connecting to archive, events will not be archived: %v", err)
		} else {
			cleaner.Add(archive)
			archiver = archive
		}
	}

	conn := transport.New()
	client := session.New(
		conn,
		database.NewMemoryStore(archiver),
		game.NewFileParser(),
		os.Stdout,
		session.OptionsFromConfig(cfg),
	)
	cleaner.Add(event.CallableFunc(func(context.Context) error {
		client.Close()
		return nil
	}))

	editor := console.NewLineEditor()
	if err := console.NewREPL(editor, client).Run(); err != nil {
		logger.ErrorF("Input loop stopped: %v", err)
	}
	editor.Close()

	client.Close()
	client.Wait()
	cleaner.Clean()
	fmt.Println("Client terminated.")
}

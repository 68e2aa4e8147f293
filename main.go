package main

import (
	"flag"
	"log"

	chunkserver "github.com/chunkgrid/storagenode/chunkServer"
	"github.com/chunkgrid/storagenode/engine"
	engineconfig "github.com/chunkgrid/storagenode/engine/config"
)

// main starts a single chunk server process: it loads the replication
// engine's configuration, attaches a freshly built engine to a new
// ChunkServer, and blocks serving master/peer/client connections.
func main() {
	port := flag.String("port", "8081", "TCP port this chunk server listens on")
	configPath := flag.String("config", "", "optional YAML file overlaying the engine's default configuration")
	flag.Parse()

	cfg := engine.DefaultConfig()
	if *configPath != "" {
		loaded, err := engineconfig.Load(*configPath)
		if err != nil {
			log.Fatalf("failed to load config %s: %v", *configPath, err)
		}
		cfg = loaded
	}

	server := chunkserver.NewChunkServer(*port)
	server.AttachEngine(cfg, nil)
	server.Start()
}

package main

import (
	"fmt"
	"os"

	"github.com/MKhiriev/go-firesync/internal/client"
	"github.com/MKhiriev/go-firesync/internal/config"
	"github.com/MKhiriev/go-firesync/internal/logger"
	"github.com/MKhiriev/go-firesync/models"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	buildInfo := printBuildInfo()

	cfg, err := config.GetClientConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error getting configs: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewClientLogger("go-firesync-chat", cfg.App.LogFile)
	log.Debug().
		Str("base_url", cfg.Adapter.BaseURL).
		Str("storage", cfg.Storage.Backend).
		Str("collection", cfg.Chat.Collection).
		Msg("received configs")

	app, err := client.NewApp(cfg, buildInfo, log)
	if err != nil {
		log.Fatal().Err(err).Msg("init client app error")
	}

	if err = app.Run(); err != nil {
		log.Fatal().Err(err).Msg("client run error")
	}
}

func printBuildInfo() models.AppBuildInfo {
	info := models.NewAppBuildInfo(buildVersion, buildDate, buildCommit)
	fmt.Println(info.String())
	return info
}

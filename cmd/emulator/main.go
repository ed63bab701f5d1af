package main

import (
	"context"
	"fmt"
	"os"

	"github.com/MKhiriev/go-firesync/internal/config"
	"github.com/MKhiriev/go-firesync/internal/emulator"
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

	log := logger.NewLogger("go-firesync-emulator")
	log.Info().Str("version", buildInfo.BuildVersion()).Str("commit", buildInfo.BuildCommit()).Msg("starting emulator")
	cfg, err := config.GetEmulatorConfig(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}

	log.Debug().Str("address", cfg.Address).Dur("keep_alive", cfg.KeepAlive).Bool("auth", cfg.AuthToken != "").Msg("received configs")

	if err = emulator.New(*cfg, log).Run(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("emulator run error")
	}
}

func printBuildInfo() models.AppBuildInfo {
	info := models.NewAppBuildInfo(buildVersion, buildDate, buildCommit)
	fmt.Println(info.String())
	return info
}

package config

import (
	"errors"
	"flag"
	"net"
	"strconv"
	"strings"
	"time"
)

// NetAddress holds structured network address data for host and port.
// It implements the flag.Value interface.
type NetAddress struct {
	Host string
	Port int
}

// parseFlags parses all configuration flags from args.
//
// Flags:
//
//	-u remote base URL
//	-t auth token
//	-access-token send the token as access_token
//	-request-timeout request timeout (e.g., "30s", "1m")
//	-rps outbound requests per second
//	-storage local store backend: memory, file, sqlite
//	-d local store directory
//	-m store file name modifier
//	-sync-interval pause between reconciliation passes
//	-retry-delay pause before a dropped stream reconnects
//	-initial-pull none, missing_only, everything
//	-streaming none, latest_only, everything
//	-no-push keep local writes local
//	-a emulator address in format [host]:[port]
//	-collection chat collection path
//	-author chat author name
//	-log log file path
//	-c/-config json file path with configs
func parseFlags(args []string) (*StructuredConfig, error) {
	var emulatorAddress NetAddress
	var baseURL, authToken string
	var asAccessToken bool
	var requestTimeout time.Duration
	var rps float64
	var backend, dir, modifier string
	var syncInterval, retryDelay time.Duration
	var initialPull, streaming string
	var noPush bool
	var collection, author string
	var logFile string
	var jsonConfigPath string

	fs := flag.NewFlagSet("firesync", flag.ContinueOnError)
	fs.StringVar(&baseURL, "u", "", "Remote base URL")
	fs.StringVar(&authToken, "t", "", "Auth token")
	fs.BoolVar(&asAccessToken, "access-token", false, "Send the token as access_token")
	fs.DurationVar(&requestTimeout, "request-timeout", 0, "Request timeout (e.g., 30s, 1m)")
	fs.Float64Var(&rps, "rps", 0, "Outbound requests per second")
	fs.StringVar(&backend, "storage", "", "Local store backend: memory, file, sqlite")
	fs.StringVar(&dir, "d", "", "Local store directory")
	fs.StringVar(&modifier, "m", "", "Store file name modifier")
	fs.DurationVar(&syncInterval, "sync-interval", 0, "Pause between reconciliation passes")
	fs.DurationVar(&retryDelay, "retry-delay", 0, "Pause before a dropped stream reconnects")
	fs.StringVar(&initialPull, "initial-pull", "", "Initial pull: none, missing_only, everything")
	fs.StringVar(&streaming, "streaming", "", "Streaming: none, latest_only, everything")
	fs.BoolVar(&noPush, "no-push", false, "Keep local writes local")
	fs.Var(&emulatorAddress, "a", "Emulator net address host:port")
	fs.StringVar(&collection, "collection", "", "Chat collection path")
	fs.StringVar(&author, "author", "", "Chat author name")
	fs.StringVar(&logFile, "log", "", "Log file path")
	fs.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	fs.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return &StructuredConfig{
		App: App{
			LogFile: logFile,
		},
		Adapter: Adapter{
			BaseURL:           baseURL,
			AuthToken:         authToken,
			AsAccessToken:     asAccessToken,
			RequestTimeout:    requestTimeout,
			RequestsPerSecond: rps,
		},
		Storage: Storage{
			Backend:          backend,
			Dir:              dir,
			FilenameModifier: modifier,
		},
		Workers: Workers{
			SyncInterval:     syncInterval,
			StreamRetryDelay: retryDelay,
			InitialPull:      initialPull,
			Streaming:        streaming,
			DisablePush:      noPush,
		},
		Server: Server{
			Address: emulatorAddress.String(),
		},
		Chat: Chat{
			Collection: collection,
			Author:     author,
		},
		JSONFilePath: jsonConfigPath,
	}, nil
}

// String returns a canonical host:port string for a NetAddress.
// If neither Host nor Port are set, it returns an empty string.
func (a *NetAddress) String() string {
	if a.Host == "" && a.Port == 0 {
		return ""
	}

	return a.Host + ":" + strconv.Itoa(a.Port)
}

// Set parses the input string of form host:port and populates the NetAddress.
// It validates the port range, checks IP correctness unless host is "localhost",
// and returns an error if the format or values are invalid.
func (a *NetAddress) Set(s string) error {
	hostAndPort := strings.Split(s, ":")
	if len(hostAndPort) != 2 {
		return errors.New("need address in a form `host:port`")
	}

	host := hostAndPort[0]
	port, err := strconv.Atoi(hostAndPort[1])
	if err != nil {
		return err
	}

	if port < 1 {
		return errors.New("port number is a positive integer")
	}

	if host != "localhost" && host != "" {
		ip := net.ParseIP(hostAndPort[0])
		if ip == nil {
			return errors.New("incorrect IP-address provided")
		}
	}

	a.Host = host
	a.Port = port
	return nil
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type StructuredJSONConfig struct {
	App struct {
		Version string `json:"version"`
		LogFile string `json:"log_file"`
	} `json:"app,omitempty"`

	Adapter struct {
		BaseURL           string   `json:"base_url"`
		AuthToken         string   `json:"auth_token"`
		AsAccessToken     bool     `json:"as_access_token"`
		RequestTimeout    Duration `json:"request_timeout"`
		RequestsPerSecond float64  `json:"requests_per_second"`
		Burst             int      `json:"burst"`
	} `json:"adapter,omitempty"`

	Storage struct {
		Backend          string `json:"backend"`
		Dir              string `json:"dir"`
		FilenameModifier string `json:"filename_modifier"`
	} `json:"storage,omitempty"`

	Workers struct {
		SyncInterval     Duration `json:"sync_interval"`
		StreamRetryDelay Duration `json:"stream_retry_delay"`
		InitialPull      string   `json:"initial_pull"`
		Streaming        string   `json:"streaming"`
		DisablePush      bool     `json:"disable_push"`
	} `json:"workers,omitempty"`

	Server struct {
		Address   string   `json:"address"`
		AuthToken string   `json:"auth_token"`
		KeepAlive Duration `json:"keep_alive"`
	} `json:"server,omitempty"`

	Chat struct {
		Collection string `json:"collection"`
		Author     string `json:"author"`
	} `json:"chat,omitempty"`
}

func parseJSON(jsonFilePath string) (*StructuredConfig, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg StructuredJSONConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &StructuredConfig{
		App: App{
			Version: jsonCfg.App.Version,
			LogFile: jsonCfg.App.LogFile,
		},
		Adapter: Adapter{
			BaseURL:           jsonCfg.Adapter.BaseURL,
			AuthToken:         jsonCfg.Adapter.AuthToken,
			AsAccessToken:     jsonCfg.Adapter.AsAccessToken,
			RequestTimeout:    time.Duration(jsonCfg.Adapter.RequestTimeout),
			RequestsPerSecond: jsonCfg.Adapter.RequestsPerSecond,
			Burst:             jsonCfg.Adapter.Burst,
		},
		Storage: Storage{
			Backend:          jsonCfg.Storage.Backend,
			Dir:              jsonCfg.Storage.Dir,
			FilenameModifier: jsonCfg.Storage.FilenameModifier,
		},
		Workers: Workers{
			SyncInterval:     time.Duration(jsonCfg.Workers.SyncInterval),
			StreamRetryDelay: time.Duration(jsonCfg.Workers.StreamRetryDelay),
			InitialPull:      jsonCfg.Workers.InitialPull,
			Streaming:        jsonCfg.Workers.Streaming,
			DisablePush:      jsonCfg.Workers.DisablePush,
		},
		Server: Server{
			Address:   jsonCfg.Server.Address,
			AuthToken: jsonCfg.Server.AuthToken,
			KeepAlive: time.Duration(jsonCfg.Server.KeepAlive),
		},
		Chat: Chat{
			Collection: jsonCfg.Chat.Collection,
			Author:     jsonCfg.Chat.Author,
		},
		JSONFilePath: "",
	}

	return cfg, nil
}

// Duration is a wrapper around time.Duration that supports JSON unmarshaling from strings like "1h", "30s"
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return json.Unmarshal(b, (*time.Duration)(d))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

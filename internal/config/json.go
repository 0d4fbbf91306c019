package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type StructuredJSONConfig struct {
	Remote struct {
		BaseURL        string   `json:"base_url"`
		HealthPath     string   `json:"health_path"`
		RequestTimeout Duration `json:"request_timeout"`
	} `json:"remote,omitempty"`

	Storage struct {
		Backend string `json:"backend"`

		File struct {
			Path     string `json:"path"`
			Compress bool   `json:"compress"`
		} `json:"file,omitempty"`

		DB struct {
			DSN string `json:"dsn"`
		} `json:"db,omitempty"`
	} `json:"storage,omitempty"`

	Sync struct {
		BatchSize   int      `json:"batch_size"`
		MaxRetries  int      `json:"max_retries"`
		Debounce    Duration `json:"debounce"`
		Interval    Duration `json:"interval"`
		BackoffBase Duration `json:"backoff_base"`
		BackoffCap  Duration `json:"backoff_cap"`
	} `json:"sync,omitempty"`

	Network struct {
		ProbeInterval Duration `json:"probe_interval"`
	} `json:"network,omitempty"`

	LogPath string `json:"log_path"`
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
		Remote: Remote{
			BaseURL:        jsonCfg.Remote.BaseURL,
			HealthPath:     jsonCfg.Remote.HealthPath,
			RequestTimeout: time.Duration(jsonCfg.Remote.RequestTimeout),
		},
		Storage: Storage{
			Backend: jsonCfg.Storage.Backend,
			File: FileStore{
				Path:     jsonCfg.Storage.File.Path,
				Compress: jsonCfg.Storage.File.Compress,
			},
			DB: DB{
				DSN: jsonCfg.Storage.DB.DSN,
			},
		},
		Sync: Sync{
			BatchSize:   jsonCfg.Sync.BatchSize,
			MaxRetries:  jsonCfg.Sync.MaxRetries,
			Debounce:    time.Duration(jsonCfg.Sync.Debounce),
			Interval:    time.Duration(jsonCfg.Sync.Interval),
			BackoffBase: time.Duration(jsonCfg.Sync.BackoffBase),
			BackoffCap:  time.Duration(jsonCfg.Sync.BackoffCap),
		},
		Network: Network{
			ProbeInterval: time.Duration(jsonCfg.Network.ProbeInterval),
		},
		LogPath:      jsonCfg.LogPath,
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

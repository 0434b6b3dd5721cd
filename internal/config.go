package internal

import (
	"encoding/json"
	"log"
	"os"

	"github.com/sitepipe/sitepipe/internal/util"
)

var Config *Configuration

type Configuration struct {
	QueueSize        int64 `json:"queue_size"`
	RunRetentionDays int64 `json:"run_retention_days"`
	// DrainPageSize caps how many objects one listing page may return
	// during a bucket drain. Zero means the storage service default.
	DrainPageSize int32 `json:"drain_page_size"`
}

func InitializeConfiguration() {
	Config = &Configuration{
		QueueSize:        3,
		RunRetentionDays: 90,
		DrainPageSize:    0,
	}

	configFileExists, _ := util.PathExists("config.json")
	if !configFileExists {
		b, err := json.MarshalIndent(Config, "", "    ")
		if err != nil {
			log.Fatal(err)
		}
		configFile, err := os.Create("config.json")
		if err != nil {
			log.Fatal(err)
		}
		if _, err := configFile.Write(b); err != nil {
			log.Fatal(err)
		}
	} else {
		configBytes, err := os.ReadFile("config.json")
		if err != nil {
			log.Fatal(err)
		}
		if err := json.Unmarshal(configBytes, &Config); err != nil {
			log.Fatal(err)
		}
	}
}

func UpdateConfiguration(config *Configuration) error {
	b, err := json.MarshalIndent(config, "", "    ")
	if err != nil {
		return err
	}

	configFile, err := os.Create("config.json")
	if err != nil {
		return err
	}

	if _, err := configFile.Write(b); err != nil {
		return err
	}

	Config = config

	return nil
}

package backend

import (
	"fmt"
	"time"

	"spesevoce/internal/config"
	"spesevoce/internal/storage/postgres"
)

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string
	Postgres     postgres.Config

	AnnotatorProvider       string
	GoogleAPIKey            string
	GoogleLanguageCredsFile string
	GeminiAPIKey            string
	GeminiModel             string
	AnnotationCache         string
	AnnotationCacheSize     int
	AnnotationCacheTTL      time.Duration
	RedisAddr               string

	EventsBackend string
	AMQPURL       string
	AMQPExchange  string
	AMQPQueue     string
	KafkaBrokers  []string
	KafkaTopic    string
	KafkaGroupID  string

	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	Location                 *time.Location
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}
	loc, err := appConfig.Location()
	if err != nil {
		return Config{}, fmt.Errorf("ledger timezone: %w", err)
	}

	return Config{
		Type: backendType,

		SQLiteDBPath: appConfig.SQLiteDBPath,
		Postgres: postgres.Config{
			Host:     appConfig.PostgresHost,
			Port:     appConfig.PostgresPort,
			Database: appConfig.PostgresDB,
			User:     appConfig.PostgresUser,
			Password: appConfig.PostgresPassword,
			SSLMode:  appConfig.PostgresSSLMode,
		},

		AnnotatorProvider:       appConfig.AnnotatorProvider,
		GoogleAPIKey:            appConfig.GoogleAPIKey,
		GoogleLanguageCredsFile: appConfig.GoogleLanguageCredsFile,
		GeminiAPIKey:            appConfig.GeminiAPIKey,
		GeminiModel:             appConfig.GeminiModel,
		AnnotationCache:         appConfig.AnnotationCache,
		AnnotationCacheSize:     appConfig.AnnotationCacheSize,
		AnnotationCacheTTL:      appConfig.AnnotationCacheTTL,
		RedisAddr:               appConfig.RedisAddr,

		EventsBackend: appConfig.EventsBackend,
		AMQPURL:       appConfig.AMQPURL,
		AMQPExchange:  appConfig.AMQPExchange,
		AMQPQueue:     appConfig.AMQPQueue,
		KafkaBrokers:  appConfig.KafkaBrokers,
		KafkaTopic:    appConfig.KafkaTopic,
		KafkaGroupID:  appConfig.KafkaGroupID,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleSheetName:          appConfig.GoogleSheetName,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
		Location:                 loc,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case PostgresBackend:
		if c.Postgres.Host == "" {
			return fmt.Errorf("postgres host is required for postgres backend")
		}
	}
	return nil
}

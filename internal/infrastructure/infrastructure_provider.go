package infrastructure

import (
	"github.com/google/wire"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"dispatch-server/services/dispatch-api/internal/config"
	"dispatch-server/services/dispatch-api/internal/domain/dispatch"
	"dispatch-server/services/dispatch-api/internal/infrastructure/crontab"
	"dispatch-server/services/dispatch-api/internal/infrastructure/database"
	"dispatch-server/services/dispatch-api/internal/infrastructure/database/repository/dispatchrepo"
	"dispatch-server/services/dispatch-api/internal/infrastructure/devicectl"
	"dispatch-server/services/dispatch-api/internal/infrastructure/geocode"
	"dispatch-server/services/dispatch-api/internal/infrastructure/inference"
	"dispatch-server/services/dispatch-api/internal/infrastructure/invoker"
	"dispatch-server/services/dispatch-api/internal/infrastructure/logger"
)

// ProvideConfig loads and provides the application configuration
func ProvideConfig() (*config.Config, error) {
	return config.Load()
}

// ProvideDatabase provides a database connection
func ProvideDatabase(cfg *config.Config, log zerolog.Logger) (*gorm.DB, error) {
	db, err := database.NewDB(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	// Run migrations if AUTO_MIGRATE is enabled
	if cfg.AutoMigrate {
		log.Info().Msg("Running database migrations...")
		if err := database.AutoMigrate(db); err != nil {
			log.Error().Err(err).Msg("Failed to run database migrations")
			return nil, err
		}
		log.Info().Msg("Database migrations completed successfully")
	}

	return db, nil
}

// ProvideInvokerFactory builds the per-scope invocation managers from the
// endpoint group file and environment tunings.
func ProvideInvokerFactory(cfg *config.Config, log zerolog.Logger) *invoker.Factory {
	defaults := invoker.Options{
		FailureThreshold: cfg.FailureThreshold,
		RecoveryInterval: cfg.RecoveryInterval,
		MaxConcurrency:   cfg.MaxConcurrency,
		RequestTimeout:   cfg.RequestTimeout,
		OverallTimeout:   cfg.OverallTimeout,
	}
	registry := invoker.NewRegistry(cfg.EndpointGroups.Groups(), nil)
	overrides := cfg.EndpointGroups.Overrides(defaults)
	log.Info().Strs("scopes", registry.Scopes()).Msg("invoker endpoint groups loaded")
	return invoker.NewFactory(registry, defaults, overrides, log)
}

// ProvideIntentExtractor wires the inference-backed intent extractor.
func ProvideIntentExtractor(cfg *config.Config, factory *invoker.Factory, log zerolog.Logger) dispatch.IntentExtractor {
	return inference.NewIntentExtractor(factory, cfg.InferenceScope, cfg.IntentModel, cfg.KnownDevices, log)
}

// ProvideGeocoder wires the forward geocoding client.
func ProvideGeocoder(cfg *config.Config, factory *invoker.Factory, log zerolog.Logger) dispatch.Geocoder {
	return geocode.NewClient(factory, cfg.GeocodingScope, log)
}

// ProvideDevicePublisher connects to the device-control broker.
func ProvideDevicePublisher(cfg *config.Config, log zerolog.Logger) (dispatch.DevicePublisher, error) {
	return devicectl.Connect(devicectl.Options{
		BrokerURL: cfg.MQTTBrokerURL,
		ClientID:  cfg.MQTTClientID,
		Username:  cfg.MQTTUsername,
		Password:  cfg.MQTTPassword,
		Topic:     cfg.MQTTCommandTopic,
		Timeout:   cfg.MQTTTimeout,
	}, log)
}

// Infrastructure holds all infrastructure dependencies
type Infrastructure struct {
	DB       *gorm.DB
	Invokers *invoker.Factory
	Logger   zerolog.Logger
}

// NewInfrastructure creates a new infrastructure instance
func NewInfrastructure(db *gorm.DB, invokers *invoker.Factory, logger zerolog.Logger) *Infrastructure {
	return &Infrastructure{
		DB:       db,
		Invokers: invokers,
		Logger:   logger,
	}
}

// InfrastructureProvider provides all infrastructure dependencies
var InfrastructureProvider = wire.NewSet(
	// Config
	ProvideConfig,

	// Database
	ProvideDatabase,
	dispatchrepo.NewDispatchRepository,

	// Invocation layer
	ProvideInvokerFactory,

	// Dispatch collaborators
	ProvideIntentExtractor,
	ProvideGeocoder,
	ProvideDevicePublisher,

	// Crontab for endpoint health export
	crontab.NewCrontab,

	// Logger
	logger.GetLogger,

	// Infrastructure struct
	NewInfrastructure,
)

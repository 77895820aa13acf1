package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mailster/scenario/internal/adapters/standalone"
	"github.com/mailster/scenario/internal/config"
	"github.com/mailster/scenario/internal/core"
	"github.com/mailster/scenario/internal/custom"
	"github.com/mailster/scenario/internal/engine"
	"github.com/mailster/scenario/internal/factory"
	"github.com/mailster/scenario/internal/logging"
	"github.com/mailster/scenario/internal/scenario"
	"github.com/mailster/scenario/internal/search"
)

// BuildContainer creates and configures a dependency injection container.
// The collaborator ports (user store, list resolver) default to the
// standalone stand-ins; embedding applications override them by providing
// their own implementations before invoking.
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register clock
	if err := container.Provide(func() core.Clock {
		return core.SystemClock{}
	}); err != nil {
		return nil, err
	}

	// Register robot configuration reader
	if err := container.Provide(func(cfg *config.Config) core.RobotConfig {
		return cfg
	}); err != nil {
		return nil, err
	}

	// Register factories and caches
	if err := container.Provide(factory.NewSearchFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewCaches); err != nil {
		return nil, err
	}

	// Register search engine
	if err := container.Provide(func(f *factory.SearchFactory, caches *factory.Caches) (*search.Engine, error) {
		return f.CreateSearchEngine(caches.Filter)
	}); err != nil {
		return nil, err
	}

	// Register scenario store
	if err := container.Provide(scenario.NewStore); err != nil {
		return nil, err
	}

	// Register custom condition registry
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger, caches *factory.Caches) *custom.Registry {
		return custom.NewRegistry(logger, caches.Filter, cfg.GetStringSlice("scenario.paths"))
	}); err != nil {
		return nil, err
	}

	// Register collaborator stand-ins
	if err := container.Provide(func() core.UserStore {
		return standalone.UserStore{}
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func() core.ListResolver {
		return standalone.ListResolver{}
	}); err != nil {
		return nil, err
	}

	// Register decision engine
	if err := container.Provide(func(
		store *scenario.Store,
		searchEngine *search.Engine,
		customReg *custom.Registry,
		conf core.RobotConfig,
		users core.UserStore,
		lists core.ListResolver,
		logger *zap.Logger,
		clock core.Clock,
		caches *factory.Caches,
	) *engine.Engine {
		return engine.New(store, searchEngine, customReg, conf, users, lists, logger, clock, caches.RobotParams)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

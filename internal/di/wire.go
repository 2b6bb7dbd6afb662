//go:build wireinject
// +build wireinject

package di

import (
	"MTFCast/pkg/config"
	"MTFCast/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure
		ProvideBarStore,
		ProvideResultSink,
		ProvideCache,
		ProvidePusher,

		// Model and outputs
		ProvideTrainable,
		ProvideSaver,

		// Use case
		ProvideRunBacktest,

		// Application
		ProvideApp,
	)
	return &server.App{}, nil
}

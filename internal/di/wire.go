//go:build wireinject
// +build wireinject

package di

import (
	"SensorPull/pkg/config"
	"SensorPull/pkg/server"

	"github.com/google/wire"
)

// InitializeApp builds the application graph from cfg.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(InfraSet, PipelineSet, APISet)
	return nil, nil
}

package statebox

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type (
	Config struct {
		Name             string
		Logger           *zap.Logger
		Metrics          MetricsConfig
		Workers          int
		QueueSize        int
		IsolateListeners bool
	}

	MetricsConfig struct {
		Registerer  prometheus.Registerer
		ConstLabels prometheus.Labels
		Namespace   string
		Subsystem   string
	}
)

const (
	DefaultStoreName        = "default"
	DefaultMetricsNamespace = "statebox"
	DefaultWorkers          = 0
	DefaultQueueSize        = 1024
)

func DefaultConfig() Config {
	return Config{
		Name:             DefaultStoreName,
		Metrics:          DefaultMetricsConfig(),
		Workers:          DefaultWorkers,
		QueueSize:        DefaultQueueSize,
		IsolateListeners: false,
	}
}

func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: DefaultMetricsNamespace,
	}
}

func (c Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger.With(zap.String("store", c.Name))
}

package metrics

import "github.com/hausnetz/eos/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks          []factory.ModuleConfig `json:"sinks" yaml:"sinks"`
	PrometheusPort int                    `json:"prometheus_port" yaml:"prometheus_port"`
}

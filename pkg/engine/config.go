package engine

import "github.com/opst/mlengine/pkg/configs/server"

// FromConfig builds a client as configured. options are applied after the configuration.
func FromConfig(conf *server.EngineConfig, options ...Option) (*Client, error) {
	opts := []Option{WithTimeout(conf.Timeout())}
	if key := conf.SigningKey(); len(key) != 0 {
		opts = append(opts, WithSigningKey(key))
	}
	if rl := conf.RateLimit(); rl != nil {
		opts = append(opts, WithRateLimit(rl.RPS(), rl.Burst()))
	}
	return New(conf.URL(), append(opts, options...)...)
}

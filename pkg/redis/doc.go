// Package redis provides helpers for connecting to a Redis server.
//
// Connect wraps the go-redis client with retry and a bounded overall
// timeout, so applications can depend on Redis being reachable before
// they start serving. Healthcheck integrates the connection into
// HTTP liveness and readiness probes.
//
// Configuration is described by the Config struct whose fields are
// populated from environment variables via github.com/caarlos0/env.
package redis

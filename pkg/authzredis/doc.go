// Package authzredis provides a Redis-backed cache for the authz
// service, so assignment snapshots survive process restarts and are
// shared between replicas.
//
//	client, err := redis.Connect(ctx, redisCfg)
//	if err != nil { ... }
//
//	svc, err := authz.New(store,
//	    authz.WithCache(authzredis.New(client, authzredis.WithKeyPrefix("app:"))),
//	)
//
// A missing key maps to a cache miss rather than an error; transport
// failures propagate wrapped in the package sentinels so callers can
// distinguish an unreachable Redis from stale data.
package authzredis

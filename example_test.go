package authcore_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/permission"
	"github.com/MrEthical07/authcore/store/memory"
	"github.com/redis/go-redis/v9"
)

// ExampleNew builds an engine with production-style dependencies.
func ExampleNew() {
	cfg := authcore.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("replace-with-32-or-more-secret-bytes")

	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})

	engine, err := authcore.New().
		WithConfig(cfg).
		WithCredentialStore(memory.New(nil)).
		WithRedis(rdb).
		Build()
	if err != nil {
		return
	}
	defer engine.Close()
}

// ExampleEngine_Register shows how callers tell policy failures apart.
func ExampleEngine_Register() {
	var engine *authcore.Engine

	_, err := engine.Register(context.Background(), authcore.RegisterRequest{
		Email:    "alice@example.com",
		Name:     "Alice",
		Password: "secret1",
	})

	var weak *authcore.WeakPasswordError
	switch {
	case errors.As(err, &weak):
		_ = weak.Reasons
	case errors.Is(err, authcore.ErrDuplicateEmail):
	}
}

// ExampleEngine_Authorize applies the owner-or-admin rule.
func ExampleEngine_Authorize() {
	var engine *authcore.Engine

	owner := authcore.Identity{UserID: "u1"}
	other := authcore.Identity{UserID: "u2"}
	admin := authcore.Identity{UserID: "root", IsAdmin: true}

	req := permission.OwnerOrAdmin("u1")
	fmt.Println(engine.Authorize(owner, req) == nil)
	fmt.Println(engine.Authorize(other, req) == nil)
	fmt.Println(engine.Authorize(admin, req) == nil)
	// Output:
	// true
	// false
	// true
}

// ExampleEngine_MetricsSnapshot reads in-process counters.
func ExampleEngine_MetricsSnapshot() {
	var engine *authcore.Engine
	snapshot := engine.MetricsSnapshot()
	_ = snapshot.Counters[authcore.MetricLoginSuccess]
}

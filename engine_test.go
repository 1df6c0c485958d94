package authcore

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/permission"
	"github.com/rs/zerolog"
)

func TestRegisterThenLoginScenario(t *testing.T) {
	engine, store, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	res, err := engine.Register(ctx, RegisterRequest{Email: "a@x.com", Name: "A", Password: "secret1"})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatalf("expected both tokens, got %+v", res)
	}
	if res.Identity.Email != "a@x.com" || res.Identity.RoleID != permission.RoleUser || res.Identity.IsAdmin {
		t.Fatalf("unexpected identity %+v", res.Identity)
	}

	if _, err := engine.Register(ctx, RegisterRequest{Email: "a@x.com", Name: "A", Password: "secret1"}); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
	if store.createCalls != 1 {
		t.Fatalf("expected duplicate to be caught before hashing, create calls=%d", store.createCalls)
	}

	if _, err := engine.Login(ctx, "a@x.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	login, err := engine.Login(ctx, "a@x.com", "secret1")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if login.Identity != res.Identity {
		t.Fatalf("login identity %+v differs from register identity %+v", login.Identity, res.Identity)
	}
}

func TestRegisterWeakPasswordListsEveryReason(t *testing.T) {
	engine, store, _ := newTestEngine(t, testConfig())

	_, err := engine.Register(context.Background(), RegisterRequest{Email: "not-an-email", Name: "A", Password: "ABC"})
	if !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}

	var weak *WeakPasswordError
	if !errors.As(err, &weak) {
		t.Fatalf("expected *WeakPasswordError, got %T", err)
	}
	want := []string{
		"password must be at least 6 characters",
		"password must contain at least one digit",
		"password must contain at least one lowercase letter",
	}
	if !reflect.DeepEqual(weak.Reasons, want) {
		t.Fatalf("reasons = %q, want %q", weak.Reasons, want)
	}
	if store.findByEmailCalls != 0 || store.createCalls != 0 {
		t.Fatalf("weak password must not reach the store")
	}
	if got := engine.MetricsSnapshot().Counters[MetricRegisterWeakPassword]; got != 1 {
		t.Fatalf("expected weak password metric 1, got %d", got)
	}
}

func TestRegisterRejectsInvalidFields(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig())

	tests := []struct {
		name string
		req  RegisterRequest
	}{
		{name: "bad email", req: RegisterRequest{Email: "nope", Name: "A", Password: "secret1"}},
		{name: "empty email", req: RegisterRequest{Email: "  ", Name: "A", Password: "secret1"}},
		{name: "empty name", req: RegisterRequest{Email: "a@x.com", Name: " ", Password: "secret1"}},
		{name: "long name", req: RegisterRequest{Email: "a@x.com", Name: strings.Repeat("n", 121), Password: "secret1"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := engine.Register(context.Background(), tc.req); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestRegisterNormalizesEmail(t *testing.T) {
	engine, store, _ := newTestEngine(t, testConfig())

	res := mustRegister(t, engine, "  Alice@Example.COM ", "secret1")
	if res.Identity.Email != "alice@example.com" {
		t.Fatalf("expected normalized email, got %q", res.Identity.Email)
	}
	if _, ok := store.byEmail["alice@example.com"]; !ok {
		t.Fatalf("store did not receive normalized email")
	}
	if _, err := engine.Login(context.Background(), "ALICE@example.com", "secret1"); err != nil {
		t.Fatalf("login with different case failed: %v", err)
	}
}

func TestRegisterDuplicateDecidedByStore(t *testing.T) {
	engine, store, _ := newTestEngine(t, testConfig())
	mustRegister(t, engine, "a@x.com", "secret1")

	store.hideFromLookup = true
	if _, err := engine.Register(context.Background(), RegisterRequest{Email: "a@x.com", Name: "A", Password: "secret2"}); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail from store, got %v", err)
	}
	if got := engine.MetricsSnapshot().Counters[MetricRegisterDuplicate]; got != 1 {
		t.Fatalf("expected duplicate metric 1, got %d", got)
	}
}

func TestLoginUnknownEmailIsUninformative(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig())
	mustRegister(t, engine, "a@x.com", "secret1")

	_, unknownErr := engine.Login(context.Background(), "b@x.com", "secret1")
	_, wrongErr := engine.Login(context.Background(), "a@x.com", "secret2")

	if unknownErr != ErrInvalidCredentials || wrongErr != ErrInvalidCredentials {
		t.Fatalf("expected identical errors, got %v and %v", unknownErr, wrongErr)
	}
}

func TestLoginCanceledContext(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig())
	mustRegister(t, engine, "a@x.com", "secret1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := engine.Login(ctx, "a@x.com", "secret1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestValidateTokenIsIdempotentAndStateless(t *testing.T) {
	engine, store, _ := newTestEngine(t, testConfig())
	res := mustRegister(t, engine, "a@x.com", "secret1")

	before := store.findByEmailCalls + store.findByIDCalls
	first, err := engine.ValidateToken(res.AccessToken)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	second, err := engine.ValidateToken(res.AccessToken)
	if err != nil {
		t.Fatalf("second validate failed: %v", err)
	}
	if first != second || first != res.Identity {
		t.Fatalf("expected identical identities, got %+v and %+v", first, second)
	}
	if after := store.findByEmailCalls + store.findByIDCalls; after != before {
		t.Fatalf("validate must not touch the store")
	}
}

func TestValidateExpiryBoundary(t *testing.T) {
	cfg := testConfig()
	engine, _, clock := newTestEngine(t, cfg)
	res := mustRegister(t, engine, "a@x.com", "secret1")

	clock.Advance(cfg.JWT.AccessTTL - time.Millisecond)
	if _, err := engine.ValidateToken(res.AccessToken); err != nil {
		t.Fatalf("expected token valid 1ms before expiry, got %v", err)
	}

	clock.Advance(time.Millisecond)
	if _, err := engine.ValidateToken(res.AccessToken); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken at expiry, got %v", err)
	}
}

func TestValidateTamperedSignature(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig())
	res := mustRegister(t, engine, "a@x.com", "secret1")

	if _, err := engine.ValidateToken(flipSignatureByte(res.AccessToken)); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if _, err := engine.ValidateToken("not.a.jwt"); !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("expected ErrMalformedToken, got %v", err)
	}
}

func TestTokenTypeConfusionRejected(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig())
	res := mustRegister(t, engine, "a@x.com", "secret1")

	_, err := engine.ValidateToken(res.RefreshToken)
	if !errors.Is(err, ErrTokenTypeMismatch) || !errors.Is(err, ErrMalformedClaims) {
		t.Fatalf("expected refresh token to fail validate with type mismatch, got %v", err)
	}

	_, err = engine.Refresh(context.Background(), res.AccessToken)
	if !errors.Is(err, ErrTokenTypeMismatch) || !errors.Is(err, ErrMalformedClaims) {
		t.Fatalf("expected access token to fail refresh with type mismatch, got %v", err)
	}
}

func TestRefreshIssuesMatchingIdentity(t *testing.T) {
	engine, _, clock := newTestEngine(t, testConfig())
	res := mustRegister(t, engine, "a@x.com", "secret1")

	clock.Advance(time.Minute)
	next, err := engine.Refresh(context.Background(), res.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if next.AccessToken == res.AccessToken {
		t.Fatalf("expected a new access token")
	}
	if next.RefreshToken == res.RefreshToken {
		t.Fatalf("expected a rotated refresh token")
	}

	id, err := engine.ValidateToken(next.AccessToken)
	if err != nil {
		t.Fatalf("validate refreshed token: %v", err)
	}
	if id != res.Identity {
		t.Fatalf("refreshed identity %+v differs from original %+v", id, res.Identity)
	}
	if !next.AccessExpiresAt.After(res.AccessExpiresAt) {
		t.Fatalf("expected later access expiry")
	}
}

func TestRefreshWithoutRotationReturnsPresentedToken(t *testing.T) {
	cfg := testConfig()
	cfg.Refresh.Rotate = false
	engine, _, _ := newTestEngine(t, cfg)
	res := mustRegister(t, engine, "a@x.com", "secret1")

	next, err := engine.Refresh(context.Background(), res.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if next.RefreshToken != res.RefreshToken || !next.RefreshExpiresAt.Equal(res.RefreshExpiresAt) {
		t.Fatalf("expected presented refresh token back")
	}
}

func TestRefreshExpired(t *testing.T) {
	cfg := testConfig()
	engine, _, clock := newTestEngine(t, cfg)
	res := mustRegister(t, engine, "a@x.com", "secret1")

	clock.Advance(cfg.JWT.RefreshTTL)
	if _, err := engine.Refresh(context.Background(), res.RefreshToken); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestRefreshPicksUpRoleChange(t *testing.T) {
	engine, store, _ := newTestEngine(t, testConfig())
	res := mustRegister(t, engine, "a@x.com", "secret1")

	store.setRole(res.Identity.UserID, permission.RoleAdmin)

	next, err := engine.Refresh(context.Background(), res.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if !next.Identity.IsAdmin || next.Identity.RoleID != permission.RoleAdmin {
		t.Fatalf("expected admin identity after role change, got %+v", next.Identity)
	}

	id, err := engine.ValidateToken(next.AccessToken)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !id.IsAdmin || !id.Capabilities.Has(permission.CapBooksManage) {
		t.Fatalf("expected admin capabilities, got %+v", id)
	}
}

func TestRefreshDeletedUser(t *testing.T) {
	engine, store, _ := newTestEngine(t, testConfig())
	res := mustRegister(t, engine, "a@x.com", "secret1")

	store.remove(res.Identity.UserID)
	if _, err := engine.Refresh(context.Background(), res.RefreshToken); !errors.Is(err, ErrRefreshRevoked) {
		t.Fatalf("expected ErrRefreshRevoked, got %v", err)
	}
}

func TestLoginThrottle(t *testing.T) {
	redisOpt, _ := withMiniredis(t)

	backends := map[string][]func(*Builder){
		"local": nil,
		"redis": {redisOpt},
	}

	for name, opts := range backends {
		t.Run(name, func(t *testing.T) {
			engine, _, _ := newTestEngine(t, testConfig(), opts...)
			mustRegister(t, engine, name+"@x.com", "secret1")
			ctx := context.Background()

			// A success clears earlier failures.
			if _, err := engine.Login(ctx, name+"@x.com", "wrong1"); !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
			if _, err := engine.Login(ctx, name+"@x.com", "secret1"); err != nil {
				t.Fatalf("login failed: %v", err)
			}

			for i := 0; i < 3; i++ {
				if _, err := engine.Login(ctx, name+"@x.com", "wrong1"); !errors.Is(err, ErrInvalidCredentials) {
					t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
				}
			}
			if _, err := engine.Login(ctx, name+"@x.com", "secret1"); !errors.Is(err, ErrLoginRateLimited) {
				t.Fatalf("expected ErrLoginRateLimited, got %v", err)
			}
			if got := engine.MetricsSnapshot().Counters[MetricLoginRateLimited]; got != 1 {
				t.Fatalf("expected rate limited metric 1, got %d", got)
			}
		})
	}
}

func TestLoginLockoutIsNotLoggedAsFailure(t *testing.T) {
	redisOpt, _ := withMiniredis(t)

	for name, opt := range map[string]func(*Builder){"local": nil, "redis": redisOpt} {
		t.Run(name, func(t *testing.T) {
			var logs bytes.Buffer
			opts := []func(*Builder){func(b *Builder) { b.WithLogger(zerolog.New(&logs)) }}
			if opt != nil {
				opts = append(opts, opt)
			}
			engine, _, _ := newTestEngine(t, testConfig(), opts...)
			mustRegister(t, engine, name+"@x.com", "secret1")

			for i := 0; i < 3; i++ {
				if _, err := engine.Login(context.Background(), name+"@x.com", "wrong1"); !errors.Is(err, ErrInvalidCredentials) {
					t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
				}
			}
			if _, err := engine.Login(context.Background(), name+"@x.com", "wrong1"); !errors.Is(err, ErrLoginRateLimited) {
				t.Fatalf("expected ErrLoginRateLimited, got %v", err)
			}
			if strings.Contains(logs.String(), "record failed login") {
				t.Fatalf("lockout must not be logged as a recording failure: %s", logs.String())
			}
		})
	}
}

func TestLoginThrottleDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Security.EnableLoginThrottle = false
	engine, _, _ := newTestEngine(t, cfg)
	mustRegister(t, engine, "a@x.com", "secret1")

	for i := 0; i < 5; i++ {
		_, _ = engine.Login(context.Background(), "a@x.com", "wrong1")
	}
	if _, err := engine.Login(context.Background(), "a@x.com", "secret1"); err != nil {
		t.Fatalf("expected login without throttle, got %v", err)
	}
}

func TestRefreshThrottle(t *testing.T) {
	cfg := testConfig()
	cfg.Refresh.Rotate = false
	cfg.Security.MaxRefreshAttempts = 2
	engine, _, _ := newTestEngine(t, cfg)
	res := mustRegister(t, engine, "a@x.com", "secret1")

	for i := 0; i < 2; i++ {
		if _, err := engine.Refresh(context.Background(), res.RefreshToken); err != nil {
			t.Fatalf("refresh %d failed: %v", i, err)
		}
	}
	if _, err := engine.Refresh(context.Background(), res.RefreshToken); !errors.Is(err, ErrRefreshRateLimited) {
		t.Fatalf("expected ErrRefreshRateLimited, got %v", err)
	}
}

func TestAuthorize(t *testing.T) {
	engine, _, _ := newTestEngine(t, testConfig())
	user := mustRegister(t, engine, "user@x.com", "secret1").Identity
	admin := Identity{UserID: "admin-1", RoleID: permission.RoleAdmin, IsAdmin: true, Capabilities: permission.All}

	tests := []struct {
		name string
		id   Identity
		req  permission.Requirement
		want error
	}{
		{name: "user admin-only", id: user, req: permission.RequireAdmin(), want: ErrPermissionDenied},
		{name: "admin admin-only", id: admin, req: permission.RequireAdmin()},
		{name: "owner", id: user, req: permission.OwnerOrAdmin(user.UserID)},
		{name: "other owner", id: user, req: permission.OwnerOrAdmin("someone-else"), want: ErrPermissionDenied},
		{name: "admin any owner", id: admin, req: permission.OwnerOrAdmin("someone-else")},
		{name: "user capability", id: user, req: permission.RequireCapability(permission.CapBooksManage), want: ErrPermissionDenied},
		{name: "anonymous", id: Identity{}, req: permission.RequireAuthenticated(), want: ErrPermissionDenied},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := engine.Authorize(tc.id, tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestBuildRequiresStoreAndValidConfig(t *testing.T) {
	if _, err := New().WithConfig(testConfig()).Build(); err == nil {
		t.Fatalf("expected missing store error")
	}

	cfg := testConfig()
	cfg.JWT.PrivateKey = nil
	if _, err := New().WithConfig(cfg).WithCredentialStore(newFakeStore()).Build(); err == nil {
		t.Fatalf("expected missing key error")
	}

	cfg = testConfig()
	cfg.Roles.DefaultRoleID = 99
	if _, err := New().WithConfig(cfg).WithCredentialStore(newFakeStore()).Build(); err == nil {
		t.Fatalf("expected unknown default role error")
	}

	b := New().WithConfig(testConfig()).WithCredentialStore(newFakeStore())
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer engine.Close()
	if _, err := b.Build(); err == nil {
		t.Fatalf("expected builder reuse to fail")
	}
}

func TestNilEngineNotReady(t *testing.T) {
	var engine *Engine
	if _, err := engine.Login(context.Background(), "a@x.com", "secret1"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := engine.ValidateToken("x"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
}

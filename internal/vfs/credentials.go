package vfs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// CredentialProvider supplies an unlock credential (a BitLocker
// recovery key, FileVault password, LUKS passphrase, ...) for an
// encrypted volume identified by its path-spec comparable key
// (spec.md §6: "prompting (or being pre-configured) for ... BitLocker-
// style credentials"). Multiple providers compose with a fallback
// order, mirroring pkg/secrets.MultiSecretsManager's backend chain.
type CredentialProvider interface {
	Credential(ctx context.Context, volumeKey string) (string, error)
	Name() string
}

// StaticCredentialProvider answers from a fixed map, populated from
// command-line flags or a config file ahead of time.
type StaticCredentialProvider struct {
	credentials map[string]string
}

// NewStaticCredentialProvider builds a provider over a fixed set of
// pre-configured volume-key -> credential pairs.
func NewStaticCredentialProvider(credentials map[string]string) *StaticCredentialProvider {
	return &StaticCredentialProvider{credentials: credentials}
}

func (p *StaticCredentialProvider) Name() string { return "static" }

func (p *StaticCredentialProvider) Credential(ctx context.Context, volumeKey string) (string, error) {
	v, ok := p.credentials[volumeKey]
	if !ok {
		return "", fmt.Errorf("vfs: no static credential for volume %q", volumeKey)
	}
	return v, nil
}

// PromptFunc asks an operator interactively for a credential; real
// callers wire this to a terminal prompt, the rest of this package
// only depends on the function shape.
type PromptFunc func(volumeKey string) (string, error)

// InteractiveCredentialProvider defers to an operator prompt,
// the last resort in the fallback chain (spec.md §6's "or being
// pre-configured" alternative to static credentials).
type InteractiveCredentialProvider struct {
	prompt PromptFunc
}

// NewInteractiveCredentialProvider wraps a PromptFunc as a provider.
func NewInteractiveCredentialProvider(prompt PromptFunc) *InteractiveCredentialProvider {
	return &InteractiveCredentialProvider{prompt: prompt}
}

func (p *InteractiveCredentialProvider) Name() string { return "interactive" }

func (p *InteractiveCredentialProvider) Credential(ctx context.Context, volumeKey string) (string, error) {
	if p.prompt == nil {
		return "", fmt.Errorf("vfs: no interactive prompt configured")
	}
	return p.prompt(volumeKey)
}

type cachedCredential struct {
	value     string
	expiresAt time.Time
}

// CredentialChain tries each registered provider in order and caches
// the first successful answer, the same fallback-with-cache shape as
// pkg/secrets.MultiSecretsManager.GetSecret but scoped to the single
// "unlock this volume" operation the VFS layer needs.
type CredentialChain struct {
	logger    *logrus.Logger
	providers []CredentialProvider
	cacheTTL  time.Duration

	mu    sync.Mutex
	cache map[string]cachedCredential
}

// NewCredentialChain builds a chain that tries providers in the given
// order, caching each resolved credential for ttl (zero disables
// caching).
func NewCredentialChain(logger *logrus.Logger, ttl time.Duration, providers ...CredentialProvider) *CredentialChain {
	if logger == nil {
		logger = logrus.New()
	}
	return &CredentialChain{
		logger:    logger,
		providers: providers,
		cacheTTL:  ttl,
		cache:     make(map[string]cachedCredential),
	}
}

// Resolve returns the credential for volumeKey, consulting the cache
// first and then each provider in registration order.
func (c *CredentialChain) Resolve(ctx context.Context, volumeKey string) (string, error) {
	if c.cacheTTL > 0 {
		c.mu.Lock()
		if cached, ok := c.cache[volumeKey]; ok && time.Now().Before(cached.expiresAt) {
			c.mu.Unlock()
			return cached.value, nil
		}
		c.mu.Unlock()
	}

	var lastErr error
	for _, p := range c.providers {
		value, err := p.Credential(ctx, volumeKey)
		if err != nil {
			lastErr = err
			c.logger.WithError(err).WithFields(logrus.Fields{
				"provider": p.Name(),
				"volume":   volumeKey,
			}).Debug("credential provider declined volume")
			continue
		}
		if c.cacheTTL > 0 {
			c.mu.Lock()
			c.cache[volumeKey] = cachedCredential{value: value, expiresAt: time.Now().Add(c.cacheTTL)}
			c.mu.Unlock()
		}
		return value, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("vfs: no credential providers configured")
	}
	return "", fmt.Errorf("vfs: no credential resolved for volume %q: %w", volumeKey, lastErr)
}

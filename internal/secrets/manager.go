// Package secrets keeps an in-memory cache of one Bitwarden Secrets Manager
// project and keeps it coherent with the bws CLI.
//
// New resolves the project name to its ID and loads every secret in the
// project with one listing call. Reads are served from the cache. Each write
// issues exactly one bws call and patches the cache only after that call
// succeeds. Refresh reloads the whole project; it is never called implicitly.
//
// A Manager is not safe for concurrent use. Callers sharing one across
// goroutines must serialize access themselves.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/bwscache/bwscache/internal/invoker"
	"github.com/bwscache/bwscache/pkg/log"
	"github.com/bwscache/bwscache/pkg/metrics"
	"github.com/bwscache/bwscache/pkg/tracing"
)

// Manager is a cached view of the secrets in one project.
type Manager struct {
	projectName string
	projectID   string

	inv     *invoker.Invoker
	logger  log.Logger
	metrics *metrics.Metrics
	tracer  *tracing.Tracer

	secrets map[string]Secret
}

// New resolves projectName and loads its secrets. It returns either a fully
// loaded Manager or an error, never a partially initialized Manager.
func New(ctx context.Context, projectName string, opts ...Option) (*Manager, error) {
	o := options{
		executable: invoker.DefaultExecutable,
		logger:     log.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if projectName == "" {
		return nil, ErrMissingProject
	}

	token, fromEnv, err := ResolveToken(o.token)
	if err != nil {
		return nil, err
	}
	if fromEnv {
		o.logger.Info().Msgf("Using %s already set as environment variable", TokenEnvVar)
	}

	inv, err := invoker.New(token,
		invoker.WithExecutable(o.executable),
		invoker.WithRunner(o.runner),
		invoker.WithLogger(o.logger),
		invoker.WithMetrics(o.metrics),
		invoker.WithTracer(o.tracer),
		invoker.WithEcho(o.echo),
	)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		projectName: projectName,
		inv:         inv,
		logger:      o.logger.With("project", projectName),
		metrics:     o.metrics,
		tracer:      o.tracer,
	}

	projectID, err := m.resolveProject(ctx)
	if err != nil {
		return nil, err
	}
	m.projectID = projectID

	cache, err := m.fetch(ctx)
	if err != nil {
		return nil, err
	}
	m.replace(cache)

	m.logger.Info().
		Str("executable", inv.Program()).
		Str("project_id", projectID).
		Int("secrets", len(cache)).
		Msg("Secrets cache ready")

	return m, nil
}

// ProjectName returns the configured project name.
func (m *Manager) ProjectName() string {
	return m.projectName
}

// ProjectID returns the resolved project ID.
func (m *Manager) ProjectID() string {
	return m.projectID
}

func (m *Manager) resolveProject(ctx context.Context) (string, error) {
	var projects []Project
	if err := m.inv.JSON(ctx, &projects, "project", "list"); err != nil {
		return "", fmt.Errorf("failed to list projects: %w", err)
	}

	names := make([]string, 0, len(projects))
	for _, p := range projects {
		if p.Name == m.projectName {
			return p.ID, nil
		}
		names = append(names, p.Name)
	}

	return "", fmt.Errorf("%w: %q; choose from projects: %s",
		ErrProjectNotFound, m.projectName, quoteAll(names))
}

// fetch lists the project's secrets and builds a new cache from them.
func (m *Manager) fetch(ctx context.Context) (map[string]Secret, error) {
	var list []Secret
	if err := m.inv.JSON(ctx, &list, "secret", "list", m.projectID); err != nil {
		return nil, fmt.Errorf("failed to list secrets for project %q: %w", m.projectName, err)
	}

	cache := make(map[string]Secret, len(list))
	var dups []string
	for _, s := range list {
		if s.ProjectID != m.projectID {
			return nil, fmt.Errorf("%w: secret %s (key %q) is in project %q, expected %q",
				ErrForeignSecret, s.ID, s.Key, s.ProjectID, m.projectID)
		}
		if _, ok := cache[s.Key]; ok {
			if !slices.Contains(dups, s.Key) {
				dups = append(dups, s.Key)
			}
			continue
		}
		cache[s.Key] = s
	}

	if len(dups) > 0 {
		slices.Sort(dups)
		return nil, fmt.Errorf("%w in project %q: %s; every key in the project must be unique",
			ErrDuplicateKey, m.projectName, quoteAll(dups))
	}

	return cache, nil
}

func (m *Manager) replace(cache map[string]Secret) {
	m.secrets = cache
	m.metrics.SetCacheEntries(m.projectName, len(cache))
}

// Refresh reloads every secret in the project and replaces the cache. Use it
// after out-of-band changes, including any made through Raw. If the reload
// fails the previous cache is kept.
func (m *Manager) Refresh(ctx context.Context) error {
	cache, err := m.fetch(ctx)
	if err != nil {
		m.metrics.ObserveCacheOp("refresh", "error")
		return err
	}
	m.replace(cache)
	m.metrics.ObserveCacheOp("refresh", "ok")
	m.logger.Info().Int("secrets", len(cache)).Msg("Secrets cache refreshed")
	return nil
}

// Get returns the full record for key.
func (m *Manager) Get(key string) (Secret, error) {
	s, ok := m.secrets[key]
	if !ok {
		m.metrics.ObserveCacheOp("get", "miss")
		return Secret{}, m.notFound(key)
	}
	m.metrics.ObserveCacheOp("get", "hit")
	return s, nil
}

// Value returns only the value for key.
func (m *Manager) Value(key string) (string, error) {
	s, err := m.Get(key)
	if err != nil {
		return "", err
	}
	return s.Value, nil
}

// Contains reports whether key is cached.
func (m *Manager) Contains(key string) bool {
	_, ok := m.secrets[key]
	return ok
}

// Len returns the number of cached secrets.
func (m *Manager) Len() int {
	return len(m.secrets)
}

// Keys returns the cached keys in sorted order.
func (m *Manager) Keys() []string {
	return slices.Sorted(maps.Keys(m.secrets))
}

// Entries returns every cached (key, secret) pair sorted by key.
func (m *Manager) Entries() []Entry {
	entries := make([]Entry, 0, len(m.secrets))
	for _, k := range m.Keys() {
		entries = append(entries, Entry{Key: k, Secret: m.secrets[k]})
	}
	return entries
}

// Snapshot returns an independent copy of the cache. Changing it does not
// affect the Manager.
func (m *Manager) Snapshot() map[string]Secret {
	return maps.Clone(m.secrets)
}

// Add creates a new secret. It fails with ErrKeyExists if key is already
// cached; use UpdateValue to change an existing secret.
//
// bws takes the key and value of a new secret as positional arguments, so a
// key or value starting with "-" is read as a flag and bws rejects the call.
// Create such a secret with a placeholder value and set the real one with
// UpdateValue, which passes the value as "--value=<value>".
func (m *Manager) Add(ctx context.Context, key, value string) (Secret, error) {
	if m.Contains(key) {
		m.metrics.ObserveCacheOp("add", "key_exists")
		return Secret{}, fmt.Errorf("%w: %q in project %q; use UpdateValue to change it",
			ErrKeyExists, key, m.projectName)
	}

	ctx, span := m.span(ctx, "secrets.Add", key)
	defer span.End()

	var created Secret
	err := m.inv.Redacting(value).JSON(ctx, &created, "secret", "create", key, value, m.projectID)
	if err != nil {
		m.metrics.ObserveCacheOp("add", "error")
		return Secret{}, fmt.Errorf("failed to create secret %q: %w", key, err)
	}

	tracing.AddSpanAttributes(ctx, tracing.AttrSecretID.String(created.ID))
	m.secrets[key] = created
	m.metrics.SetCacheEntries(m.projectName, len(m.secrets))
	m.metrics.ObserveCacheOp("add", "ok")
	m.logger.Info().Str("key", key).Str("secret_id", created.ID).Msg("Added secret")

	return created, nil
}

// UpdateValue replaces the value of an existing secret.
func (m *Manager) UpdateValue(ctx context.Context, key, value string) (Secret, error) {
	current, ok := m.secrets[key]
	if !ok {
		m.metrics.ObserveCacheOp("update", "miss")
		return Secret{}, m.notFound(key)
	}

	ctx, span := m.span(ctx, "secrets.UpdateValue", key)
	defer span.End()

	tracing.AddSpanAttributes(ctx, tracing.AttrSecretID.String(current.ID))

	var updated Secret
	err := m.inv.Redacting(value).JSON(ctx, &updated, "secret", "edit", current.ID, "--value="+value)
	if err != nil {
		m.metrics.ObserveCacheOp("update", "error")
		return Secret{}, fmt.Errorf("failed to update secret %q: %w", key, err)
	}

	m.secrets[key] = updated
	m.metrics.ObserveCacheOp("update", "ok")
	m.logger.Info().Str("key", key).Str("secret_id", updated.ID).Msg("Updated secret value")

	return updated, nil
}

// Delete removes a secret. The cache entry is dropped only once bws reports
// success, so a failed call leaves the cache unchanged.
func (m *Manager) Delete(ctx context.Context, key string) error {
	current, ok := m.secrets[key]
	if !ok {
		m.metrics.ObserveCacheOp("delete", "miss")
		return m.notFound(key)
	}

	ctx, span := m.span(ctx, "secrets.Delete", key)
	defer span.End()
	tracing.AddSpanAttributes(ctx, tracing.AttrSecretID.String(current.ID))

	if _, err := m.inv.Text(ctx, "secret", "delete", current.ID); err != nil {
		m.metrics.ObserveCacheOp("delete", "error")
		return fmt.Errorf("failed to delete secret %q: %w", key, err)
	}

	delete(m.secrets, key)
	m.metrics.SetCacheEntries(m.projectName, len(m.secrets))
	m.metrics.ObserveCacheOp("delete", "ok")
	m.logger.Info().Str("key", key).Str("secret_id", current.ID).Msg("Deleted secret")

	return nil
}

// Help returns the output of `bws -h`.
func (m *Manager) Help(ctx context.Context) (string, error) {
	return m.inv.Text(ctx, "-h")
}

// Version returns the output of `bws -V`.
func (m *Manager) Version(ctx context.Context) (string, error) {
	return m.inv.Text(ctx, "-V")
}

func (m *Manager) notFound(key string) error {
	return fmt.Errorf("%w: %q in project %q", ErrKeyNotFound, key, m.projectName)
}

func (m *Manager) span(ctx context.Context, name, key string) (context.Context, trace.Span) {
	return m.tracer.StartSpan(ctx, name, tracing.WithAttributes(
		tracing.AttrProjectID.String(m.projectID),
		tracing.AttrSecretKey.String(key),
	))
}

// IsConfiguration reports whether err prevented a Manager from being built.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

func quoteAll(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

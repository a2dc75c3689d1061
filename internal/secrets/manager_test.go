package secrets_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/bwscache/bwscache/internal/bwstest"
	"github.com/bwscache/bwscache/internal/invoker"
	"github.com/bwscache/bwscache/internal/secrets"
	"github.com/bwscache/bwscache/pkg/metrics"
	"github.com/bwscache/bwscache/pkg/tracing"
)

const testToken = "0.5d5b1a0e-2f7c-4b1e-9d3a-1c2b3d4e5f60.Z3JlYXQtc2NvdHQ:c2VjcmV0LXNhbHQ="

type fixture struct {
	cli       *bwstest.FakeCLI
	projectID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cli := bwstest.NewFakeCLI(testToken)
	pid := cli.AddProject("infra")
	cli.AddProject("staging")
	cli.AddSecret(pid, "DB_PASSWORD", "correct-horse")
	cli.AddSecret(pid, "API_KEY", "abc123")
	return &fixture{cli: cli, projectID: pid}
}

func (f *fixture) open(t *testing.T, opts ...secrets.Option) *secrets.Manager {
	t.Helper()
	m, err := secrets.New(context.Background(), "infra",
		append([]secrets.Option{secrets.WithToken(testToken), secrets.WithRunner(f.cli)}, opts...)...)
	require.NoError(t, err)
	return m
}

func TestNew_LoadsProject(t *testing.T) {
	f := newFixture(t)
	m := f.open(t)

	assert.Equal(t, "infra", m.ProjectName())
	assert.Equal(t, f.projectID, m.ProjectID())
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, []string{"API_KEY", "DB_PASSWORD"}, m.Keys())

	v, err := m.Value("DB_PASSWORD")
	require.NoError(t, err)
	assert.Equal(t, "correct-horse", v)

	assert.Equal(t, 1, f.cli.CallCount("project list"))
	assert.Equal(t, 1, f.cli.CallCount("secret list"))
}

func TestNew_KeysAreSelfConsistent(t *testing.T) {
	m := newFixture(t).open(t)

	for _, e := range m.Entries() {
		assert.Equal(t, e.Key, e.Secret.Key)
		assert.Equal(t, m.ProjectID(), e.Secret.ProjectID)
	}
}

func TestNew_MissingToken(t *testing.T) {
	t.Setenv(secrets.TokenEnvVar, "")
	f := newFixture(t)

	m, err := secrets.New(context.Background(), "infra", secrets.WithRunner(f.cli))
	assert.Nil(t, m)
	assert.ErrorIs(t, err, secrets.ErrMissingToken)
	assert.True(t, secrets.IsConfiguration(err))
	assert.Empty(t, f.cli.Calls())
}

func TestNew_TokenFromEnvironment(t *testing.T) {
	t.Setenv(secrets.TokenEnvVar, testToken)
	f := newFixture(t)

	m, err := secrets.New(context.Background(), "infra", secrets.WithRunner(f.cli))
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())
}

func TestNew_ExplicitTokenWins(t *testing.T) {
	t.Setenv(secrets.TokenEnvVar, "stale-token-from-env")
	f := newFixture(t)

	_, err := secrets.New(context.Background(), "infra", secrets.WithToken(testToken), secrets.WithRunner(f.cli))
	require.NoError(t, err)
}

func TestNew_MissingProjectName(t *testing.T) {
	f := newFixture(t)

	_, err := secrets.New(context.Background(), "", secrets.WithToken(testToken), secrets.WithRunner(f.cli))
	assert.ErrorIs(t, err, secrets.ErrMissingProject)
	assert.Empty(t, f.cli.Calls())
}

func TestNew_ProjectNotFoundListsAvailable(t *testing.T) {
	f := newFixture(t)

	m, err := secrets.New(context.Background(), "prod", secrets.WithToken(testToken), secrets.WithRunner(f.cli))
	assert.Nil(t, m)
	require.ErrorIs(t, err, secrets.ErrProjectNotFound)
	assert.True(t, secrets.IsConfiguration(err))
	assert.Contains(t, err.Error(), `"prod"`)
	assert.Contains(t, err.Error(), `"infra"`)
	assert.Contains(t, err.Error(), `"staging"`)
	assert.Zero(t, f.cli.CallCount("secret list"))
}

func TestNew_DuplicateKeys(t *testing.T) {
	f := newFixture(t)
	f.cli.AddSecret(f.projectID, "API_KEY", "second")

	m, err := secrets.New(context.Background(), "infra", secrets.WithToken(testToken), secrets.WithRunner(f.cli))
	assert.Nil(t, m)
	require.ErrorIs(t, err, secrets.ErrDuplicateKey)
	assert.Contains(t, err.Error(), `"API_KEY"`)
	assert.NotContains(t, err.Error(), `"DB_PASSWORD"`)
}

func TestNew_ForeignSecret(t *testing.T) {
	f := newFixture(t)
	other := f.cli.AddProject("other")
	f.cli.AddStraySecret(f.projectID, other, "STRAY", "value")

	_, err := secrets.New(context.Background(), "infra", secrets.WithToken(testToken), secrets.WithRunner(f.cli))
	require.ErrorIs(t, err, secrets.ErrForeignSecret)
	assert.Contains(t, err.Error(), other)
}

func TestNew_ListingFails(t *testing.T) {
	f := newFixture(t)
	f.cli.FailNext("secret list", 1, "Error: server unavailable")

	_, err := secrets.New(context.Background(), "infra", secrets.WithToken(testToken), secrets.WithRunner(f.cli))
	require.ErrorIs(t, err, invoker.ErrCommandFailed)
	assert.False(t, secrets.IsConfiguration(err))
}

func TestNew_MalformedListing(t *testing.T) {
	f := newFixture(t)
	f.cli.Override("secret list", "{not json")

	_, err := secrets.New(context.Background(), "infra", secrets.WithToken(testToken), secrets.WithRunner(f.cli))
	assert.ErrorIs(t, err, invoker.ErrMalformedOutput)
	assert.ErrorIs(t, err, invoker.ErrCommandFailed)
}

func TestGet_Missing(t *testing.T) {
	m := newFixture(t).open(t)

	_, err := m.Get("NOPE")
	assert.ErrorIs(t, err, secrets.ErrKeyNotFound)
	_, err = m.Value("NOPE")
	assert.ErrorIs(t, err, secrets.ErrKeyNotFound)
	assert.False(t, m.Contains("NOPE"))
}

func TestAdd_ThenGetWithoutRelisting(t *testing.T) {
	f := newFixture(t)
	m := f.open(t)

	created, err := m.Add(context.Background(), "NEW_KEY", "new-value")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, f.projectID, created.ProjectID)

	got, err := m.Get("NEW_KEY")
	require.NoError(t, err)
	assert.Equal(t, created, got)
	assert.Equal(t, "new-value", got.Value)
	assert.Equal(t, 3, m.Len())

	assert.Equal(t, 1, f.cli.CallCount("secret list"))
	assert.Equal(t, 1, f.cli.CallCount("secret create"))
}

func TestAdd_ExistingKeyKeepsFirstValue(t *testing.T) {
	f := newFixture(t)
	m := f.open(t)

	_, err := m.Add(context.Background(), "NEW_KEY", "first")
	require.NoError(t, err)

	_, err = m.Add(context.Background(), "NEW_KEY", "second")
	require.ErrorIs(t, err, secrets.ErrKeyExists)

	v, err := m.Value("NEW_KEY")
	require.NoError(t, err)
	assert.Equal(t, "first", v)
	assert.Equal(t, 1, f.cli.CallCount("secret create"))
	assert.Len(t, f.cli.Secrets(f.projectID), 3)
}

func TestAdd_FailureLeavesCacheUnchanged(t *testing.T) {
	f := newFixture(t)
	m := f.open(t)
	f.cli.FailNext("secret create", 1, "Error: quota exceeded")

	_, err := m.Add(context.Background(), "NEW_KEY", "new-value")
	require.ErrorIs(t, err, invoker.ErrCommandFailed)
	assert.False(t, m.Contains("NEW_KEY"))
	assert.Equal(t, 2, m.Len())
}

func TestUpdateValue_PreservesID(t *testing.T) {
	f := newFixture(t)
	m := f.open(t)

	before, err := m.Get("API_KEY")
	require.NoError(t, err)

	after, err := m.UpdateValue(context.Background(), "API_KEY", "rotated")
	require.NoError(t, err)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, "rotated", after.Value)

	v, err := m.Value("API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "rotated", v)
	assert.Equal(t, 1, f.cli.CallCount("secret list"))
}

func TestUpdateValue_ValueStartingWithDash(t *testing.T) {
	f := newFixture(t)
	m := f.open(t)

	_, err := m.UpdateValue(context.Background(), "API_KEY", "--not-a-flag")
	require.NoError(t, err)

	v, err := m.Value("API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "--not-a-flag", v)

	calls := f.cli.Calls()
	assert.Contains(t, calls[len(calls)-1], "--value=--not-a-flag")
}

func TestRaw_RedactsTokenFromOutput(t *testing.T) {
	f := newFixture(t)
	m := f.open(t)
	f.cli.Override("project list", "bws called with "+testToken)

	out, err := m.Raw().Text(context.Background(), "project", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, testToken)
	assert.Contains(t, out, invoker.Redacted)
}

func TestUpdateValue_MissingKey(t *testing.T) {
	f := newFixture(t)
	m := f.open(t)

	_, err := m.UpdateValue(context.Background(), "NOPE", "value")
	assert.ErrorIs(t, err, secrets.ErrKeyNotFound)
	assert.Zero(t, f.cli.CallCount("secret edit"))
}

func TestUpdateValue_FailureKeepsOldValue(t *testing.T) {
	f := newFixture(t)
	m := f.open(t)
	f.cli.FailNext("secret edit", 1, "Error: forbidden")

	_, err := m.UpdateValue(context.Background(), "API_KEY", "rotated")
	require.Error(t, err)

	v, err := m.Value("API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "abc123", v)
}

func TestDelete_Twice(t *testing.T) {
	f := newFixture(t)
	m := f.open(t)

	require.NoError(t, m.Delete(context.Background(), "API_KEY"))
	assert.False(t, m.Contains("API_KEY"))
	assert.Len(t, f.cli.Secrets(f.projectID), 1)

	err := m.Delete(context.Background(), "API_KEY")
	assert.ErrorIs(t, err, secrets.ErrKeyNotFound)
	assert.Equal(t, 1, f.cli.CallCount("secret delete"))
}

func TestDelete_FailureKeepsKey(t *testing.T) {
	f := newFixture(t)
	m := f.open(t)
	f.cli.FailNext("secret delete", 1, "Error: forbidden")

	err := m.Delete(context.Background(), "API_KEY")
	require.ErrorIs(t, err, invoker.ErrCommandFailed)
	assert.True(t, m.Contains("API_KEY"))
	assert.Len(t, f.cli.Secrets(f.projectID), 2)
}

func TestRefresh_PicksUpOutOfBandChanges(t *testing.T) {
	f := newFixture(t)
	m := f.open(t)

	f.cli.AddSecret(f.projectID, "ADDED_ELSEWHERE", "x")
	assert.False(t, m.Contains("ADDED_ELSEWHERE"))

	require.NoError(t, m.Refresh(context.Background()))
	assert.True(t, m.Contains("ADDED_ELSEWHERE"))
	assert.Equal(t, 3, m.Len())
}

func TestRefresh_AfterRawChanges(t *testing.T) {
	f := newFixture(t)
	m := f.open(t)
	ctx := context.Background()

	var created secrets.Secret
	require.NoError(t, m.Raw().JSON(ctx, &created, "secret", "create", "RAW_KEY", "raw-value", m.ProjectID()))
	assert.False(t, m.Contains("RAW_KEY"))

	require.NoError(t, m.Refresh(ctx))
	got, err := m.Get("RAW_KEY")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestRefresh_FailureKeepsPreviousCache(t *testing.T) {
	f := newFixture(t)
	m := f.open(t)
	f.cli.AddSecret(f.projectID, "API_KEY", "duplicate")

	err := m.Refresh(context.Background())
	require.ErrorIs(t, err, secrets.ErrDuplicateKey)
	assert.Equal(t, 2, m.Len())
	v, err := m.Value("API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "abc123", v)
}

func TestSnapshot_IsIndependent(t *testing.T) {
	m := newFixture(t).open(t)

	snap := m.Snapshot()
	delete(snap, "API_KEY")
	snap["INJECTED"] = secrets.Secret{Key: "INJECTED"}

	assert.True(t, m.Contains("API_KEY"))
	assert.False(t, m.Contains("INJECTED"))
	assert.Len(t, m.Snapshot(), 2)
}

func TestTokenNeverInErrors(t *testing.T) {
	f := newFixture(t)
	m := f.open(t)
	ctx := context.Background()

	leak := "Error: bad request, token=" + testToken
	f.cli.FailNext("secret delete", 1, leak)
	f.cli.FailNext("secret edit", 1, leak)
	f.cli.FailNext("secret create", 1, leak)
	f.cli.FailNext("secret list", 1, leak)

	errs := []error{
		m.Delete(ctx, "API_KEY"),
		func() error { _, err := m.UpdateValue(ctx, "API_KEY", "v2-rotated"); return err }(),
		func() error { _, err := m.Add(ctx, "OTHER", "another-value"); return err }(),
		m.Refresh(ctx),
	}
	for i, err := range errs {
		require.Error(t, err, "call %d", i)
		assert.NotContains(t, err.Error(), testToken, "call %d", i)

		var cmdErr *invoker.CommandError
		require.True(t, errors.As(err, &cmdErr), "call %d", i)
		assert.NotContains(t, fmt.Sprint(cmdErr.Args), testToken)
	}
}

func TestSecretValuesNotInErrors(t *testing.T) {
	f := newFixture(t)
	m := f.open(t)
	f.cli.FailNext("secret create", 1, "Error: refused value super-secret-value")

	_, err := m.Add(context.Background(), "NEW_KEY", "super-secret-value")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "super-secret-value")
	assert.Contains(t, err.Error(), "NEW_KEY")
}

func TestSecret_FormattingOmitsValue(t *testing.T) {
	m := newFixture(t).open(t)
	s, err := m.Get("DB_PASSWORD")
	require.NoError(t, err)

	assert.NotContains(t, fmt.Sprintf("%v", s), "correct-horse")
	assert.NotContains(t, fmt.Sprintf("%#v", s), "correct-horse")
	assert.NotContains(t, fmt.Sprintf("%+v", s), "correct-horse")
	assert.Equal(t, "********", s.Redacted().Value)
	assert.Equal(t, "correct-horse", s.Value)
}

func TestHelpAndVersion(t *testing.T) {
	m := newFixture(t).open(t)
	ctx := context.Background()

	help, err := m.Help(ctx)
	require.NoError(t, err)
	assert.Equal(t, bwstest.HelpText, help)

	version, err := m.Version(ctx)
	require.NoError(t, err)
	assert.Contains(t, version, bwstest.Version)
}

func TestCancelledContext(t *testing.T) {
	f := newFixture(t)
	m := f.open(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Delete(ctx, "API_KEY")
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, m.Contains("API_KEY"))
}

func TestEcho(t *testing.T) {
	f := newFixture(t)
	var buf bytes.Buffer
	m := f.open(t, secrets.WithEcho(&buf))

	require.NoError(t, m.Delete(context.Background(), "API_KEY"))
	assert.Contains(t, buf.String(), "1 secret deleted successfully.")
}

func TestWriteSpansCarrySecretID(t *testing.T) {
	f := newFixture(t)
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	m := f.open(t, secrets.WithTracer(tracing.NewWithProvider(tp)))

	created, err := m.Add(context.Background(), "NEW_KEY", "new-value")
	require.NoError(t, err)
	_, err = m.UpdateValue(context.Background(), "NEW_KEY", "newer-value")
	require.NoError(t, err)
	require.NoError(t, m.Delete(context.Background(), "NEW_KEY"))

	found := map[string]bool{}
	for _, s := range exporter.GetSpans() {
		for _, kv := range s.Attributes {
			if kv.Key == tracing.AttrSecretID {
				assert.Equal(t, created.ID, kv.Value.AsString(), s.Name)
				found[s.Name] = true
			}
			assert.NotEqual(t, attribute.StringValue("new-value"), kv.Value, s.Name)
		}
	}
	assert.True(t, found["secrets.Add"])
	assert.True(t, found["secrets.UpdateValue"])
	assert.True(t, found["secrets.Delete"])
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)
	reg := metrics.NewMetrics()
	m := f.open(t, secrets.WithMetrics(reg))

	assert.Equal(t, 2.0, testutil.ToFloat64(reg.Cache.Entries.WithLabelValues("infra")))

	_, err := m.Add(context.Background(), "NEW_KEY", "new-value")
	require.NoError(t, err)
	_, _ = m.Get("NEW_KEY")
	_, _ = m.Get("NOPE")

	assert.Equal(t, 3.0, testutil.ToFloat64(reg.Cache.Entries.WithLabelValues("infra")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.Cache.Operations.WithLabelValues("add", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.Cache.Operations.WithLabelValues("get", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.Cache.Operations.WithLabelValues("get", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.Invocations.Total.WithLabelValues("secret create", "ok")))
}

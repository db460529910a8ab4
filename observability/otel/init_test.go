package otel

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" api-key = secret ,broken, =nokey,tenant=staking,")
	require.Equal(t, map[string]string{"api-key": "secret", "tenant": "staking"}, headers)
	require.Empty(t, ParseHeaders(""))
}

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{})
	require.Error(t, err)
}

func TestInitWithoutExporters(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "stakingd"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestResourceLabelsService(t *testing.T) {
	res, err := Resource(Config{
		ServiceName:    "stakingd",
		ServiceVersion: "v0.3.0",
		InstanceID:     "node-a",
		Environment:    "devnet",
		Attributes:     map[string]string{"staking_program": "Stake111", "nftstake.data_dir": "/var/lib/stakingd", " ": "dropped"},
	})
	require.NoError(t, err)
	set := res.Set()

	lookup := func(key string) string {
		t.Helper()
		for _, kv := range set.ToSlice() {
			if string(kv.Key) == key {
				return kv.Value.AsString()
			}
		}
		return ""
	}
	require.Equal(t, "stakingd", lookup(string(semconv.ServiceNameKey)))
	require.Equal(t, ServiceNamespace, lookup(string(semconv.ServiceNamespaceKey)))
	require.Equal(t, "node-a", lookup(string(semconv.ServiceInstanceIDKey)))
	require.Equal(t, "v0.3.0", lookup(string(semconv.ServiceVersionKey)))
	require.Equal(t, "devnet", lookup(string(semconv.DeploymentEnvironmentKey)))
	require.Equal(t, "Stake111", lookup("nftstake.staking_program"))
	require.Equal(t, "/var/lib/stakingd", lookup("nftstake.data_dir"))
	require.Empty(t, lookup("nftstake."))
}

func TestResourceGeneratesInstanceID(t *testing.T) {
	first, err := Resource(Config{ServiceName: "stakingd"})
	require.NoError(t, err)
	second, err := Resource(Config{ServiceName: "stakingd"})
	require.NoError(t, err)
	a, ok := first.Set().Value(semconv.ServiceInstanceIDKey)
	require.True(t, ok)
	b, ok := second.Set().Value(semconv.ServiceInstanceIDKey)
	require.True(t, ok)
	require.NotEmpty(t, a.AsString())
	require.NotEqual(t, a.AsString(), b.AsString())
}

func TestTracerUsesComponentScope(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))

	_, span := Tracer("ledger").Start(context.Background(), "ledger.Execute")
	span.SetAttributes(SignatureKey.String("sig"))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	require.Equal(t, "nftstake/ledger", ended[0].InstrumentationScope().Name)
	require.Equal(t, "ledger.Execute", ended[0].Name())
}

func TestHTTPSpanName(t *testing.T) {
	r := httptest.NewRequest("POST", "/", nil)
	require.Equal(t, "nftstake.rpc POST /", HTTPSpanName("nftstake.rpc", r))
}

func TestSamplerDescription(t *testing.T) {
	require.Contains(t, sampler(0).Description(), "AlwaysOnSampler")
	require.Contains(t, sampler(1).Description(), "AlwaysOnSampler")
	require.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
	var _ sdktrace.Sampler = sampler(0.5)
}

package rpc

import (
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"nftstake/core/runtime"
	telemetry "nftstake/observability/otel"
)

func TestSendTransactionSpansNest(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))

	env := newTestEnv(t, ServerConfig{}, nil)
	env.submit(env.admin, nil, runtime.NewTransferInstruction(env.admin.PublicKey(), solana.NewWallet().PublicKey(), 1))

	find := func(name string) sdktrace.ReadOnlySpan {
		for _, span := range recorder.Ended() {
			if span.Name() == name {
				return span
			}
		}
		return nil
	}
	require.Eventually(t, func() bool {
		return find("rpc.stake_sendTransaction") != nil && find("nftstake.rpc POST /") != nil
	}, 2*time.Second, 10*time.Millisecond)

	server := find("nftstake.rpc POST /")
	method := find("rpc.stake_sendTransaction")
	ledger := find("ledger.Execute")
	require.NotNil(t, ledger)

	require.Equal(t, telemetry.TracerName("rpc"), method.InstrumentationScope().Name)
	require.Equal(t, server.SpanContext().SpanID(), method.Parent().SpanID())
	require.Equal(t, method.SpanContext().SpanID(), ledger.Parent().SpanID())
	require.Equal(t, method.SpanContext().TraceID(), ledger.SpanContext().TraceID())

	var methodAttr string
	for _, kv := range method.Attributes() {
		if kv.Key == telemetry.RPCMethodKey {
			methodAttr = kv.Value.AsString()
		}
	}
	require.Equal(t, "stake_sendTransaction", methodAttr)
}

package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"nftstake/observability/logging"
	telemetry "nftstake/observability/otel"
)

func spanAttributes(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestExecuteTracesAndLogsTransactions(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))

	alice := solana.NewWallet().PrivateKey
	h := newHarness(t, alice.PublicKey())
	var buf bytes.Buffer
	h.ledger.SetLogger(logging.New(&buf, "stakingd", "test", slog.LevelDebug))

	tx := signed(t, alice, 1, NewTransferInstruction(alice.PublicKey(), solana.NewWallet().PublicKey(), 10))
	receipt, err := h.ledger.Execute(context.Background(), tx)
	require.NoError(t, err)
	_, err = h.ledger.Execute(context.Background(), tx)
	require.ErrorIs(t, err, ErrDuplicateTransaction)

	ended := recorder.Ended()
	require.Len(t, ended, 2)
	require.Equal(t, telemetry.TracerName("ledger"), ended[0].InstrumentationScope().Name)
	require.Equal(t, "ledger.Execute", ended[0].Name())

	committed := spanAttributes(ended[0])
	require.Equal(t, tx.ID().String(), committed[telemetry.SignatureKey].AsString())
	require.Equal(t, alice.PublicKey().String(), committed[telemetry.FeePayerKey].AsString())
	require.Equal(t, "committed", committed[telemetry.OutcomeKey].AsString())
	require.Equal(t, int64(receipt.Sequence), committed[telemetry.SequenceKey].AsInt64())
	require.Equal(t, "duplicate", spanAttributes(ended[1])[telemetry.OutcomeKey].AsString())

	var lines []map[string]any
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var line map[string]any
		require.NoError(t, json.Unmarshal([]byte(raw), &line))
		lines = append(lines, line)
	}
	require.Len(t, lines, 2)
	require.Equal(t, "transaction committed", lines[0]["message"])
	require.Equal(t, alice.PublicKey().String(), lines[0]["payer"])
	require.Equal(t, "transaction rejected", lines[1]["message"])
	require.Equal(t, "duplicate", lines[1]["outcome"])
}

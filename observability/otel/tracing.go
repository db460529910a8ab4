package otel

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys shared by the ledger and RPC spans.
const (
	SignatureKey    = attribute.Key("nftstake.tx.signature")
	FeePayerKey     = attribute.Key("nftstake.tx.fee_payer")
	InstructionsKey = attribute.Key("nftstake.tx.instructions")
	SequenceKey     = attribute.Key("nftstake.tx.sequence")
	OutcomeKey      = attribute.Key("nftstake.tx.outcome")
	ProgramKey      = attribute.Key("nftstake.program")
	RPCMethodKey    = attribute.Key("nftstake.rpc.method")
)

// Tracer returns the tracer for a nftstake component, named
// "nftstake/<component>".
func Tracer(component string) trace.Tracer {
	return otel.Tracer(TracerName(component))
}

// TracerName is the instrumentation scope name used by Tracer.
func TracerName(component string) string {
	return ServiceNamespace + "/" + component
}

// HTTPSpanName names otelhttp server spans "<operation> <METHOD> <path>".
func HTTPSpanName(operation string, r *http.Request) string {
	return operation + " " + r.Method + " " + r.URL.Path
}

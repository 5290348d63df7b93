package gateway

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// tracerName identifies the gateway's spans. The tracer comes from the
// global provider; configure an exporter in main() to see traces, otherwise
// spans are no-ops.
const tracerName = "github.com/relaywire-dev/relaywire/pkg/gateway"

func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

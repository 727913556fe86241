// Package observability wraps AWS X-Ray so the coordinator can trace one
// outbound shard RPC without every caller touching the xray package
// directly.
package observability

import (
	"context"
	"fmt"

	"github.com/aws/aws-xray-sdk-go/xray"
)

// Tracer scopes subsegments under a fixed service name — "coordinator"
// for the one caller that wires it today.
type Tracer struct {
	serviceName string
}

// NewTracer returns a Tracer for serviceName.
func NewTracer(serviceName string) *Tracer {
	return &Tracer{serviceName: serviceName}
}

// startSubsegment opens an X-Ray subsegment named "<serviceName>.<name>",
// nested under whatever segment ctx already carries.
func (t *Tracer) startSubsegment(ctx context.Context, name string) (context.Context, *xray.Segment) {
	return xray.BeginSubsegment(ctx, fmt.Sprintf("%s.%s", t.serviceName, name))
}

// TraceFunction runs fn inside its own subsegment, recording fn's error
// on the subsegment before returning it unchanged. The coordinator's
// trace() helper wraps every fan-out-to-shard RPC with this so a slow or
// failing shard shows up by name in the X-Ray trace map.
func (t *Tracer) TraceFunction(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, seg := t.startSubsegment(ctx, name)
	defer seg.Close(nil)

	if err := fn(ctx); err != nil {
		seg.AddError(err)
		return err
	}
	return nil
}

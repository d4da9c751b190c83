// Package adapter contains implementations of interfaces defined in app.
// DynamoDB stores, the Redis ephemeral store, SNS publishers, and the
// user-directory HTTP client live here.
package adapter

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("authsvc/adapter")

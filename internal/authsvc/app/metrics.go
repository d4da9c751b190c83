// Package app implements the authentication flows: login, registration,
// device trust, TOTP, sessions, SSO handoff, and password reset. Services
// here depend on narrow store interfaces; adapters provide the
// implementations.
package app

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("authsvc/app")

var (
	loginsTotal             metric.Int64Counter
	sessionsCreatedTotal    metric.Int64Counter
	sessionsRevokedTotal    metric.Int64Counter
	authFailuresTotal       metric.Int64Counter
	otpChallengesTotal      metric.Int64Counter
	emailRequestsTotal      metric.Int64Counter
	registrationsTotal      metric.Int64Counter
	fingerprintTrustedTotal metric.Int64Counter
)

func init() {
	m := otel.Meter("authsvc/app")

	loginsTotal, _ = m.Int64Counter("auth_logins_total",
		metric.WithDescription("Total login attempts by outcome"))
	sessionsCreatedTotal, _ = m.Int64Counter("auth_sessions_created_total",
		metric.WithDescription("Total sessions created"))
	sessionsRevokedTotal, _ = m.Int64Counter("security_sessions_revoked_total",
		metric.WithDescription("Total session revocations"))
	authFailuresTotal, _ = m.Int64Counter("security_auth_failures_total",
		metric.WithDescription("Total authentication failures"))
	otpChallengesTotal, _ = m.Int64Counter("auth_otp_challenges_total",
		metric.WithDescription("Total TOTP challenges issued"))
	emailRequestsTotal, _ = m.Int64Counter("auth_email_requests_total",
		metric.WithDescription("Total email-request events emitted"))
	registrationsTotal, _ = m.Int64Counter("auth_registrations_total",
		metric.WithDescription("Total completed registrations"))
	fingerprintTrustedTotal, _ = m.Int64Counter("auth_fingerprints_trusted_total",
		metric.WithDescription("Total device fingerprints trusted"))
}

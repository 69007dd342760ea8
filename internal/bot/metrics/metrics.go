// Package metrics collects and exposes Prometheus metrics for the bot.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records the bot's operational counters. Service code takes the
// concrete type; a nil Collector is valid and records nothing, which keeps
// unit tests free of registry setup.
type Collector struct {
	registrations   prometheus.Counter
	rolesGranted    prometheus.Counter
	rolesRevoked    prometheus.Counter
	roleCallErrors  prometheus.Counter
	nicknameUpdates prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "staffbot_registrations_total",
			Help: "Participant registrations committed to the directory.",
		}),
		rolesGranted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "staffbot_roles_granted_total",
			Help: "Role grants issued to the chat platform.",
		}),
		rolesRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "staffbot_roles_revoked_total",
			Help: "Role revocations issued to the chat platform.",
		}),
		roleCallErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "staffbot_role_call_errors_total",
			Help: "Role grant/revoke calls rejected by the chat platform.",
		}),
		nicknameUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "staffbot_nickname_updates_total",
			Help: "Nicknames set on guild members.",
		}),
	}

	reg.MustRegister(
		c.registrations,
		c.rolesGranted,
		c.rolesRevoked,
		c.roleCallErrors,
		c.nicknameUpdates,
	)

	return c
}

func (c *Collector) RecordRegistration() {
	if c == nil {
		return
	}
	c.registrations.Inc()
}

func (c *Collector) RecordRoleGranted() {
	if c == nil {
		return
	}
	c.rolesGranted.Inc()
}

func (c *Collector) RecordRoleRevoked() {
	if c == nil {
		return
	}
	c.rolesRevoked.Inc()
}

func (c *Collector) RecordRoleCallError() {
	if c == nil {
		return
	}
	c.roleCallErrors.Inc()
}

func (c *Collector) RecordNicknameUpdate() {
	if c == nil {
		return
	}
	c.nicknameUpdates.Inc()
}

// Handler returns the Prometheus scrape handler for the given gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

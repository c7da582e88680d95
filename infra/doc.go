// Package infra holds the adapters that connect the dispatch controller to
// the outside world: the MQTT broker, the optimizer service, SQLite state,
// metrics backends, Sentry and the cron scheduler. Subpackages implement
// interfaces declared under core.
package infra

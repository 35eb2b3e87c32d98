// Package metrics holds every Prometheus collector the service exports.
// Each file enqueues its collectors via register() in init(); cmd/app calls
// MustRegister() once after config load. Usecases never touch this package,
// instrumentation happens at the infra edges (web, sched, worker).
package metrics

import "strings"

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

package api

import "github.com/mattjoyce/plugscan/internal/inspect"

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string   `json:"status"`
	UptimeSeconds int64    `json:"uptime_seconds"`
	Roots         []string `json:"roots"`
}

// PluginsResponse is returned by GET /plugins and GET /plugins/{name}.
type PluginsResponse struct {
	Mode    string          `json:"mode"`
	Count   int             `json:"count"`
	Plugins []inspect.Entry `json:"plugins"`
}

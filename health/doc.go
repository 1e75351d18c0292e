// Package health defines the health vocabulary shared with the external
// health-check registry: statuses, check results, and the Registry
// interface the observability manager self-registers against. The registry
// engine itself lives outside this module.
package health

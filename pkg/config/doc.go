// Package config loads kestrel-agent.yaml and resolves the agent's
// recognized options, auto-detecting cpus/memory when the file doesn't
// override them.
package config

// Package bootstrap resolves the authd service configuration from defaults, an
// optional YAML file and environment variables, and wires the runtime
// dependencies the engine needs.
package bootstrap

// Package config provides centralized configuration management for the workbench
// server, the reference engine and the command line client.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. A YAML configuration file
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern DATAFLOW_<SECTION>_<FIELD>:
//
//	DATAFLOW_SERVER_PORT=8080
//	DATAFLOW_ENGINE_BASE_URL=http://127.0.0.1:5000
//	DATAFLOW_ENGINE_MAX_UPLOAD_BYTES=52428800
//	DATAFLOW_SESSION_TTL=2h
//	DATAFLOW_LOGGING_LEVEL=debug
//
// DATAFLOW_CONFIG_FILE points at the YAML file; otherwise config.yaml and
// configs/config.yaml are tried. The mains load a .env file first, so the same
// variables may live there during development.
//
// # Validation
//
// Struct tags are checked with go-playground/validator before the
// configuration is returned.
package config

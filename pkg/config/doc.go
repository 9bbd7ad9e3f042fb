// Package config provides configuration management for Minos.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides. It provides a type-safe
// configuration system with comprehensive validation and sensible defaults.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("config.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention MINOS_SECTION_FIELD.
// For example:
//
//   - MINOS_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - MINOS_STORAGE_DIR overrides storage.dir
//   - MINOS_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// Environment variables always take precedence over file-based configuration.
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides
// earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Validation
//
// All configuration is validated automatically during loading. Validation
// errors include field paths and helpful messages:
//
//	configuration validation failed with 2 errors:
//	  - storage.backend: must be one of: file, sqlite
//	  - engine.workers: must be at least 1
//
// # Example Configuration
//
// Here is a minimal configuration file:
//
//	storage:
//	  backend: "file"
//	  dir: "./configs"
//	  default_version: "v2"
//
//	server:
//	  listen_address: "127.0.0.1:8080"
//
//	audit:
//	  enabled: true
//	  path: "./audit.db"
//
//	telemetry:
//	  logging:
//	    level: "info"
//	    format: "json"
package config

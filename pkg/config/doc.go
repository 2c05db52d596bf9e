// Package config provides configuration management for memex using Viper.
//
// Loads and validates configuration from YAML files or an inline JSON
// blob (for the init() public operation) with support for multiple config
// locations and default values.
package config

// Package config holds all pipeline configuration, loaded from environment
// variables with an optional YAML file underneath (env always wins).
//
// # Usage
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Environment variables use the GATEHOUSE_ prefix; set GATEHOUSE_CONFIG_FILE
// to layer a YAML file under them.
package config

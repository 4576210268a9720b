// Package config loads the YAML configuration file, layers environment
// variable overrides on top, applies defaults, and validates the result.
//
// Loading happens once at startup:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//
// Any field can be overridden with a SMARTOFFICE_SECTION_KEY environment
// variable, which is also the expected channel for secrets such as the MQTT
// password and InfluxDB token so they stay out of the file on disk.
package config

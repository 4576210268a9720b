package influxdb

import "errors"

// Sentinel errors for the energy telemetry client, checkable with
// errors.Is. Write failures surface asynchronously through the error
// callback rather than as return values.
var (
	// ErrNotConnected indicates the client has no live connection.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed indicates the initial ping failed.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled indicates the integration is switched off in config.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)

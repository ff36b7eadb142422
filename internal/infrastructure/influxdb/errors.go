package influxdb

import "errors"

// ErrDisabled is returned by Connect when influxdb.enabled is false; the
// caller then runs the engine without pass and outcome metrics.
var ErrDisabled = errors.New("influxdb: metrics export disabled")

// ErrConnectionFailed wraps a failed startup ping.
var ErrConnectionFailed = errors.New("influxdb: server unreachable")

// ErrNotConnected is returned by HealthCheck while the client is closed.
var ErrNotConnected = errors.New("influxdb: client closed")

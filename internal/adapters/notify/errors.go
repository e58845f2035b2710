package notify

import "errors"

// ErrNoBrokers is returned when a Kafka publisher is built without brokers.
var ErrNoBrokers = errors.New("notify: no kafka brokers configured")

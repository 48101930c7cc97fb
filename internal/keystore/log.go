package keystore

import "github.com/btcsuite/btclog"

var log = btclog.Disabled

func DisableLog() {
	log = btclog.Disabled
}

// UseLogger sets the package logger. Only public keys are logged.
func UseLogger(logger btclog.Logger) {
	log = logger
}

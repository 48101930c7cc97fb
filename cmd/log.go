package cmd

import (
	"os"

	"github.com/btcsuite/btclog"

	"github.com/illarion/keylock/internal/core"
	"github.com/illarion/keylock/internal/keyring"
	"github.com/illarion/keylock/internal/keystore"
	"github.com/illarion/keylock/internal/masterkey"
	"github.com/illarion/keylock/internal/storage"
)

// Loggers per subsystem. All of them write through backendLog. When adding
// a subsystem, add it to subsystemLoggers and to useLogger.
var (
	backendLog = btclog.NewBackend(os.Stderr)

	log     = btclog.Disabled
	coreLog = btclog.Disabled
	mkeyLog = btclog.Disabled
	kstrLog = btclog.Disabled
	storLog = btclog.Disabled
	keyrLog = btclog.Disabled
)

// subsystemLoggers maps each subsystem identifier to its logger.
var subsystemLoggers = map[string]btclog.Logger{
	"KLCK": log,
	"CORE": coreLog,
	"MKEY": mkeyLog,
	"KSTR": kstrLog,
	"STOR": storLog,
	"KEYR": keyrLog,
}

// useLogger updates the logger references for subsystemID to logger.
// Invalid subsystems are ignored.
func useLogger(subsystemID string, logger btclog.Logger) {
	if _, ok := subsystemLoggers[subsystemID]; !ok {
		return
	}
	subsystemLoggers[subsystemID] = logger

	switch subsystemID {
	case "KLCK":
		log = logger

	case "CORE":
		coreLog = logger
		core.UseLogger(logger)

	case "MKEY":
		mkeyLog = logger
		masterkey.UseLogger(logger)

	case "KSTR":
		kstrLog = logger
		keystore.UseLogger(logger)

	case "STOR":
		storLog = logger
		storage.UseLogger(logger)

	case "KEYR":
		keyrLog = logger
		keyring.UseLogger(logger)
	}
}

// setLogLevel sets the logging level for the subsystem, creating its
// logger on first use. Invalid levels fall back to warn.
func setLogLevel(subsystemID string, logLevel string) {
	logger, ok := subsystemLoggers[subsystemID]
	if !ok {
		return
	}

	level, ok := btclog.LevelFromString(logLevel)
	if !ok {
		level = btclog.LevelWarn
	}

	if logger == btclog.Disabled {
		logger = backendLog.Logger(subsystemID)
		useLogger(subsystemID, logger)
	}
	logger.SetLevel(level)
}

// setLogLevels sets every subsystem to logLevel
func setLogLevels(logLevel string) {
	for subsystemID := range subsystemLoggers {
		setLogLevel(subsystemID, logLevel)
	}
}

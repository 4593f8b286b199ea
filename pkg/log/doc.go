// Package log provides Menmos's structured logging, a thin wrapper
// around zerolog.
//
// Init configures the global logger once at process start, from the
// directory or storage daemon's --log-level/--log-json flags:
//
//	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
//
// Subsystems derive a child logger carrying a stable field so every
// line can be correlated back to the blob, node, or user it concerns:
//
//	logger := log.WithComponent("indexer")
//	logger.Info().Str("blob_id", id).Msg("blob indexed")
//
// JSONOutput controls whether logs are emitted as newline-delimited
// JSON (production) or a human-readable console format (local
// development) via zerolog.ConsoleWriter.
package log

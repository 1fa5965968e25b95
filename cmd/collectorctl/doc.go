// Command collectorctl provides maintenance operations for The Collector's
// item media.
//
// Usage:
//
//	collectorctl <command>
//
// Commands:
//
//	migrate-images  Copy the single-image columns of legacy items into the
//	                image list. Runs at most once per database; later runs
//	                report that the migration is already recorded.
//
//	regen           Walk the Cards and Comics folders, rebuild the thumb and
//	                medium derivatives of every original and store the
//	                recomputed orientation. Orphaned derivatives are listed
//	                but never deleted. Exits non-zero when any original
//	                fails to decode.
//
//	status          Print item and image counts and whether the legacy
//	                migration has been recorded.
//
// Environment:
//
//	CONTENT_DIR     Directory holding the category folders (default: .)
//	DATABASE_DIR    Path to database directory (default: ./data)
//	DERIVE_BACKEND  imaging or vips (default: imaging)
//	DERIVE_WORKERS  Concurrent derivations during regen
//
// A .env file in the working directory is loaded first, as for the server.
// SIGINT and SIGTERM cancel a running command.
package main

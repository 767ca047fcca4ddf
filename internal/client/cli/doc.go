// Package cli implements the sync client command line: enabling sync from a
// recovery phrase, pushing and pulling a profile file, and issuing and
// opening shares.
//
// The plaintext profile lives in a JSON file (see FileProfileStore); the
// key and sync bookkeeping live in a local SQLite database.
package cli

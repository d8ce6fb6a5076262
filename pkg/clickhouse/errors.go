package clickhouse

import (
	"errors"

	ch "github.com/ClickHouse/clickhouse-go/v2"
)

// Server error codes that mean the referenced object does not exist.
const (
	codeUnknownIdentifier = 47
	codeUnknownTable      = 60
	codeUnknownDatabase   = 81
	codeNoSuchColumn      = 16
)

// IsNotFound reports whether err is a server exception about a missing
// database, table or column.
func IsNotFound(err error) bool {
	var ex *ch.Exception
	if !errors.As(err, &ex) {
		return false
	}
	switch ex.Code {
	case codeUnknownIdentifier, codeUnknownTable, codeUnknownDatabase, codeNoSuchColumn:
		return true
	}
	return false
}

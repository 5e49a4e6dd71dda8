package common

import (
	"fmt"
	"strings"
)

// DataTypeToSourceType validates the config string value of a tick source
func DataTypeToSourceType(dataType string) (string, error) {
	switch strings.ToLower(dataType) {
	case CSVStr:
		return CSVStr, nil
	case JSONStr, "json":
		return JSONStr, nil
	case DatabaseStr, "db":
		return DatabaseStr, nil
	default:
		return "", fmt.Errorf("%w '%v'", ErrInvalidDataType, dataType)
	}
}

package common

import "errors"

const (
	// CSVStr is a config readable source type for comma separated tick files
	CSVStr = "csv"
	// JSONStr is a config readable source type for newline delimited JSON tick files
	JSONStr = "jsonl"
	// DatabaseStr is a config readable source type for ticks stored in a SQL table
	DatabaseStr = "database"

	// MarketOnCloseTime is the HHMMSSmmm time from which market-on-close orders may fill
	MarketOnCloseTime = 160000000
	// DefaultReadAhead is the default number of tick files kept open during playback
	DefaultReadAhead = 40
	// DefaultWorkerBuffer is the default number of ticks pre-read per open file
	DefaultWorkerBuffer = 1000
	// DefaultStopOutLevel is the margin level percentage at which orders are liquidated
	DefaultStopOutLevel = 20
)

// ErrInvalidDataType occurs when an invalid data type is defined in the config
var ErrInvalidDataType = errors.New("invalid datatype received")

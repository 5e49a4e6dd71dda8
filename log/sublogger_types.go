package log

// Global vars related to the logger package
var (
	subLoggers = map[string]*SubLogger{}

	Global     *SubLogger
	BackTester *SubLogger
	ConfigMgr  *SubLogger
	Playback   *SubLogger
	Data       *SubLogger
	OrderBook  *SubLogger
	Account    *SubLogger
	Fill       *SubLogger
)

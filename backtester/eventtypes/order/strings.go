package order

func (d Direction) String() string {
	switch d {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	case Flat:
		return "FLAT"
	}
	return "UNKNOWN"
}

func (v Validity) String() string {
	switch v {
	case DAY:
		return "DAY"
	case GTC:
		return "GTC"
	case OPG:
		return "OPG"
	case MOC:
		return "MOC"
	}
	return "UNKNOWN"
}

// ValidityFromString parses a validity, defaulting to DAY
func ValidityFromString(s string) Validity {
	switch s {
	case "GTC", "gtc":
		return GTC
	case "OPG", "opg":
		return OPG
	case "MOC", "moc":
		return MOC
	}
	return DAY
}

// DirectionFromString parses a direction
func DirectionFromString(s string) (Direction, bool) {
	switch s {
	case "LONG", "long", "BUY", "buy":
		return Long, true
	case "SHORT", "short", "SELL", "sell":
		return Short, true
	case "FLAT", "flat":
		return Flat, true
	}
	return Long, false
}

func (t Type) String() string {
	switch t {
	case Market:
		return "MARKET"
	case Limit:
		return "LIMIT"
	case Stop:
		return "STOP"
	case StopLimit:
		return "STOP_LIMIT"
	case MarketFlat:
		return "MARKET_FLAT"
	}
	return "UNKNOWN"
}

func (s Status) String() string {
	switch s {
	case OK:
		return "OK"
	case Filled:
		return "ORDER_FILLED"
	case InsufficientCapital:
		return "INSUFFICIENT_CAPITAL"
	case NotFound:
		return "ORDER_NOT_FOUND"
	case InvalidTradeParameters:
		return "INVALID_TRADE_PARAMETERS"
	case InvalidAccount:
		return "INVALID_ACCOUNT"
	case InvalidVolume:
		return "ORDER_INVALID_VOLUME"
	case InvalidPrice:
		return "ORDER_INVALID_PRICE"
	case InvalidStop:
		return "ORDER_INVALID_STOP"
	case SymbolNotLoaded:
		return "SYMBOL_NOT_LOADED"
	case OffQuotes:
		return "OFF_QUOTES"
	case UnknownSymbol:
		return "UNKNOWN_SYMBOL"
	case Requote:
		return "REQUOTE"
	}
	return "UNKNOWN"
}

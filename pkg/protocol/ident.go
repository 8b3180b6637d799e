package protocol

// special identifiers of the link

const (
	// StationAddrString is the upstream station every report is sent to.
	StationAddrString = "48:E7:29:24:81:29"
)

var (
	stationAddr = MustParseAddr(StationAddrString)
)

func StationAddr() Addr {
	return stationAddr
}

package blueflood

// Version information for the Blueflood Go client
const (
	// Version is the current client version
	Version = "0.2.0"
)

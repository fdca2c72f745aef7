package enums

type ConnectionStatus string

const (
	ConnectionStatusActive  ConnectionStatus = "active"
	ConnectionStatusBlocked ConnectionStatus = "blocked"
)

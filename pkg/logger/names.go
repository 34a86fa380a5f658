package logger

const (
	Main       = "main"
	Divert     = "divertd"
	Engine     = "engine"
	Dataplane  = "dataplane"
	NetMon     = "netmon"
	Mirror     = "mirrord"
	Shadow     = "shadow"
	Southbound = "sb"
	Events     = "events"
	Exporter   = "exporter"
	API        = "api"
	OpDB       = "opdb"
)

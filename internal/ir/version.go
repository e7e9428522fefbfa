package ir

// Version constants recorded with every run.
const (
	// IRVersion is the program IR schema version.
	IRVersion = "1"

	// EngineVersion is the behavioral engine version.
	EngineVersion = "0.1.0"
)

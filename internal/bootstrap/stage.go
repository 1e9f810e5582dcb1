package bootstrap

// Stage is one step of the fixed bootstrap sequence.
type Stage int32

const (
	StageUninitialized Stage = iota
	StageDependenciesReady
	StageStorageConnected
	StageSchemaReady
	StageRepositoriesReady
	StageServicesReady
	StageRunning
	StageShuttingDown
)

func (s Stage) String() string {
	switch s {
	case StageUninitialized:
		return "Uninitialized"
	case StageDependenciesReady:
		return "DependenciesReady"
	case StageStorageConnected:
		return "StorageConnected"
	case StageSchemaReady:
		return "SchemaReady"
	case StageRepositoriesReady:
		return "RepositoriesReady"
	case StageServicesReady:
		return "ServicesReady"
	case StageRunning:
		return "Running"
	case StageShuttingDown:
		return "ShuttingDown"
	default:
		return "Unknown"
	}
}

// reached reports whether s is at or past target on the bootstrap path.
func (s Stage) reached(target Stage) bool {
	return s != StageShuttingDown && s >= target
}

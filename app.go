package tactical

const (
	// Name is the service name reported in logs and health responses
	Name = "tactical-workflow-manager"

	// Version is the engine release version
	Version = "4.0.0"
)

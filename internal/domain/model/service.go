package model

// ServiceDescriptor is the static configuration describing what to provision.
type ServiceDescriptor struct {
	ImageName     string            `yaml:"image_name"`
	ContainerName string            `yaml:"container_name"`
	BasePath      string            `yaml:"base_path"`
	ArtifactName  string            `yaml:"artifact_name"`
	Env           map[string]string `yaml:"env"`
	// Description is optional markdown shown on the web page.
	Description string `yaml:"description"`
}

// DefaultDescriptor returns the descriptor for the bundled random number
// microservice.
func DefaultDescriptor() ServiceDescriptor {
	return ServiceDescriptor{
		ImageName:     "randomnumber-v1",
		ContainerName: "randomnumber-v1",
		BasePath:      "/randomnumber/v1",
		ArtifactName:  "randomnumber_v1.tar",
		Env:           map[string]string{},
	}
}

// ServiceHandle is the reachability information for a running service
// instance. It is produced once per session and read-only afterwards.
type ServiceHandle struct {
	ContainerName string
	Image         string
	BasePath      string
}

// IsZero reports whether the handle was never populated.
func (h ServiceHandle) IsZero() bool {
	return h.BasePath == "" && h.ContainerName == ""
}

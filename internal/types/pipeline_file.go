package types

// PipelineFile is the per-repository build configuration, read from
// sitepipe.yaml at the repository root. The stage order itself is fixed
// (source, build, deploy); the file only configures how the build stage
// runs and where its output lands.
type PipelineFile struct {
	Build  BuildConfig  `yaml:"build"`
	Deploy DeployConfig `yaml:"deploy"`
}

type BuildConfig struct {
	// Image overrides the stack's build image for this repository.
	Image          string   `yaml:"image"`
	ComputeSize    string   `yaml:"compute_size"`
	TimeoutSeconds int64    `yaml:"timeout_seconds"`
	Commands       []string `yaml:"commands"`
	// OutputDir is the directory whose contents become the build artifact.
	OutputDir string `yaml:"output_dir"`
}

type DeployConfig struct {
	// Prefix is prepended to every uploaded object key.
	Prefix string `yaml:"prefix"`
}

func (pf *PipelineFile) ApplyDefaults() {
	if pf.Build.ComputeSize == "" {
		pf.Build.ComputeSize = "small"
	}
	if pf.Build.TimeoutSeconds <= 0 {
		pf.Build.TimeoutSeconds = 900
	}
	if pf.Build.OutputDir == "" {
		pf.Build.OutputDir = "dist"
	}
}

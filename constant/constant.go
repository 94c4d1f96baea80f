package constant

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentDevelop    Environment = "develop"
)

func (e Environment) String() string {
	return string(e)
}

const (
	// Object-store key layout. The artifact id in the basename ties a clip's
	// video to its companion animation slice.
	ClipKeyPrefix      = "clips"
	AnimationKeyPrefix = "animations"

	DefaultFPS     = 30
	MaxFPS         = 240
	MaxClips       = 100
	MaxDescription = 1024

	FallbackVideoName     = "source.mp4"
	FallbackAnimationName = "animation.bin"
)

package version

// Version contains the application version information.
// This should be set via build-time ldflags in production:
// go build -ldflags "-X git.home.luguber.info/inful/docdrift/internal/version.Version=v1.4.0".
var Version = "unknown"

// BuildInfo contains additional build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Tool is the generator name recorded in report metadata. Generated
// artifacts must stay byte-stable for a given commit, so only Version
// (never BuildTime) may appear in generated output.
const Tool = "docdrift"

package config

// Set at link time:
//
//	go build -ldflags "-X lawnwatch/internal/config.version=1.4.0 \
//	    -X lawnwatch/internal/config.commit=$(git rev-parse --short HEAD) \
//	    -X lawnwatch/internal/config.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func NewBuildInfo() BuildInfo {
	return BuildInfo{Version: version, Commit: commit, BuildTime: buildTime}
}

// Map flattens the build info for health responses.
func (b BuildInfo) Map() map[string]string {
	return map[string]string{"version": b.Version, "commit": b.Commit, "build_time": b.BuildTime}
}

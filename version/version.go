package version

// Set at build time with -ldflags "-X github.com/cesium-ml/baselayer/version.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	GitURL    = "https://github.com/cesium-ml/baselayer"
	BuildDate = "unknown"
)

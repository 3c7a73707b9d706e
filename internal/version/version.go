package version

// Version is stamped on ingested graph data and reported by the API.
// Overridden at release time via -ldflags "-X ...version.Version=v0.5.0".
var Version = "0.4.0-dev"

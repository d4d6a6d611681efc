// Package buildinfo reports which meetchat build is running, for the version
// command, the model provider user agent and the metrics server.
package buildinfo

import (
	"encoding/json"
	"net/http"
	"runtime"
	"runtime/debug"
)

// Stamped by the release build:
//
//	-X github.com/otherjamesbrown/meetchat/pkg/buildinfo.Version=v0.3.0
//	-X github.com/otherjamesbrown/meetchat/pkg/buildinfo.Commit=b806fe7
//	-X github.com/otherjamesbrown/meetchat/pkg/buildinfo.BuildTime=2026-02-07T10:30:00Z
//
// A plain `go install` leaves them unset; Get then falls back to the VCS
// settings the Go toolchain embeds.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const unknown = "unknown"

// ServiceName is the name meetchat reports for itself.
const ServiceName = "meetchat"

var readBuildInfo = debug.ReadBuildInfo

// Info describes one meetchat build.
type Info struct {
	ServiceName string `json:"service_name"`
	Version     string `json:"version"`
	Commit      string `json:"commit"`
	BuildTime   string `json:"build_time"`
	// Modified is set when the build came from a dirty working tree.
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns build info reported under serviceName.
func Get(serviceName string) Info {
	info := Info{
		ServiceName: serviceName,
		Version:     Version,
		Commit:      Commit,
		BuildTime:   BuildTime,
		GoVersion:   runtime.Version(),
		Platform:    runtime.GOOS + "/" + runtime.GOARCH,
	}
	if info.Commit == unknown || info.BuildTime == unknown {
		applyVCS(&info)
	}
	return info
}

// applyVCS fills unstamped fields from the toolchain's vcs.* settings.
func applyVCS(info *Info) {
	bi, ok := readBuildInfo()
	if !ok {
		return
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == unknown && s.Value != "" {
				info.Commit = shortRevision(s.Value)
			}
		case "vcs.time":
			if info.BuildTime == unknown && s.Value != "" {
				info.BuildTime = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
}

func shortRevision(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}

// String returns a one-liner like "v0.3.0 (b806fe7, 2026-02-07T10:30:00Z)".
func String() string {
	info := Get(ServiceName)
	s := info.Version + " (" + info.Commit + ", " + info.BuildTime + ")"
	if info.Modified {
		s += " modified"
	}
	return s
}

// UserAgent identifies meetchat to model providers and the analysis service.
func UserAgent() string {
	return ServiceName + "/" + Get(ServiceName).Version
}

// Handler serves the build info as JSON on GET.
func Handler(serviceName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Get(serviceName))
	}
}

package engine

import (
	"runtime"

	"github.com/alnah/go-audiosplit/internal/ffmpeg"
)

// SourceModules names the resolved toolchain as a runtime source.
const SourceModules = "modules"

// RuntimeConfig is one way of obtaining the engine executable.
type RuntimeConfig struct {
	Name     string
	Source   string // SourceModules, file:// path, or http(s):// URL
	Threaded bool   // multi-threaded runtime; not supported, always skipped
	Gzip     bool
	SHA256   string // of the bytes as served; empty skips verification
}

func (c RuntimeConfig) asset(m ffmpeg.Modules) ffmpeg.Asset {
	url := c.Source
	if url == SourceModules {
		url = "file://" + m.FFmpeg
	}
	return ffmpeg.Asset{URL: url, SHA256: c.SHA256, Gzip: c.Gzip}
}

// DefaultRuntimeConfigs returns the ordered runtime list: the resolved toolchain,
// its threaded variant, then one entry per mirror of the pinned static build.
func DefaultRuntimeConfigs(mirrors []string) []RuntimeConfig {
	configs := []RuntimeConfig{
		{Name: "resolved toolchain", Source: SourceModules},
		{Name: "resolved toolchain (threaded)", Source: SourceModules, Threaded: true},
	}
	for _, m := range mirrors {
		asset, ok := ffmpeg.MirrorAsset(m, runtime.GOOS, runtime.GOARCH)
		if !ok {
			continue
		}
		configs = append(configs, RuntimeConfig{
			Name:   "mirror " + m,
			Source: asset.URL,
			Gzip:   asset.Gzip,
			SHA256: asset.SHA256,
		})
	}
	return configs
}

// FallbackRuntime is the fixed last-resort runtime: the pinned static build.
func FallbackRuntime(goos, goarch string) (RuntimeConfig, bool) {
	asset, ok := ffmpeg.PlatformAsset(goos, goarch)
	if !ok {
		return RuntimeConfig{}, false
	}
	return RuntimeConfig{
		Name:   "fallback static build",
		Source: asset.URL,
		Gzip:   asset.Gzip,
		SHA256: asset.SHA256,
	}, true
}

package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	// versionFileName stores the installed version for upgrade detection.
	versionFileName = ".version"

	installDirPerm = 0o750
)

// Installer places the pinned static build in the install directory.
type Installer struct {
	fs         fileSystem
	env        envProvider
	downloader *Downloader
	stderr     io.Writer
	goos       string
	goarch     string
	asset      *Asset // override for testing; nil uses PlatformAsset
}

// InstallerOption configures an Installer.
type InstallerOption func(*Installer)

// WithInstallFileSystem sets the filesystem implementation.
func WithInstallFileSystem(fs fileSystem) InstallerOption {
	return func(i *Installer) { i.fs = fs }
}

// WithInstallEnv sets the environment provider (home directory lookup).
func WithInstallEnv(e envProvider) InstallerOption {
	return func(i *Installer) { i.env = e }
}

// WithDownloader sets the downloader.
func WithDownloader(d *Downloader) InstallerOption {
	return func(i *Installer) { i.downloader = d }
}

// WithInstallStderr sets the writer for status messages.
func WithInstallStderr(w io.Writer) InstallerOption {
	return func(i *Installer) { i.stderr = w }
}

// WithInstallPlatform sets the target platform.
func WithInstallPlatform(goos, goarch string) InstallerOption {
	return func(i *Installer) {
		i.goos = goos
		i.goarch = goarch
	}
}

// WithAsset overrides the asset to install.
func WithAsset(a Asset) InstallerOption {
	return func(i *Installer) { i.asset = &a }
}

// NewInstaller creates an Installer with production defaults.
func NewInstaller(opts ...InstallerOption) *Installer {
	i := &Installer{
		fs:         osFileSystem{},
		env:        osEnvProvider{},
		downloader: NewDownloader(),
		stderr:     os.Stderr,
		goos:       runtime.GOOS,
		goarch:     runtime.GOARCH,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Installed reports the path of a current install, if there is one.
// An install with a missing or stale version file counts as absent.
func (i *Installer) Installed() (string, bool) {
	dir, err := installDir(i.env)
	if err != nil {
		return "", false
	}
	path := filepath.Join(dir, i.binaryFile())
	if _, err := i.fs.Stat(path); err != nil {
		return "", false
	}
	data, err := i.fs.ReadFile(filepath.Join(dir, versionFileName))
	if err != nil || strings.TrimSpace(string(data)) != StaticVersion {
		return "", false
	}
	return path, true
}

// Install downloads, verifies and unpacks the static build, returning its path.
func (i *Installer) Install(ctx context.Context) (string, error) {
	asset, err := i.resolveAsset()
	if err != nil {
		return "", err
	}

	dir, err := installDir(i.env)
	if err != nil {
		return "", err
	}
	if err := i.fs.MkdirAll(dir, installDirPerm); err != nil {
		return "", fmt.Errorf("cannot create install directory %s: %w", dir, err)
	}

	fmt.Fprintf(i.stderr, "Downloading ffmpeg %s for %s...\n", StaticVersion, Platform(i.goos, i.goarch))

	destPath := filepath.Join(dir, i.binaryFile())
	if err := i.writeBinary(ctx, asset, destPath); err != nil {
		return "", fmt.Errorf("download ffmpeg: %w", err)
	}

	versionPath := filepath.Join(dir, versionFileName)
	if err := i.fs.WriteFile(versionPath, []byte(StaticVersion), 0o644); err != nil {
		return "", fmt.Errorf("write version file: %w", err)
	}
	return destPath, nil
}

func (i *Installer) resolveAsset() (Asset, error) {
	if i.asset != nil {
		return *i.asset, nil
	}
	asset, ok := PlatformAsset(i.goos, i.goarch)
	if !ok {
		return Asset{}, fmt.Errorf("%w: %s-%s (supported: darwin-arm64, darwin-amd64, linux-amd64, windows-amd64)",
			ErrUnsupportedPlatform, i.goos, i.goarch)
	}
	return asset, nil
}

// writeBinary stages the decoded build next to destPath and renames it into place.
func (i *Installer) writeBinary(ctx context.Context, asset Asset, destPath string) error {
	src, err := i.downloader.Open(ctx, asset)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	staging, err := i.fs.CreateTemp(filepath.Dir(destPath), ".extract-*")
	if err != nil {
		return fmt.Errorf("cannot create temp file: %w", err)
	}
	stagingPath := staging.Name()
	success := false
	defer func() {
		if !success {
			_ = i.fs.Remove(stagingPath)
		}
	}()

	if _, err := io.Copy(staging, src); err != nil {
		_ = staging.Close()
		return fmt.Errorf("decompression failed: %w", err)
	}
	if err := staging.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if i.goos != "windows" {
		if err := i.fs.Chmod(stagingPath, 0o755); err != nil {
			return fmt.Errorf("make binary executable: %w", err)
		}
	}
	if err := i.fs.Rename(stagingPath, destPath); err != nil {
		return fmt.Errorf("install binary: %w", err)
	}
	success = true
	return nil
}

func (i *Installer) binaryFile() string {
	if i.goos == "windows" {
		return binaryName + binaryExtWindows
	}
	return binaryName
}

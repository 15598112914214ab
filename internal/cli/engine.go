package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alnah/go-audiosplit/internal/ffmpeg"
)

// EngineCmd creates the engine command with subcommands.
// The env parameter provides injectable dependencies for testing.
func EngineCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "engine",
		Short: "Inspect or install the FFmpeg engine",
		Long: `Inspect or install the FFmpeg toolchain used for conversion.

The toolchain is looked up in this order, first complete match wins:
  env       FFMPEG_PATH (and FFPROBE_PATH)
  config    engine-dir from config
  install   ~/.audiosplit/bin
  path      system PATH`,
		Example: `  audiosplit engine status
  audiosplit engine install`,
	}

	cmd.AddCommand(engineStatusCmd(env))
	cmd.AddCommand(engineInstallCmd(env))

	return cmd
}

// engineStatusCmd creates the "engine status" subcommand.
func engineStatusCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the resolved FFmpeg toolchain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngineStatus(cmd, env)
		},
	}
}

// engineInstallCmd creates the "engine install" subcommand.
func engineInstallCmd(env *Env) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Download the pinned static FFmpeg build",
		Long: fmt.Sprintf(`Download FFmpeg %s for this platform into ~/.audiosplit/bin.

The download is verified against a pinned SHA-256 checksum.`, ffmpeg.StaticVersion),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngineInstall(cmd, env, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Reinstall even if the current version is present")

	return cmd
}

// runEngineStatus resolves the toolchain and prints its modules.
func runEngineStatus(cmd *cobra.Command, env *Env) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(ctx, env)
	if err != nil {
		return err
	}
	logger, err := newLogger(env, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	m, err := env.EngineFactory.NewResolver(cfg, logger).Resolve(ctx)
	if err != nil {
		if errors.Is(err, ffmpeg.ErrNotFound) {
			fmt.Fprintln(env.Stderr, "Run 'audiosplit engine install', or install it manually:")
			fmt.Fprintln(env.Stderr, ffmpeg.ManualInstallInstructions(env.GOOS))
		}
		return err
	}

	fmt.Fprintf(env.Stdout, "ffmpeg:  %s\n", m.FFmpeg)
	fmt.Fprintf(env.Stdout, "version: %s\n", m.Version)
	fmt.Fprintf(env.Stdout, "mp3:     %s\n", yesNo(m.MP3))
	if m.FFprobe != "" {
		fmt.Fprintf(env.Stdout, "ffprobe: %s\n", m.FFprobe)
	} else {
		fmt.Fprintln(env.Stdout, "ffprobe: not found (durations are read with ffmpeg)")
	}
	return nil
}

// runEngineInstall downloads the static build unless a current one is present.
func runEngineInstall(cmd *cobra.Command, env *Env, force bool) error {
	installer := env.EngineFactory.NewInstaller(env.Stderr)
	if path, ok := installer.Installed(); ok && !force {
		fmt.Fprintf(env.Stderr, "ffmpeg %s is already installed: %s\n", ffmpeg.StaticVersion, path)
		return nil
	}

	path, err := installer.Install(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(env.Stderr, "Installed: %s\n", path)
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

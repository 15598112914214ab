package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alnah/go-audiosplit/internal/config"
	"github.com/alnah/go-audiosplit/internal/render"
)

// splitFlags holds the split command flags. Zero values defer to configuration.
type splitFlags struct {
	segmentLength int
	bitrate       int
	outputDir     string
	overwrite     bool
	yes           bool
}

// SplitCmd creates the split command.
// The env parameter provides injectable dependencies for testing.
func SplitCmd(env *Env) *cobra.Command {
	var flags splitFlags

	cmd := &cobra.Command{
		Use:   "split <video>",
		Short: "Split a video's audio into MP3 parts",
		Long: `Convert an MP4 or M4V video to MP3 and cut it into fixed-length parts.

Everything runs locally with FFmpeg. When the duration cannot be measured, parts
are cut one after another until the audio ends.

Parts are named <video>_part<N>.mp3 and written to the output directory
(default: output-dir from config, else the current directory).`,
		Example: `  audiosplit split lecture.mp4
  audiosplit split lecture.mp4 -s 600 -b 128
  audiosplit split lecture.mp4 -o ~/Music/lectures --overwrite
  audiosplit split huge.mp4 --yes  # Skip the large-file confirmation`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSplit(cmd, env, args[0], flags)
		},
	}

	cmd.Flags().IntVarP(&flags.segmentLength, "segment-length", "s", 0, "Part length in seconds (default: config, 1800)")
	cmd.Flags().IntVarP(&flags.bitrate, "bitrate", "b", 0, "MP3 bitrate in kbps, 8-320 (default: config, 192)")
	cmd.Flags().StringVarP(&flags.outputDir, "output-dir", "o", "", "Directory for the parts")
	cmd.Flags().BoolVar(&flags.overwrite, "overwrite", false, "Replace existing parts")
	cmd.Flags().BoolVarP(&flags.yes, "yes", "y", false, "Process large files without asking")

	return cmd
}

// runSplit executes the split pipeline.
// Order: config -> options -> output dir lock -> select -> info -> process -> results -> save -> cleanup
func runSplit(cmd *cobra.Command, env *Env, path string, flags splitFlags) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(ctx, env)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("segment-length") {
		cfg.SegmentLength = flags.segmentLength
	}
	if cmd.Flags().Changed("bitrate") {
		cfg.Bitrate = flags.bitrate
	}
	opts := splitOptions(cfg)
	if err := opts.Validate(); err != nil {
		return err
	}

	outDir := resolveOutputDir(flags.outputDir, cfg.OutputDir)
	if err := config.ValidOutputDir(outDir); err != nil {
		return fmt.Errorf("output directory: %w", err)
	}
	lock, err := lockOutputDir(env, outDir)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	logger, err := newLogger(env, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	splitter, err := env.SplitterFactory.NewSplitter(cfg, opts, logger)
	if err != nil {
		return err
	}
	env.OnInterrupt(splitter.Reset)
	defer splitter.Reset()

	if _, err := splitter.Select(ctx, path, confirmer(env, flags.yes)); err != nil {
		return err
	}
	info, err := splitter.Wait(ctx)
	if err != nil {
		return err
	}
	render.FileInfo(env.Stderr, info, opts.SegmentLength)

	progress := render.NewProgress(env.Stderr)
	tasks, err := splitter.Process(ctx, progress.Update)
	if err != nil {
		progress.Abort()
		return fmt.Errorf("%s: %w", info.File.Name, err)
	}

	if table := render.Results(tasks); table != "" {
		fmt.Fprintln(env.Stdout, table)
	}

	saved, err := splitter.Save(outDir, flags.overwrite)
	render.Saved(env.Stderr, outDir, saved)
	if err != nil {
		return err
	}
	return nil
}

// resolveOutputDir picks the flag, then config, then the current directory.
func resolveOutputDir(flag, configured string) string {
	if flag != "" {
		return config.ExpandPath(flag)
	}
	if configured != "" {
		return configured
	}
	return "."
}

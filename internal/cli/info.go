package cli

import (
	"github.com/spf13/cobra"

	"github.com/alnah/go-audiosplit/internal/render"
)

// InfoCmd creates the info command.
// The env parameter provides injectable dependencies for testing.
func InfoCmd(env *Env) *cobra.Command {
	var segmentLength int

	cmd := &cobra.Command{
		Use:   "info <video>",
		Short: "Show a video's size, duration and expected parts",
		Long: `Show the details of a video without converting it: name, title,
size, duration and the number of parts a split would produce.`,
		Example: `  audiosplit info lecture.mp4
  audiosplit info lecture.mp4 -s 600`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(cmd, env, args[0], segmentLength)
		},
	}

	cmd.Flags().IntVarP(&segmentLength, "segment-length", "s", 0, "Part length in seconds (default: config, 1800)")

	return cmd
}

// runInfo selects the file, waits for probing and prints what is known.
// Large files are described without confirmation since nothing is converted.
func runInfo(cmd *cobra.Command, env *Env, path string, segmentLength int) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(ctx, env)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("segment-length") {
		cfg.SegmentLength = segmentLength
	}
	opts := splitOptions(cfg)
	if err := opts.Validate(); err != nil {
		return err
	}

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

	if _, err := splitter.Select(ctx, path, confirmer(env, true)); err != nil {
		return err
	}
	info, err := splitter.Wait(ctx)
	if err != nil {
		return err
	}
	render.FileInfo(env.Stdout, info, opts.SegmentLength)
	return nil
}

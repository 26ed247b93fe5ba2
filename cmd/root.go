package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiesman99/tile_extractor/internal/extract"
	"github.com/kiesman99/tile_extractor/pkg/tile"
)

const (
	appName = "tile_extractor"
	version = "1.0"

	usageLine   = "Usage: tile_extractor file_with_tiles.png tile_width tile_height"
	exampleLine = "Example: tile_extractor tileset.png 32 32"
)

// Execute builds the command tree and runs it. This is called by main.main().
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCmd returns the root command with its own viper instance, so every
// invocation starts from a clean configuration.
func NewRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "tile_extractor <file_with_tiles.png> <tile_width> <tile_height>",
		Short: "Cut a tileset image into one PNG file per tile",
		Long: `tile_extractor splits a tileset into fixed-size tiles and writes each tile
to its own file named tile<ID>.png, where ID counts tiles in row-major order.

Tiles made of a single solid color are written only once per color; later
tiles of the same color are skipped. Pixels to the right of the last full
column or below the last full row are not part of any tile.

Examples:
  # Cut a tileset into 32x32 tiles in the current directory
  tile_extractor tileset.png 32 32

  # Write tiles into another directory using four workers
  tile_extractor -o tiles -w 4 tileset.png 16 16

  # Start HTTP server
  tile_extractor serve --port 8080`,
		Version:      version,
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd, v, cfgFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 3 {
				printBanner(cmd.OutOrStdout())
				return nil
			}
			return runExtract(cmd, v, args)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.tile_extractor.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress non-error output")
	rootCmd.PersistentFlags().IntP("workers", "w", 1, "number of tiles processed concurrently")

	rootCmd.Flags().StringP("output-dir", "o", ".", "directory the tiles are written to")

	// Everything after the file name is positional, so "-4" reaches
	// parseDimension instead of being read as a shorthand flag.
	rootCmd.Flags().SetInterspersed(false)

	v.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	v.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	v.BindPFlag("workers", rootCmd.PersistentFlags().Lookup("workers"))
	v.BindPFlag("output-dir", rootCmd.Flags().Lookup("output-dir"))

	rootCmd.AddCommand(newServeCmd(v))

	return rootCmd
}

// initConfig reads in config file and ENV variables if set.
func initConfig(cmd *cobra.Command, v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		// Use config file from the flag.
		v.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		// Search config in home directory with name ".tile_extractor" (without extension).
		v.AddConfigPath(home)
		v.SetConfigType("yaml")
		v.SetConfigName("." + appName)
	}

	v.SetEnvPrefix("TILE_EXTRACTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}

	if v.GetBool("verbose") {
		fmt.Fprintln(cmd.ErrOrStderr(), "Using config file:", v.ConfigFileUsed())
	}
	return nil
}

func printBanner(w io.Writer) {
	fmt.Fprintf(w, "%s %s\n", appName, version)
	fmt.Fprintln(w, usageLine)
	fmt.Fprintln(w, exampleLine)
}

func newLogger(w io.Writer, v *viper.Viper) hclog.Logger {
	level := hclog.Info
	switch {
	case v.GetBool("quiet"):
		level = hclog.Off
	case v.GetBool("verbose"):
		level = hclog.Debug
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:   appName,
		Output: w,
		Level:  level,
	})
}

// parseDimension parses a tile width or height argument.
func parseDimension(name, arg string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not an integer", tile.ErrInvalidArgument, name, arg)
	}
	return n, nil
}

func runExtract(cmd *cobra.Command, v *viper.Viper, args []string) error {
	opts, err := extractOptions(v, args)
	if err != nil {
		return fmt.Errorf("%w\n%s", err, usageLine)
	}

	outputDir, err := filepath.Abs(v.GetString("output-dir"))
	if err != nil {
		return fmt.Errorf("invalid output directory: %w", err)
	}

	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	logger := newLogger(cmd.ErrOrStderr(), v)
	extractor := extract.New(osFs, tile.NewPNGWriter(afero.NewBasePathFs(osFs, outputDir)), logger, opts)

	report, err := extractor.Run(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if report.Failed() > 0 {
		logger.Warn("some tiles could not be saved", "failed", report.Failed())
	}
	return nil
}

func extractOptions(v *viper.Viper, args []string) (extract.Options, error) {
	width, err := parseDimension("tile_width", args[1])
	if err != nil {
		return extract.Options{}, err
	}
	height, err := parseDimension("tile_height", args[2])
	if err != nil {
		return extract.Options{}, err
	}

	var opts extract.Options
	if err := v.Unmarshal(&opts); err != nil {
		return opts, fmt.Errorf("%w: %v", tile.ErrInvalidArgument, err)
	}
	opts.TileWidth = width
	opts.TileHeight = height

	return opts, opts.Validate()
}

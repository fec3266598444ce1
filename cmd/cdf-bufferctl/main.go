// Command cdf-bufferctl inspects and repairs the on-disk overflow buffer
// files an upload queue writes when a flush fails (spec §4.7, §6).
package main

import (
	"fmt"
	"os"

	"github.com/cuemby/cdf-extractor-utils/pkg/model"
	"github.com/cuemby/cdf-extractor-utils/pkg/queue"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cdf-bufferctl",
	Short: "Inspect and repair cdf-extractor-utils upload queue buffer files",
}

var inspectCmd = &cobra.Command{
	Use:   "inspect PATH",
	Short: "List the frames currently held in a buffer file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		path := args[0]

		switch format {
		case "datapoints":
			frames, err := queue.ReadFrames(path, queue.DataPointCodec{})
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			total := 0
			for _, f := range frames {
				total += len(f.Points)
				fmt.Printf("series %s: %d point(s)\n", f.ID, len(f.Points))
			}
			fmt.Printf("%d series, %d point(s) total\n", len(frames), total)
		case "events":
			items, err := queue.ReadFrames(path, queue.JSONCodec[*model.Event]{})
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			for _, e := range items {
				fmt.Printf("event externalId=%s type=%s\n", e.ExternalID, e.Type)
			}
			fmt.Printf("%d event(s)\n", len(items))
		case "raw":
			items, err := queue.ReadFrames(path, queue.JSONCodec[queue.RawRowItem[map[string]any]]{})
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			for _, r := range items {
				fmt.Printf("row db=%s table=%s key=%s\n", r.DB, r.Table, r.Key)
			}
			fmt.Printf("%d row(s)\n", len(items))
		default:
			return fmt.Errorf("unknown --format %q (want datapoints, events, or raw)", format)
		}
		return nil
	},
}

var truncateCmd = &cobra.Command{
	Use:   "truncate PATH",
	Short: "Discard every buffered frame, leaving an empty buffer file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if err := os.Truncate(path, 0); err != nil {
			return fmt.Errorf("truncate %s: %w", path, err)
		}
		fmt.Printf("%s truncated\n", path)
		return nil
	},
}

var repairCmd = &cobra.Command{
	Use:   "repair PATH",
	Short: "Rewrite a buffer file, dropping any frame that fails to decode",
	Long: `Reads every frame in PATH, discarding any that fail to decode (for
example a partial frame left by a crash mid-append), then rewrites the
file with only the frames that survived. Running this on a healthy
buffer file is a no-op.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		path := args[0]

		switch format {
		case "datapoints":
			return repair(path, queue.DataPointCodec{})
		case "events":
			return repair(path, queue.JSONCodec[*model.Event]{})
		case "raw":
			return repair(path, queue.JSONCodec[queue.RawRowItem[map[string]any]]{})
		default:
			return fmt.Errorf("unknown --format %q (want datapoints, events, or raw)", format)
		}
	},
}

func repair[T any](path string, codec queue.Codec[T]) error {
	frames, err := queue.ReadFrames(path, codec)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	size, err := queue.WriteFrames(path, codec, frames)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("%s rewritten: %d frame(s), %d bytes\n", path, len(frames), size)
	return nil
}

func init() {
	inspectCmd.Flags().String("format", "datapoints", "Buffer frame format: datapoints, events, or raw")
	repairCmd.Flags().String("format", "datapoints", "Buffer frame format: datapoints, events, or raw")

	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(truncateCmd)
	rootCmd.AddCommand(repairCmd)
}

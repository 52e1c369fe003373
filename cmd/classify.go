package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"os"

	"FaceStabilityServer/capture"

	"github.com/spf13/cobra"
)

var (
	classifyRotation   int
	classifyOverlayOut string
)

var classifyCmd = &cobra.Command{
	Use:   "classify <image>...",
	Short: "Classify the faces of still images",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClassify(cmd.Context(), args)
	},
}

func init() {
	classifyCmd.Flags().IntVarP(&classifyRotation, "rotation", "r", 0, "Rotation of the images in degrees (0, 90, 180, 270)")
	classifyCmd.Flags().StringVarP(&classifyOverlayOut, "overlay-out", "o", "", "Write the overlay of the last image as PNG")
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(ctx context.Context, paths []string) error {
	a, err := buildApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	enc := json.NewEncoder(os.Stdout)
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		frame, err := capture.DecodeFrame(data, classifyRotation)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		res, err := a.pipeline.Process(ctx, frame)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := enc.Encode(map[string]any{"image": path, "result": res}); err != nil {
			return err
		}
	}

	if classifyOverlayOut != "" {
		f, err := os.Create(classifyOverlayOut)
		if err != nil {
			return err
		}
		defer f.Close()
		return png.Encode(f, a.overlay.Render())
	}
	return nil
}

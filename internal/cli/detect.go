package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vein-detect/internal/domain/entity"
)

func newDetectCmd(opts *options) *cobra.Command {
	var (
		useCamera bool
		out       string
		threshold float64
	)

	cmd := &cobra.Command{
		Use:   "detect [image]",
		Short: "Submit an image or a camera frame for detection",
		Example: `  # Submit a file with the saved threshold
  vein-detect detect hand.jpg

  # Change the threshold, then submit
  vein-detect detect hand.jpg --threshold 0.4

  # Grab a frame from the camera (build with -tags gocv)
  vein-detect detect --camera --out result.jpg`,
		Args: func(cmd *cobra.Command, args []string) error {
			if useCamera && len(args) > 0 {
				return errors.New("pass either an image or --camera, not both")
			}
			if !useCamera && len(args) != 1 {
				return errors.New("an image path is required unless --camera is set")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.container(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx := cmd.Context()
			ws := c.Workspace

			if cmd.Flags().Changed("threshold") {
				if _, err := c.Cache.SetThreshold(ctx, threshold); err != nil {
					return fmt.Errorf("save threshold: %w", err)
				}
			}

			if useCamera {
				if err := ws.StartCamera(ctx); err != nil {
					return err
				}
				candidate, err := ws.CaptureFromCamera(ctx)
				ws.StopCamera()
				if err != nil {
					return err
				}
				if candidate == nil {
					return errors.New("camera produced no frame")
				}
			} else if _, err := ws.SelectFile(ctx, args[0]); err != nil {
				return err
			}

			artifact, err := ws.Submit(ctx)
			if err != nil {
				var failure *entity.RequestFailedError
				if errors.As(err, &failure) {
					return fmt.Errorf("%w (%s)", err, failure.Detail())
				}
				return err
			}

			name, data, err := ws.Download(ctx)
			if err != nil {
				return err
			}
			if out == "" {
				out = name
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write result: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d bytes, conf %s, %s)\n",
				out, artifact.Size, c.Cache.Threshold().Percent(), artifact.Handle)
			return nil
		},
	}

	cmd.Flags().BoolVar(&useCamera, "camera", false, "Capture a frame from the camera instead of reading a file")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Where to save the annotated result (default vein-detection.jpg)")
	cmd.Flags().Float64VarP(&threshold, "threshold", "t", float64(entity.ThresholdDefault), "Confidence threshold to save before submitting (0.1-0.9)")

	return cmd
}

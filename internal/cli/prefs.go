package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"vein-detect/internal/domain/entity"
)

func newThresholdCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "threshold [value]",
		Short: "Show or set the confidence threshold (0.1-0.9, step 0.05)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.container(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			th := c.Cache.Threshold()
			if len(args) == 1 {
				v, err := strconv.ParseFloat(args[0], 64)
				if err != nil {
					return fmt.Errorf("threshold must be a number: %w", err)
				}
				if th, err = c.Cache.SetThreshold(cmd.Context(), v); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Conf: %s (%s)\n", th.Percent(), th)
			return nil
		},
	}
}

func newThemeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:       "theme [dark|light|toggle]",
		Short:     "Show or change the saved theme",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"dark", "light", "toggle"},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.container(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx := cmd.Context()
			theme := c.Cache.Theme()
			switch {
			case len(args) == 0:
			case args[0] == "toggle":
				if theme, err = c.Cache.ToggleTheme(ctx); err != nil {
					return err
				}
			default:
				theme = entity.ParseTheme(args[0])
				if err := c.Cache.SetTheme(ctx, theme); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Theme: %s\n", theme)
			return nil
		},
	}
}

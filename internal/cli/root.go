package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"vein-detect/config"
	"vein-detect/internal/container"
)

// options общие для всех подкоманд
type options struct {
	cfg *config.Config
}

// NewRootCmd собирает дерево команд
func NewRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "vein-detect",
		Short: "Submit images to a vein detection service and keep a session history",
		Long: `vein-detect acquires an image (file, dropped document or camera frame),
sends it to the detection service and stores the annotated result.

The primary endpoint is tried first, then the local fallback at
http://localhost:8000. Preferences and the last 24 results persist between runs.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			opts.cfg = cfg
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
			return nil
		},
	}

	cmd.AddCommand(
		newBotCmd(opts),
		newDetectCmd(opts),
		newHistoryCmd(opts),
		newThresholdCmd(opts),
		newThemeCmd(opts),
	)

	return cmd
}

func (o *options) container(cmd *cobra.Command) (*container.Container, error) {
	if o.cfg == nil {
		return nil, fmt.Errorf("config is not loaded")
	}
	return container.New(cmd.Context(), o.cfg)
}

package cli

import (
	"encoding/json"
	"os"

	"classquiz-service/internal/app"
	"classquiz-service/internal/config"
	"classquiz-service/internal/logging"
	"github.com/spf13/cobra"
)

// NewGroupsCmd prints the groups for a quiz as JSON, using the same backends
// as the server.
func NewGroupsCmd(configPath *string) *cobra.Command {
	var req app.GroupRequest
	cmd := &cobra.Command{
		Use:   "groups QUIZ_ID",
		Short: "Print mixed-ability groups for a quiz",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logging.SetupWithLevel(logging.ParseLevel(cfg.Log.Level))

			svc, err := buildServices(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			result, err := svc.grouping.Groups(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	cmd.Flags().IntVar(&req.GroupSize, "size", 0, "target group size (default from config)")
	cmd.Flags().StringVar(&req.Category, "category", "", "rank by a category instead of overall score")
	cmd.Flags().BoolVar(&req.ForceRegenerate, "regenerate", false, "shuffle tied students")
	return cmd
}

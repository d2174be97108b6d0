package commands

import (
	"appfeedback/internal/observability"
	"appfeedback/internal/services"
	contextutils "appfeedback/internal/utils"

	"github.com/spf13/cobra"
)

// ContentCommands returns the commands that maintain the exploration to
// story lookup used when validating lesson player reports.
func ContentCommands(provider ContainerProvider, logger *observability.Logger) *cobra.Command {
	contentCmd := &cobra.Command{
		Use:   "content",
		Short: "Content reference commands",
	}
	contentCmd.AddCommand(&cobra.Command{
		Use:   "set-story EXPLORATION_ID STORY_ID",
		Short: "Record which story an exploration belongs to",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			container, err := provider(ctx)
			if err != nil {
				return err
			}
			rdb := container.GetRedis()
			if rdb == nil {
				return contextutils.ErrorWithContextf("redis is not configured")
			}

			refs := services.NewRedisContentReferences(rdb, container.GetConfig().Redis.KeyPrefix)
			if err := refs.SetStoryForExploration(ctx, args[0], args[1]); err != nil {
				return err
			}
			logger.Info(ctx, "Exploration story recorded", map[string]interface{}{
				"exploration_id": args[0],
				"story_id":       args[1],
			})
			cmd.Printf("Exploration %s now belongs to story %s\n", args[0], args[1])
			return nil
		},
	})
	return contentCmd
}

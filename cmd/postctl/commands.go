package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"social_scheduler/internal/app"
	"social_scheduler/internal/domain"
	"social_scheduler/internal/service"
)

type cli struct {
	configPath string
	deps       *app.Deps
	schedule   *service.ScheduleService
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "postctl",
		Short:         "Schedule and inspect social media posts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.deps != nil {
				c.deps.Close()
			}
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "config.yaml", "path to config file")

	root.AddCommand(
		c.scheduleCmd(),
		c.listCmd(),
		c.getCmd(),
		c.rescheduleCmd(),
		c.cancelCmd(),
		c.publishCmd(),
		c.commentsCmd(),
		c.responsesCmd(),
		c.attemptsCmd(),
	)
	return root
}

func (c *cli) init(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// diagnostics go to stderr so command output stays machine readable
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg, err := app.LoadConfig(c.configPath, logger)
	if err != nil {
		return err
	}

	deps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	c.deps = deps
	c.schedule = deps.ScheduleService()
	return nil
}

func (c *cli) scheduleCmd() *cobra.Command {
	var in service.NewPost
	var image string

	cmd := &cobra.Command{
		Use:   "schedule <content>",
		Short: "Queue a post for publishing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Content = args[0]
			if image != "" {
				in.ImagePath = &image
			}
			post, err := c.schedule.Schedule(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), post)
		},
	}
	cmd.Flags().StringVarP(&in.Platform, "platform", "p", "", "linkedin or twitter")
	cmd.Flags().StringVarP(&in.ScheduleTime, "at", "t", "", "publish time, ISO-8601 (naive means UTC)")
	cmd.Flags().StringVar(&image, "image", "", "path to an image to attach")
	_ = cmd.MarkFlagRequired("platform")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

func (c *cli) listCmd() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List posts in the schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter domain.Status
			if status != "" {
				st, err := domain.ParseStatus(status)
				if err != nil {
					return err
				}
				filter = st
			}
			return printPosts(cmd.OutOrStdout(), c.schedule.List(cmd.Context(), filter))
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", "", "only posts with this status")
	return cmd
}

func (c *cli) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			post, err := c.schedule.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), post)
		},
	}
}

func (c *cli) rescheduleCmd() *cobra.Command {
	var content, at, image string

	cmd := &cobra.Command{
		Use:   "reschedule <id>",
		Short: "Edit a post that has not been published yet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in service.UpdatePost
			if cmd.Flags().Changed("content") {
				in.Content = &content
			}
			if cmd.Flags().Changed("at") {
				in.ScheduleTime = &at
			}
			if cmd.Flags().Changed("image") {
				in.ImagePath = &image
			}
			post, err := c.schedule.Reschedule(cmd.Context(), args[0], in)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), post)
		},
	}
	cmd.Flags().StringVar(&content, "content", "", "new post text")
	cmd.Flags().StringVarP(&at, "at", "t", "", "new publish time")
	cmd.Flags().StringVar(&image, "image", "", "new image path, empty to remove")
	return cmd
}

func (c *cli) cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Remove a post from the schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			post, err := c.schedule.Cancel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cancelled %s (%s)\n", post.ID, post.Platform)
			return nil
		},
	}
}

func (c *cli) publishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish <id>",
		Short: "Publish a scheduled post right away",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			post, err := c.deps.PublishService().PublishNow(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), post); err != nil {
				return err
			}
			if post.Status == domain.StatusFailed {
				return fmt.Errorf("publish failed: %s", deref(post.Error))
			}
			return nil
		},
	}
}

func (c *cli) commentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "comments <id>",
		Short: "Show the last comment snapshot of a published post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comments, err := c.schedule.Comments(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), comments)
		},
	}
}

func (c *cli) responsesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "responses <id>",
		Short: "Show the generated responses of a published post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			responses, err := c.schedule.Responses(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), responses)
		},
	}
}

func (c *cli) attemptsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attempts <id>",
		Short: "Show journaled publish attempts of a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			journal := c.deps.History()
			if journal == nil {
				return fmt.Errorf("activity journal is not configured")
			}
			attempts, err := journal.Attempts(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), attempts)
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printPosts(w io.Writer, posts []*domain.Post) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPLATFORM\tSTATUS\tSCHEDULED\tCONTENT")
	for _, p := range posts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Platform, p.Status, p.ScheduleTime, preview(p.Content, 40))
	}
	return tw.Flush()
}

func preview(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCommand(c *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reconcile local follow flags with the remote follow list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(func(ctx context.Context) error {
				if _, err := c.account(ctx); err != nil {
					return err
				}
				remote, err := c.follows.Reconcile(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Following %d channels\n", len(remote))
				return nil
			})
		},
	}
}

func newFollowCommand(c *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "follow <channel>",
		Short: "Follow a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToggle(c, args[0], true)
		},
	}
}

func newUnfollowCommand(c *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "unfollow <channel>",
		Short: "Unfollow a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToggle(c, args[0], false)
		},
	}
}

func runToggle(c *commandContext, login string, follow bool) error {
	return c.run(func(ctx context.Context) error {
		if _, err := c.account(ctx); err != nil {
			return err
		}
		channel, err := c.resolveChannel(ctx, login)
		if err != nil {
			return err
		}
		if channel.Followed == follow {
			fmt.Printf("Already in the requested state: %s\n", channel.DisplayName)
			return nil
		}
		if err := c.follows.Toggle(ctx, channel); err != nil {
			return err
		}
		if follow {
			fmt.Printf("Followed %s\n", channel.DisplayName)
		} else {
			fmt.Printf("Unfollowed %s\n", channel.DisplayName)
		}
		return nil
	})
}

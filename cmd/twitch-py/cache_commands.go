package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCommand(c *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the local entity cache",
	}

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Drop cached streamers, games, and mirrored images",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(func(ctx context.Context) error {
				if err := c.store.ClearEntities(ctx); err != nil {
					return err
				}
				if c.mirror != nil {
					if err := c.mirror.Clear(); err != nil {
						return err
					}
				}
				fmt.Println("Cache cleared")
				return nil
			})
		},
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "rebuild",
		Short: "Clear the cache and rebuild it from the remote follow list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(func(ctx context.Context) error {
				if _, err := c.account(ctx); err != nil {
					return err
				}
				if err := c.store.ClearEntities(ctx); err != nil {
					return err
				}
				remote, err := c.follows.Bootstrap(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Rebuilt cache with %d followed channels\n", len(remote))
				return nil
			})
		},
	})

	return cacheCmd
}

package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/RaeedAhmed/twitch-py/internal/enrich"
)

func newLiveCommand(c *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "live",
		Short: "List followed channels that are live right now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(func(ctx context.Context) error {
				if _, err := c.account(ctx); err != nil {
					return err
				}
				followed, err := c.store.FollowedStreamers(ctx)
				if err != nil {
					return err
				}
				ids := make([]int64, len(followed))
				for i, st := range followed {
					ids[i] = st.ID
				}
				streams, err := c.discovery.LiveStreams(ctx, ids)
				if err != nil {
					return err
				}
				printStreams(streams)
				return nil
			})
		},
	}
}

func newFollowingCommand(c *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "following",
		Short: "List followed channels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(func(ctx context.Context) error {
				followed, err := c.store.FollowedStreamers(ctx)
				if err != nil {
					return err
				}
				rows := make([][]string, len(followed))
				for i, st := range followed {
					rows[i] = []string{st.DisplayName, st.Login, st.BroadcasterType}
				}
				fmt.Println(renderTable(
					[]string{"Channel", "Login", "Type"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}

func newSearchCommand(c *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search channels and categories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(func(ctx context.Context) error {
				channels, err := c.discovery.SearchChannels(ctx, args[0])
				if err != nil {
					return err
				}
				rows := make([][]string, len(channels))
				for i, res := range channels {
					live := ""
					if res.IsLive {
						live = "live"
					}
					rows[i] = []string{res.Streamer.DisplayName, res.Streamer.Login, live}
				}
				fmt.Println(renderTable(
					[]string{"Channel", "Login", ""},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft},
				))

				games, err := c.discovery.SearchCategories(ctx, args[0])
				if err != nil {
					return err
				}
				rows = make([][]string, len(games))
				for i, g := range games {
					rows[i] = []string{strconv.FormatInt(g.ID, 10), g.Name}
				}
				fmt.Println(renderTable(
					[]string{"ID", "Category"},
					rows,
					[]columnAlignment{alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}

func newTopCommand(c *commandContext) *cobra.Command {
	topCmd := &cobra.Command{
		Use:   "top",
		Short: "Browse the platform's top content",
	}

	topCmd.AddCommand(&cobra.Command{
		Use:   "games",
		Short: "List the top categories by viewer count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(func(ctx context.Context) error {
				games, err := c.discovery.TopGames(ctx)
				if err != nil {
					return err
				}
				rows := make([][]string, len(games))
				for i, g := range games {
					rows[i] = []string{strconv.Itoa(i + 1), strconv.FormatInt(g.ID, 10), g.Name}
				}
				fmt.Println(renderTable(
					[]string{"#", "ID", "Category"},
					rows,
					[]columnAlignment{alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	})

	topCmd.AddCommand(&cobra.Command{
		Use:   "streams",
		Short: "List the top live streams",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(func(ctx context.Context) error {
				streams, err := c.discovery.TopStreams(ctx)
				if err != nil {
					return err
				}
				printStreams(streams)
				return nil
			})
		},
	})

	return topCmd
}

func newStreamsCommand(c *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "streams <game-id>",
		Short: "List the top live streams in one category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gameID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("game id must be numeric: %w", err)
			}
			return c.run(func(ctx context.Context) error {
				streams, err := c.discovery.StreamsByGame(ctx, gameID)
				if err != nil {
					return err
				}
				printStreams(streams)
				return nil
			})
		},
	}
}

func newVideosCommand(c *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "videos <channel>",
		Short: "List a channel's past broadcasts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(func(ctx context.Context) error {
				channel, err := c.resolveChannel(ctx, args[0])
				if err != nil {
					return err
				}
				videos, err := c.discovery.Videos(ctx, channel.ID)
				if err != nil {
					return err
				}
				rows := make([][]string, len(videos))
				for i, v := range videos {
					rows[i] = []string{
						v.Title,
						v.Duration,
						v.Age,
						strconv.Itoa(v.ViewCount),
						v.URL,
					}
				}
				fmt.Println(renderTable(
					[]string{"Title", "Duration", "Age", "Views", "URL"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}

func newClipsCommand(c *commandContext) *cobra.Command {
	var days int

	clipsCmd := &cobra.Command{
		Use:   "clips <channel>",
		Short: "List a channel's most viewed recent clips",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(func(ctx context.Context) error {
				channel, err := c.resolveChannel(ctx, args[0])
				if err != nil {
					return err
				}
				end := c.clock.Now().UTC()
				start := end.AddDate(0, 0, -days)
				clips, err := c.discovery.Clips(ctx, channel.ID, start, end)
				if err != nil {
					return err
				}
				rows := make([][]string, len(clips))
				for i, clip := range clips {
					rows[i] = []string{
						clip.Title,
						clip.GameName,
						clip.TimeSince,
						strconv.Itoa(clip.ViewCount),
						clip.URL,
					}
				}
				fmt.Println(renderTable(
					[]string{"Title", "Category", "Age", "Views", "URL"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	clipsCmd.Flags().IntVar(&days, "days", 7, "How many days back to search")
	return clipsCmd
}

func printStreams(streams []enrich.Stream) {
	rows := make([][]string, len(streams))
	for i, st := range streams {
		rows[i] = []string{
			st.UserName,
			st.GameName,
			st.Title,
			st.Uptime,
			strconv.Itoa(st.ViewerCount),
		}
	}
	fmt.Println(renderTable(
		[]string{"Channel", "Category", "Title", "Uptime", "Viewers"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight},
	))
}

package cmd

import (
	"errors"
	"fmt"

	"github.com/kozaktomas/site-photos/internal/cache"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Cache management commands",
	Long:  `Commands for managing the Redis cache of report and photo-sheet lists.`,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop the cached reference lists of a site",
	Args:  cobra.NoArgs,
	RunE:  runCacheClear,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheClearCmd.Flags().String("site", "", "Site ID (defaults to SITE_ID)")
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	env, err := newCLIEnv(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	if env.cfg.Redis.URL == "" {
		return errors.New("REDIS_URL environment variable is required")
	}
	ctx := cmd.Context()
	c, err := cache.Connect(ctx, env.cfg.Redis.URL, env.logger.Named("cache"))
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer c.Close()

	if err := cache.NewReferenceSource(env.client, c, env.cfg.Redis.TTL, env.cfg.Backend.Token, nil).Invalidate(ctx, env.siteID); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cleared cached reference lists of site %s for all users\n", env.siteID)
	return nil
}

package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/khoahotran/openforge/adapters/cache"
	"github.com/khoahotran/openforge/adapters/chain"
	"github.com/khoahotran/openforge/adapters/gateway"
	"github.com/khoahotran/openforge/adapters/pinning"
	"github.com/khoahotran/openforge/internal/application/service"
	"github.com/khoahotran/openforge/internal/application/usecase/resolve"
	"github.com/khoahotran/openforge/internal/config"
	"github.com/khoahotran/openforge/pkg/logger"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve on-chain records to their metadata documents",
}

var resolveProfileCmd = &cobra.Command{
	Use:   "profile <address>",
	Short: "Resolve the profile registered for a wallet address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resolver, err := buildResolver(cmd.Context())
		if err != nil {
			return err
		}
		view, err := resolver.ResolveProfile(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, view)
	},
}

var resolveProjectCmd = &cobra.Command{
	Use:   "project <id>",
	Short: "Resolve a project by its on-chain id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid project id %q", args[0])
		}
		resolver, err := buildResolver(cmd.Context())
		if err != nil {
			return err
		}
		view, err := resolver.ResolveProject(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printJSON(cmd, view)
	},
}

func init() {
	resolveCmd.AddCommand(resolveProfileCmd, resolveProjectCmd)
	rootCmd.AddCommand(resolveCmd)
}

func buildResolver(ctx context.Context) (*resolve.Resolver, error) {
	cfg, log, err := bootstrap()
	if err != nil {
		return nil, err
	}
	fetcher, err := buildFetcher(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	client, err := chain.Dial(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	profiles, err := chain.NewProfileRegistry(client, cfg.Chain.ProfileRegistry)
	if err != nil {
		return nil, err
	}
	projects, err := chain.NewProjectRegistry(client, cfg.Chain.ProjectRegistry)
	if err != nil {
		return nil, err
	}
	return resolve.NewResolver(profiles, projects, fetcher, cache.NewMemoryCache(cfg.Cache.TTL), log), nil
}

func buildFetcher(ctx context.Context, cfg config.Config, log logger.Logger) (service.DocumentFetcher, error) {
	if cfg.Pinning.Driver == "minio" {
		mp, err := pinning.NewMinioPinner(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return mp, nil
	}
	gw, err := gateway.NewFetcher(cfg.Gateway.URLs, cfg.Gateway.AttemptTimeout, log)
	if err != nil {
		return nil, err
	}
	return gw, nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gitfool/blogsync"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:   "blogsync",
		Short: "Mirror a GitHub repository's markdown files into a blogs table",
		Long: `blogsync lists every .md file of a GitHub repository, reads its
frontmatter and reconciles the blogs table with it: entries for removed
files are deleted, the rest upserted by slug.

Configuration comes from the environment (GITHUB_OWNER, GITHUB_REPO,
GITHUB_BRANCH, GITHUB_TOKEN, DATABASE_DRIVER, DATABASE_URL, ...).`,
		SilenceUsage: true,
	}
	root.PersistentFlags().String("owner", "", "repository owner (GITHUB_OWNER)")
	root.PersistentFlags().String("repo", "", "repository name (GITHUB_REPO)")
	root.PersistentFlags().String("branch", "", "branch to mirror (GITHUB_BRANCH)")
	root.PersistentFlags().String("database", "", "SQLite path or Postgres URL (DATABASE_URL)")
	v.BindPFlag(blogsync.EnvOwner, root.PersistentFlags().Lookup("owner"))
	v.BindPFlag(blogsync.EnvRepo, root.PersistentFlags().Lookup("repo"))
	v.BindPFlag(blogsync.EnvBranch, root.PersistentFlags().Lookup("branch"))
	v.BindPFlag(blogsync.EnvDatabaseURL, root.PersistentFlags().Lookup("database"))

	root.AddCommand(newServeCmd(v), newSyncCmd(v), newVersionCmd())
	return root
}

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the webhook and the read API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := blogsync.LoadConfig(v)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app := blogsync.New(cfg)
			defer app.Close()

			errc := make(chan error, 1)
			go func() { errc <- app.Start(ctx) }()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return app.Shutdown(shutdownCtx)
			}
		},
	}
	cmd.Flags().String("addr", "", "listen address (ADDR)")
	v.BindPFlag(blogsync.EnvAddr, cmd.Flags().Lookup("addr"))
	return cmd
}

func newSyncCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := blogsync.LoadConfig(v)
			if err != nil {
				return err
			}
			app := blogsync.New(cfg)
			defer app.Close()
			if err := app.Init(cmd.Context()); err != nil {
				return err
			}
			res, err := app.Runner.Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Synced %d files. Deleted %d removed entries.\n", res.Synced, res.Deleted)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the blogsync version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "blogsync %s\n", version)
		},
	}
}

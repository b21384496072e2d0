package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arturoeanton/stackmemory/internal/adapter/source"
	"github.com/arturoeanton/stackmemory/internal/app"
	"github.com/arturoeanton/stackmemory/internal/domain"
	"github.com/arturoeanton/stackmemory/internal/middleware"
	"github.com/arturoeanton/stackmemory/internal/port"
	"github.com/arturoeanton/stackmemory/internal/service"
)

func (c *cli) projectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create <name> [repo-url]",
		Short: "Create a project",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repoURL := ""
			if len(args) == 2 {
				repoURL = args[1]
			}
			p, err := c.app.Projects.Create(cmd.Context(), c.owner, args[0], repoURL)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the owner's projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			projects, err := c.app.Projects.List(cmd.Context(), c.owner)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), projects)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete a project and its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.Projects.Delete(cmd.Context(), args[0], c.owner); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	})
	return cmd
}

func (c *cli) ingestCmd() *cobra.Command {
	var (
		maxFiles int
		token    string
	)
	cmd := &cobra.Command{
		Use:   "ingest <project-id> [repo]",
		Short: "Crawl a repository into the project's index",
		Long: `Crawl a repository into the project's index.

The repository defaults to the project's repo URL. It may be a GitHub URL,
"owner/name" shorthand or "local:owner/name" for a working copy under
CLONE_BASE_PATH. The GitHub token defaults to GITHUB_TOKEN.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.app.Projects.Get(cmd.Context(), args[0], c.owner)
			if err != nil {
				return err
			}
			raw := p.RepoURL
			if len(args) == 2 {
				raw = args[1]
			}
			ref, err := source.ParseRepoRef(raw)
			if err != nil {
				return err
			}
			if token == "" {
				token = c.cfg.GitHubToken
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), c.cfg.Pipeline.Ingest.Timeout)
			defer cancel()
			res, err := c.app.Ingest.Ingest(ctx, service.IngestRequest{
				ProjectID:  p.ID,
				Repo:       ref,
				Credential: token,
				MaxFiles:   maxFiles,
			})
			if res != nil {
				if perr := printJSON(cmd.OutOrStdout(), res); perr != nil {
					return perr
				}
			}
			return err
		},
	}
	cmd.Flags().IntVar(&maxFiles, "max-files", 0, "maximum files to ingest (0 = configured limit)")
	cmd.Flags().StringVar(&token, "token", "", "repository access token")
	return cmd
}

func (c *cli) contextCmd() *cobra.Command {
	var (
		task     string
		query    string
		maxChars int
		topK     int
		patterns []string
	)
	cmd := &cobra.Command{
		Use:   "context <project-id>",
		Short: "Print the assembled context of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, ok := domain.ParseTaskType(task)
			if !ok {
				return fmt.Errorf("task %q: %w", task, port.ErrUnknownTask)
			}
			if _, err := c.app.Projects.Get(cmd.Context(), args[0], c.owner); err != nil {
				return err
			}
			b, err := c.app.Contexts.Assemble(cmd.Context(), args[0], t, service.ContextParams{
				Query:    query,
				TopK:     topK,
				MaxChars: maxChars,
				Patterns: patterns,
			})
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), b.Text)
			if b.Truncated {
				fmt.Fprintf(cmd.ErrOrStderr(), "truncated: %d section(s) dropped, %d/%d bytes\n", b.Dropped, b.Length, b.MaxChars)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&task, "task", string(domain.TaskChat), "chat, insight, onboarding or tour")
	cmd.Flags().StringVar(&query, "query", "", "query for similar chunks")
	cmd.Flags().IntVar(&maxChars, "max-chars", 0, "size budget in bytes (0 = configured)")
	cmd.Flags().IntVar(&topK, "top-k", 0, "similar chunks (0 = configured)")
	cmd.Flags().StringSliceVar(&patterns, "pattern", nil, "override key-file LIKE patterns")
	return cmd
}

func (c *cli) searchCmd() *cobra.Command {
	var topK int
	cmd := &cobra.Command{
		Use:   "search <project-id> <query>",
		Short: "List the chunks most similar to a query",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := c.app.Projects.Get(cmd.Context(), args[0], c.owner); err != nil {
				return err
			}
			chunks, err := c.app.Search.Similar(cmd.Context(), args[0], args[1], topK)
			if err != nil {
				return err
			}
			for _, ch := range chunks {
				fmt.Fprintf(cmd.OutOrStdout(), "%.4f  %s#%d\n", ch.Similarity, ch.FilePath, ch.Ordinal)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&topK, "top-k", 8, "number of results")
	return cmd
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <project-id>",
		Short: "Show when a project was last synced",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := c.app.Projects.Get(cmd.Context(), args[0], c.owner); err != nil {
				return err
			}
			status, err := c.app.Projects.SyncStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), status)
		},
	}
}

func (c *cli) tokenCmd() *cobra.Command {
	var (
		role  string
		email string
	)
	cmd := &cobra.Command{
		Use:         "token <user-id>",
		Short:       "Issue a bearer token signed with JWT_SECRET, for development",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"offline": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			a := &app.App{Config: c.cfg}
			tok, err := middleware.GenerateJWT(&domain.UserContext{UserID: args[0], Email: email, Role: role}, a.JWTConfig())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "role claim, e.g. admin")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	return cmd
}

func (c *cli) mirrorCmd() *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "mirror <repo>",
		Short: "Clone or update a GitHub repository under CLONE_BASE_PATH",
		Long: `Clone or update a GitHub repository under CLONE_BASE_PATH so that it can
be ingested as "local:owner/name" without GitHub API calls.`,
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"offline": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := source.ParseRepoRef(args[0])
			if err != nil {
				return err
			}
			if ref.Host != domain.HostGitHub {
				return fmt.Errorf("mirror %s: %w", ref, port.ErrUnsupportedHost)
			}
			if token == "" {
				token = c.cfg.GitHubToken
			}
			cloneURL := fmt.Sprintf("https://github.com/%s.git", ref.FullName())
			dest, err := source.NewGitFetcher(c.cfg.CloneBasePath).Mirror(cmd.Context(), ref, cloneURL, token)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (ingest as local:%s)\n", ref, dest, ref.FullName())
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "GitHub access token for private repositories")
	return cmd
}

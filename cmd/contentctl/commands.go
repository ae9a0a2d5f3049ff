package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fairyhunter13/ai-content-publisher/internal/app"
	"github.com/fairyhunter13/ai-content-publisher/internal/config"
	"github.com/fairyhunter13/ai-content-publisher/internal/domain"
	"github.com/fairyhunter13/ai-content-publisher/internal/usecase"
)

func addKeyCmd(owner *string) *cobra.Command {
	var service string
	var isDefault bool
	cmd := &cobra.Command{
		Use:   "add-key",
		Short: "Store an API key; the secret is read from stdin",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = withDeps(owner, func(ctx context.Context, _ config.Config, deps *app.Container) error {
		secret, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && secret == "" {
			return fmt.Errorf("read secret: %w", err)
		}
		c := domain.Credential{Owner: *owner, Service: service, Secret: strings.TrimSpace(secret), IsDefault: isDefault}
		if c.Secret == "" {
			return fmt.Errorf("%w: empty secret", domain.ErrInvalidArgument)
		}
		id, err := deps.Credentials.Create(ctx, c)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{"id": id, "service": c.Service, "secret": c.Masked()})
	})
	cmd.Flags().StringVarP(&service, "service", "s", domain.ServiceGemini, "Service the key belongs to (gemini, openai)")
	cmd.Flags().BoolVar(&isDefault, "default", false, "Mark as the platform default key")
	return cmd
}

func addSiteCmd(owner *string) *cobra.Command {
	var site domain.Site
	cmd := &cobra.Command{
		Use:   "add-site",
		Short: "Register a WordPress site; the application password is read from APP_PASSWORD",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = withDeps(owner, func(ctx context.Context, _ config.Config, deps *app.Container) error {
		site.Owner = *owner
		site.BaseURL = strings.TrimRight(site.BaseURL, "/")
		site.AppPassword = os.Getenv("APP_PASSWORD")
		if site.BaseURL == "" || site.Username == "" || site.AppPassword == "" {
			return fmt.Errorf("%w: --url, --user and APP_PASSWORD are required", domain.ErrInvalidArgument)
		}
		id, err := deps.Sites.Create(ctx, site)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{"id": id, "name": site.Name, "base_url": site.BaseURL})
	})
	cmd.Flags().StringVar(&site.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&site.BaseURL, "url", "", "Site base URL")
	cmd.Flags().StringVar(&site.Username, "user", "", "WordPress user name")
	cmd.Flags().StringVar(&site.DefaultStatus, "status", "draft", "Default post status")
	cmd.Flags().Int64SliceVar(&site.CategoryIDs, "category", nil, "Default category id (repeatable)")
	return cmd
}

func generateCmd(owner *string) *cobra.Command {
	var in usecase.GenerateInput
	var contentType string
	cmd := &cobra.Command{
		Use:   "generate [topic]",
		Short: "Generate one article and store it",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = func(c *cobra.Command, args []string) error {
		in.Topic = args[0]
		in.ContentType = domain.ContentType(contentType)
		return withDeps(owner, func(ctx context.Context, _ config.Config, deps *app.Container) error {
			in.Owner = *owner
			a, err := deps.GenerateSvc.Generate(ctx, in)
			if err != nil {
				return explain(err)
			}
			return printJSON(c.OutOrStdout(), map[string]any{
				"id": a.ID, "title": a.Title, "model": a.Model, "status": a.Status,
			})
		})(c, args)
	}
	cmd.Flags().StringVarP(&contentType, "type", "t", string(domain.ContentArticle), "Content type (article, recipe, dream)")
	cmd.Flags().StringVarP(&in.Model, "model", "m", "", "Model id; empty selects the default")
	cmd.Flags().StringVar(&in.Language, "language", "", "Output language")
	cmd.Flags().StringVar(&in.Tone, "tone", "", "Writing tone")
	cmd.Flags().IntVarP(&in.Words, "words", "w", 0, "Target word count")
	cmd.Flags().StringSliceVarP(&in.Keywords, "keyword", "k", nil, "SEO keyword (repeatable)")
	cmd.Flags().StringVar(&in.Extra, "extra", "", "Additional instructions")
	return cmd
}

func publishCmd(owner *string) *cobra.Command {
	var siteID string
	var st usecase.PublishSettings
	cmd := &cobra.Command{
		Use:   "publish [article-id]",
		Short: "Publish a stored article to a site",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = func(c *cobra.Command, args []string) error {
		return withDeps(owner, func(ctx context.Context, _ config.Config, deps *app.Container) error {
			rep, err := deps.PublishSvc.Publish(ctx, *owner, args[0], siteID, st)
			if perr := printJSON(c.OutOrStdout(), rep); perr != nil {
				return perr
			}
			// An unverified publish still produced a post; report it without failing.
			if errors.Is(err, domain.ErrPublishUnverified) {
				return nil
			}
			return explain(err)
		})(c, args)
	}
	cmd.Flags().StringVarP(&siteID, "site", "s", "", "Target site id")
	cmd.Flags().StringVar(&st.Status, "status", "", "Post status override")
	cmd.Flags().Int64SliceVar(&st.Categories, "category", nil, "Category id override (repeatable)")
	cmd.Flags().BoolVar(&st.SkipImages, "skip-images", false, "Do not relay embedded images")
	_ = cmd.MarkFlagRequired("site")
	return cmd
}

func quotaCmd(owner *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quota [service]",
		Short: "Show key availability and recent usage for a service",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = func(c *cobra.Command, args []string) error {
		return withDeps(owner, func(ctx context.Context, _ config.Config, deps *app.Container) error {
			rep, err := deps.QuotaSvc.Report(ctx, *owner, args[0])
			if err != nil {
				return explain(err)
			}
			return printJSON(c.OutOrStdout(), rep)
		})(c, args)
	}
	return cmd
}

// explain prefixes err with the message an end user would see.
func explain(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", domain.UserMessage(err), err)
}

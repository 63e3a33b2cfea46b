package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ignite/campaign-dispatch/internal/app"
	"github.com/ignite/campaign-dispatch/internal/config"
	"github.com/ignite/campaign-dispatch/internal/importer"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
	"github.com/ignite/campaign-dispatch/internal/service/campaign"
	"github.com/ignite/campaign-dispatch/internal/service/contact"
	"github.com/ignite/campaign-dispatch/internal/service/dispatch"
)

// cli carries state shared by all commands. app is built lazily on first
// use so that help and flag errors need no configuration.
type cli struct {
	configPath string
	app        *app.App
}

func (c *cli) services(ctx context.Context) (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	cfg, err := config.LoadFromEnv(c.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.Logging.Redact())
	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

func (c *cli) close() {
	if c.app != nil {
		c.app.Close()
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "mailctl",
		Short:         "Operate the campaign dispatch service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(*cobra.Command, []string) {
			c.close()
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", os.Getenv("CONFIG_FILE"), "path to config.yaml")

	root.AddCommand(
		importCmd(c),
		batchesCmd(c),
		campaignCmd(c),
		sendCmd(c),
		statsCmd(c),
		bouncesCmd(c),
	)
	return root
}

// run wraps a command body that needs the services.
func run(c *cli, fn func(cmd *cobra.Command, a *app.App, args []string) (any, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := c.services(cmd.Context())
		if err != nil {
			return err
		}
		out, err := fn(cmd, a, args)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), out)
	}
}

func importCmd(c *cli) *cobra.Command {
	var source string
	var noActivate bool
	cmd := &cobra.Command{
		Use:   "import <path or s3://bucket/key>",
		Short: "Import contacts from a CSV or XLSX file as a new batch",
		Args:  cobra.ExactArgs(1),
		RunE: run(c, func(cmd *cobra.Command, a *app.App, args []string) (any, error) {
			rc, name, err := a.Opener.Open(cmd.Context(), args[0])
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			format, err := importer.FormatFromName(name)
			if err != nil {
				return nil, err
			}
			return a.Contacts.Import(cmd.Context(), rc, format, contact.ImportOptions{
				Source:   source,
				Activate: !noActivate,
			})
		}),
	}
	cmd.Flags().StringVar(&source, "source", contact.DefaultSource, "source tag stored on each contact")
	cmd.Flags().BoolVar(&noActivate, "no-activate", false, "keep the new batch inactive")
	return cmd
}

func batchesCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{Use: "batches", Short: "Manage import batches"}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List import batches",
			Args:  cobra.NoArgs,
			RunE: run(c, func(cmd *cobra.Command, a *app.App, _ []string) (any, error) {
				return a.Contacts.ListBatches(cmd.Context())
			}),
		},
		&cobra.Command{
			Use:   "activate <batch-id>",
			Short: "Make a batch the only active one",
			Args:  cobra.ExactArgs(1),
			RunE: run(c, func(cmd *cobra.Command, a *app.App, args []string) (any, error) {
				n, err := a.Contacts.ActivateBatch(cmd.Context(), args[0])
				return map[string]any{"batch_id": args[0], "activated": n}, err
			}),
		},
		&cobra.Command{
			Use:   "deactivate <batch-id>",
			Short: "Deactivate a batch",
			Args:  cobra.ExactArgs(1),
			RunE: run(c, func(cmd *cobra.Command, a *app.App, args []string) (any, error) {
				n, err := a.Contacts.DeactivateBatch(cmd.Context(), args[0])
				return map[string]any{"batch_id": args[0], "deactivated": n}, err
			}),
		},
	)
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid campaign id %q", s)
	}
	return id, nil
}

func campaignCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{Use: "campaign", Short: "Manage campaigns"}

	var name, subject, bodyFile string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a draft campaign",
		Args:  cobra.NoArgs,
		RunE: run(c, func(cmd *cobra.Command, a *app.App, _ []string) (any, error) {
			body, err := os.ReadFile(bodyFile)
			if err != nil {
				return nil, fmt.Errorf("read body: %w", err)
			}
			return a.Campaigns.Create(cmd.Context(), campaign.CreateInput{
				Name: name, Subject: subject, Body: string(body),
			})
		}),
	}
	create.Flags().StringVar(&name, "name", "", "campaign name")
	create.Flags().StringVar(&subject, "subject", "", "subject template")
	create.Flags().StringVar(&bodyFile, "body-file", "", "file holding the body template")
	_ = create.MarkFlagRequired("name")
	_ = create.MarkFlagRequired("subject")
	_ = create.MarkFlagRequired("body-file")

	cmd.AddCommand(
		create,
		&cobra.Command{
			Use:   "list",
			Short: "List campaigns, newest first",
			Args:  cobra.NoArgs,
			RunE: run(c, func(cmd *cobra.Command, a *app.App, _ []string) (any, error) {
				return a.Campaigns.List(cmd.Context())
			}),
		},
		&cobra.Command{
			Use:   "stats <id>",
			Short: "Show delivery stats for a campaign",
			Args:  cobra.ExactArgs(1),
			RunE: run(c, func(cmd *cobra.Command, a *app.App, args []string) (any, error) {
				id, err := parseID(args[0])
				if err != nil {
					return nil, err
				}
				return a.Campaigns.Stats(cmd.Context(), id)
			}),
		},
	)
	return cmd
}

func sendCmd(c *cli) *cobra.Command {
	var limit int
	var testMode bool
	cmd := &cobra.Command{
		Use:   "send <campaign-id>",
		Short: "Send a campaign to the active contacts and wait for it to finish",
		Args:  cobra.ExactArgs(1),
		RunE: run(c, func(cmd *cobra.Command, a *app.App, args []string) (any, error) {
			id, err := parseID(args[0])
			if err != nil {
				return nil, err
			}
			return a.Engine.SendCampaign(cmd.Context(), dispatch.SendRequest{
				CampaignID: id, ContactLimit: limit, TestMode: testMode,
			})
		}),
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "send to at most this many contacts (0 = all)")
	cmd.Flags().BoolVar(&testMode, "test", false, "test mode: at most a handful of recipients")
	return cmd
}

func statsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{Use: "stats", Short: "Service statistics"}
	cmd.AddCommand(&cobra.Command{
		Use:   "daily",
		Short: "Show today's send count and remaining quota",
		Args:  cobra.NoArgs,
		RunE: run(c, func(cmd *cobra.Command, a *app.App, _ []string) (any, error) {
			return a.Campaigns.DailyStats(cmd.Context())
		}),
	})
	return cmd
}

func bouncesCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{Use: "bounces", Short: "Provider bounce list"}
	cmd.AddCommand(&cobra.Command{
		Use:   "sync",
		Short: "Mark every contact on the provider bounce list as bounced",
		Args:  cobra.NoArgs,
		RunE: run(c, func(cmd *cobra.Command, a *app.App, _ []string) (any, error) {
			if a.Bounces == nil {
				return nil, fmt.Errorf("provider %s has no bounce list", a.Provider.Name())
			}
			return a.Bounces.Run(cmd.Context())
		}),
	})
	return cmd
}

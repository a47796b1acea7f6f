package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"dynwatch/internal/api"
	"dynwatch/internal/daemonrun"
	"dynwatch/internal/engine"
	"dynwatch/internal/registry"
	"dynwatch/internal/store"
	"dynwatch/internal/subscription"
)

func newSubCommand(ctx *commandContext) *cobra.Command {
	subCmd := &cobra.Command{
		Use:     "sub",
		Aliases: []string{"subscription"},
		Short:   "Manage subscriptions",
	}
	subCmd.AddCommand(newSubAddCommand(ctx))
	subCmd.AddCommand(newSubListCommand(ctx))
	subCmd.AddCommand(newSubRemoveCommand(ctx))
	subCmd.AddCommand(newSubPurgeCommand(ctx))
	subCmd.AddCommand(newSubExportCommand(ctx))
	subCmd.AddCommand(newSubImportCommand(ctx))
	subCmd.AddCommand(newSubTestCommand(ctx))
	return subCmd
}

func newSubAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <subscriber> <creator-uid> [filter...]",
		Short: "Subscribe to a creator, or replace the filters of an existing subscription",
		Long: `Subscribe to a creator. Each filter is either a type token
(video, draw, article, forward, live, lottery) that suppresses that kind of
dynamic, or a regular expression; dynamics whose text matches are suppressed.
The "live" token also turns off live start/stop notifications.

New subscriptions start from the creator's current feed, so existing history
is never sent.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			creator, err := parseCreator(args[1])
			if err != nil {
				return err
			}
			return ctx.withRegistry(func(reg *registry.Registry) error {
				res, err := reg.Add(cmd.Context(), args[0], creator, args[2:])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if res.Updated {
					fmt.Fprintf(out, "Updated filters for %s -> %s\n", res.Subscription.Subscriber, creatorLabel(res.Subscription))
				} else {
					fmt.Fprintf(out, "Subscribed %s to %s\n", res.Subscription.Subscriber, creatorLabel(res.Subscription))
				}
				if summary := filterSummary(res.Subscription.Filters); summary != "" {
					fmt.Fprintf(out, "Filters: %s\n", summary)
				}
				for _, bad := range res.Invalid {
					fmt.Fprintf(out, "Warning: pattern %q does not compile and will never match: %v\n", bad.Pattern, bad.Err)
				}
				return nil
			})
		},
	}
}

func newSubListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list [subscriber]",
		Short: "List subscriptions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			subscriber := ""
			if len(args) == 1 {
				subscriber = args[0]
			}
			return ctx.withStore(func(st *store.Store) error {
				subs, err := st.List(cmd.Context(), strings.TrimSpace(subscriber))
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, api.SubscriptionListResponse{Items: api.FromSubscriptions(subs)})
				}
				out := cmd.OutOrStdout()
				if len(subs) == 0 {
					fmt.Fprintln(out, "No subscriptions")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"Subscriber", "Creator", "Name", "Live", "Watermark", "Filters"},
					subscriptionRows(subs),
					[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newSubRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <subscriber> <creator-uid>",
		Aliases: []string{"rm"},
		Short:   "Remove one subscription",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			creator, err := parseCreator(args[1])
			if err != nil {
				return err
			}
			return ctx.withRegistry(func(reg *registry.Registry) error {
				if err := reg.Remove(cmd.Context(), args[0], creator); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s -> %d\n", args[0], creator)
				return nil
			})
		},
	}
}

func newSubPurgeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "purge <subscriber>",
		Short: "Remove every subscription of a subscriber",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRegistry(func(reg *registry.Registry) error {
				n, err := reg.Purge(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d subscription(s) of %s\n", n, args[0])
				return nil
			})
		},
	}
}

func newSubExportCommand(ctx *commandContext) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export [subscriber]",
		Short: "Write subscriptions and filters as YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			subscriber := ""
			if len(args) == 1 {
				subscriber = args[0]
			}
			return ctx.withRegistry(func(reg *registry.Registry) error {
				var w io.Writer = cmd.OutOrStdout()
				if output != "" && output != "-" {
					f, err := os.Create(output)
					if err != nil {
						return fmt.Errorf("create export file: %w", err)
					}
					defer f.Close()
					w = f
				}
				n, err := reg.Export(cmd.Context(), w, subscriber)
				if err != nil {
					return err
				}
				if output != "" && output != "-" {
					fmt.Fprintf(cmd.OutOrStdout(), "Exported %d subscription(s) to %s\n", n, output)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}

func newSubImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Add or update subscriptions from an exported YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open import file: %w", err)
				}
				defer f.Close()
				r = f
			}
			return ctx.withRegistry(func(reg *registry.Registry) error {
				report, err := reg.Import(cmd.Context(), r)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Added %d, updated %d, failed %d\n", report.Added, report.Updated, len(report.Failed))
				for _, failure := range report.Failed {
					fmt.Fprintf(out, "  %s -> %d: %v\n", failure.Entry.Subscriber, failure.Entry.Creator, failure.Err)
				}
				if len(report.Failed) > 0 {
					return fmt.Errorf("%d subscription(s) could not be imported", len(report.Failed))
				}
				return nil
			})
		},
	}
}

func newSubTestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test <subscriber> <creator-uid>",
		Short: "Send the creator's newest dynamic to a subscriber, ignoring dedup state and filters",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			creator, err := parseCreator(args[1])
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				sched, err := daemonrun.NewScheduler(ctx.configValue(), st, ctx.commandLogger())
				if err != nil {
					return err
				}
				n, err := sched.TestDynamic(cmd.Context(), args[0], creator)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Sent %s %s to %s\n", engine.KindLabel(n.Kind), n.ItemID, args[0])
				return nil
			})
		},
	}
}

func newLiveCommand(ctx *commandContext) *cobra.Command {
	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "Live-status utilities",
	}
	liveCmd.AddCommand(&cobra.Command{
		Use:   "test <subscriber> <creator-uid>",
		Short: "Send a live notification built from the creator's current room status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			creator, err := parseCreator(args[1])
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				sched, err := daemonrun.NewScheduler(ctx.configValue(), st, ctx.commandLogger())
				if err != nil {
					return err
				}
				event, err := sched.TestLive(cmd.Context(), args[0], creator)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Sent %q to %s\n", event.Headline(), args[0])
				return nil
			})
		},
	})
	return liveCmd
}

func parseCreator(raw string) (int64, error) {
	creator, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || creator <= 0 {
		return 0, fmt.Errorf("invalid creator uid %q", raw)
	}
	return creator, nil
}

func creatorLabel(sub subscription.Subscription) string {
	if sub.CreatorName == "" {
		return strconv.FormatInt(sub.Creator, 10)
	}
	return fmt.Sprintf("%s (%d)", sub.CreatorName, sub.Creator)
}

func filterSummary(f subscription.Filters) string {
	parts := append([]string(nil), f.Types.Strings()...)
	for _, pattern := range f.Regex {
		parts = append(parts, "/"+pattern+"/")
	}
	return strings.Join(parts, " ")
}

func subscriptionRows(subs []subscription.Subscription) [][]string {
	rows := make([][]string, 0, len(subs))
	for _, sub := range subs {
		live := "off"
		if sub.TracksLive() {
			live = "idle"
			if sub.IsLive {
				live = "on air"
			}
		}
		rows = append(rows, []string{
			sub.Subscriber,
			strconv.FormatInt(sub.Creator, 10),
			sub.CreatorName,
			live,
			sub.Watermark,
			filterSummary(sub.Filters),
		})
	}
	return rows
}

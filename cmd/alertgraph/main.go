package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/rmax-ai/alertgraph/pkg/client"
	"github.com/rmax-ai/alertgraph/pkg/graph"
	"github.com/rmax-ai/alertgraph/pkg/logging"
	"github.com/rmax-ai/alertgraph/pkg/mcp"
	"github.com/rmax-ai/alertgraph/pkg/notify"
	"github.com/rmax-ai/alertgraph/pkg/store"
)

var (
	Version   = "v1.0.0"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var errSearchKey = errors.New("exactly one of --category, --region or --user is required")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	endpoint := endpointFromEnv()
	if err := run(ctx, client.NewClient(endpoint), endpoint, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			fmt.Fprintln(os.Stderr, "Is alertgraph-d running?")
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, c *client.Client, endpoint string, args []string, out io.Writer) error {
	root := newRootCmd(c, endpoint)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(out)
	return root.ExecuteContext(ctx)
}

func endpointFromEnv() string {
	if v := os.Getenv("ALERTGRAPH_URL"); v != "" {
		return v
	}
	return client.DefaultEndpoint
}

func newRootCmd(c *client.Client, endpoint string) *cobra.Command {
	root := &cobra.Command{
		Use:   "alertgraph",
		Short: "Report and search community alerts",
		Long: `alertgraph talks to a running alertgraph-d. The daemon URL is read
from ALERTGRAPH_URL (default ` + client.DefaultEndpoint + `).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	userCmd.AddCommand(&cobra.Command{
		Use:   "add <name> <region>",
		Short: "Register a user in a region",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Region names may contain spaces; join the rest unquoted.
			region := strings.Join(args[1:], " ")
			user, err := c.RegisterUser(cmd.Context(), args[0], region)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User Registered: %s (%s, %s)\n", user.ID, user.Name, user.Region)
			return nil
		},
	})

	alertCmd := &cobra.Command{
		Use:   "alert",
		Short: "Create and search alerts",
	}
	alertCmd.AddCommand(newAlertAddCmd(c), newAlertSearchCmd(c), newAlertRecentCmd(c))

	root.AddCommand(
		userCmd,
		alertCmd,
		&cobra.Command{
			Use:   "stats",
			Short: "Show graph and alert counters",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return printStats(cmd.Context(), c, cmd.OutOrStdout())
			},
		},
		newWatchCmd(),
		&cobra.Command{
			Use:   "mcp",
			Short: "Serve the Model Context Protocol on stdio",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				return mcp.NewServer(endpoint).Serve()
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "alertgraph %s (commit %s, built %s)\n", Version, Commit, BuildTime)
			},
		},
	)
	return root
}

func newAlertAddCmd(c *client.Client) *cobra.Command {
	var in client.AlertInput
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Report a new alert",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			alert, err := c.CreateAlert(cmd.Context(), in)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Alert Created: %s\n", alert.ID)
			fmt.Fprintf(out, "  Category: %s\n  Region:   %s\n", alert.Category, alert.Region)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.UserID, "user", "", "reporting user id")
	cmd.Flags().StringVar(&in.Category, "category", "", "category key")
	cmd.Flags().StringVar(&in.Description, "description", "", "alert description")
	cmd.Flags().StringVar(&in.Location, "location", "", "free-text location")
	cmd.Flags().StringVar(&in.Region, "region", "", "region (defaults to the user's region)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func newAlertSearchCmd(c *client.Client) *cobra.Command {
	var category, region, user string
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search active alerts by category, region or user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				res client.SearchResult
				err error
			)
			ctx := cmd.Context()
			switch {
			case category != "" && region == "" && user == "":
				res, err = c.SearchByCategory(ctx, category)
			case region != "" && category == "" && user == "":
				res, err = c.SearchByRegion(ctx, region)
			case user != "" && category == "" && region == "":
				res, err = c.SearchByUser(ctx, user)
			default:
				return errSearchKey
			}
			if err != nil {
				return err
			}
			printMatches(cmd.OutOrStdout(), res.Alerts)
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "search by category key (depth-first)")
	cmd.Flags().StringVar(&region, "region", "", "search by region (breadth-first)")
	cmd.Flags().StringVar(&user, "user", "", "search by user id")
	return cmd
}

func newAlertRecentCmd(c *client.Client) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List recently published alert ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ids, err := c.RecentAlerts(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(ids) == 0 {
				fmt.Fprintln(out, "No recent alerts")
				return nil
			}
			for _, id := range ids {
				fmt.Fprintln(out, id)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of ids to show")
	return cmd
}

// newWatchCmd streams new alerts from the daemon's Redis notifier until the
// context ends.
func newWatchCmd() *cobra.Command {
	var addr, region string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream new alerts from Redis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rdb := redis.NewClient(&redis.Options{Addr: addr})
			defer rdb.Close()

			out := cmd.OutOrStdout()
			n := notify.NewRedisNotifier(rdb, logging.New(slog.LevelWarn, os.Stderr))
			fmt.Fprintf(out, "Watching alerts on %s...\n", addr)
			return n.Watch(cmd.Context(), region, func(a store.Alert) {
				fmt.Fprintf(out, "%s [%s] %s (%s)\n", a.ID, a.Category, a.Description, a.Region)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "redis", envOr("ALERTGRAPH_REDIS_ADDR", "127.0.0.1:6379"), "Redis address")
	cmd.Flags().StringVar(&region, "region", "", "only alerts for this region")
	return cmd
}

func printMatches(out io.Writer, matches []graph.Match) {
	if len(matches) == 0 {
		fmt.Fprintln(out, "No alerts found")
		return
	}
	fmt.Fprintf(out, "%d alerts found\n", len(matches))
	for _, m := range matches {
		a, ok := m.Payload.(graph.Alert)
		if !ok {
			continue
		}
		fmt.Fprintf(out, "- %s [%s] %s\n", m.ID, a.Category, a.Description)
		fmt.Fprintf(out, "    %s, %s | reported by %s at %s\n",
			orNA(a.Location), a.Region, a.UserID, a.CreatedAt.Format(time.DateTime))
	}
}

func printStats(ctx context.Context, c *client.Client, out io.Writer) error {
	s, err := c.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Nodes: %d\nEdges: %d\nUsers: %d\nActive alerts: %d\n",
		s.Nodes, s.Edges, s.Users, s.ActiveAlerts)
	for _, cc := range s.ByCategory {
		fmt.Fprintf(out, "  %-10s %-20s %d\n", cc.Key, cc.Name, cc.Count)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

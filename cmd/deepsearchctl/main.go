package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/user"
	"strings"
	"time"

	"github.com/BENZOOgataga/DeepSearch/internal/api"
	"github.com/BENZOOgataga/DeepSearch/internal/session"
	"github.com/BENZOOgataga/DeepSearch/internal/tui/client"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

func main() {
	_ = godotenv.Load()

	app := &cli.Command{
		Name:  "deepsearchctl",
		Usage: "Control a deepsearchd session daemon",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "session",
				Usage: "Session name (overrides config default)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output in JSON format",
			},
		},
		Commands: []*cli.Command{
			searchCommand(),
			regexCommand(),
			exportCommand(),
			badscanCommand(),
			scanCommand(),
			archiveCommand(),
			channelsCommand(),
			jobsCommand(),
			cancelCommand(),
			statusCommand(),
			statsCommand(),
			hitsCommand(),
			keywordsCommand(),
			cacheCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// dial resolves the session and returns a daemon client for it.
func dial(c *cli.Command) *client.Client {
	name := session.Resolve(c.String("session"))
	return client.New(session.SocketPath(name))
}

func requester() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "ctl"
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// jobFlags are the flags shared by every job-starting command.
func jobFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "user",
			Usage: "Only count messages authored by this user ID",
		},
		&cli.StringFlag{
			Name:  "limit",
			Usage: "Per-channel message limit (number, \"5k\", or \"all\")",
		},
		&cli.BoolFlag{
			Name:  "all",
			Usage: "Deep search: no per-channel limit, bypass cached pages",
		},
		&cli.StringSliceFlag{
			Name:  "in",
			Usage: "Restrict the scan to these channels (repeatable)",
		},
		&cli.StringSliceFlag{
			Name:  "exclude",
			Usage: "Skip these channels (repeatable)",
		},
		&cli.StringFlag{
			Name:  "export",
			Usage: "Write results to a file: txt, csv or json",
		},
		&cli.BoolFlag{
			Name:  "detach",
			Usage: "Return immediately instead of following progress",
		},
	}
}

func baseRequest(c *cli.Command, kind, query string) api.JobRequest {
	return api.JobRequest{
		Kind:       kind,
		Requester:  requester(),
		TargetUser: c.String("user"),
		Query:      query,
		Limit:      c.String("limit"),
		All:        c.Bool("all"),
		Include:    c.StringSlice("in"),
		Exclude:    c.StringSlice("exclude"),
		Export:     c.String("export"),
	}
}

func runJob(ctx context.Context, c *cli.Command, jr api.JobRequest) error {
	dc := dial(c)
	accepted, err := dc.StartJob(ctx, jr)
	if err != nil {
		return err
	}
	if c.Bool("detach") {
		if c.Bool("json") {
			return outputJSON(accepted)
		}
		fmt.Printf("Started %s job for %q.\n", accepted.Kind, accepted.Query)
		return nil
	}
	return follow(ctx, dc, accepted.Kind, c.Bool("json"))
}

// follow polls the job until it leaves the running state, echoing
// progress to stderr so stdout stays parseable.
func follow(ctx context.Context, dc *client.Client, kind string, jsonOut bool) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		snap, err := dc.Job(ctx, kind)
		if err != nil {
			return err
		}
		if !snap.Running {
			if snap.Error != "" {
				return fmt.Errorf("%s job failed: %s", kind, snap.Error)
			}
			if snap.Summary == nil {
				fmt.Fprintln(os.Stderr, "job finished without a summary")
				return nil
			}
			if jsonOut {
				return outputJSON(snap.Summary)
			}
			fmt.Println(snap.Summary.Text())
			for i, m := range snap.Summary.Matches {
				ts := time.UnixMilli(m.Timestamp).Format("2006-01-02 15:04")
				fmt.Printf("%3d. [%s] %s in %s: %s\n", i+1, ts, m.SenderName, m.ChannelName, m.Content)
			}
			return nil
		}
		if snap.Update != nil && !jsonOut {
			fmt.Fprintf(os.Stderr, "\r%-100s", snap.Update.Text())
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Scan channel history for a keyword",
		ArgsUsage: "<keyword>",
		Flags:     jobFlags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() == 0 {
				return fmt.Errorf("usage: deepsearchctl search <keyword>")
			}
			return runJob(ctx, c, baseRequest(c, "search", strings.Join(c.Args().Slice(), " ")))
		},
	}
}

func regexCommand() *cli.Command {
	return &cli.Command{
		Name:      "regex",
		Usage:     "Scan channel history with a regular expression",
		ArgsUsage: "<pattern>",
		Flags:     jobFlags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() == 0 {
				return fmt.Errorf("usage: deepsearchctl regex <pattern>")
			}
			return runJob(ctx, c, baseRequest(c, "regex", c.Args().First()))
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Scan for a keyword and write matches to a file",
		ArgsUsage: "<keyword>",
		Flags:     jobFlags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() == 0 {
				return fmt.Errorf("usage: deepsearchctl export <keyword>")
			}
			return runJob(ctx, c, baseRequest(c, "export", strings.Join(c.Args().Slice(), " ")))
		},
	}
}

func badscanCommand() *cli.Command {
	flags := append(jobFlags(),
		&cli.StringFlag{
			Name:  "strictness",
			Usage: "Lexicon tier: mild, moderate or strict",
			Value: "moderate",
		},
		&cli.StringFlag{
			Name:  "lang",
			Usage: "Lexicon language (default from config)",
		},
	)
	return &cli.Command{
		Name:  "badscan",
		Usage: "Scan channel history against the profanity lexicon",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			jr := baseRequest(c, "badscan", "")
			jr.Strictness = c.String("strictness")
			jr.Lang = c.String("lang")
			return runJob(ctx, c, jr)
		},
	}
}

func scanCommand() *cli.Command {
	return &cli.Command{
		Name:  "scan",
		Usage: "Count keyword-list occurrences across channel history",
		Flags: jobFlags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			jr := baseRequest(c, "scan", "keywords")
			jr.ForceRefresh = true
			return runJob(ctx, c, jr)
		},
	}
}

func archiveCommand() *cli.Command {
	return &cli.Command{
		Name:      "archive",
		Usage:     "Full-text search the local message archive",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "channel",
				Usage: "Restrict to one channel ID",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of results",
				Value: 50,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() == 0 {
				return fmt.Errorf("usage: deepsearchctl archive <query>")
			}
			matches, err := dial(c).ArchiveSearch(ctx,
				strings.Join(c.Args().Slice(), " "), c.String("channel"), c.Int("limit"))
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return outputJSON(matches)
			}
			if len(matches) == 0 {
				fmt.Println("No results.")
				return nil
			}
			for i, m := range matches {
				ts := time.UnixMilli(m.Timestamp).Format("2006-01-02 15:04")
				fmt.Printf("%3d. [%s] %s in %s: %s\n", i+1, ts, m.SenderName, m.ChannelJID, m.Snippet)
			}
			return nil
		},
	}
}

func channelsCommand() *cli.Command {
	return &cli.Command{
		Name:  "channels",
		Usage: "List the watched workspace's channels",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "members",
				Usage: "Also count members per channel",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			channels, err := dial(c).Channels(ctx, c.Bool("members"))
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return outputJSON(channels)
			}
			for _, ch := range channels {
				access := ""
				if !ch.CanRead {
					access = " (no read access)"
				}
				members := ""
				if ch.Members >= 0 {
					members = fmt.Sprintf("  %d members", ch.Members)
				}
				fmt.Printf("%-40s %s%s%s\n", ch.ID, ch.Name, members, access)
			}
			return nil
		},
	}
}

func jobsCommand() *cli.Command {
	return &cli.Command{
		Name:      "jobs",
		Usage:     "Show job slots, or one kind's latest job",
		ArgsUsage: "[kind]",
		Action: func(ctx context.Context, c *cli.Command) error {
			dc := dial(c)
			if c.Args().Len() > 0 {
				snap, err := dc.Job(ctx, c.Args().First())
				if err != nil {
					return err
				}
				return outputJSON(snap)
			}
			jobs, err := dc.Jobs(ctx)
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return outputJSON(jobs)
			}
			for _, j := range jobs {
				state := "idle"
				if j.Running {
					state = "running"
				}
				fmt.Printf("%-10s %s\n", j.Kind, state)
			}
			return nil
		},
	}
}

func cancelCommand() *cli.Command {
	return &cli.Command{
		Name:      "cancel",
		Usage:     "Cancel the running job of a kind",
		ArgsUsage: "<kind>",
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() == 0 {
				return fmt.Errorf("usage: deepsearchctl cancel <kind>")
			}
			kind := c.Args().First()
			if err := dial(c).Cancel(ctx, kind); err != nil {
				return err
			}
			fmt.Printf("Cancellation requested for %s.\n", kind)
			return nil
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show daemon status",
		Action: func(ctx context.Context, c *cli.Command) error {
			info, err := dial(c).Status(ctx)
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return outputJSON(info)
			}
			fmt.Printf("State:    %s (since %s)\n", info.State, info.StateSince)
			fmt.Printf("Uptime:   %ds\n", info.UptimeSeconds)
			fmt.Printf("Archive:  %d messages\n", info.ArchivedMessages)
			fmt.Printf("Hits:     %d\n", info.WatchHits)
			fmt.Printf("Keywords: %d\n", info.Keywords)
			return nil
		},
	}
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show cumulative search statistics",
		Action: func(ctx context.Context, c *cli.Command) error {
			agg, err := dial(c).Stats(ctx)
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return outputJSON(agg)
			}
			fmt.Printf("Total searches:    %d (%d deep, %d cancelled)\n",
				agg.TotalSearches, agg.DeepSearches, agg.CancelledSearches)
			fmt.Printf("Messages searched: %d\n", agg.TotalMessagesSearched)
			fmt.Printf("Matches found:     %d\n", agg.TotalMatchesFound)
			fmt.Printf("Search time:       %.1fs\n", agg.SearchTimeTotal)
			if agg.LastSearch != nil {
				fmt.Printf("Last search:       %q by %s (%d matches)\n",
					agg.LastSearch.Query, agg.LastSearch.User, agg.LastSearch.Matches)
			}
			if agg.LargestSearch.Messages > 0 {
				fmt.Printf("Largest search:    %d messages for %q\n",
					agg.LargestSearch.Messages, agg.LargestSearch.Query)
			}
			return nil
		},
	}
}

func hitsCommand() *cli.Command {
	return &cli.Command{
		Name:  "hits",
		Usage: "Show recent live-watch keyword hits",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of hits",
				Value: 50,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			hits, err := dial(c).Hits(ctx, c.Int("limit"))
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return outputJSON(hits)
			}
			if len(hits) == 0 {
				fmt.Println("No hits recorded.")
				return nil
			}
			for _, h := range hits {
				ts := time.UnixMilli(h.Timestamp).Format("2006-01-02 15:04")
				fmt.Printf("[%s] %s in %s (%s): %s\n", ts, h.SenderName, h.ChannelName, h.Keyword, h.Body)
			}
			return nil
		},
	}
}

func keywordsCommand() *cli.Command {
	return &cli.Command{
		Name:      "keywords",
		Usage:     "Show or replace the watch list",
		ArgsUsage: "[keyword ...]",
		Action: func(ctx context.Context, c *cli.Command) error {
			dc := dial(c)
			var (
				keywords []string
				err      error
			)
			if c.Args().Len() > 0 {
				keywords, err = dc.SetKeywords(ctx, c.Args().Slice())
			} else {
				keywords, err = dc.Keywords(ctx)
			}
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return outputJSON(map[string][]string{"keywords": keywords})
			}
			if len(keywords) == 0 {
				fmt.Println("Watch list is empty.")
				return nil
			}
			for _, k := range keywords {
				fmt.Println(k)
			}
			return nil
		},
	}
}

func cacheCommand() *cli.Command {
	return &cli.Command{
		Name:      "cache",
		Usage:     "Show cache statistics, or clear them",
		ArgsUsage: "[clear]",
		Action: func(ctx context.Context, c *cli.Command) error {
			dc := dial(c)
			var (
				caches []api.CacheInfo
				err    error
			)
			if c.Args().First() == "clear" {
				caches, err = dc.ClearCaches(ctx)
			} else {
				caches, err = dc.Caches(ctx)
			}
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return outputJSON(caches)
			}
			for _, ci := range caches {
				fmt.Printf("%-14s %d/%d entries, ttl %s\n", ci.Name, ci.Entries, ci.Cap, ci.TTL)
			}
			return nil
		},
	}
}

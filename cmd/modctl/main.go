// Command modctl manages the reported-post source and watches session events.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"modqueue/internal/cache"
	"modqueue/internal/config"
	"modqueue/internal/database"
	"modqueue/internal/notifications"
	"modqueue/internal/repository"
	"modqueue/internal/seed"

	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.App{
		Name:  "modctl",
		Usage: "manage the reported post queue behind modqueue",
	}
	app.Commands = []*cli.Command{
		{
			Name:  "seed",
			Usage: "insert fake reported posts",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "count", Value: 50, Usage: "number of posts to insert"},
				&cli.UintFlag{Name: "start-id", Value: 1, Usage: "id of the first inserted post"},
				&cli.Int64Flag{Name: "seed", Usage: "random seed for reproducible data"},
			},
			Action: runSeed,
		},
		{
			Name:   "list",
			Usage:  "show stored reported posts grouped by reason",
			Action: runList,
		},
		{
			Name:   "watch",
			Usage:  "print moderation events from every session",
			Action: runWatch,
		},
	}
	app.RunAndExitOnError()
}

func openRepo() (repository.ReportedPostRepository, *config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, err
	}
	return repository.NewReportedPostRepository(db), cfg, nil
}

func runSeed(cctx *cli.Context) error {
	repo, cfg, err := openRepo()
	if err != nil {
		return err
	}

	records, err := seed.ReportedPosts(cctx.Context, repo, cctx.Int("count"), seed.Options{
		StartID: cctx.Uint("start-id"),
		Seed:    cctx.Int64("seed"),
	})
	if err != nil {
		return err
	}

	if rdb := cache.InitRedis(cfg.RedisURL); rdb != nil {
		defer rdb.Close()
		if err := cache.Invalidate(cctx.Context, rdb, cache.ReportedPostsKey); err != nil {
			fmt.Fprintf(os.Stderr, "warning: cached post set not invalidated: %v\n", err)
		}
	}

	fmt.Printf("inserted %d reported posts\n", len(records))
	return nil
}

func runList(cctx *cli.Context) error {
	repo, _, err := openRepo()
	if err != nil {
		return err
	}

	counts, err := repo.CountByReason(cctx.Context)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "REASON\tPOSTS")
	var total int64
	for _, rc := range counts {
		fmt.Fprintf(w, "%s\t%d\n", rc.ReportedReason, rc.Total)
		total += rc.Total
	}
	fmt.Fprintf(w, "total\t%d\n", total)
	return w.Flush()
}

func runWatch(cctx *cli.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	rdb := cache.InitRedis(cfg.RedisURL)
	if rdb == nil {
		return fmt.Errorf("redis is not reachable at %s", cfg.RedisURL)
	}
	defer rdb.Close()

	ctx, stop := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n := notifications.NewNotifier(rdb)
	err = n.StartSessionSubscriber(ctx, func(_ string, ev notifications.ModerationEvent) {
		line := fmt.Sprintf("%s  %-14s session=%s", ev.At.Format(time.RFC3339), ev.Type, ev.SessionID)
		if ev.Action != "" {
			line += " action=" + ev.Action
		}
		if ev.Status != "" {
			line += " status=" + ev.Status
		}
		if len(ev.PostIDs) > 0 {
			line += fmt.Sprintf(" posts=%v", ev.PostIDs)
		}
		if ev.ExpiresInMS > 0 {
			line += fmt.Sprintf(" expires_in=%dms", ev.ExpiresInMS)
		}
		fmt.Println(line)
	})
	if err != nil {
		return err
	}

	<-ctx.Done()
	return nil
}

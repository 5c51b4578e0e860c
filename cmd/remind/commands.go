package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/hiroki-koketsu/go-reminder/internal/client"
	"github.com/hiroki-koketsu/go-reminder/internal/model"
	"github.com/urfave/cli"
)

const defaultServer = "http://localhost:8080"

func newApp(out io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "remind"
	app.Usage = "create one-time or recurring reminders"
	app.UsageText = "remind <command> [arguments...]"
	app.Writer = out
	app.HideVersion = true
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "server, s",
			Usage:  "reminder service base URL",
			Value:  defaultServer,
			EnvVar: "REMIND_SERVER",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:      "once",
			Aliases:   []string{"o"},
			Usage:     "add a reminder that fires once after MINUTES",
			ArgsUsage: "NAME MINUTES",
			Action:    addOnce,
		},
		{
			Name:      "every",
			Aliases:   []string{"e"},
			Usage:     "add a reminder that fires every MINUTES",
			ArgsUsage: "NAME MINUTES",
			Action:    addEvery,
		},
		{
			Name:    "list",
			Aliases: []string{"l"},
			Usage:   "list reminders",
			Action:  list,
		},
		{
			Name:      "cancel",
			Aliases:   []string{"c"},
			Usage:     "cancel a reminder",
			ArgsUsage: "ID",
			Action:    cancelReminder,
		},
		{
			Name:   "history",
			Usage:  "show recent notifications",
			Action: history,
		},
		{
			Name:    "watch",
			Aliases: []string{"w"},
			Usage:   "print notifications as they fire",
			Action:  watch,
		},
	}
	return app
}

func newClient(ctx *cli.Context) *client.Client {
	return client.New(ctx.GlobalString("server"))
}

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 15*time.Second)
}

func addOnce(ctx *cli.Context) error {
	return add(ctx, false)
}

func addEvery(ctx *cli.Context) error {
	return add(ctx, true)
}

func add(ctx *cli.Context, recurring bool) error {
	if ctx.NArg() != 2 {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	name, minutes := ctx.Args().Get(0), ctx.Args().Get(1)

	rctx, cancel := requestContext()
	defer cancel()

	c := newClient(ctx)
	var (
		resp *model.CreateReminderResponse
		err  error
	)
	if recurring {
		resp, err = c.AddRecurring(rctx, name, minutes)
	} else {
		resp, err = c.AddOneTime(rctx, name, minutes)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(ctx.App.Writer, resp.Message)
	fmt.Fprintf(ctx.App.Writer, "id: %s\n", resp.Reminder.ID)
	return nil
}

func list(ctx *cli.Context) error {
	rctx, cancel := requestContext()
	defer cancel()

	reminders, err := newClient(ctx).List(rctx)
	if err != nil {
		return err
	}
	if len(reminders) == 0 {
		fmt.Fprintln(ctx.App.Writer, "no reminders")
		return nil
	}

	tw := tabwriter.NewWriter(ctx.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tMINUTES\tKIND\tSTATUS\tFIRED")
	for _, r := range reminders {
		kind := "once"
		if r.Recurring {
			kind = "every"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%d\n", r.ID, r.Label, r.DelayMinutes, kind, r.Status, r.FireCount)
	}
	return tw.Flush()
}

func cancelReminder(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}

	rctx, done := requestContext()
	defer done()

	r, err := newClient(ctx).Cancel(rctx, ctx.Args().First())
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.App.Writer, "%s: %s\n", r.Label, r.Status)
	return nil
}

func history(ctx *cli.Context) error {
	rctx, cancel := requestContext()
	defer cancel()

	notes, err := newClient(ctx).Notifications(rctx)
	if err != nil {
		return err
	}
	for _, n := range notes {
		printNotification(ctx.App.Writer, n)
	}
	return nil
}

func watch(ctx *cli.Context) error {
	sctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newClient(ctx).Watch(sctx, func(n model.Notification) {
		printNotification(ctx.App.Writer, n)
	})
}

func printNotification(w io.Writer, n model.Notification) {
	fmt.Fprintf(w, "[%s] %s\n", n.CreatedAt.Local().Format("15:04:05"), n.Title)
}

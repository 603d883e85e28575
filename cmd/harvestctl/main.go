// Command harvestctl is an operator CLI issuing REST verbs against a
// running harvestd, since spec.md's service itself has no CLI surface
// (control is HTTP-only). Grounded on the teacher's cmd/cli/commands
// urfave/cli subcommand-tree conventions and dsort.go's mpb progress-bar
// polling loop for `status --watch`.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli"
	"github.com/vbauerster/mpb/v4"
	"github.com/vbauerster/mpb/v4/decor"
)

const progressBarWidth = 64

func main() {
	app := cli.NewApp()
	app.Name = "harvestctl"
	app.Usage = "operate a harvestd instance over REST"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "server", Value: "http://127.0.0.1:8090", Usage: "harvestd base URL"},
		cli.StringFlag{Name: "token", Usage: "bearer token for mutating verbs, if harvestd requires one"},
	}
	app.Commands = []cli.Command{
		startCmd,
		abortCmd,
		submitCmd,
		saveCmd,
		resetCmd,
		statusCmd,
		configCmd,
		historyCmd,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "harvestctl:", err)
		os.Exit(1)
	}
}

func clientFrom(c *cli.Context) *client {
	return newClient(c.GlobalString("server"), c.GlobalString("token"))
}

func printEntity(e entity) {
	if len(e.Value) > 0 {
		fmt.Println(string(e.Value))
		return
	}
	fmt.Println(e.Status, e.Message)
}

var startCmd = cli.Command{
	Name:  "start",
	Usage: "start a harvest",
	Flags: []cli.Flag{
		cli.BoolFlag{Name: "dry-run", Usage: "validate without harvesting"},
	},
	Action: func(c *cli.Context) error {
		e, err := clientFrom(c).startHarvest(c.Bool("dry-run"))
		if err != nil {
			return err
		}
		printEntity(e)
		return nil
	},
}

var abortCmd = cli.Command{
	Name:  "abort",
	Usage: "abort the in-progress harvest",
	Action: func(c *cli.Context) error {
		e, err := clientFrom(c).abort()
		if err != nil {
			return err
		}
		printEntity(e)
		return nil
	},
}

var submitCmd = cli.Command{
	Name:  "submit",
	Usage: "submit the last harvest's results",
	Action: func(c *cli.Context) error {
		e, err := clientFrom(c).submit()
		if err != nil {
			return err
		}
		printEntity(e)
		return nil
	},
}

var saveCmd = cli.Command{
	Name:  "save",
	Usage: "flush configuration and ETL state to disk",
	Action: func(c *cli.Context) error {
		e, err := clientFrom(c).save()
		if err != nil {
			return err
		}
		printEntity(e)
		return nil
	},
}

var resetCmd = cli.Command{
	Name:  "reset",
	Usage: "reset the service to Initialization",
	Action: func(c *cli.Context) error {
		e, err := clientFrom(c).reset()
		if err != nil {
			return err
		}
		printEntity(e)
		return nil
	},
}

var statusCmd = cli.Command{
	Name:  "status",
	Usage: "print (or watch) the current state",
	Flags: []cli.Flag{
		cli.BoolFlag{Name: "watch", Usage: "render a live progress bar until the state leaves Harvesting"},
		cli.DurationFlag{Name: "interval", Value: time.Second, Usage: "poll interval for --watch"},
	},
	Action: func(c *cli.Context) error {
		cl := clientFrom(c)
		if !c.Bool("watch") {
			state, err := cl.state()
			if err != nil {
				return err
			}
			fmt.Println(state)
			return nil
		}
		return watchStatus(cl, c.Duration("interval"))
	},
}

// watchStatus polls /status/state every interval, advancing a 100-step bar
// by one step per poll while the state is Harvesting, and completes the bar
// once the state leaves Harvesting, mirroring dsort.go's poll-then-redraw
// progress loop. It does not read document counts, so the bar shows polls
// elapsed, not harvest progress.
func watchStatus(cl *client, interval time.Duration) error {
	progress := mpb.New(mpb.WithWidth(progressBarWidth))
	text := "Harvesting: "
	bar := progress.AddBar(100,
		mpb.PrependDecorators(decor.Name(text, decor.WC{W: len(text) + 2, C: decor.DSyncWidthR})),
		mpb.AppendDecorators(decor.Percentage(decor.WCSyncWidth)),
	)

	for {
		state, err := cl.state()
		if err != nil {
			return err
		}
		if state != "Harvesting" {
			bar.SetTotal(100, true)
			progress.Wait()
			fmt.Println("final state:", state)
			return nil
		}
		bar.IncrBy(1)
		time.Sleep(interval)
	}
}

var configCmd = cli.Command{
	Name:  "config",
	Usage: "inspect or change configuration",
	Subcommands: []cli.Command{
		{
			Name:  "get",
			Usage: "list configuration, optionally filtered by category",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "category"},
			},
			Action: func(c *cli.Context) error {
				e, err := clientFrom(c).configGet(c.String("category"))
				if err != nil {
					return err
				}
				printEntity(e)
				return nil
			},
		},
		{
			Name:      "set",
			Usage:     "set one parameter",
			ArgsUsage: "<category/key> <value>",
			Action: func(c *cli.Context) error {
				if c.NArg() != 2 {
					return cli.NewExitError("usage: harvestctl config set <category/key> <value>", 1)
				}
				e, err := clientFrom(c).configSet(c.Args().Get(0), c.Args().Get(1))
				if err != nil {
					return err
				}
				printEntity(e)
				return nil
			},
		},
	},
}

var historyCmd = cli.Command{
	Name:  "history",
	Usage: "list recent harvest runs",
	Flags: []cli.Flag{
		cli.IntFlag{Name: "n", Value: 20, Usage: "max runs to list"},
	},
	Action: func(c *cli.Context) error {
		e, err := clientFrom(c).history(c.Int("n"))
		if err != nil {
			return err
		}
		printEntity(e)
		return nil
	},
}

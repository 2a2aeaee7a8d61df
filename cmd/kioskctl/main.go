// Command kioskctl drives a running kiosk server from the command line.
//
//	kioskctl pages
//	kioskctl show explorer
//	kioskctl navigate explorer https://www.example.com/
//	kioskctl idle timeout 90s
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "kioskctl",
		Usage: "control a kiosk shell over its REST API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api",
				Value:   "http://localhost:8080",
				Usage:   "kiosk server URL",
				Sources: cli.EnvVars("KIOSK_API"),
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "print raw JSON responses",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "pages",
				Usage:  "list catalog pages",
				Action: run(listPages),
			},
			{
				Name:   "views",
				Usage:  "list created views",
				Action: run(listViews),
			},
			{
				Name:      "show",
				Usage:     "show a page",
				ArgsUsage: "<id>",
				Action:    run(viewCommand("show")),
			},
			{
				Name:      "hide",
				Usage:     "hide a page",
				ArgsUsage: "<id>",
				Action:    run(viewCommand("hide")),
			},
			{
				Name:      "navigate",
				Usage:     "load a URL in a view",
				ArgsUsage: "<id> <url>",
				Action:    run(navigate),
			},
			{
				Name:      "back",
				Usage:     "go back in a view",
				ArgsUsage: "<id>",
				Action:    run(control("back")),
			},
			{
				Name:      "forward",
				Usage:     "go forward in a view",
				ArgsUsage: "<id>",
				Action:    run(control("forward")),
			},
			{
				Name:      "url",
				Usage:     "print the URL a view displays",
				ArgsUsage: "<id>",
				Action:    run(currentURL),
			},
			{
				Name:      "remove",
				Usage:     "remove elements matching a CSS selector",
				ArgsUsage: "<id> <selector>",
				Action:    run(removeElements),
			},
			{
				Name:   "reset",
				Usage:  "destroy every view",
				Action: run(destroyAll),
			},
			{
				Name:  "idle",
				Usage: "inspect or control the idle timer",
				Commands: []*cli.Command{
					{Name: "status", Usage: "print timer status", Action: run(idleCall("GET", "/api/idle", nil))},
					{Name: "start", Usage: "arm the timer", Action: run(idleCall("POST", "/api/idle/start", nil))},
					{Name: "stop", Usage: "disarm the timer", Action: run(idleCall("POST", "/api/idle/stop", nil))},
					{Name: "suppress", Usage: "suppress idle resets", Action: run(idleCall("PUT", "/api/idle/suppress", map[string]bool{"suppressed": true}))},
					{Name: "allow", Usage: "allow idle resets", Action: run(idleCall("PUT", "/api/idle/suppress", map[string]bool{"suppressed": false}))},
					{Name: "timeout", Usage: "set the timeout", ArgsUsage: "<duration>", Action: run(idleTimeout)},
				},
			},
			{
				Name:  "kiosk",
				Usage: "manage the kiosk record",
				Commands: []*cli.Command{
					{Name: "get", Usage: "print the record", Action: run(getKiosk)},
					{
						Name:      "set",
						Usage:     "save the record",
						ArgsUsage: "<name>",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "mode", Usage: `placement mode, "did" reserves the top band`},
						},
						Action: run(setKiosk),
					},
					{Name: "delete", Usage: "delete the record", Action: run(deleteKiosk)},
				},
			},
			{
				Name:   "quit",
				Usage:  "tear the kiosk down and stop the server",
				Action: run(quit),
			},
		},
	}
}

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/felixgeelhaar/workshop/internal/config"
)

// Version is set at build time via ldflags
var Version = "dev"

const pidFile = "workshopd.pid"

// daemonAddr is the daemon base URL, taken from config.yaml when it loads.
var daemonAddr = "http://127.0.0.1:7433"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	if cfg, err := config.LoadLocalConfig(); err == nil {
		daemonAddr = daemonURL(cfg.Daemon)
	}

	var err error
	switch os.Args[1] {
	case "start":
		err = cmdStart()
	case "stop":
		err = cmdStop()
	case "status":
		err = cmdStatus()
	case "logs":
		err = cmdLogs()
	case "config":
		err = cmdConfig()
	case "courses":
		err = cmdCourses()
	case "select":
		err = cmdSelect(os.Args[2:])
	case "begin":
		err = cmdBegin(os.Args[2:])
	case "submit":
		err = cmdSubmit(os.Args[2:])
	case "state":
		err = cmdState()
	case "hint":
		err = cmdHint()
	case "preview":
		err = cmdPreview(os.Args[2:])
	case "validate":
		err = cmdValidate(os.Args[2:])
	case "stats":
		err = cmdStats(os.Args[2:])
	case "events":
		err = cmdEvents(os.Args[2:])
	case "mcp":
		err = cmdMCP()
	case "help", "-h", "--help":
		printUsage()
	case "version", "-v", "--version":
		fmt.Printf("workshop %s\n", Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Workshop - Interactive Programming Courses

Usage:
  workshop <command> [arguments]

Daemon Commands:
  start             Start the workshop daemon
  stop              Stop the workshop daemon
  status            Show daemon status
  logs              Show recent daemon logs
  config            Show current configuration

Workshop Commands:
  courses           List courses in the index
  select <id>       Load a course and show its onboarding
  begin [index]     Start the first exercise, or jump to one
  submit <file>     Submit a file as the solution to the current exercise
  state             Show the current workshop state
  hint              Show the hint for the current exercise

Authoring Commands:
  preview <course> [index]   Render an exercise as text without the daemon
  validate [course...]       Load courses and report load errors

History Commands:
  stats [course]    Show attempt statistics
  events [course]   Follow progress events

Integration:
  mcp               Run the MCP server on stdio

Other:
  help              Show this help
  version           Show version

Open the daemon address in a browser for the interactive course page.`)
}

func daemonURL(d config.DaemonConfig) string {
	bind := d.Bind
	if bind == "" || bind == "0.0.0.0" {
		bind = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", bind, d.Port)
}

// renderProgressBar creates a visual progress bar
func renderProgressBar(value float64, width int) string {
	filled := int(value * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	empty := width - filled

	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", empty) + "]"
}

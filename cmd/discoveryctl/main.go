// Command discoveryctl runs a one-shot device discovery scan and prints
// every device found as JSON, without starting the full engine.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/neuroflux/engine/internal/device"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "scan":
		cmdScan(os.Args[2:])
	case "version":
		fmt.Printf("discoveryctl v%s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`discoveryctl v` + version + `

Usage: discoveryctl <command> [flags]

Commands:
  scan      Run one discovery round and print results as JSON
  version   Print version
  help      Show this help

Flags for scan:
  --type string   device type label to attach to matched ports (default "openbci")

Examples:
  discoveryctl scan
  discoveryctl scan --type ganglion`)
}

func cmdScan(args []string) {
	deviceType := "openbci"
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--type", "-t":
			i++
			if i < len(args) {
				deviceType = args[i]
			}
		}
	}

	svc := device.NewDiscoveryService()
	svc.Register(device.NewSerialScanner(deviceType))

	found, err := svc.ScanRound()
	if err != nil {
		fmt.Fprintf(os.Stderr, "scan error: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(found); err != nil {
		fmt.Fprintf(os.Stderr, "encoding results: %v\n", err)
		os.Exit(1)
	}
}

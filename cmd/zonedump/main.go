// Command zonedump reads the zone files of a database directly, verifies them and
// prints, exports or browses what it finds. It never writes to the zone directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"zonedb/pkg/config"
	"zonedb/pkg/debug/zonereader"
	"zonedb/pkg/logging"
	"zonedb/pkg/primitives"
)

type Configuration struct {
	ConfigFile string
	DataDir    string
	Unit       int
	Start      int
	Length     int
	Workers    int
	Text       bool
	Export     string
	TUI        bool
	Timeout    time.Duration
}

func main() {
	conf := parseArguments()

	cfg := config.Default()
	if conf.ConfigFile != "" {
		var err error
		if cfg, err = config.Load(conf.ConfigFile); err != nil {
			fail(err)
		}
	}
	if conf.DataDir != "" {
		cfg.DataDir = conf.DataDir
	}
	if conf.Unit >= 0 {
		cfg.Unit = conf.Unit
	}
	if conf.Start >= 0 {
		cfg.Start = conf.Start
	}
	if conf.Length >= 0 {
		cfg.Length = conf.Length
	}
	if err := cfg.Validate(); err != nil {
		fail(err)
	}
	logging.InitDefault()

	reader := zonereader.New(primitives.Filepath(cfg.DataDir), cfg.DBDesc())
	reader.SetWorkers(conf.Workers)

	ctx, cancel := context.WithTimeout(context.Background(), conf.Timeout)
	snap, err := reader.Load(ctx)
	cancel()
	if err != nil {
		fail(err)
	}

	switch {
	case conf.TUI:
		p := tea.NewProgram(newBrowser(snap), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			fail(err)
		}

	case conf.Export != "":
		if err := export(snap, conf.Export); err != nil {
			fail(err)
		}
		fmt.Printf("✅ Exported %d zones of %s to %s\n", len(snap.Zones), snap.DB, conf.Export)

	case conf.Text:
		if err := snap.WriteText(os.Stdout); err != nil {
			fail(err)
		}

	default:
		records, err := snap.Records()
		if err != nil {
			fail(err)
		}
		fmt.Printf("✅ %s: %d zones, %d records\n", snap.DB, len(snap.Zones), len(records))
	}
}

// parseArguments processes command-line flags
func parseArguments() Configuration {
	var conf Configuration

	flag.StringVar(&conf.ConfigFile, "config", "", "YAML configuration file")
	flag.StringVar(&conf.DataDir, "dir", "", "zone directory (overrides the config file)")
	flag.IntVar(&conf.Unit, "unit", -1, "logical unit")
	flag.IntVar(&conf.Start, "start", -1, "first zone of the database")
	flag.IntVar(&conf.Length, "length", -1, "number of zones")
	flag.IntVar(&conf.Workers, "workers", zonereader.DefaultWorkers, "zone files read concurrently")
	flag.BoolVar(&conf.Text, "text", false, "print every zone, extent and record")
	flag.StringVar(&conf.Export, "export", "", "write a compressed snapshot to this file")
	flag.BoolVar(&conf.TUI, "tui", false, "browse zones interactively")
	flag.DurationVar(&conf.Timeout, "timeout", time.Minute, "give up reading after this long")

	flag.Parse()

	return conf
}

func export(snap *zonereader.Snapshot, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := snap.Export(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "❌ %v\n", err)
	os.Exit(1)
}

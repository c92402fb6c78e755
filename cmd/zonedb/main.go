package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"zonedb/pkg/config"
	"zonedb/pkg/engine"
	"zonedb/pkg/logging"
	"zonedb/pkg/primitives"
	"zonedb/pkg/word"
)

type Configuration struct {
	ConfigFile string
	DataDir    string
	Unit       int
	Start      int
	Length     int
	Verbose    bool
	ZeroDate   bool
	Substore   string
	Password   string
}

const usage = `usage: zonedb [flags] <command> [args]

commands:
  init                          format the database
  put <key> <value|@file>       store a new record
  set <key> <value|@file>       store or overwrite a record
  get <key>                     print a record
  del <key>                     delete a record
  list [forward|backward]       list records in key order
  avail                         print free words
  check                         verify index and allocator
  mkdir <name> <start> <length> create a substore on the same unit
  clear [forward|backward]      delete every record
  load <file>                   apply "key value" lines with set

keys accept Go integer syntax, e.g. 42, 0o52, 0x2a
`

func main() {
	conf := parseArguments()
	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := loadConfig(conf)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logging.Init(cfg.Logging()); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.Close()

	store, err := engine.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to open zone directory: %v", err)
	}
	defer store.Close()

	if err := run(store, cfg, conf, args); err != nil {
		store.Close()
		logging.Close()
		log.Fatalf("%s: %v", args[0], err)
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
	flag.BoolVar(&conf.Verbose, "v", false, "debug logging")
	flag.BoolVar(&conf.ZeroDate, "zero-date", false, "stamp records with date 0")
	flag.StringVar(&conf.Substore, "sub", "", "slash separated substore path to enter first")
	flag.StringVar(&conf.Password, "password", "", "password for the last substore on -sub, or for mkdir")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage, "\nflags:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	return conf
}

func loadConfig(conf Configuration) (*config.Config, error) {
	cfg := config.Default()
	if conf.ConfigFile != "" {
		var err error
		if cfg, err = config.Load(conf.ConfigFile); err != nil {
			return nil, err
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
	cfg.Verbose = cfg.Verbose || conf.Verbose
	cfg.ZeroDate = cfg.ZeroDate || conf.ZeroDate
	return cfg, cfg.Validate()
}

func run(store *engine.Store, cfg *config.Config, conf Configuration, args []string) error {
	cmd, args := args[0], args[1:]
	if cmd == "init" {
		if err := store.Init(cfg.DBDesc()); err != nil {
			return err
		}
		fmt.Printf("✅ Initialized %s in %s\n", cfg.DBDesc(), cfg.DataDir)
		return nil
	}

	if err := store.OpenDB(cfg.DBDesc()); err != nil {
		return err
	}
	if conf.Substore != "" {
		parts := strings.Split(conf.Substore, "/")
		for i, name := range parts {
			password := ""
			if i == len(parts)-1 {
				password = conf.Password
			}
			if err := store.OpenSubstore(name, password); err != nil {
				return fmt.Errorf("substore %q: %w", name, err)
			}
		}
	}

	switch cmd {
	case "put", "set":
		if len(args) != 2 {
			return fmt.Errorf("expected <key> <value>")
		}
		k, err := parseKey(args[0])
		if err != nil {
			return err
		}
		value, err := readValue(args[1])
		if err != nil {
			return err
		}
		if cmd == "put" {
			return store.Put(k, value)
		}
		return store.Update(k, value)

	case "get":
		if len(args) != 1 {
			return fmt.Errorf("expected <key>")
		}
		k, err := parseKey(args[0])
		if err != nil {
			return err
		}
		data, err := store.Fetch(k)
		if err != nil {
			return err
		}
		os.Stdout.Write(data)
		if len(data) > 0 && data[len(data)-1] != '\n' {
			fmt.Println()
		}
		return nil

	case "del":
		if len(args) != 1 {
			return fmt.Errorf("expected <key>")
		}
		k, err := parseKey(args[0])
		if err != nil {
			return err
		}
		return store.Delete(k)

	case "list":
		dir := engine.Forward
		if len(args) == 1 && args[0] == "backward" {
			dir = engine.Backward
		}
		it := store.Iterator(dir)
		if err := it.Open(); err != nil {
			return err
		}
		defer it.Close()
		count := 0
		for {
			ok, err := it.HasNext()
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			k, data, err := it.Next()
			if err != nil {
				return err
			}
			count++
			fmt.Printf("%#o\t%d bytes\t%q\n", uint64(k), len(data), preview(data))
		}
		fmt.Printf("(%d records)\n", count)
		return nil

	case "avail":
		n, err := store.Avail()
		if err != nil {
			return err
		}
		fmt.Printf("%d words (%d bytes)\n", n, n*word.Bytes)
		return nil

	case "check":
		rep, err := store.Check()
		if err != nil {
			return err
		}
		fmt.Printf("✅ %d records, %d metablocks, depth %d\n", rep.Records, rep.Metablocks, rep.Depth)
		fmt.Printf("   %d zones, %d extents, %d words used, %d free, %d descriptor words\n",
			rep.Zones, rep.Extents, rep.Used, rep.Free, rep.Overhead)
		return nil

	case "mkdir":
		if len(args) != 3 {
			return fmt.Errorf("expected <name> <start> <length>")
		}
		start, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("start: %w", err)
		}
		length, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("length: %w", err)
		}
		db := word.NewDBDesc(primitives.Unit(cfg.Unit), primitives.ZoneNumber(start), length)
		return store.CreateSubstore(args[0], db, conf.Password)

	case "clear":
		dir := engine.Forward
		if len(args) == 1 && args[0] == "backward" {
			dir = engine.Backward
		}
		return store.Clear(dir)

	case "load":
		if len(args) != 1 {
			return fmt.Errorf("expected <file>")
		}
		return importData(store, args[0])

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func parseKey(s string) (engine.Key, error) {
	v, err := strconv.ParseUint(s, 0, 47)
	if err != nil {
		return 0, fmt.Errorf("invalid key %q: %w", s, err)
	}
	return engine.Key(v), nil
}

// readValue takes the argument itself, or the contents of a file when it starts with @.
func readValue(arg string) ([]byte, error) {
	if name, ok := strings.CutPrefix(arg, "@"); ok {
		return os.ReadFile(name)
	}
	return []byte(arg), nil
}

// importData loads "key value" lines from a file
func importData(store *engine.Store, filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to read import file: %v", err)
	}
	defer f.Close()

	fmt.Printf("📥 Importing records from %s...\n", filename)
	total, ok := 0, 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		total++
		keyText, value, _ := strings.Cut(line, " ")
		k, err := parseKey(keyText)
		if err == nil {
			err = store.Update(k, []byte(value))
		}
		if err != nil {
			fmt.Printf("⚠️  line %d: %v\n", total, err)
			continue
		}
		ok++
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	fmt.Printf("✅ Import completed: %d/%d records stored\n", ok, total)
	return nil
}

func preview(data []byte) string {
	if len(data) > 32 {
		return string(data[:32]) + "..."
	}
	return string(data)
}

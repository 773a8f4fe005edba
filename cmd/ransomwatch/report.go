package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"ransomwatch/internal/config"
	"ransomwatch/internal/model"
	"ransomwatch/internal/state"
	"ransomwatch/internal/store"
)

func cmdStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Println("=== ransomwatch Status ===")
	fmt.Println()
	fmt.Printf("Watch path: %s\n", cfg.Watch.Path)
	fmt.Printf("Window:     %ds (mass>=%d, ext>=%d, entropy>=%.1f)\n",
		cfg.Detector.WindowSeconds,
		cfg.Detector.MassChangeThreshold,
		cfg.Detector.ExtensionSpikeThreshold,
		cfg.Detector.EntropyAlertThreshold,
	)
	fmt.Println()

	if !cfg.State.Enabled {
		fmt.Println("Shared state: disabled")
	} else {
		st, err := state.Read(cfg.State.Path)
		if err != nil {
			return err
		}
		fmt.Printf("Shared state: %s\n", cfg.State.Path)
		fmt.Printf("  Events: %d\n", len(st.Events))
		fmt.Printf("  Alerts: %d\n", len(st.Alerts))
		if n := len(st.Events); n > 0 {
			last := st.Events[n-1]
			fmt.Printf("  Last event: %s %s %s\n", last.TS, last.Type, last.SrcPath)
		}
		if n := len(st.Alerts); n > 0 {
			last := st.Alerts[n-1]
			fmt.Printf("  Last alert: %s %s [%s] %s\n", last.TS, last.Rule, last.Severity, last.Details)
		}
	}
	fmt.Println()

	if !cfg.Storage.Enabled {
		fmt.Println("Database: disabled")
		return nil
	}
	if _, err := os.Stat(cfg.Storage.Path); os.IsNotExist(err) {
		fmt.Println("Database: not created yet")
		return nil
	}

	st, err := store.OpenWithTimeout(cfg.Storage.Path, cfg.BusyTimeout())
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	events, err := st.EventCount(ctx)
	if err != nil {
		return err
	}
	counts, err := st.AlertCounts(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Database: %s\n", cfg.Storage.Path)
	fmt.Printf("  Events recorded: %d\n", events)
	for _, rule := range model.Rules {
		fmt.Printf("  %-24s %d\n", rule, counts[rule])
	}
	return nil
}

func cmdAlerts(args []string) error {
	fs := flag.NewFlagSet("alerts", flag.ExitOnError)
	n := fs.Int("n", 20, "number of alerts to show")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Storage.Enabled {
		return fmt.Errorf("storage is disabled in the configuration")
	}

	st, err := store.OpenWithTimeout(cfg.Storage.Path, cfg.BusyTimeout())
	if err != nil {
		return err
	}
	defer st.Close()

	alerts, err := st.RecentAlerts(context.Background(), *n)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Println("No alerts recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tRULE\tSEVERITY\tDETAILS")
	for _, a := range alerts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", model.FormatTimestamp(a.Timestamp), a.Rule, a.Severity, a.Details)
	}
	return tw.Flush()
}

func cmdConfig(args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	write := fs.String("write", "", "save the effective configuration to this path")
	initDefault := fs.Bool("init", false, "create the config file with defaults if it does not exist")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *initDefault {
		path := *configPath
		if path == "" {
			path = config.ConfigPath()
		}
		_, created, err := config.LoadOrCreate(path)
		if err != nil {
			return err
		}
		if created {
			fmt.Printf("Created default configuration at %s\n", path)
		} else {
			fmt.Printf("Configuration already exists at %s\n", path)
		}
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if *write != "" {
		if err := config.SaveConfig(cfg, *write); err != nil {
			return err
		}
		fmt.Printf("Configuration written to %s\n", *write)
		return nil
	}

	data, err := config.EncodeTOML(cfg)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func printAlertSummary(cfg *config.Config) error {
	if !cfg.State.Enabled {
		return nil
	}
	st, err := state.Read(cfg.State.Path)
	if err != nil {
		return err
	}

	counts := make(map[string]int)
	for _, a := range st.Alerts {
		counts[a.Rule]++
	}
	fmt.Printf("Alerts in shared state: %d\n", len(st.Alerts))
	for _, rule := range model.Rules {
		fmt.Printf("  %-24s %d\n", rule, counts[string(rule)])
	}
	return nil
}

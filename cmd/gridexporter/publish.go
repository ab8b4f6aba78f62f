package main

import (
	"fmt"
	"time"

	"github.com/jgoulah/gridexporter/internal/publisher"
	"github.com/spf13/cobra"
)

var publishOnce bool

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish usage to an MQTT broker",
	Long: `Collects usage on the mqtt.schedule cron schedule and publishes each reading
as a retained message on {topic_prefix}/{premise}/{service}/usage, plus the API
health flag on {topic_prefix}/api_up.`,
	Args: cobra.NoArgs,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().BoolVar(&publishOnce, "once", false, "publish a single collection and exit")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Publish started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if !cfg.MQTT.Enabled {
		return fmt.Errorf("MQTT is not enabled in config")
	}

	ctx, stop := signalContext()
	defer stop()

	exp, err := startExporter(ctx, cfg)
	if err != nil {
		return err
	}

	pub, err := publisher.New(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}
	defer pub.Close()

	sched := publisher.NewScheduler(cfg.MQTT.Schedule, exp.Collector.Cycle, pub)

	if publishOnce {
		if err := sched.RunOnce(ctx); err != nil {
			return fmt.Errorf("publishing: %w", err)
		}
		fmt.Println("✓ Published")
		return nil
	}

	if err := sched.Start(ctx); err != nil {
		return err
	}
	fmt.Printf("Publishing to %s on schedule %q, press Ctrl-C to stop\n", cfg.MQTT.Broker, cfg.MQTT.Schedule)

	<-ctx.Done()
	sched.Stop()
	return nil
}

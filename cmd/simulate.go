package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/dispatchmap/infra/logger"
	"github.com/kilianp07/dispatchmap/simulator"
)

var simulateFlags struct {
	broker   string
	cabs     int
	interval time.Duration
	seed     int64
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Publish simulated cab movement over MQTT",
	RunE:  runSimulate,
}

func init() {
	f := simulateCmd.Flags()
	f.StringVar(&simulateFlags.broker, "broker", "", "MQTT broker URL; defaults to simulator.mqtt.broker")
	f.IntVar(&simulateFlags.cabs, "cabs", 0, "number of cabs")
	f.DurationVar(&simulateFlags.interval, "interval", 0, "publish interval")
	f.Int64Var(&simulateFlags.seed, "seed", 0, "random seed, 0 for a time based one")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfigOrDefaults()
	if err != nil {
		return err
	}
	sc := cfg.Simulator
	if simulateFlags.broker != "" {
		sc.MQTT.Broker = simulateFlags.broker
	}
	if sc.MQTT.Broker == "" {
		sc.MQTT.Broker = "tcp://localhost:1883"
	}
	if simulateFlags.cabs > 0 {
		sc.Cabs = simulateFlags.cabs
	}
	if simulateFlags.interval > 0 {
		sc.Interval = simulateFlags.interval
	}
	if simulateFlags.seed != 0 {
		sc.Seed = simulateFlags.seed
	}
	return simulator.Run(ctx, sc, logger.New("simulator"))
}

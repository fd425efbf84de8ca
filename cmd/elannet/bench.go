package main

import (
	"fmt"
	"time"

	"github.com/born-ml/elannet/internal/tensor"
	"github.com/spf13/cobra"
)

var (
	benchFlags  modelFlags
	benchSize   int
	benchBatch  int
	benchIters  int
	benchWarmup int
)

var benchCmd = &cobra.Command{
	Use:   "bench [variant]",
	Short: "Time forward passes on the CPU backend",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkInput(benchSize, benchBatch); err != nil {
			return err
		}
		if benchIters <= 0 {
			return fmt.Errorf("--iters must be positive, got %d", benchIters)
		}
		if benchWarmup < 0 {
			return fmt.Errorf("--warmup must not be negative, got %d", benchWarmup)
		}

		backend := newBackend()
		model, err := benchFlags.build(cmd.Context(), cmd, args, backend)
		if err != nil {
			return err
		}
		x := tensor.Randn[float32](tensor.Shape{benchBatch, 3, benchSize, benchSize}, backend)

		for i := 0; i < benchWarmup; i++ {
			model.Forward(x)
		}

		times := make([]time.Duration, benchIters)
		for i := range times {
			start := time.Now()
			model.Forward(x)
			times[i] = time.Since(start)
		}

		s := summarize(times)
		fmt.Fprintf(cmd.OutOrStdout(), "%s batch=%d size=%d workers=%d\n",
			model.Variant(), benchBatch, benchSize, backend.Workers())
		fmt.Fprintf(cmd.OutOrStdout(), "iters=%d min=%v mean=%v max=%v (%.1f img/s)\n",
			benchIters, s.min, s.mean, s.max, float64(benchBatch)/s.mean.Seconds())
		return nil
	},
}

func init() {
	benchFlags.register(benchCmd)
	benchCmd.Flags().IntVar(&benchSize, "size", 224, "input height and width (multiple of 32)")
	benchCmd.Flags().IntVar(&benchBatch, "batch", 1, "batch size")
	benchCmd.Flags().IntVar(&benchIters, "iters", 5, "timed iterations")
	benchCmd.Flags().IntVar(&benchWarmup, "warmup", 1, "untimed iterations")
	rootCmd.AddCommand(benchCmd)
}

type timing struct {
	min, mean, max time.Duration
}

func summarize(times []time.Duration) timing {
	t := timing{min: times[0], max: times[0]}
	var total time.Duration
	for _, d := range times {
		total += d
		t.min = min(t.min, d)
		t.max = max(t.max, d)
	}
	t.mean = total / time.Duration(len(times))
	return t
}

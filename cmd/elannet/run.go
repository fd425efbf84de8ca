package main

import (
	"fmt"
	"image"
	"math/rand"
	"sort"

	"github.com/born-ml/elannet/internal/backend/cpu"
	"github.com/born-ml/elannet/internal/imagenet"
	"github.com/born-ml/elannet/internal/tensor"
	"github.com/spf13/cobra"
)

var (
	runFlags modelFlags
	runSize  int
	runBatch int
	runSeed  int64
	runTopK  int
	runImage []string
)

var runCmd = &cobra.Command{
	Use:   "run [variant]",
	Short: "Classify images (or a random batch) and print the top-k logits",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runForward,
}

func init() {
	runFlags.register(runCmd)
	runCmd.Flags().IntVar(&runSize, "size", 224, "input height and width (multiple of 32)")
	runCmd.Flags().IntVar(&runBatch, "batch", 1, "batch size")
	runCmd.Flags().Int64Var(&runSeed, "seed", 0, "input seed")
	runCmd.Flags().IntVar(&runTopK, "topk", 5, "logits to print per image")
	runCmd.Flags().StringSliceVar(&runImage, "image", nil, "JPEG or PNG files to classify instead of random input")
	rootCmd.AddCommand(runCmd)
}

func runForward(cmd *cobra.Command, args []string) error {
	if err := checkInput(runSize, runBatch); err != nil {
		return err
	}
	if runTopK <= 0 {
		return fmt.Errorf("--topk must be positive, got %d", runTopK)
	}

	backend := newBackend()
	model, err := runFlags.build(cmd.Context(), cmd, args, backend)
	if err != nil {
		return err
	}

	x, err := runInput(backend)
	if err != nil {
		return err
	}
	batch := x.Shape()[0]
	feats := model.ForwardFeatures(x)
	logits := model.Head(feats[len(feats)-1])

	out := cmd.OutOrStdout()
	for i, f := range feats {
		fmt.Fprintf(out, "C%d %v\n", i+1, f.Shape())
	}
	fmt.Fprintf(out, "logits %v\n", logits.Shape())

	classes := model.NumClasses()
	data := logits.Data()
	for b := 0; b < batch; b++ {
		row := data[b*classes : (b+1)*classes]
		for rank, c := range topK(row, runTopK) {
			fmt.Fprintf(out, "image %d  #%d  class %4d  %.4f\n", b, rank+1, c, row[c])
		}
	}
	return nil
}

// checkInput validates the --size and --batch flags. Every stage halves
// the resolution, so the size must survive five halvings.
func checkInput(size, batch int) error {
	if size <= 0 || size%32 != 0 {
		return fmt.Errorf("--size must be a positive multiple of 32, got %d", size)
	}
	if batch <= 0 {
		return fmt.Errorf("--batch must be positive, got %d", batch)
	}
	return nil
}

// runInput loads --image files, or draws a random batch.
func runInput(backend *cpu.CPUBackend) (*tensor.Tensor[float32, *cpu.CPUBackend], error) {
	if len(runImage) == 0 {
		rng := rand.New(rand.NewSource(runSeed)) //nolint:gosec // synthetic input
		return tensor.RandnFrom[float32](tensor.Shape{runBatch, 3, runSize, runSize}, rng, backend), nil
	}

	images := make([]image.Image, len(runImage))
	for i, path := range runImage {
		img, err := imagenet.Open(path)
		if err != nil {
			return nil, err
		}
		images[i] = img
	}
	return imagenet.Batch(images, runSize, backend)
}

// topK returns the indices of the k largest values, largest first.
// Ties keep index order.
func topK(values []float32, k int) []int {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return values[idx[a]] > values[idx[b]]
	})
	return idx[:max(0, min(k, len(idx)))]
}

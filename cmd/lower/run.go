package main

import (
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/born-ml/lower/compute"
	"github.com/born-ml/lower/internal/config"
	"github.com/born-ml/lower/internal/logger"
	"github.com/born-ml/lower/tensor"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// runResult is the outcome of one mode of the demo.
type runResult struct {
	mode       compute.Mode
	build      time.Duration
	execute    time.Duration // mean per execution; zero in immediate mode
	iterations int
	planLen    int
	probs      []float32
}

// RunHandler builds and executes the demo network in the requested modes and
// prints a timing table.
func RunHandler(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	modeFlag, _ := cmd.Flags().GetString("mode")
	bf16, _ := cmd.Flags().GetBool("bf16")
	iterations, _ := cmd.Flags().GetInt("iterations")
	size, _ := cmd.Flags().GetInt("size")
	seed, _ := cmd.Flags().GetUint64("seed")

	modes, err := parseModes(modeFlag, cfg)
	if err != nil {
		return err
	}
	if iterations < 1 {
		return errors.Errorf("iterations must be positive, got %d", iterations)
	}
	cfg.EnableBF16 = cfg.EnableBF16 || bf16

	net, err := newNetwork(size, seed)
	if err != nil {
		return err
	}
	input := randomInput(net, seed)
	log := logger.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())

	results := make([]runResult, 0, len(modes))
	for _, m := range modes {
		res, err := runNetwork(net, input, m, iterations, compute.WithConfig(cfg), compute.WithLogger(log))
		if err != nil {
			return errors.Wrapf(err, "%s run", m)
		}
		log.Info().Str("mode", m.String()).Dur("build", res.build).Dur("execute", res.execute).Msg("run complete")
		results = append(results, res)
	}
	printResults(cmd.OutOrStdout(), results)
	return nil
}

// parseModes resolves the --mode flag. An empty flag runs the mode from the
// environment when LOWER_MODE is set, and both modes otherwise.
func parseModes(flag string, cfg config.Config) ([]compute.Mode, error) {
	if flag == "" {
		if envModeSet() {
			flag = cfg.Mode
		} else {
			flag = "both"
		}
	}
	switch strings.ToLower(flag) {
	case config.ModeCompiled:
		return []compute.Mode{compute.Compiled}, nil
	case config.ModeImmediate:
		return []compute.Mode{compute.Immediate}, nil
	case "both":
		return []compute.Mode{compute.Compiled, compute.Immediate}, nil
	default:
		return nil, errors.Errorf("invalid mode %q (must be compiled, immediate or both)", flag)
	}
}

func envModeSet() bool {
	_, ok := os.LookupEnv(config.Prefix + "_MODE")
	return ok
}

// randomInput returns an input image with values in [0, 1).
func randomInput(net *network, seed uint64) []float32 {
	rng := rand.New(rand.NewPCG(seed+1, seed))
	vals := make([]float32, net.inputType().NumElements())
	for i := range vals {
		vals[i] = rng.Float32()
	}
	return vals
}

// runNetwork builds the network in mode m and runs it on input.
func runNetwork(net *network, input []float32, m compute.Mode, iterations int, opts ...compute.Option) (runResult, error) {
	res := runResult{mode: m, iterations: iterations}
	c, err := compute.New(append(opts, compute.WithMode(m))...)
	if err != nil {
		return res, err
	}
	defer c.Destroy()

	res.probs = make([]float32, classes)
	out := tensor.Bytes(res.probs)

	start := time.Now()
	if m == compute.Immediate {
		x, err := c.CreateValue(net.inputType(), "x")
		if err != nil {
			return res, err
		}
		if err := c.SetValueData(x, tensor.Bytes(input)); err != nil {
			return res, err
		}
		probs, err := net.build(c, x)
		if err != nil {
			return res, err
		}
		res.build = time.Since(start)
		res.iterations = 1
		return res, c.GetValueData(probs, out)
	}

	x, err := c.CreateArgument(net.inputType(), "x")
	if err != nil {
		return res, err
	}
	probs, err := net.build(c, x)
	if err != nil {
		return res, err
	}
	if err := c.SetOutput(probs); err != nil {
		return res, err
	}
	res.build = time.Since(start)
	res.planLen = c.PlanLen()

	ctx, err := c.NewContext()
	if err != nil {
		return res, err
	}
	defer ctx.Destroy()
	if err := ctx.BindArgumentByName("x", tensor.Bytes(input)); err != nil {
		return res, err
	}
	if err := ctx.BindOutputByName("probs", out); err != nil {
		return res, err
	}

	start = time.Now()
	for i := 0; i < iterations; i++ {
		if err := ctx.Execute(compute.Inference, tensor.CPU); err != nil {
			return res, err
		}
	}
	res.execute = time.Since(start) / time.Duration(iterations)
	return res, nil
}

func printResults(w io.Writer, results []runResult) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"MODE", "PLAN", "BUILD", "EXECUTE", "RUNS", "CLASS", "P"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	for _, r := range results {
		class, p := argmax(r.probs)
		execute := "-"
		if r.execute > 0 {
			execute = r.execute.String()
		}
		table.Append([]string{
			r.mode.String(),
			fmt.Sprint(r.planLen),
			r.build.String(),
			execute,
			fmt.Sprint(r.iterations),
			fmt.Sprint(class),
			fmt.Sprintf("%.4f", p),
		})
	}
	table.Render()

	if len(results) == 2 {
		fmt.Fprintf(w, "\nmax |compiled - immediate| = %.3g\n", maxAbsDiff(results[0].probs, results[1].probs))
	}
}

func argmax(vals []float32) (int, float32) {
	if len(vals) == 0 {
		return -1, 0
	}
	best := 0
	for i, v := range vals {
		if v > vals[best] {
			best = i
		}
	}
	return best, vals[best]
}

func maxAbsDiff(a, b []float32) float64 {
	var d float64
	for i := range min(len(a), len(b)) {
		d = math.Max(d, math.Abs(float64(a[i]-b[i])))
	}
	return d
}

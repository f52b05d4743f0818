// Command postflop solves a heads-up postflop spot and prints the
// resulting strategy at a chosen line.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/pterm/pterm"
	"github.com/schollz/progressbar/v3"

	"github.com/timpalpant/postflop"
	"github.com/timpalpant/postflop/job"
	"github.com/timpalpant/postflop/store"
	"github.com/timpalpant/postflop/tree"
)

type runParams struct {
	jobPath string
	job     job.Job

	loadPath  string
	savePath  string
	export    string
	storeDSN  string
	loadName  string
	saveName  string
	line      string
	pprofAddr string
}

func main() {
	var params runParams
	flag.StringVar(&params.jobPath, "job", "", "Job file (.toml, .yaml or .json). Overrides the game flags below")
	flag.StringVar(&params.job.OOPRange, "oop", "", "OOP range, e.g. \"QQ+,AKs\"")
	flag.StringVar(&params.job.IPRange, "ip", "", "IP range")
	flag.StringVar(&params.job.Board, "board", "", "Board cards, e.g. \"QsJh2h\"")
	pot := flag.Int("pot", 100, "Starting pot")
	stack := flag.Int("stack", 500, "Effective stack")
	flag.Float64Var(&params.job.RakeRate, "rake", 0, "Rake rate")
	flag.Float64Var(&params.job.RakeCap, "rake_cap", 0, "Rake cap in chips")
	flag.StringVar(&params.job.Bet, "bet", "", "Bet sizes for every street, e.g. \"33%,75%,a\"")
	flag.StringVar(&params.job.Raise, "raise", "", "Raise sizes for every street, e.g. \"2.5x\"")
	flag.BoolVar(&params.job.Compressed, "compressed", false, "Store solver data in 16 bits")
	flag.IntVar(&params.job.MaxIterations, "iterations", 1000, "Maximum number of iterations")
	flag.Float64Var(&params.job.TargetExploitability, "target", 0, "Target exploitability in chips")
	flag.IntVar(&params.job.Parallelism, "parallelism", 0, "Solver goroutines (0 = GOMAXPROCS)")
	flag.StringVar(&params.loadPath, "load", "", "Load a saved game instead of building one")
	flag.StringVar(&params.savePath, "save", "", "Save the game to this file when done")
	flag.StringVar(&params.export, "export", "", "Write per-hand results at the chosen line to this .npz file")
	flag.StringVar(&params.storeDSN, "store", "", "Game store (postgres:// URL or SQLite path)")
	flag.StringVar(&params.loadName, "load_name", "", "Load this game from the store")
	flag.StringVar(&params.saveName, "save_name", "", "Save the game to the store under this name")
	flag.StringVar(&params.line, "line", "", "Comma-separated action indices to play before reporting")
	flag.StringVar(&params.pprofAddr, "pprof", "", "Serve pprof on this address")
	flag.Parse()
	params.job.StartingPot = int32(*pot)
	params.job.EffectiveStack = int32(*stack)

	if params.pprofAddr != "" {
		go http.ListenAndServe(params.pprofAddr, nil)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, params); err != nil {
		glog.Exit(err)
	}
}

func run(ctx context.Context, params runParams) error {
	var st store.Store
	if params.storeDSN != "" {
		var err error
		st, err = store.Open(ctx, params.storeDSN)
		if err != nil {
			return errors.Wrap(err, "opening store")
		}
		defer st.Close()
	}

	g, j, err := loadGame(ctx, params, st)
	if err != nil {
		return err
	}

	if g.State() == postflop.StateMemoryAllocated && j.MaxIterations > 0 {
		if err := solve(ctx, g, j); err != nil {
			return err
		}
	}

	if params.savePath != "" {
		if err := g.SaveToFile(params.savePath); err != nil {
			return err
		}
		glog.Infof("Saved game to %s", params.savePath)
	}
	if params.saveName != "" {
		if st == nil {
			return errors.New("-save_name requires -store")
		}
		if err := store.SaveGame(ctx, st, params.saveName, g); err != nil {
			return err
		}
		glog.Infof("Saved game to store as %q", params.saveName)
	}

	if err := playLine(g, params.line); err != nil {
		return err
	}
	if err := g.CacheNormalizedWeights(); err != nil {
		return err
	}
	if err := report(g); err != nil {
		return err
	}

	if params.export != "" {
		f, err := os.Create(params.export)
		if err != nil {
			return err
		}
		if err := g.ExportNPZ(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		glog.Infof("Exported results to %s", params.export)
	}
	return nil
}

// loadGame returns a game ready to solve or query, and the job whose
// solver settings apply to it.
func loadGame(ctx context.Context, params runParams, st store.Store) (*postflop.Game, *job.Job, error) {
	j := &params.job
	switch {
	case params.loadPath != "":
		g := postflop.New()
		if err := g.LoadFromFile(params.loadPath); err != nil {
			return nil, nil, err
		}
		applyParallelism(g, j)
		return g, j, nil
	case params.loadName != "":
		if st == nil {
			return nil, nil, errors.New("-load_name requires -store")
		}
		g := postflop.New()
		if err := store.LoadGame(ctx, st, params.loadName, g); err != nil {
			return nil, nil, err
		}
		applyParallelism(g, j)
		return g, j, nil
	case params.jobPath != "":
		var err error
		j, err = job.Load(params.jobPath)
		if err != nil {
			return nil, nil, err
		}
		if j.MaxIterations == 0 {
			j.MaxIterations = params.job.MaxIterations
		}
	}

	g, err := j.NewGame()
	if err != nil {
		return nil, nil, err
	}
	glog.Infof("Built tree with %s nodes (%s decision nodes)",
		humanize.Comma(int64(g.Tree().NumNodes())),
		humanize.Comma(int64(g.Tree().NumDecisionNodes())))
	return g, j, nil
}

func applyParallelism(g *postflop.Game, j *job.Job) {
	if j.Parallelism > 0 {
		g.SetParallelism(j.Parallelism)
	}
}

func solve(ctx context.Context, g *postflop.Game, j *job.Job) error {
	if uncompressed, compressed, err := g.MemoryUsage(); err == nil {
		used := uncompressed
		if g.IsCompressed() {
			used = compressed
		}
		glog.Infof("Solver memory: %s", humanize.Bytes(used))
	}

	bar := progressbar.NewOptions(j.MaxIterations,
		progressbar.OptionSetDescription("Solving"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionClearOnFinish())
	start := g.Iteration()
	exploitability, err := g.SolveContext(ctx, j.MaxIterations, float32(j.TargetExploitability),
		func(iteration int, exploitability float32) {
			bar.Describe(fmt.Sprintf("Solving (exploitability %.4f)", exploitability))
			bar.Set(iteration - start)
		})
	bar.Finish()
	if err != nil && ctx.Err() == nil {
		return err
	}
	if ctx.Err() != nil {
		pterm.Warning.Printfln("Interrupted at iteration %d", g.Iteration())
	}

	pot := float64(g.Tree().Config.StartingPot)
	pterm.Success.Printfln("Iteration %d: exploitability %.4f chips (%.3f%% of pot)",
		g.Iteration(), exploitability, 100*float64(exploitability)/pot)
	return nil
}

func playLine(g *postflop.Game, line string) error {
	if line == "" {
		return nil
	}
	for _, tok := range strings.Split(line, ",") {
		idx, err := strconv.Atoi(strings.TrimSpace(tok))
		if err != nil {
			return errors.Wrapf(err, "parsing line %q", line)
		}
		if err := g.Play(idx); err != nil {
			return err
		}
	}
	return nil
}

// report prints the strategy, weights, EV and equity of the player to
// act at the current position.
func report(g *postflop.Game) error {
	player, err := g.CurrentPlayer()
	if err != nil {
		return err
	}
	board := g.Board()
	boardStr := make([]string, len(board))
	for i, c := range board {
		boardStr[i] = c.String()
	}
	pterm.DefaultSection.Printfln("%s to act on %s (history %v)",
		tree.PlayerString(player), strings.Join(boardStr, " "), g.History())

	if player != tree.PlayerOOP && player != tree.PlayerIP {
		actions, err := g.AvailableActions()
		if err != nil {
			return err
		}
		pterm.Info.Printfln("%d actions available", len(actions))
		return nil
	}

	p := int(player)
	hands, err := g.PrivateHands(p)
	if err != nil {
		return err
	}
	actions, err := g.AvailableActions()
	if err != nil {
		return err
	}
	strategy, err := g.Strategy()
	if err != nil {
		return err
	}
	weights, err := g.NormalizedWeights(p)
	if err != nil {
		return err
	}
	ev, err := g.ExpectedValues(p)
	if err != nil {
		return err
	}
	equity, err := g.Equity(p)
	if err != nil {
		return err
	}

	header := []string{"Hand", "Weight", "EV", "Equity"}
	for _, a := range actions {
		header = append(header, a.String())
	}
	data := pterm.TableData{header}
	for h, hand := range hands {
		if weights[h] == 0 {
			continue
		}
		row := []string{
			hand.String(),
			fmt.Sprintf("%.3f", weights[h]),
			fmt.Sprintf("%.2f", ev[h]),
			fmt.Sprintf("%.1f%%", 100*equity[h]),
		}
		for a := range actions {
			row = append(row, fmt.Sprintf("%.1f%%", 100*strategy[h*len(actions)+a]))
		}
		data = append(data, row)
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

// Command pictionary wires the QuickDraw sketch-classifier pieces together:
//
//	pictionary download   fetch the per-category bitmap files
//	pictionary train      load, split, train, evaluate, plot, checkpoint
//	pictionary serve      serve the drawing-pad demo from a checkpoint
//
// The subcommands invoke the pipeline's explicit callback slots (read, train,
// evaluate, predict) directly; there is no implicit registry of handlers.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/backends/simplego"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/context/checkpoints"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/Noofbiz/pictionary/quickdraw"
	"github.com/Noofbiz/pictionary/serve"
	"github.com/Noofbiz/pictionary/sketchnet"
	"github.com/Noofbiz/pictionary/training"
)

var (
	dataDir     = flag.String("data-dir", "assets/quickdraw", "directory holding the per-category npy files")
	classes     = flag.String("classes", "", "comma-separated category names; the remote list is fetched when empty")
	maxClasses  = flag.Int("max-classes", 10, "cap on the number of categories (0 = all)")
	maxItems    = flag.Int("max-items", 5000, "per-class item cap when loading (0 = all)")
	epochs      = flag.Int("epochs", 3, "training epochs")
	batchSize   = flag.Int("batch-size", 64, "training batch size")
	lr          = flag.Float64("learning-rate", 1e-3, "Adam learning rate")
	valFraction = flag.Float64("val-fraction", 0.1, "fraction of rows held out for validation")
	seed        = flag.Int64("seed", 42, "seed for the split permutation and epoch shuffling")
	checkpoint  = flag.String("checkpoint", "output/checkpoint", "checkpoint directory")
	plotPath    = flag.String("plot", "output/loss.png", "training-curve PNG path (empty disables)")
	addr        = flag.String("addr", ":8080", "listen address for serve")
)

// pipeline holds the callback slots the subcommands invoke. main fills every
// slot explicitly before dispatching.
type pipeline struct {
	read     func() (*quickdraw.Snapshot, error)
	train    func(ds *quickdraw.Dataset) ([]training.EpochStats, error)
	evaluate func(ds *quickdraw.Dataset) (training.Accuracy, error)
	predict  serve.PredictFunc
}

func main() {
	klog.InitFlags(nil)
	flag.Usage = usage
	flag.Parse()

	var err error
	switch flag.Arg(0) {
	case "download":
		err = runDownload()
	case "train":
		err = runTrain()
	case "serve":
		err = runServe()
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		klog.Exitf("%s: %+v", flag.Arg(0), err)
	}
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "usage: pictionary [flags] download|train|serve\n\n")
	flag.PrintDefaults()
}

// categoryList resolves the -classes flag into a canonical list, or nil to
// let the downloader fetch the remote list.
func categoryList() []string {
	if *classes == "" {
		return nil
	}
	var names []string
	for _, c := range strings.Split(*classes, ",") {
		c = strings.TrimSpace(c)
		if c != "" {
			names = append(names, strings.ReplaceAll(c, " ", "_"))
		}
	}
	return names
}

func newBackend() (backends.Backend, error) {
	backend, err := simplego.New("")
	if err != nil {
		return nil, errors.Wrap(err, "creating simplego backend")
	}
	return backend, nil
}

func runDownload() error {
	names, err := quickdraw.Download(*dataDir, quickdraw.DownloadOptions{
		Categories:    categoryList(),
		MaxCategories: *maxClasses,
	})
	if err != nil {
		return err
	}
	klog.Infof("ensured %d categories under %s", len(names), *dataDir)
	return nil
}

func runTrain() error {
	if _, err := quickdraw.Download(*dataDir, quickdraw.DownloadOptions{
		Categories:    categoryList(),
		MaxCategories: *maxClasses,
	}); err != nil {
		return err
	}

	backend, err := newBackend()
	if err != nil {
		return err
	}
	ctx := context.New()
	p := pipeline{
		read: func() (*quickdraw.Snapshot, error) {
			return quickdraw.Load(*dataDir, *maxItems)
		},
	}

	snap, err := p.read()
	if err != nil {
		return err
	}
	klog.Infof("loaded %d samples across %d categories", snap.NumRows(), len(snap.Names))

	modelFn := sketchnet.Graph(len(snap.Names))
	p.train = func(ds *quickdraw.Dataset) ([]training.EpochStats, error) {
		return training.Train(backend, ctx, modelFn, ds, training.Config{
			Epochs:        *epochs,
			LearningRate:  *lr,
			CheckpointDir: *checkpoint,
		})
	}
	p.evaluate = func(ds *quickdraw.Dataset) (training.Accuracy, error) {
		return training.Evaluate(backend, ctx, modelFn, ds)
	}

	full := quickdraw.NewDataset("quickdraw", snap)
	full.BatchSize = *batchSize
	trainDS, valDS := full.Split(*valFraction, *seed)
	trainDS.Shuffle(*seed)

	history, err := p.train(trainDS)
	if err != nil {
		return err
	}
	acc, err := p.evaluate(valDS)
	if err != nil {
		return err
	}
	klog.Infof("validation: top-1 %.2f%%, top-5 %.2f%%", acc.Top1, acc.Top5)

	if err := writeNames(*checkpoint, snap.Names); err != nil {
		return err
	}
	if *plotPath != "" {
		if err := training.PlotHistory(*plotPath, history); err != nil {
			return err
		}
		klog.Infof("training curve written to %s", *plotPath)
	}
	return nil
}

func runServe() error {
	names, err := readNames(*checkpoint)
	if err != nil {
		return err
	}
	backend, err := newBackend()
	if err != nil {
		return err
	}
	ctx := context.New()
	if _, err := checkpoints.Build(ctx).Dir(*checkpoint).Done(); err != nil {
		return errors.Wrapf(err, "loading checkpoint from %s", *checkpoint)
	}

	p := pipeline{
		predict: sketchnet.NewPredictor(backend, ctx, names).Predict,
	}
	klog.Infof("serving %d categories on %s", len(names), *addr)
	return http.ListenAndServe(*addr, serve.New(p.predict))
}

// The category list is stored next to the checkpoint so serve reconstructs
// the same label mapping the model was trained with.

func writeNames(dir string, names []string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating checkpoint directory %s", dir)
	}
	path := filepath.Join(dir, "categories.txt")
	if err := os.WriteFile(path, []byte(strings.Join(names, "\n")+"\n"), 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}

func readNames(dir string) ([]string, error) {
	path := filepath.Join(dir, "categories.txt")
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading category list %s (train first?)", path)
	}
	var names []string
	for _, line := range strings.Split(string(body), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			names = append(names, line)
		}
	}
	if len(names) == 0 {
		return nil, errors.Errorf("category list %s is empty", path)
	}
	return names, nil
}

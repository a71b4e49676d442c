/*
Phyinf computes phylogenetic informativeness profiles of loci
(Townsend 2007).

Site rates are estimated for every alignment in a directory by an
external program, informativeness is integrated over time for every
locus and the results are stored in an SQLite database:

	phyinf compute --template rates.bf loci/ tree.newick

Precomputed rate files from a previous run can be reused:

	phyinf compute --site-rates previous/ tree.newick

The database can be queried, plotted and exported:

	phyinf intervals --top 10 phylogenetic-informativeness.sqlite
	phyinf compare run1/phylogenetic-informativeness.sqlite run2/phylogenetic-informativeness.sqlite
	phyinf plot --out net.png phylogenetic-informativeness.sqlite
	phyinf export --out pi.xlsx phylogenetic-informativeness.sqlite

To see all the options run:

	phyinf --help-long
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/op/go-logging"
)

// These three variables are set during the compilation.
var githash = ""
var gitbranch = ""
var buildstamp = ""
var version = fmt.Sprintf("branch: %s, revision: %s, build time: %s", gitbranch, githash, buildstamp)

// Logger settings.
var log = logging.MustGetLogger("phyinf")
var formatter = logging.MustStringFormatter(`%{message}`)

// modules are the loggers which follow --loglevel.
var modules = []string{"phyinf", "tree", "rates", "estimator", "locus", "batch", "checkpoint", "store", "report"}

// command-line options
var (
	// application
	app = kingpin.New("phyinf", "phylogenetic informativeness of loci").Version(version)

	// global
	configF  = app.Flag("config", "read the run configuration from a YAML file").ExistingFile()
	outLogF  = app.Flag("log", "write log to a file").String()
	logLevel = app.Flag("loglevel", "set loglevel "+
		"('critical', 'error', 'warning', 'notice', 'info', 'debug')").
		Default("notice").
		Enum("critical", "error", "warning", "notice", "info", "debug")

	// compute
	computeCmd        = app.Command("compute", "estimate site rates and compute informativeness of every locus")
	alignmentsDirName = computeCmd.Arg("alignments", "directory with alignments (or rate files with --site-rates)").ExistingDir()
	treeFileName      = computeCmd.Arg("tree", "ultrametric tree").ExistingFile()
	treeFormat        = computeCmd.Flag("tree-format", "tree format (newick or nexus)").String()
	outDirName        = computeCmd.Flag("output", "output directory, a numeric suffix is added if it exists").Short('o').String()
	estimatorBin      = computeCmd.Flag("estimator", "rate estimator binary").String()
	templateFileName  = computeCmd.Flag("template", "rate estimator template").String()
	timeout           = computeCmd.Flag("timeout", "rate estimator timeout per locus").Duration()
	threshold         = computeCmd.Flag("threshold", "minimum number of taxa with a definite base at an informative site").Int()
	times             = computeCmd.Flag("times", "discrete times, e.g. 10,20,50").String()
	intervals         = computeCmd.Flag("intervals", "epochs to integrate over, e.g. 0-10,10-20").String()
	method            = computeCmd.Flag("method", "integration method (exact or quadrature)").String()
	siteRates         = computeCmd.Flag("site-rates", "read precomputed rate files instead of running the estimator").Bool()
	parallel          = computeCmd.Flag("parallel", "process loci in parallel").Bool()
	workers           = computeCmd.Flag("workers", "number of parallel workers, number of CPUs minus one by default").Int()
	dbPolicy          = computeCmd.Flag("database", "existing database policy (fail, overwrite or append)").String()
	onFailure         = computeCmd.Flag("on-failure", "failed locus policy (failfast or collect)").String()
	dryRun            = computeCmd.Flag("dry-run", "do not add corrected rates to the rate files").Bool()
	resume            = computeCmd.Flag("resume", "continue a run in the output directory skipping finished loci; a database without loci is replaced").Bool()
	jsonF             = computeCmd.Flag("json", "write json summary of all the loci to a file").String()

	// tree
	treeCmd      = app.Command("tree", "normalize branch lengths of a tree")
	treeOnlyName = treeCmd.Arg("tree", "ultrametric tree").Required().ExistingFile()
	treeOnlyFmt  = treeCmd.Flag("format", "tree format (newick or nexus)").Default("newick").String()
	treeOnlyDir  = treeCmd.Flag("dir", "directory for the rescaled tree").Default(".").ExistingDir()

	// intervals
	intervalsCmd = app.Command("intervals", "list loci ranked by informativeness for every epoch")
	intervalsDB  = intervalsCmd.Arg("database", "results database").Required().ExistingFile()
	intervalsTop = intervalsCmd.Flag("top", "number of loci per epoch, all if zero").Default("0").Int()

	// compare
	compareCmd = app.Command("compare", "compare top loci between databases")
	compareDBs = compareCmd.Arg("database", "results databases").Required().ExistingFiles()
	compareTop = compareCmd.Flag("top", "number of top loci per epoch").Default("10").Int()
	compareOut = compareCmd.Flag("out", "plot the comparison to a file").String()

	// plot
	plotCmd    = app.Command("plot", "plot net informativeness over time")
	plotDB     = plotCmd.Arg("database", "results database").Required().ExistingFile()
	plotOut    = plotCmd.Flag("out", "image file, the format is chosen by the extension").Default("net.png").String()
	plotLoci   = plotCmd.Flag("locus", "locus to plot, can be repeated; all by default").Strings()
	plotWidth  = plotCmd.Flag("width", "image width in inches").Default("8").Float64()
	plotHeight = plotCmd.Flag("height", "image height in inches").Default("5").Float64()

	// export
	exportCmd = app.Command("export", "export a database to a spreadsheet")
	exportDB  = exportCmd.Arg("database", "results database").Required().ExistingFile()
	exportOut = exportCmd.Flag("out", "spreadsheet file").Default("pi.xlsx").String()
)

func main() {
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	// logging
	logging.SetFormatter(formatter)

	var backend *logging.LogBackend
	if *outLogF != "" {
		f, err := os.OpenFile(*outLogF, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Fatal("Error creating log file:", err)
		}
		defer f.Close()
		backend = logging.NewLogBackend(f, "", 0)
	} else {
		backend = logging.NewLogBackend(os.Stderr, "", 0)
	}
	logging.SetBackend(backend)

	level, err := logging.LogLevel(*logLevel)
	if err != nil {
		log.Fatal(err)
	}
	for _, m := range modules {
		logging.SetLevel(level, m)
	}

	// print revision
	log.Info(version)

	// print commandline
	log.Info("Command line:", os.Args)

	c, err := loadConfig(*configF)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch cmd {
	case computeCmd.FullCommand():
		applyFlags(c)
		err = compute(ctx, c)
	case treeCmd.FullCommand():
		err = normalizeTree(*treeOnlyName, *treeOnlyFmt, *treeOnlyDir)
	case intervalsCmd.FullCommand():
		err = listIntervals(ctx, os.Stdout, *intervalsDB, c.Tables, *intervalsTop)
	case compareCmd.FullCommand():
		err = compareDatabases(ctx, os.Stdout, *compareDBs, c.Tables, *compareTop, *compareOut)
	case plotCmd.FullCommand():
		err = plotNet(ctx, *plotDB, c.Tables, *plotLoci, *plotOut, *plotWidth, *plotHeight)
	case exportCmd.FullCommand():
		err = export(ctx, *exportDB, c.Tables, *exportOut)
	}
	if err != nil {
		stop()
		log.Fatal(err)
	}
}

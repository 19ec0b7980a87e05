package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goopsie/lotrcLevelTools/gameObjs"
	"github.com/goopsie/lotrcLevelTools/levelContainer"
)

var (
	mode       string
	level      string
	inputDir   string
	outputDir  string
	zipOutput  bool
	debug      bool
	verbose    bool
	noCompress bool
	help       bool
)

var modes = []string{"extract", "build", "convert", "verify", "jsonobjs"}

func init() {
	flag.StringVar(&mode, "mode", "", "One of 'extract', 'build', 'convert', 'verify' or 'jsonobjs'")
	flag.StringVar(&level, "level", "", "Path of the level without extension, e.g. Levels/Minas_Tirith (reads Minas_Tirith.PAK & Minas_Tirith.BIN)")
	flag.StringVar(&inputDir, "inputDir", "", "Path of directory containing modified files (same structure as '-mode extract' output)")
	flag.StringVar(&outputDir, "outputDir", "", "Path of directory to place extracted files or the rebuilt level")
	flag.BoolVar(&zipOutput, "zip", false, "Extract into <outputDir>/<level>.zip instead of a directory tree")
	flag.BoolVar(&debug, "debug", false, "Write zstd snapshots of every decompressed block to ./debug")
	flag.BoolVar(&verbose, "verbose", false, "Log every record as it is read and written")
	flag.BoolVar(&noCompress, "nocompress", false, "Store blocks and blobs uncompressed when saving")
	flag.BoolVar(&help, "help", false, "Print usage")
	flag.Parse()

	if help || len(os.Args) == 1 || mode == "" || level == "" {
		flag.Usage()
		os.Exit(1)
	}

	valid := false
	for _, m := range modes {
		valid = valid || m == mode
	}
	if !valid {
		fmt.Println("mode must be one of 'extract', 'build', 'convert', 'verify' or 'jsonobjs'")
		flag.Usage()
		os.Exit(1)
	}

	if mode != "verify" && outputDir == "" {
		fmt.Printf("'%s' must be used in conjunction with '-outputDir'\n", mode)
		flag.Usage()
		os.Exit(1)
	}

	if mode == "build" && inputDir == "" {
		fmt.Println("'build' must be used in conjunction with '-inputDir'")
		flag.Usage()
		os.Exit(1)
	}
}

func options() levelContainer.Options {
	opts := levelContainer.DefaultOptions()
	opts.Compress = !noCompress
	opts.Verbose = verbose
	if debug {
		opts.SnapshotDir = "./debug"
	}
	return opts
}

func main() {
	pakPath, binPath := levelContainer.Paths(level)

	if mode == "verify" {
		pak, err := os.ReadFile(pakPath)
		if err != nil {
			fmt.Println("Failed to open level, check level path")
			return
		}
		bin, err := os.ReadFile(binPath)
		if err != nil {
			fmt.Println("Failed to open level data, check level path")
			return
		}
		d, err := levelContainer.DigestFiles(pak, bin)
		if err != nil {
			fmt.Println("Error reading level: ", err)
			os.Exit(1)
		}
		fmt.Printf("%s: %d asset blobs, digest %016x\n", filepath.Base(level), len(d.Assets), d.Total)
		diffs, err := levelContainer.Verify(pak, bin, options())
		if err != nil {
			fmt.Println("Error verifying level: ", err)
			os.Exit(1)
		}
		for _, diff := range diffs {
			fmt.Println("differs:", diff)
		}
		if len(diffs) != 0 {
			os.Exit(1)
		}
		fmt.Println("rebuilt level matches")
		return
	}

	l, err := levelContainer.Load(pakPath, binPath, options())
	if err != nil {
		fmt.Println("Error loading level: ", err)
		os.Exit(1)
	}
	name := filepath.Base(level)

	switch mode {
	case "extract":
		if zipOutput {
			if err := os.MkdirAll(outputDir, 0777); err != nil {
				fmt.Println(err)
				return
			}
			err = l.ExtractZip(filepath.Join(outputDir, name+".zip"))
		} else {
			err = l.Extract(filepath.Join(outputDir, name))
		}
		if err != nil {
			fmt.Println("Error extracting level: ", err)
			os.Exit(1)
		}
	case "build":
		if err := l.Import(inputDir); err != nil {
			fmt.Println("Error importing files: ", err)
			os.Exit(1)
		}
		if err := save(l, name); err != nil {
			fmt.Println("Error writing level: ", err)
			os.Exit(1)
		}
	case "convert":
		l.ConvertToLittle()
		if err := save(l, name); err != nil {
			fmt.Println("Error writing level: ", err)
			os.Exit(1)
		}
	case "jsonobjs":
		b, _ := l.SubBlocks1.Block(gameObjs.LevelKey)
		objs, ok := b.(*gameObjs.GameObjs)
		if !ok {
			fmt.Println("Level has no decodable game objects")
			return
		}
		jBytes, err := objs.MarshalJSON()
		if err != nil {
			fmt.Println("Error writing game objects: ", err)
			os.Exit(1)
		}
		if err := os.MkdirAll(outputDir, 0777); err != nil {
			fmt.Println(err)
			return
		}
		if err := os.WriteFile(filepath.Join(outputDir, name+"_objs.json"), jBytes, 0777); err != nil {
			fmt.Println(err)
		}
	}
}

func save(l *levelContainer.Level, name string) error {
	if err := os.MkdirAll(outputDir, 0777); err != nil {
		return err
	}
	pakPath, binPath := levelContainer.Paths(filepath.Join(outputDir, name))
	fmt.Printf("Writing %s & %s\n", pakPath, binPath)
	return l.Save(pakPath, binPath)
}

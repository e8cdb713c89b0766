package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"gridworld.ai/internal/dataset/logfix"
	"gridworld.ai/internal/sim/tuning"
)

func main() {
	var (
		outDir  = flag.String("out", "", "write repaired logs under this directory")
		inPlace = flag.Bool("in-place", false, "rewrite logs in place (required when -out is empty)")
		pattern = flag.String("pattern", "*.log", "file name pattern matched when walking directories")
	)
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: fixlog (-out dir | -in-place) [-pattern glob] <file|dir>...")
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := log.New(os.Stdout, "[fixlog] ", log.LstdFlags|log.Lmicroseconds)
	_ = godotenv.Load(".env")

	roots := flag.Args()
	if len(roots) == 0 {
		if v := strings.TrimSpace(os.Getenv(tuning.EnvRawDir)); v != "" {
			roots = []string{v}
		}
	}
	if len(roots) == 0 || (*outDir == "") == !*inPlace {
		flag.Usage()
		os.Exit(2)
	}

	var total logfix.Stats
	files, skipped, failed := 0, 0, 0
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || strings.HasSuffix(d.Name(), logfix.MarkerSuffix) {
				return nil
			}
			if path != root {
				if ok, _ := filepath.Match(*pattern, d.Name()); !ok {
					return nil
				}
			}
			dst := path
			if *outDir != "" {
				rel, err := filepath.Rel(root, path)
				if err != nil || rel == "." {
					rel = d.Name()
				}
				dst = filepath.Join(*outDir, filepath.Base(root), rel)
			}
			st, err := logfix.RepairFile(path, dst)
			if errors.Is(err, logfix.ErrAlreadyRepaired) {
				skipped++
				logger.Printf("%s: already repaired, skipping", path)
				return nil
			}
			if err != nil {
				failed++
				logger.Printf("%s: %v", path, err)
				return nil
			}
			files++
			total.Lines += st.Lines
			total.BlockChanges += st.BlockChanges
			total.Fixed += st.Fixed
			total.Unparsed += st.Unparsed
			return nil
		})
		if err != nil {
			logger.Fatalf("walk %s: %v", root, err)
		}
	}
	logger.Printf("files=%d skipped=%d failed=%d lines=%d block_changes=%d fixed=%d unparsed=%d",
		files, skipped, failed, total.Lines, total.BlockChanges, total.Fixed, total.Unparsed)
	if failed > 0 {
		os.Exit(1)
	}
}

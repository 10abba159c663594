package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mcdev12/wordduel/go/internal/dbconfig"
	"github.com/mcdev12/wordduel/go/internal/words"
)

func main() {
	lang := flag.String("lang", "en", "language code of the words")
	file := flag.String("file", "", "word file, one word per line; empty seeds the embedded lists")
	flag.Parse()

	// 1) Collect the words
	batches, err := collect(*lang, *file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read words: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	ctx := context.Background()
	cfg := dbconfig.NewConfigFromEnv()
	src, err := words.NewPostgresSource(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer src.Close()

	// 3) Upsert and count
	var total, inserted, skipped int
	for _, batch := range batches {
		total += len(batch)
		in, sk, err := src.Seed(ctx, *lang, batch)
		inserted += in
		skipped += sk
		if err != nil {
			fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
			os.Exit(1)
		}
	}

	// 4) Print summary
	fmt.Printf("Words seed complete: %d total, %d inserted, %d skipped\n", total, inserted, skipped)
}

func collect(lang, path string) ([][]string, error) {
	if path == "" {
		var batches [][]string
		for _, n := range []int{4, 5, 6} {
			list, err := words.List(lang, n)
			if err != nil {
				continue
			}
			batches = append(batches, list)
		}
		if len(batches) == 0 {
			return nil, fmt.Errorf("no embedded lists for %q", lang)
		}
		return batches, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var list []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		w := strings.ToLower(strings.TrimSpace(sc.Text()))
		if w == "" || strings.HasPrefix(w, "#") {
			continue
		}
		list = append(list, w)
	}
	return [][]string{list}, sc.Err()
}

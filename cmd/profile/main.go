// Command profile runs schema discovery over data files and prints the
// inferred field metadata without executing the rest of the pipeline.
//
// This is intended for quickly inspecting a new dataset: which columns it
// has, their inferred types, completeness, and which fields the knowledge
// base already knows about.
//
// Output modes
//
//   - Default mode: prints a per-field text report to stdout.
//   - JSON mode (-json): prints the full field metadata as JSON, suitable
//     for scripting or diffing against a previous run.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"insight/internal/dataset"
	"insight/internal/discovery"
	"insight/internal/knowledge"
)

func main() {
	var (
		kbPath  string
		asJSON  bool
		verbose bool
	)

	flag.StringVar(&kbPath, "kb", "configs/knowledge_base.yaml", "knowledge base YAML path")
	flag.BoolVar(&asJSON, "json", false, "emit field metadata as JSON")
	flag.BoolVar(&verbose, "v", false, "enable verbose logs")
	flag.Parse()

	paths := flag.Args()
	if len(paths) == 0 {
		fatalf("usage: profile [-kb path] [-json] <data files>")
	}

	sources, err := dataset.OpenAll(paths)
	if err != nil {
		fatalf("open sources: %v", err)
	}

	kb, err := knowledge.Load(kbPath)
	if err != nil {
		log.Printf("knowledge: %v; using defaults", err)
		kb = knowledge.Default()
	}

	var logger discovery.Logger
	if verbose {
		logger = log.Default()
	}

	res, err := discovery.NewEngine(kb, logger).Discover(context.Background(), sources...)
	if err != nil {
		fatalf("discover: %v", err)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res.Fields.All()); err != nil {
			fatalf("encode: %v", err)
		}
		return
	}

	fmt.Printf("rows=%d quality=%.2f confidence=%.2f\n",
		res.Dataset.Len(), res.DataQualityScore, res.Confidence)
	fmt.Printf("known=%d new=%d excluded=%s\n\n",
		len(res.KnownFields), len(res.NewFields), strings.Join(res.ExcludedColumns, ","))

	for _, name := range res.Fields.Names() {
		m, _ := res.Fields.Get(name)
		fmt.Printf("%-28s %-12s tier=%d completeness=%.2f unique=%d\n",
			m.Name, m.DataType, m.ImportanceTier, m.Completeness, m.UniqueValues)
		if m.BusinessPurpose != "" {
			fmt.Printf("%-28s   %s\n", "", m.BusinessPurpose)
		}
	}
	if len(res.Insights.NewFields) > 0 {
		fmt.Printf("\n%d field(s) not yet in the knowledge base; run a pipeline session and kbapply to curate them\n",
			len(res.Insights.NewFields))
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

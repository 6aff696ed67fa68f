package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"insight/internal/knowledge"
)

// main is the entry point for the knowledge curation binary. It collects the
// learning insights written by past pipeline sessions, previews the pending
// changes, and on -apply merges them into the knowledge base YAML (keeping a
// timestamped backup) and archives the processed artifacts.
func main() {
	var (
		kbPath       string
		sessionsRoot string
		apply        bool
	)

	flag.StringVar(&kbPath, "kb", "configs/knowledge_base.yaml", "knowledge base YAML path")
	flag.StringVar(&sessionsRoot, "sessions", "analysis_sessions", "session artifact directory to scan")
	flag.BoolVar(&apply, "apply", false, "apply the merged insights (default previews only)")
	flag.Parse()

	paths, err := filepath.Glob(filepath.Join(sessionsRoot, "session_*", "learning_insights_*.json"))
	if err != nil {
		fatalf("scan sessions: %v", err)
	}
	if len(paths) == 0 {
		fmt.Println("no pending learning insights")
		return
	}

	var batches []knowledge.Insights
	var readable []string
	for _, p := range paths {
		raw, err := os.ReadFile(p)
		if err != nil {
			log.Printf("skip %s: %v", p, err)
			continue
		}
		var in knowledge.Insights
		if err := json.Unmarshal(raw, &in); err != nil {
			log.Printf("skip %s: %v", p, err)
			continue
		}
		batches = append(batches, in)
		readable = append(readable, p)
	}

	merged := knowledge.Merge(batches)
	if merged.Empty() {
		fmt.Println("no pending learning insights")
		return
	}

	fmt.Printf("pending insights from %d session(s):\n", len(readable))
	for _, f := range merged.NewFields {
		fmt.Printf("  new field  %-28s %-12s tier=%d completeness=%.2f  %s\n",
			f.Name, f.DataType, f.SuggestedTier, f.Completeness, f.SuggestedPurpose)
	}
	for _, s := range merged.UpdatedStatistics {
		fmt.Printf("  drift      %-28s completeness %.2f -> %.2f\n",
			s.Name, s.OldCompleteness, s.NewCompleteness)
	}

	if !apply {
		fmt.Println("\nrun with -apply to merge into the knowledge base")
		return
	}

	kb, err := knowledge.Load(kbPath)
	if err != nil {
		log.Printf("knowledge: %v; starting from defaults", err)
		kb = knowledge.Default()
	}

	now := time.Now()
	touched := kb.Apply(merged, now)
	if err := kb.Save(kbPath, now.Format("20060102_150405")); err != nil {
		fatalf("save knowledge base: %v", err)
	}
	fmt.Printf("applied %d field change(s) to %s\n", touched, kbPath)

	archive := filepath.Join(sessionsRoot, "processed")
	if err := os.MkdirAll(archive, 0o755); err != nil {
		fatalf("create archive dir: %v", err)
	}
	for _, p := range readable {
		dest := filepath.Join(archive, filepath.Base(p))
		if err := os.Rename(p, dest); err != nil {
			log.Printf("archive %s: %v", p, err)
		}
	}
	fmt.Printf("archived %d artifact(s) to %s\n", len(readable), archive)
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

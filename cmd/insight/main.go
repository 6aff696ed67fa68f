package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"insight/internal/completion"
	"insight/internal/config"
	"insight/internal/dataset"
	"insight/internal/knowledge"
	"insight/internal/metrics"
	"insight/internal/metrics/datadog"
	"insight/internal/pipeline"
	"insight/internal/session"
	"insight/internal/storage"

	// register all backends with the storage factory.
	_ "insight/internal/storage/mssql"
	_ "insight/internal/storage/postgres"
	_ "insight/internal/storage/sqlite"
)

// main is the entry point for the insight binary. It loads the run config,
// applies flag overrides, wires the knowledge base, completion client,
// storage backend and metrics, then runs one pipeline session.
func main() {
	var (
		cfgPath           string
		questionFlg       string
		dataFlg           string
		kbPath            string
		sessionsRoot      string
		storageKind       string
		storageDSN        string
		storageTable      string
		metricsBackendFlg string
		modelFlg          string
		noLLM             bool
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "", "run config JSON path (flags override its fields)")
	flag.StringVar(&questionFlg, "question", "", "business question to answer")
	flag.StringVar(&dataFlg, "data", "", "comma-separated data file paths (.csv or .html)")
	flag.StringVar(&kbPath, "kb", "configs/knowledge_base.yaml", "knowledge base YAML path")
	flag.StringVar(&sessionsRoot, "sessions", "analysis_sessions", "session artifact directory (empty disables artifacts)")
	flag.StringVar(&storageKind, "storage", "", fmt.Sprintf("storage backend for selected rows (%s; empty disables)", strings.Join(storage.Kinds(), ", ")))
	flag.StringVar(&storageDSN, "dsn", "", "storage DSN")
	flag.StringVar(&storageTable, "table", "", "storage table name (default "+storage.DefaultTable+")")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use (datadog, none)")
	flag.StringVar(&modelFlg, "model", "", "completion model name or alias (default "+completion.DefaultModel()+")")
	flag.BoolVar(&noLLM, "no-llm", false, "skip the completion service and generate the narrative locally")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	var run config.Run
	if cfgPath != "" {
		var err error
		run, err = config.Load(cfgPath)
		if err != nil {
			fatalf("%v", err)
		}
	}

	// Flag and positional overrides.
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["question"] {
		run.Question = questionFlg
	}
	if set["data"] {
		run.Data = strings.Split(dataFlg, ",")
	}
	run.Data = append(run.Data, flag.Args()...)
	if set["kb"] || run.KnowledgeBase == "" {
		run.KnowledgeBase = kbPath
	}
	if set["sessions"] || (run.SessionsDir == "" && cfgPath == "") {
		run.SessionsDir = sessionsRoot
	}
	if set["storage"] {
		run.Storage.Kind = storageKind
	}
	if set["dsn"] {
		run.Storage.DSN = storageDSN
	}
	if set["table"] {
		run.Storage.Table = storageTable
	}
	if set["metrics-backend"] {
		run.MetricsBackend = metricsBackendFlg
	}
	if set["model"] {
		run.Model = modelFlg
	}
	if set["no-llm"] {
		run.NoLLM = noLLM
	}
	if run.Model == "" {
		run.Model = completion.DefaultModel()
	}

	issues := config.ValidateRun(run)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasError(issues) {
		fatalf("configuration is invalid")
	}
	if validate {
		log.Printf("configuration is valid")
		return
	}

	sources, err := dataset.OpenAll(run.Data)
	if err != nil {
		fatalf("open sources: %v", err)
	}

	// Knowledge base: a missing or broken file falls back to the built-in
	// defaults so the pipeline still runs.
	kb, err := knowledge.Load(run.KnowledgeBase)
	if err != nil {
		log.Printf("knowledge: %v; using defaults", err)
		kb = knowledge.Default()
	}

	// Decide metrics backend: config/flag → env → default.
	backendName := run.MetricsBackend
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "datadog":
		extraTags := datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))
		b, err := datadog.NewBackend(context.Background(), datadog.Options{
			Tags:       extraTags,
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
		} else {
			if *verbose {
				log.Printf("metrics: backend=%v tags=%v", backendName, extraTags)
			}
			metrics.SetBackend(b)
			defer func() {
				if err := b.Close(); err != nil {
					log.Printf("metrics: datadog close/flush error: %v", err)
				}
			}()
		}
	case "", "none":
		// metrics disabled; nop backend remains
	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	ctx := context.Background()
	start := time.Now()

	opts := pipeline.Options{
		Knowledge: kb,
		Model:     run.Model,
	}
	if *verbose {
		opts.Log = log.Default()
	}

	if !run.NoLLM {
		if os.Getenv("ANTHROPIC_API_KEY") == "" {
			log.Printf("completion: ANTHROPIC_API_KEY not set; generating narrative locally")
		} else {
			spec := completion.LookupModel(run.Model)
			opts.Model = spec.Name
			opts.Completion = completion.NewAnthropic(spec.Name, opts.Log)
		}
	}

	if run.SessionsDir != "" {
		store, err := session.Open(run.SessionsDir, start)
		if err != nil {
			fatalf("open session store: %v", err)
		}
		opts.Artifacts = store
	}

	if run.Storage.Kind != "" {
		repo, err := storage.New(ctx, storage.Config{
			Kind:  run.Storage.Kind,
			DSN:   run.Storage.DSN,
			Table: run.Storage.Table,
		})
		if err != nil {
			fatalf("open storage: %v", err)
		}
		defer repo.Close()
		opts.Repo = repo
	}

	sess := pipeline.NewRunner(opts).Run(ctx, run.Question, sources...)

	fmt.Println(sess.Output.Text)
	if opts.Artifacts != nil {
		fmt.Fprintf(os.Stderr, "session artifacts: %s\n", opts.Artifacts.Dir())
	}
	if *verbose {
		log.Printf("completed in %s tokens=%d cost=%.6f",
			time.Since(start).Truncate(time.Millisecond), sess.Usage.Total(), sess.EstimatedCost)
	}
	if !sess.Success {
		os.Exit(1)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

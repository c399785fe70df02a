// Command duesdesk operates the fee, refund and no-due clearance records:
// seeding, listing, lifecycle actions, receipts, CSV exports and the console
// server.
package main

import (
	"context"
	"duesdesk/internal/adapters/console"
	"duesdesk/internal/adapters/reports"
	"duesdesk/internal/blob"
	"duesdesk/internal/config"
	"duesdesk/internal/core"
	"duesdesk/internal/platform/logging"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

var exitFunc = os.Exit

const usage = `usage: duesdesk [-config path] <command> [args]

commands:
  seed                     load the sample dataset when the store is empty
  stats                    print dashboard statistics
  students [search] [page] list one page of students matching search
  refunds [tab]            list refund applications (pending|approved|rejected|paid|all)
  approve <id>             approve a pending refund
  reject <id> <reason>     reject a pending refund
  pay <id>                 mark an approved refund as paid
  clear <appId> <gate>     clear a no-due gate (library|hostel|accounts|department|examCell)
  receipt <json-file>      record a fee payment
  export defaulters|refunds [tab]
                           write a CSV report to stdout
  archive list [receipts|reports]
                           list archived objects with download links
  archive get <receiptNo>  print an archived receipt
  serve                    seed an empty store, then run the console HTTP server
`

func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("duesdesk", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := fs.String("config", config.DefaultPath, "path to configuration yaml")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "duesdesk: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "duesdesk: %v\n", err)
		return 1
	}
	defer func() {
		if cerr := a.close(); cerr != nil {
			a.logger.Warn().Err(cerr).Msg("close storage")
		}
	}()

	if err := a.dispatch(ctx, rest[0], rest[1:], stdout); err != nil {
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprintf(stderr, "duesdesk: %v\n\n%s", err, usage)
			return 2
		}
		fmt.Fprintf(stderr, "duesdesk: %v\n", err)
		return 1
	}
	return 0
}

type usageError string

func (e usageError) Error() string { return string(e) }

type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	svc      *core.Service
	exporter *reports.Exporter
	archive  *reports.Archiver
	registry *prometheus.Registry
	close    func() error
}

func newApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (*app, error) {
	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: logOut})
	if err != nil {
		return nil, err
	}

	kv, closeKV, err := core.OpenKVStore(ctx, cfg.StorageConfig())
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	store, err := blob.Open(ctx, cfg.BlobConfig())
	if err != nil {
		_ = closeKV()
		return nil, fmt.Errorf("open archive: %w", err)
	}
	archive := reports.NewArchiver(store)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promMetrics, err := core.NewPrometheusMetricsRecorder(registry)
	if err != nil {
		_ = closeKV()
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	opts := []core.ServiceOption{
		core.WithLogger(logging.NewAdapter(logger)),
		core.WithMetricsRecorder(core.MultiMetricsRecorder{promMetrics, core.NewExpvarMetricsRecorder("")}),
		core.WithActor(cfg.Actor),
		core.WithDepartments(cfg.Departments),
		core.WithReceiptArchive(archive),
	}
	if cfg.Logging.Trace {
		opts = append(opts, core.WithTracer(core.NewJSONTracer(logOut)))
	}
	if cfg.Logging.Audit {
		opts = append(opts, core.WithAuditRecorder(logging.NewAuditLogger(logger)))
	}
	svc := core.NewService(kv, opts...)

	logger.Debug().
		Str("storage", cfg.Storage.Driver).
		Str("blob", string(store.Driver())).
		Msg("duesdesk initialised")

	return &app{
		cfg:      cfg,
		logger:   logger,
		svc:      svc,
		exporter: reports.NewExporter(svc, archive),
		archive:  archive,
		registry: registry,
		close:    closeKV,
	}, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func argID(args []string, i int, name string) (int, error) {
	if len(args) <= i {
		return 0, usageError("missing " + name)
	}
	id, err := strconv.Atoi(args[i])
	if err != nil || id < 1 {
		return 0, usageError("invalid " + name + " " + strconv.Quote(args[i]))
	}
	return id, nil
}

type mutationOutput struct {
	Record   any      `json:"record"`
	Warnings []string `json:"warnings,omitempty"`
}

func mutationResult(record any, result core.Result) mutationOutput {
	out := mutationOutput{Record: record}
	for _, v := range result.Violations {
		out.Warnings = append(out.Warnings, v.Message)
	}
	return out
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string, stdout io.Writer) error {
	switch cmd {
	case "seed":
		seeded, err := a.svc.Seed(ctx)
		if err != nil {
			return err
		}
		if seeded {
			fmt.Fprintln(stdout, "Sample data loaded.")
		} else {
			fmt.Fprintln(stdout, "Store already populated; nothing loaded.")
		}
		return nil

	case "stats":
		return writeJSON(stdout, a.svc.DashboardStats(ctx))

	case "students":
		var filter core.StudentFilter
		if len(args) > 0 {
			filter.Search = args[0]
		}
		page := 1
		if len(args) > 1 {
			n, err := argID(args, 1, "page")
			if err != nil {
				return err
			}
			page = n
		}
		return writeJSON(stdout, a.svc.ListStudents(ctx, filter, page, a.cfg.PageSize))

	case "refunds":
		tab := core.FilterAll
		if len(args) > 0 {
			tab = args[0]
		}
		return writeJSON(stdout, a.svc.RefundApplications(ctx, tab))

	case "approve", "pay":
		id, err := argID(args, 0, "refund id")
		if err != nil {
			return err
		}
		var (
			refund core.DRCCApplication
			result core.Result
		)
		if cmd == "approve" {
			refund, result, err = a.svc.ApproveRefund(ctx, id)
		} else {
			refund, result, err = a.svc.MarkRefundPaid(ctx, id)
		}
		if err != nil {
			return err
		}
		return writeJSON(stdout, mutationResult(refund, result))

	case "reject":
		id, err := argID(args, 0, "refund id")
		if err != nil {
			return err
		}
		if len(args) < 2 {
			return usageError("missing rejection reason")
		}
		refund, result, err := a.svc.RejectRefund(ctx, id, args[1])
		if err != nil {
			return err
		}
		return writeJSON(stdout, mutationResult(refund, result))

	case "clear":
		id, err := argID(args, 0, "application id")
		if err != nil {
			return err
		}
		if len(args) < 2 {
			return usageError("missing gate")
		}
		clearance, result, err := a.svc.MarkCleared(ctx, id, core.Gate(args[1]))
		if err != nil {
			return err
		}
		return writeJSON(stdout, mutationResult(clearance, result))

	case "receipt":
		if len(args) < 1 {
			return usageError("missing payment json file")
		}
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read payment: %w", err)
		}
		var input core.PaymentInput
		if err := json.Unmarshal(raw, &input); err != nil {
			return fmt.Errorf("decode payment: %w", err)
		}
		receipt, err := a.svc.RecordPayment(ctx, input)
		if err != nil {
			return err
		}
		return writeJSON(stdout, receipt)

	case "export":
		if len(args) < 1 {
			return usageError("missing report name")
		}
		var (
			report reports.Report
			err    error
		)
		switch args[0] {
		case "defaulters":
			report, err = a.exporter.Defaulters(ctx)
		case "refunds":
			tab := core.FilterAll
			if len(args) > 1 {
				tab = args[1]
			}
			report, err = a.exporter.Refunds(ctx, tab)
		default:
			return usageError("unknown report " + strconv.Quote(args[0]))
		}
		if err != nil && report.Data == nil {
			return err
		}
		if err != nil {
			a.logger.Warn().Err(err).Str("report", report.Name).Msg("report archive failed")
		} else {
			a.logger.Info().Str("key", report.ArchiveKey).Int("rows", report.Rows).Msg("report archived")
		}
		_, err = stdout.Write(report.Data)
		return err

	case "archive":
		if len(args) < 1 {
			return usageError("missing archive action")
		}
		switch args[0] {
		case "list":
			prefix := ""
			if len(args) > 1 {
				switch args[1] {
				case "receipts":
					prefix = reports.PrefixReceipts
				case "reports":
					prefix = reports.PrefixReports
				default:
					return usageError("unknown archive section " + strconv.Quote(args[1]))
				}
			}
			entries, err := a.archive.List(ctx, prefix)
			if err != nil {
				return err
			}
			return writeJSON(stdout, entries)
		case "get":
			if len(args) < 2 {
				return usageError("missing receipt number")
			}
			receipt, err := a.archive.Receipt(ctx, args[1])
			if err != nil {
				return err
			}
			return writeJSON(stdout, receipt)
		}
		return usageError("unknown archive action " + strconv.Quote(args[0]))

	case "serve":
		seeded, err := a.svc.Seed(ctx)
		if err != nil {
			return err
		}
		if seeded {
			a.logger.Info().Msg("sample data loaded")
		}
		router := console.NewRouter(console.Dependencies{
			Service:   a.svc,
			Exporter:  a.exporter,
			Archive:   a.archive,
			Gatherer:  a.registry,
			DebugVars: true,
			Logger:    a.logger,
			PageSize:  a.cfg.PageSize,
		})
		return console.NewServer(a.cfg.Console.Addr, router, a.logger).Run(ctx)
	}
	return usageError("unknown command " + strconv.Quote(cmd))
}

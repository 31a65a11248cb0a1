package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"reconboard/internal/client"
	"reconboard/internal/domain"
	"reconboard/internal/excel"
	"reconboard/internal/logger"
)

type report struct {
	BackendOnline bool                    `json:"backendOnline"`
	Source        domain.DataSource       `json:"source"`
	FallbackError string                  `json:"fallbackError,omitempty"`
	Stats         domain.ImportStats      `json:"stats"`
	RecordCount   int                     `json:"recordCount"`
	Filtered      int                     `json:"filtered"`
	Metrics       domain.DashboardMetrics `json:"metrics"`
	Export        string                  `json:"export,omitempty"`
}

func main() {
	backend := flag.String("backend", "http://localhost:8080", "Base URL of the reconciliation backend")
	taobaoPath := flag.String("taobao", "", "Path to the Taobao order export (.csv/.xlsx/.xls)")
	jdPath := flag.String("jd", "", "Path to the JD order export (.csv/.xlsx/.xls)")
	bankPath := flag.String("bank", "", "Path to the bank/payment flow statement (.csv/.xlsx/.xls)")
	exportPath := flag.String("export", "", "Write the filtered records to this file")
	format := flag.String("format", "csv", "Export format: csv or xlsx")
	platformRaw := flag.String("platform", "", "Filter by platform: TB, JD or empty for all")
	statusRaw := flag.String("status", "", "Filter by status: NORMAL, MISMATCH, MISSING_PAYMENT or empty for all")
	search := flag.String("q", "", "Filter by order id substring")
	logLevel := flag.String("log-level", "warn", "Log level")
	flag.Parse()

	log := logger.New(logger.Config{Env: "development", Level: *logLevel, Out: os.Stderr})

	if *taobaoPath == "" && *jdPath == "" && *bankPath == "" {
		fmt.Fprintln(os.Stderr, "Error: at least one of -taobao, -jd or -bank is required.")
		flag.Usage()
		os.Exit(1)
	}

	platform, ok := domain.ParsePlatform(*platformRaw)
	if !ok {
		log.Fatal().Str("platform", *platformRaw).Msg("invalid platform")
	}
	status, ok := domain.ParseStatus(*statusRaw)
	if !ok {
		log.Fatal().Str("status", *statusRaw).Msg("invalid status")
	}
	filter := domain.RecordFilter{Platform: platform, Status: status, Search: *search}

	files, closeAll, err := openFiles(*taobaoPath, *jdPath, *bankPath)
	if err != nil {
		log.Fatal().Err(err).Msg("open input")
	}
	defer closeAll()

	ctx := context.Background()
	c := client.New(*backend, client.Options{Logger: log})
	online := c.CheckHealth(ctx)

	res, err := c.Upload(ctx, files)
	if err != nil {
		closeAll()
		log.Fatal().Err(err).Msg("upload rejected")
	}

	records := domain.FilterRecords(res.Response.Records, filter)
	out := report{
		BackendOnline: online,
		Source:        res.Source,
		Stats:         res.Response.Stats,
		RecordCount:   len(res.Response.Records),
		Filtered:      len(records),
		Metrics:       res.Response.Metrics,
	}
	if res.Err != nil {
		out.FallbackError = res.Err.Error()
	}

	if *exportPath != "" {
		if err := writeExport(*exportPath, *format, records); err != nil {
			closeAll()
			log.Fatal().Err(err).Msg("export failed")
		}
		out.Export = *exportPath
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		closeAll()
		log.Fatal().Err(err).Msg("write report")
	}
}

func openFiles(taobao, jd, bank string) (client.Files, func(), error) {
	var (
		files  client.Files
		opened []*os.File
	)
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
		opened = nil
	}

	for _, in := range []struct {
		path   string
		target **client.File
	}{
		{taobao, &files.Taobao},
		{jd, &files.JD},
		{bank, &files.Bank},
	} {
		if in.path == "" {
			continue
		}
		f, err := os.Open(in.path)
		if err != nil {
			closeAll()
			return client.Files{}, nil, fmt.Errorf("open %s: %w", in.path, err)
		}
		opened = append(opened, f)
		info, err := f.Stat()
		if err != nil {
			closeAll()
			return client.Files{}, nil, fmt.Errorf("stat %s: %w", in.path, err)
		}
		*in.target = &client.File{Name: filepath.Base(in.path), Size: info.Size(), Reader: f}
	}
	return files, closeAll, nil
}

func writeExport(path, format string, records []domain.OrderRecord) error {
	var write func(io.Writer, []domain.OrderRecord) error
	switch strings.ToLower(format) {
	case "csv":
		write = excel.WriteCSV
	case "xlsx":
		write = excel.WriteXLSX
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f, records); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

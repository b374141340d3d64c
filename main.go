package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/ontoloji/Sif-to-blf/config"
	"github.com/ontoloji/Sif-to-blf/dbc"
	"github.com/ontoloji/Sif-to-blf/logger"
	"github.com/ontoloji/Sif-to-blf/models"
	"github.com/ontoloji/Sif-to-blf/processor"
	"github.com/ontoloji/Sif-to-blf/reader/sif"
	"github.com/ontoloji/Sif-to-blf/writer"
)

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	var dbcPaths stringList
	flag.Var(&dbcPaths, "dbc", "Signal database file (repeatable)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] input.sif output.blf\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}
	input, output := flag.Arg(0), flag.Arg(1)

	cfg := loadConfig(log, *configPath)

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	runID := uuid.NewString()
	log.WithFields(logger.Fields{
		"service": cfg.Converter.Name,
		"version": cfg.Converter.Version,
		"run_id":  runID,
		"input":   input,
		"output":  output,
	}).Info("starting conversion")

	db := loadDatabases(log, append(cfg.Databases.Paths, dbcPaths...))

	rec, err := sif.ParseFile(input, sif.Options{
		BoundaryWindow:    cfg.Reader.BoundaryWindow,
		BoundaryThreshold: cfg.Reader.BoundaryThreshold,
	})
	if err != nil {
		log.WithComponent("sif").WithError(err).Error("Failed to parse recording")
		os.Exit(1)
	}
	log.WithComponent("sif").WithFields(logger.Fields{
		"tce_version":  rec.TCEVersion,
		"file_version": rec.FileVersion,
		"interfaces":   len(rec.Interfaces),
		"channels":     len(rec.Channels),
		"binary_bytes": len(rec.BinaryData()),
	}).Info("recording parsed")

	names := make([]string, len(rec.Channels))
	displayNames := make(map[string]string, len(rec.Channels))
	for i, ch := range rec.Channels {
		names[i] = ch.Name
		displayNames[ch.Name] = ch.QualifiedName()
	}

	mapping := processor.NewMapper(db).MapChannels(names)

	tw, err := writer.NewTraceWriter(output, cfg.Writer.ApplicationID)
	if err != nil {
		log.WithComponent("trace_writer").WithError(err).Error("Failed to open output")
		os.Exit(1)
	}

	asm := processor.NewAssembler(mapping, tw, processor.AssemblerOptions{
		ChannelIndex: cfg.Writer.ChannelIndex,
		NumericAll:   cfg.Writer.NumericChannels == config.NumericAll,
		DisplayNames: displayNames,
	})

	stream := rec.Samples()
	log.WithComponent("assembler").WithFields(logger.Fields{
		"points":  stream.Points(),
		"matched": mapping.Matched,
		"total":   mapping.Total,
	}).Info("converting samples")

	for {
		sample, ok := stream.Next()
		if !ok {
			break
		}
		if err := asm.Add(sample); err != nil {
			log.WithComponent("assembler").WithError(err).Error("Conversion aborted")
			tw.Discard()
			os.Exit(1)
		}
	}
	if err := asm.Flush(); err != nil {
		log.WithComponent("assembler").WithError(err).Error("Conversion aborted")
		tw.Discard()
		os.Exit(1)
	}
	if err := tw.Close(); err != nil {
		log.WithComponent("trace_writer").WithError(err).Error("Failed to finalize output")
		tw.Discard()
		os.Exit(1)
	}

	stats := asm.Stats()
	summary := models.ConversionSummary{
		RunID:           runID,
		Input:           input,
		Output:          output,
		ChannelsTotal:   mapping.Total,
		ChannelsMatched: mapping.Matched,
		FramesWritten:   tw.Frames(),
		NumericWritten:  tw.Numeric(),
		ObjectsWritten:  tw.ObjectCount(),
		ObjectBytes:     tw.ObjectBytes(),
		RangeClamped:    stats.RangeClamped,
		DivisionByZero:  stats.DivisionByZero,
	}
	logSummary(log, summary)

	if cfg.Storage.S3.Enabled {
		uploadTrace(log, cfg.Storage.S3, output)
	}
}

func loadConfig(log *logger.Log, path string) *config.Config {
	resolved := config.ResolvePath(path)
	if _, err := os.Stat(resolved); os.IsNotExist(err) {
		log.WithComponent("config").WithFields(logger.Fields{
			"path": resolved,
		}).Warn("no configuration file, using defaults")
		return config.Default()
	}
	cfg, err := config.LoadConfig(resolved)
	if err != nil {
		log.WithComponent("config").WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}
	return cfg
}

// loadDatabases merges every signal database in order. A file that fails
// to parse is skipped so the remaining databases still load.
func loadDatabases(log *logger.Log, paths []string) *dbc.Database {
	db := dbc.NewDatabase()
	if len(paths) == 0 {
		log.WithComponent("dbc").Warn("no signal databases given, numeric samples only")
		return db
	}
	for _, path := range paths {
		if err := db.LoadFile(path); err != nil {
			log.WithComponent("dbc").WithError(err).WithFields(logger.Fields{
				"path": path,
			}).Error("skipping signal database")
			continue
		}
		log.WithComponent("dbc").WithFields(logger.Fields{
			"path":     path,
			"messages": len(db.Messages()),
			"signals":  len(db.SignalRefs()),
		}).Info("signal database loaded")
	}
	return db
}

func logSummary(log *logger.Log, s models.ConversionSummary) {
	entry := log.WithComponent("summary").WithFields(logger.Fields{
		"run_id":           s.RunID,
		"input":            s.Input,
		"output":           s.Output,
		"channels_total":   s.ChannelsTotal,
		"channels_matched": s.ChannelsMatched,
		"frames":           s.FramesWritten,
		"numeric":          s.NumericWritten,
		"objects":          s.ObjectsWritten,
		"object_bytes":     s.ObjectBytes,
		"range_clamped":    s.RangeClamped,
		"division_by_zero": s.DivisionByZero,
	})
	for component, counts := range logger.Counts() {
		entry = entry.WithFields(logger.Fields{
			"warns_" + component:  counts.Warns,
			"errors_" + component: counts.Errors,
		})
	}
	entry.Info("conversion completed")
}

func uploadTrace(log *logger.Log, cfg config.S3Config, path string) {
	ctx := context.Background()
	up, err := writer.NewS3Uploader(ctx, cfg)
	if err != nil {
		log.WithComponent("s3_uploader").WithError(err).Error("Upload skipped")
		return
	}
	if _, err := up.Upload(ctx, path); err != nil {
		log.WithComponent("s3_uploader").WithError(err).Error("Upload failed")
	}
}

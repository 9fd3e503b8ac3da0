// Copyright 2025 RetailNext, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"os/signal"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/alecthomas/kingpin/v2"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
	"golang.org/x/term"

	"librarybackup/backup"
	"librarybackup/bucket"
	"librarybackup/checkpoint"
	"librarybackup/dbdump"
	"librarybackup/digest"
	"librarybackup/manifest"
	"librarybackup/metrics"
	"librarybackup/restore"
	"librarybackup/verify"
)

func setupLogger() func() {
	var logger *zap.Logger
	var err error
	if term.IsTerminal(int(os.Stdin.Fd())) {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(logger)

	return func() {
		_ = logger.Sync()
	}
}

func setupInterruptContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		select {
		case sig := <-c:
			zap.S().Infow("shutting_down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	onExit := func() {
		signal.Stop(c)
		cancel()
	}
	return ctx, onExit
}

func setupProfile() func() {
	if pprofFile == nil || *pprofFile == "" {
		return func() {
		}
	}
	f, err := os.Create(*pprofFile)
	if err != nil {
		panic(err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		panic(err)
	}
	return func() {
		pprof.StopCPUProfile()
		if err := f.Close(); err != nil {
			panic(err)
		}
	}
}

var (
	pprofFile = kingpin.Flag("pprof.cpu.file", "Enable cpu profiling to this file.").String()

	metricsListenAddress = kingpin.Flag("web.listen-address", "Address on which to expose metrics.").String()
	metricsPath          = kingpin.Flag("web.telemetry-path", "Path under which to expose metrics.").Default("/metrics").String()

	bucketName      = kingpin.Flag("bucket", "S3 bucket name.").Envar("BACKUP_BUCKET").Required().String()
	bucketKeyPrefix = kingpin.Flag("key-prefix", "Set the prefix for files in the bucket").Default("/").String()
	s3BucketRegion  = kingpin.Flag("s3-region", "S3 bucket region.").String()
	s3StorageClass  = kingpin.Flag("s3-storage-class", "Set the storage class for files in S3").Default(string(s3types.StorageClassStandardIa)).String()

	manifestFile       = kingpin.Flag("manifest-file", "Local staging location of the manifest database.").Envar("MANIFEST_PATH").Required().String()
	digestAlgorithm    = kingpin.Flag("digest-algorithm", "Content digest algorithm.").Default(string(digest.SHA256)).String()
	checkpointInterval = kingpin.Flag("checkpoint-interval", "How often to push the manifest to the bucket during a run.").Default("5m").Duration()

	dbConfigFile = kingpin.Flag("db-config", "Database connection config file.").Envar("DB_CONFIG").String()
	dbRetention  = kingpin.Flag("db-retention", "Number of database dumps to keep.").Default("14").Int()
)

func parseOptions() (string, bucket.Config) {
	kingpin.UsageTemplate(kingpin.CompactUsageTemplate)
	cmd := kingpin.Parse()

	if *s3BucketRegion == "" {
		*s3BucketRegion = os.Getenv("AWS_REGION")
		if *s3BucketRegion == "" {
			kingpin.Fatalf("required flag --%s not provided", "s3-region")
		}
	}

	return cmd, bucket.Config{
		BucketName:   *bucketName,
		Region:       *s3BucketRegion,
		KeyPrefix:    *bucketKeyPrefix,
		StorageClass: *s3StorageClass,
	}
}

func openBucket(ctx context.Context, cfg bucket.Config) bucket.Client {
	client, err := bucket.NewAWSClient(ctx, cfg)
	if err != nil {
		zap.S().Fatalw("bucket_unavailable", "bucket", cfg.BucketName, "err", err)
	}
	return client
}

func openStore(ctx context.Context, client bucket.Client) *manifest.Store {
	store := manifest.NewStore(*manifestFile, client)
	store.Load(ctx)
	return store
}

func parseAlgorithm() digest.Algorithm {
	algorithm, err := digest.ParseAlgorithm(*digestAlgorithm)
	if err != nil {
		kingpin.Fatalf("%s", err)
	}
	return algorithm
}

func main() {
	cmd, bucketConfig := parseOptions()

	sync := setupLogger()
	defer sync()
	lgr := zap.S()

	stopProfile := setupProfile()
	defer stopProfile()

	metrics.SetupPrometheus(metricsListenAddress, metricsPath)

	if strings.HasPrefix(cmd, "backup ") {
		runBackup(cmd, bucketConfig)
		return
	}

	ctx, onExit := setupInterruptContext()
	defer onExit()

	switch cmd {
	case "restore library":
		client := openBucket(ctx, bucketConfig)
		store := openStore(ctx, client)
		defer closeStore(store)
		if store.Count() == 0 {
			lgr.Fatalw("no_manifest_found", "bucket", bucketConfig.BucketName)
		}
		err := restore.Library(ctx, client, store, restore.LibraryOptionsFromFlags())
		if errors.Is(err, context.Canceled) {
			return
		}
		if err != nil {
			lgr.Fatalw("restore_error", "err", err)
		}
	case "restore database":
		client := openBucket(ctx, bucketConfig)
		dbConfig, err := dbdump.LoadConnectionConfig(*dbConfigFile)
		if err != nil {
			lgr.Fatalw("db_config_error", "err", err)
		}
		err = dbdump.Restore(ctx, client, dbConfig, restore.DatabaseKeyFromFlags())
		if errors.Is(err, context.Canceled) {
			return
		}
		if err != nil {
			lgr.Fatalw("restore_error", "err", err)
		}
	case "verify":
		client := openBucket(ctx, bucketConfig)
		store := openStore(ctx, client)
		defer closeStore(store)
		if store.Count() == 0 {
			lgr.Fatalw("no_manifest_found", "bucket", bucketConfig.BucketName)
		}
		seed := verify.SeedFromFlags()
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng := rand.New(rand.NewSource(seed))
		report, err := verify.Sample(ctx, client, store, verify.SampleSizeFromFlags(), rng)
		if errors.Is(err, context.Canceled) {
			return
		}
		if err != nil {
			lgr.Fatalw("verify_error", "err", err)
		}
		if reportErr := report.Err(); reportErr != nil {
			lgr.Fatalw("verify_failed", "err", reportErr)
		}
	default:
		lgr.Fatalw("unhandled_command", "cmd", cmd)
	}
}

// runBackup wires the checkpoint coordinator between the manifest store
// and the signal handler: a shutdown signal flushes the manifest before
// the run context is canceled.
func runBackup(cmd string, bucketConfig bucket.Config) {
	lgr := zap.S()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := openBucket(ctx, bucketConfig)
	store := openStore(ctx, client)
	defer closeStore(store)

	coordinator := checkpoint.New(store, *checkpointInterval)
	stopSignals := coordinator.NotifySignals(cancel)
	defer stopSignals()
	go coordinator.Run(ctx)

	backupConfig := backup.ConfigFromFlags(parseAlgorithm())

	if cmd == "backup run" || cmd == "backup library" {
		if backupConfig.SourceRoot == "" {
			kingpin.Fatalf("required flag --%s not provided", "source")
		}
		result, err := backup.Do(ctx, client, store, backupConfig)
		if errors.Is(err, context.Canceled) {
			return
		}
		if err != nil {
			lgr.Fatalw("backup_error", "err", err)
		}
		if err := store.Save(ctx, backupConfig.SourceVersion); err != nil {
			// Uploaded files are durable; the next run re-derives the
			// missing manifest state. Only fail the run if nothing was
			// backed up either.
			lgr.Errorw("manifest_save_error", "err", err)
			if !result.Progressed() {
				lgr.Fatalw("backup_made_no_progress", "err", err)
			}
		}
		if len(result.Errors) > 0 && !result.Progressed() {
			lgr.Fatalw("backup_made_no_progress", "errors", result.Errors)
		}
	}

	if cmd == "backup run" || cmd == "backup database" {
		dbConfig, err := dbdump.LoadConnectionConfig(*dbConfigFile)
		if err != nil {
			lgr.Fatalw("db_config_error", "err", err)
		}
		if _, err := dbdump.Dump(ctx, client, dbConfig, backupConfig.SourceVersion); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			lgr.Fatalw("dump_error", "err", err)
		}
		if err := dbdump.Rotate(ctx, client, *dbRetention); err != nil {
			lgr.Errorw("dump_rotation_error", "err", err)
		}
	}
}

func closeStore(store *manifest.Store) {
	if err := store.Close(); err != nil {
		zap.S().Errorw("manifest_close_error", "err", err)
	}
}

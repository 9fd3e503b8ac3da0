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

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "librarybackup"

type pipeline struct {
	DiscoveredFiles prometheus.Counter
	UploadedFiles   prometheus.Counter
	UploadedBytes   prometheus.Counter
	SkippedFiles    prometheus.Counter
	SkippedBytes    prometheus.Counter
	FileErrors      prometheus.Counter
}

type manifest struct {
	Commits     prometheus.Counter
	Flushes     prometheus.Counter
	FlushErrors prometheus.Counter
	Entries     prometheus.Gauge
}

type digest struct {
	FilesTotal   prometheus.Counter
	BytesTotal   prometheus.Counter
	SecondsTotal prometheus.Counter
}

type restore struct {
	DownloadFiles   prometheus.Counter
	DownloadBytes   prometheus.Counter
	DownloadSeconds prometheus.Counter
	DownloadErrors  prometheus.Counter
}

var (
	Pipeline = pipeline{
		DiscoveredFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "discovered_files_total",
			Help:      "Number of files emitted by the discovery walk.",
		}),
		UploadedFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "uploaded_files_total",
			Help:      "Number of files uploaded to the bucket.",
		}),
		UploadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "uploaded_bytes_total",
			Help:      "Total bytes uploaded to the bucket.",
		}),
		SkippedFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "skipped_files_total",
			Help:      "Number of files skipped as unchanged.",
		}),
		SkippedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "skipped_bytes_total",
			Help:      "Total bytes skipped as unchanged.",
		}),
		FileErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "file_errors_total",
			Help:      "Number of per-file errors recorded during backup runs.",
		}),
	}

	Manifest = manifest{
		Commits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "manifest",
			Name:      "commits_total",
			Help:      "Number of manifest commit transactions.",
		}),
		Flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "manifest",
			Name:      "flushes_total",
			Help:      "Number of manifest flushes to the bucket.",
		}),
		FlushErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "manifest",
			Name:      "flush_errors_total",
			Help:      "Number of failed manifest flushes.",
		}),
		Entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "manifest",
			Name:      "entries",
			Help:      "Number of file entries in the manifest.",
		}),
	}

	Digest = digest{
		FilesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "digest",
			Name:      "files_total",
			Help:      "Number of files fingerprinted.",
		}),
		BytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "digest",
			Name:      "bytes_total",
			Help:      "Total bytes fingerprinted.",
		}),
		SecondsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "digest",
			Name:      "seconds_total",
			Help:      "Total time spent fingerprinting.",
		}),
	}

	Restore = restore{
		DownloadFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "restore",
			Name:      "download_files_total",
			Help:      "Number of files downloaded.",
		}),
		DownloadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "restore",
			Name:      "download_bytes_total",
			Help:      "Total bytes downloaded.",
		}),
		DownloadSeconds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "restore",
			Name:      "download_seconds_total",
			Help:      "Total time spent downloading.",
		}),
		DownloadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "restore",
			Name:      "download_errors_total",
			Help:      "Number of failed downloads.",
		}),
	}
)

func init() {
	prometheus.MustRegister(Pipeline.DiscoveredFiles)
	prometheus.MustRegister(Pipeline.UploadedFiles)
	prometheus.MustRegister(Pipeline.UploadedBytes)
	prometheus.MustRegister(Pipeline.SkippedFiles)
	prometheus.MustRegister(Pipeline.SkippedBytes)
	prometheus.MustRegister(Pipeline.FileErrors)
	prometheus.MustRegister(Manifest.Commits)
	prometheus.MustRegister(Manifest.Flushes)
	prometheus.MustRegister(Manifest.FlushErrors)
	prometheus.MustRegister(Manifest.Entries)
	prometheus.MustRegister(Digest.FilesTotal)
	prometheus.MustRegister(Digest.BytesTotal)
	prometheus.MustRegister(Digest.SecondsTotal)
	prometheus.MustRegister(Restore.DownloadFiles)
	prometheus.MustRegister(Restore.DownloadBytes)
	prometheus.MustRegister(Restore.DownloadSeconds)
	prometheus.MustRegister(Restore.DownloadErrors)
}

func SetupPrometheus(listenAddress, path *string) {
	if listenAddress == nil || *listenAddress == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle(*path, promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(*listenAddress, mux); err != nil {
			zap.S().Errorw("metrics_listen_error", "err", err)
		}
	}()
}

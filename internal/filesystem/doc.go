/*
Package filesystem wraps the file reads the service depends on with retries
for stale NFS file handles (ESTALE).

List definition directories and playlist export directories are commonly
network mounts (a Kubernetes ConfigMap or an NFS share next to the media
library). When the server side of such a mount changes, reads can fail once
with ESTALE and succeed on the next attempt. The helpers here retry only that
error, with capped exponential backoff; every other error is returned as is.

# Usage

	data, err := filesystem.ReadFileWithRetry(path, filesystem.DefaultRetryConfig())

	entries, err := filesystem.ReadDirWithRetry(dir, filesystem.DefaultRetryConfig())

# Volumes

Retry metrics are labeled with a volume name resolved from the path by
longest-prefix match. Register the configured directories at startup:

	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"lists":    cfg.ListsDir,
		"export":   cfg.ExportDir,
		"database": cfg.DatabaseDir,
	}))

Paths outside every registered volume are labeled "unknown".

# Metrics

  - smartlists_filesystem_retry_attempts_total{operation}
  - smartlists_filesystem_retry_outcomes_total{operation, outcome}
  - smartlists_filesystem_stale_errors_total{volume}
*/
package filesystem

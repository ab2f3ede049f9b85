package store

import (
	"io/fs"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nocaflow_messages_stored_total",
		Help: "Messages appended to the store.",
	})
	messagesPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nocaflow_messages_purged_total",
		Help: "Ephemeral messages removed by the retention runner.",
	})
)

// DiskUsageBytes returns the best-effort on-disk size of the store
// directory. Zero when the store is not open or the walk fails.
func DiskUsageBytes(path string) uint64 {
	if db == nil {
		return 0
	}
	var total uint64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if fi, ferr := d.Info(); ferr == nil {
			total += uint64(fi.Size())
		}
		return nil
	})
	return total
}

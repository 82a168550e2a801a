package farc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics mirror claircore's promauto-registered counters: package-global,
// registered with the default registry at package init, and always on.
// Callers that don't scrape /metrics pay only the atomic-increment cost.
var (
	blocksCompressedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "farc",
		Name:      "blocks_compressed_total",
		Help:      "Blocks passed through compressBlock, by codec and outcome.",
	}, []string{"codec", "stored"})

	blocksDecompressedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "farc",
		Name:      "blocks_decompressed_total",
		Help:      "Blocks passed through decompressBlock, by codec.",
	}, []string{"codec"})

	bytesWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "farc",
		Name:      "bytes_written_total",
		Help:      "Compressed bytes appended to archive handles opened for write.",
	})

	bytesReadTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "farc",
		Name:      "bytes_read_total",
		Help:      "Compressed bytes consumed from archive handles opened for read.",
	})
)

func observeCompress(kind Compression, stored bool) {
	blocksCompressedTotal.WithLabelValues(kind.String(), storedLabel(stored)).Inc()
}

func observeDecompress(kind Compression) {
	blocksDecompressedTotal.WithLabelValues(kind.String()).Inc()
}

func storedLabel(literal bool) string {
	if literal {
		return "literal"
	}
	return "compressed"
}

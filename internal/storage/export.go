package storage

import (
	"github.com/grapat/backend/internal/util"
	"github.com/grapat/backend/pkg/export"
)

// NewExportSink writes batch exports to EXPORT_DIR and, when bucket is not
// nil, also to exports/<run>/ in the bucket.
func NewExportSink(bucket *Bucket) export.Sink {
	sinks := export.MultiSink{export.DirSink{Root: util.GetEnvString("EXPORT_DIR", "export")}}
	if bucket != nil {
		sinks = append(sinks, export.S3Sink{Objects: bucket, Prefix: "exports"})
	}
	return sinks
}

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/grapat/backend/pkg/export"
	"github.com/grapat/backend/pkg/logger"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rabbitmq/amqp091-go"
)

// ErrNotConfigured is returned by Init when no broker is configured.
var ErrNotConfigured = errors.New("message queue not configured")

const ExportQueue = "export_queue"

// ExportJobMsg requests one batch export.
type ExportJobMsg struct {
	JobID       string    `json:"job_id"`
	Message     string    `json:"message"`
	RequestedBy string    `json:"requested_by"`
	RequestedAt time.Time `json:"requested_at"`
}

// BatchExporter runs a batch export.
type BatchExporter interface {
	ExportAll(ctx context.Context) (export.Report, error)
}

// EnqueueExport publishes a batch export job and returns its id.
func EnqueueExport(ctx context.Context, ch Channel, requestedBy, message string) (string, error) {
	jobID, err := gonanoid.New()
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(ExportJobMsg{
		JobID:       jobID,
		Message:     message,
		RequestedBy: requestedBy,
		RequestedAt: time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}

	if err := PublishFIFO(ctx, ch, ExportQueue, data); err != nil {
		return "", fmt.Errorf("failed to publish export job: %w", err)
	}
	logger.Info("[Queue] Export job queued", "job_id", jobID, "requested_by", requestedBy)
	return jobID, nil
}

// ProcessExportMessage runs the batch export requested by msg.
func ProcessExportMessage(ctx context.Context, exporter BatchExporter, msg []byte) (export.Report, error) {
	data := new(ExportJobMsg)
	if err := json.Unmarshal(msg, data); err != nil {
		return export.Report{}, fmt.Errorf("invalid export job: %w", err)
	}

	logger.Info("[Queue] Running export job", "job_id", data.JobID, "requested_by", data.RequestedBy)
	report, err := exporter.ExportAll(ctx)
	if err != nil {
		return report, fmt.Errorf("export job %s: %w", data.JobID, err)
	}

	logger.Info("[Queue] Export job done",
		"job_id", data.JobID,
		"run", report.Run,
		"written", len(report.Written),
		"skipped", len(report.Skipped),
	)
	return report, nil
}

// HandleProcessingError moves a failed delivery to the dead letter queue of
// queueName. Failed jobs are not retried. If the move fails the delivery is
// requeued.
func HandleProcessingError(ctx context.Context, ch Channel, msg amqp091.Delivery, queueName string, cause error) {
	dlqName := DeadLetterQueue(queueName)
	headers := msg.Headers
	if headers == nil {
		headers = amqp091.Table{}
	}
	headers["x-error"] = cause.Error()

	logger.Info("[Queue] Sending message to DLQ", "dlq", dlqName)
	err := ch.PublishWithContext(
		ctx,
		"",
		dlqName,
		false,
		false,
		amqp091.Publishing{
			ContentType:  msg.ContentType,
			Body:         msg.Body,
			Headers:      headers,
			DeliveryMode: amqp091.Persistent,
		},
	)
	if err != nil {
		logger.Error("[Queue] Failed to publish to DLQ", "dlq", dlqName, "err", err)
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}

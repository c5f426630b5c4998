// Package core publishes flushed alert batches to the notification queue
// consumed by the user-facing notification workers.
package core

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/klauspost/compress/zstd"

	"lawnwatch/internal/types"
)

// EncodingZstdBase64 marks a body that was zstd-compressed then base64-encoded.
const EncodingZstdBase64 = "zstd+base64"

// DefaultCompressThreshold is the body size in bytes above which messages
// are compressed. SQS caps bodies at 256 KiB.
const DefaultCompressThreshold = 64 * 1024

// SQSSender is the subset of *sqs.Client used here.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// TreatmentLookup resolves the owner of a treatment.
type TreatmentLookup interface {
	GetTreatmentContext(ctx context.Context, treatmentID string) (*types.ScheduledTreatment, error)
}

// AlertEnvelope is the message body sent for one treatment's alerts.
type AlertEnvelope struct {
	BatchID       string               `json:"batch_id"`
	TreatmentID   string               `json:"treatment_id"`
	TreatmentType types.TreatmentType  `json:"treatment_type"`
	UserID        string               `json:"user_id"`
	LawnID        string               `json:"lawn_id"`
	ScheduledDate time.Time            `json:"scheduled_date"`
	Priority      int                  `json:"priority"`
	Alerts        []types.WeatherAlert `json:"alerts"`
	PublishedAt   time.Time            `json:"published_at"`
}

// AlertPublisher implements batcher.Dispatcher on top of SQS.
type AlertPublisher struct {
	client            SQSSender
	queueURL          string
	lookup            TreatmentLookup
	compressThreshold int
	clock             types.Clock
	logger            *slog.Logger
	encoder           *zstd.Encoder
}

// NewAlertPublisher creates a publisher. A non-positive threshold uses
// DefaultCompressThreshold.
func NewAlertPublisher(client SQSSender, queueURL string, lookup TreatmentLookup, compressThreshold int, clock types.Clock, logger *slog.Logger) (*AlertPublisher, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("alert publisher: creating zstd encoder: %w", err)
	}
	if compressThreshold <= 0 {
		compressThreshold = DefaultCompressThreshold
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertPublisher{
		client:            client,
		queueURL:          queueURL,
		lookup:            lookup,
		compressThreshold: compressThreshold,
		clock:             clock,
		logger:            logger.With("component", "alert_publisher"),
		encoder:           enc,
	}, nil
}

// Dispatch sends one message carrying every alert for treatmentID. Alerts
// for a treatment that no longer exists are dropped with a warning.
func (p *AlertPublisher) Dispatch(ctx context.Context, batchID, treatmentID string, alerts []types.WeatherAlert) error {
	if len(alerts) == 0 {
		return nil
	}

	treatment, err := p.lookup.GetTreatmentContext(ctx, treatmentID)
	if err != nil {
		if types.IsCode(err, types.ErrCodeNotFoundTreatment) {
			p.logger.WarnContext(ctx, "dropping alerts for unknown treatment",
				"batch_id", batchID,
				"treatment_id", treatmentID,
				"alerts", len(alerts),
			)
			return nil
		}
		return fmt.Errorf("alert publisher: resolving treatment %s: %w", treatmentID, err)
	}

	env := AlertEnvelope{
		BatchID:       batchID,
		TreatmentID:   treatmentID,
		TreatmentType: treatment.TreatmentType,
		UserID:        treatment.UserID,
		LawnID:        treatment.LawnID,
		ScheduledDate: treatment.ScheduledDate,
		Alerts:        alerts,
		PublishedAt:   p.clock.Now().UTC(),
	}
	for _, a := range alerts {
		env.Priority = max(env.Priority, a.Priority)
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("alert publisher: marshal envelope: %w", err)
	}

	body, encoding := string(raw), ""
	if len(raw) > p.compressThreshold {
		body = base64.StdEncoding.EncodeToString(p.encoder.EncodeAll(raw, nil))
		encoding = EncodingZstdBase64
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(body),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"batch_id":     stringAttr(batchID),
			"treatment_id": stringAttr(treatmentID),
			"priority": {
				DataType:    aws.String("Number"),
				StringValue: aws.String(strconv.Itoa(env.Priority)),
			},
		},
	}
	if encoding != "" {
		input.MessageAttributes["content_encoding"] = stringAttr(encoding)
	}
	if strings.HasSuffix(p.queueURL, ".fifo") {
		input.MessageGroupId = aws.String(treatmentID)
		input.MessageDeduplicationId = aws.String(batchID + ":" + treatmentID)
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("alert publisher: send to %s: %w", p.queueURL, err)
	}

	p.logger.InfoContext(ctx, "alert batch published",
		"batch_id", batchID,
		"treatment_id", treatmentID,
		"user_id", treatment.UserID,
		"alerts", len(alerts),
		"priority", env.Priority,
		"bytes", len(body),
		"content_encoding", encoding,
	)
	return nil
}

// DecodeEnvelope reverses the encoding applied by Dispatch.
func DecodeEnvelope(body, contentEncoding string) (AlertEnvelope, error) {
	raw := []byte(body)
	if contentEncoding == EncodingZstdBase64 {
		compressed, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return AlertEnvelope{}, fmt.Errorf("decode envelope: base64: %w", err)
		}
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return AlertEnvelope{}, fmt.Errorf("decode envelope: zstd reader: %w", err)
		}
		defer dec.Close()
		if raw, err = dec.DecodeAll(compressed, nil); err != nil {
			return AlertEnvelope{}, fmt.Errorf("decode envelope: zstd: %w", err)
		}
	}

	var env AlertEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return AlertEnvelope{}, fmt.Errorf("decode envelope: json: %w", err)
	}
	return env, nil
}

func stringAttr(v string) sqstypes.MessageAttributeValue {
	return sqstypes.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
}

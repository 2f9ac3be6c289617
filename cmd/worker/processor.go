package main

import (
	"context"

	lambdaevents "github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/imrishuroy/lbvp-storefront/internal/events"
	"github.com/imrishuroy/lbvp-storefront/internal/logging"
)

// Processor records order events delivered by SQS.
type Processor struct {
	recorder Recorder
	logger   *zap.Logger
}

func NewProcessor(recorder Recorder, logger *zap.Logger) *Processor {
	return &Processor{recorder: recorder, logger: logging.OrNop(logger)}
}

// Handle processes a batch and reports the messages that should be retried.
// Messages that cannot be decoded are dropped: retrying them never succeeds.
func (p *Processor) Handle(ctx context.Context, ev lambdaevents.SQSEvent) (lambdaevents.SQSEventResponse, error) {
	var resp lambdaevents.SQSEventResponse
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			resp.BatchItemFailures = append(resp.BatchItemFailures, lambdaevents.SQSBatchItemFailure{
				ItemIdentifier: rec.MessageId,
			})
		}
	}
	if n := len(resp.BatchItemFailures); n > 0 {
		p.logger.Warn("batch had failures", zap.Int("failed", n), zap.Int("total", len(ev.Records)))
	}
	return resp, nil
}

func (p *Processor) processMessage(ctx context.Context, rec lambdaevents.SQSMessage) error {
	e, err := events.Decode([]byte(rec.Body))
	if err != nil {
		p.logger.Error("dropping undecodable message",
			zap.String("message_id", rec.MessageId),
			zap.Error(err))
		return nil
	}

	log := p.logger.With(
		zap.String("message_id", rec.MessageId),
		zap.String("order_id", e.OrderID),
		zap.String("event_type", string(e.Type)))

	if err := p.recorder.Record(ctx, e); err != nil {
		log.Error("record metrics failed", zap.Error(err))
		return err
	}
	log.Debug("recorded order event")
	return nil
}

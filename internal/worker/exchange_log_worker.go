package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"carequery/internal/archive"
	"carequery/internal/model"
	"carequery/internal/repository"
)

// ExchangeLogWorker drains the persist queue and lands each envelope in the
// database plus the JSON archive. Request envelopes also touch the session
// record; response envelopes fold the outcome into its counters.
type ExchangeLogWorker struct {
	conn      *amqp.Connection
	requests  *repository.RequestLogRepository
	responses *repository.ResponseLogRepository
	sessions  *repository.SessionRecordRepository
	archive   *archive.Archive
	queueName string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewExchangeLogWorker(
	conn *amqp.Connection,
	requests *repository.RequestLogRepository,
	responses *repository.ResponseLogRepository,
	sessions *repository.SessionRecordRepository,
	arch *archive.Archive,
	queueName string,
) *ExchangeLogWorker {
	return &ExchangeLogWorker{
		conn:      conn,
		requests:  requests,
		responses: responses,
		sessions:  sessions,
		archive:   arch,
		queueName: queueName,
	}
}

func (w *ExchangeLogWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}

				var entry model.ExchangeLog
				if err := json.Unmarshal(d.Body, &entry); err != nil {
					log.Printf("worker decode exchange log failed: %v", err)
					_ = d.Nack(false, false)
					continue
				}

				if err := w.persist(workerCtx, entry); err != nil {
					log.Printf("worker persist exchange log failed: %v", err)
					_ = d.Nack(false, false)
					continue
				}

				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

func (w *ExchangeLogWorker) persist(ctx context.Context, entry model.ExchangeLog) error {
	switch entry.Kind {
	case model.ExchangeLogRequest:
		if entry.Request == nil {
			return fmt.Errorf("request envelope without request payload")
		}
		if err := w.requests.Create(ctx, entry.Request); err != nil {
			return err
		}
		if err := w.sessions.Touch(
			ctx,
			entry.Request.SessionID,
			entry.Request.IPAddress,
			entry.Request.UserAgent,
			entry.Request.CreatedAt,
		); err != nil {
			log.Printf("worker touch session record failed: %v", err)
		}
		w.archiveRecord(archive.CategoryRequests, "request_"+entry.Request.RequestID, entry.Request)
		return nil

	case model.ExchangeLogResponse:
		if entry.Response == nil {
			return fmt.Errorf("response envelope without response payload")
		}
		if err := w.responses.Create(ctx, entry.Response); err != nil {
			return err
		}
		if err := w.sessions.RecordResult(
			ctx,
			entry.Response.SessionID,
			entry.Response.Success,
			entry.Response.ProcessingTime,
		); err != nil {
			log.Printf("worker record session result failed: %v", err)
		}
		w.archiveRecord(archive.CategoryResponses, "response_"+entry.Response.ResponseID, entry.Response)
		return nil

	default:
		return fmt.Errorf("unknown exchange log kind %q", entry.Kind)
	}
}

func (w *ExchangeLogWorker) archiveRecord(category, name string, record any) {
	if w.archive == nil {
		return
	}
	if err := w.archive.WriteJSON(category, name, record); err != nil {
		log.Printf("worker archive %s failed: %v", category, err)
	}
}

func (w *ExchangeLogWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"studybuddy/internal/model"
	"studybuddy/internal/platform/rabbitmq"
)

var ErrUnknownOp = errors.New("unknown document event op")

// DocumentStore is the persistence the worker writes to.
type DocumentStore interface {
	Replace(doc *model.StudyDocument) error
	DeleteByOrigin(userID, subjectKey, originName string) (bool, error)
	DeleteByScope(userID, subjectKey string) error
}

// ApplyDocumentEvent writes one event to store.
func ApplyDocumentEvent(store DocumentStore, event model.DocumentEvent) error {
	switch event.Op {
	case model.DocumentUpsert:
		if event.Document == nil {
			return fmt.Errorf("upsert without document: %w", ErrUnknownOp)
		}
		return store.Replace(event.Document)
	case model.DocumentDelete:
		_, err := store.DeleteByOrigin(event.UserID, event.SubjectKey, event.OriginName)
		return err
	case model.DocumentDropScope:
		return store.DeleteByScope(event.UserID, event.SubjectKey)
	}
	return fmt.Errorf("%q: %w", event.Op, ErrUnknownOp)
}

type DocumentPersistWorker struct {
	conn      *amqp.Connection
	store     DocumentStore
	queueName string
	logger    *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDocumentPersistWorker(conn *amqp.Connection, store DocumentStore, queueName string, logger *slog.Logger) *DocumentPersistWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentPersistWorker{
		conn:      conn,
		store:     store,
		queueName: queueName,
		logger:    logger,
	}
}

func (w *DocumentPersistWorker) Start(ctx context.Context) error {
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

	if _, err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}

	// events of one scope must apply in publish order
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
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
				w.handle(d)
			}
		}
	}()

	return nil
}

func (w *DocumentPersistWorker) handle(d amqp.Delivery) {
	var event model.DocumentEvent
	if err := json.Unmarshal(d.Body, &event); err != nil {
		w.logger.Error("decode document event failed", "error", err)
		_ = d.Nack(false, false)
		return
	}

	if err := ApplyDocumentEvent(w.store, event); err != nil {
		w.logger.Error("persist document event failed",
			"op", event.Op, "user", event.UserID, "subject", event.SubjectKey, "origin", event.OriginName, "error", err)
		_ = d.Nack(false, false)
		return
	}

	w.logger.Debug("document event persisted", "op", event.Op, "user", event.UserID, "subject", event.SubjectKey)
	_ = d.Ack(false)
}

func (w *DocumentPersistWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

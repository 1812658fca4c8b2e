package main

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"sync"

	"cloud.google.com/go/pubsub"
	"github.com/sirupsen/logrus"
	"github.com/zedibooks/ledger_backend/config"
	"github.com/zedibooks/ledger_backend/models"
	"github.com/zedibooks/ledger_backend/utils"
	"github.com/zedibooks/ledger_backend/workflow"
	"gorm.io/gorm"
)

var (
	tenantMutexMap = make(map[string]*sync.Mutex)
	globalMutex    = &sync.Mutex{}
)

// RunAggregationWorker subscribes to the event topic and routes each message
// through the derived-state pipeline. Only used when Pub/Sub publishing is
// enabled; the direct outbox processor covers everything else.
func RunAggregationWorker() error {
	logger := config.GetLogger()
	ctx := context.Background()
	client, err := config.GetPubSubClient(ctx)
	if err != nil {
		return err
	}
	topic, err := config.CreateTopicIfNotExists(client, os.Getenv("PUBSUB_TOPIC"))
	if err != nil {
		return err
	}
	sub, err := config.CreateSubscriptionIfNotExists(client, os.Getenv("PUBSUB_SUBSCRIPTION"), topic)
	if err != nil {
		return err
	}
	// Specify the number of concurrent processes
	sub.ReceiveSettings.MaxOutstandingMessages = 10

	callback := func(ctx context.Context, msg *pubsub.Message) {
		m := config.EventMessage{}
		err := json.Unmarshal(msg.Data, &m)
		if err != nil {
			config.LogError(logger, "AggregationWorker.go", "RunAggregationWorker", "Unmarshaling pubsub message", msg.Data, err)
			return
		}

		// Get or create the mutex for the current tenant
		globalMutex.Lock()
		mutex, exists := tenantMutexMap[m.UserId]
		if !exists {
			mutex = &sync.Mutex{}
			tenantMutexMap[m.UserId] = mutex
		}
		globalMutex.Unlock()

		// Lock the specific tenant mutex
		mutex.Lock()
		defer mutex.Unlock()

		ctx = utils.SetUserIdInContext(ctx, m.UserId)
		ctx = utils.SetActorNameInContext(ctx, "System")
		ctx = utils.SetCorrelationIdInContext(ctx, m.CorrelationId)
		if err := ProcessMessage(ctx, logger, m); err != nil {
			logger.WithFields(logrus.Fields{
				"field":          "AggregationWorker",
				"user_id":        m.UserId,
				"reference_type": m.ReferenceType,
				"reference_id":   m.ReferenceId,
				"message_id":     msg.ID,
			}).Error("pubsub processing failed: " + err.Error())
			msg.Nack()
			return
		}
		msg.Ack()
	}

	go func() {
		err := sub.Receive(ctx, callback)
		if err != nil {
			config.LogError(logger, "AggregationWorker.go", "RunAggregationWorker", "Failed to receive messages", nil, err)
		}
	}()

	return nil
}

// ProcessMessage runs one event through the pipeline inside a single
// transaction: the per-tenant posting lock enforces strict ordering across
// instances, the idempotency key makes redelivery safe.
func ProcessMessage(ctx context.Context, logger *logrus.Logger, m config.EventMessage) error {
	db := config.GetDB()
	return db.Transaction(func(tx *gorm.DB) error {
		// Enforce strict per-tenant ordering across instances.
		if err := workflow.AcquireTenantPostingLock(tx.WithContext(ctx), m.UserId); err != nil {
			return err
		}
		defer workflow.ReleaseTenantPostingLock(tx.WithContext(ctx), m.UserId)

		handlerName := m.ReferenceType
		messageId := strconv.Itoa(m.ID)

		skip, err := workflow.BeginIdempotency(tx.WithContext(ctx), m.UserId, handlerName, messageId)
		if err != nil {
			return err
		}
		if skip {
			return nil
		}

		if err := ProcessWorkflow(tx.WithContext(ctx), logger, m); err != nil {
			_ = workflow.MarkIdempotencyFailed(tx.WithContext(ctx), m.UserId, handlerName, messageId, err)
			return err
		}
		if err := workflow.MarkIdempotencySucceeded(tx.WithContext(ctx), m.UserId, handlerName, messageId); err != nil {
			return err
		}
		return nil
	})
}

func ProcessWorkflow(tx *gorm.DB, logger *logrus.Logger, msg config.EventMessage) error {
	switch msg.ReferenceType {
	case string(models.EventReferenceTypeSale):
		return workflow.ProcessSaleWorkflow(tx, logger, msg)
	case string(models.EventReferenceTypeServiceRecord):
		return workflow.ProcessServiceRecordWorkflow(tx, logger, msg)
	case string(models.EventReferenceTypeExpense):
		return workflow.ProcessExpenseWorkflow(tx, logger, msg)
	case string(models.EventReferenceTypeAsset):
		return workflow.ProcessAssetWorkflow(tx, logger, msg)
	case string(models.EventReferenceTypeStockAdjustment):
		return workflow.ProcessStockAdjustmentWorkflow(tx, logger, msg)
	}
	return nil
}

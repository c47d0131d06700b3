package database

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"sync"
	"time"

	c "github.com/life-stream-dev/life-stream-go-stomp-client/internal/config"
	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/logger"
	"github.com/life-stream-dev/life-stream-go-stomp-client/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoArchive copies recorded events into MongoDB. Writes happen on a
// single worker goroutine so callers never wait on the database.
type MongoArchive struct {
	client           *mongo.Client
	events           *mongo.Collection
	operationTimeout time.Duration

	queue   chan EventRecord
	wg      sync.WaitGroup
	stateMu sync.RWMutex
	closed  bool
}

func buildURI(config c.Config) string {
	if config.Archive.Username == "" {
		return fmt.Sprintf("mongodb://%s:%d/", config.Archive.Host, config.Archive.Port)
	}
	// credentials may contain URI-reserved characters
	encodedUser := url.QueryEscape(config.Archive.Username)
	encodedPass := url.QueryEscape(config.Archive.Password)
	return fmt.Sprintf("mongodb://%s:%s@%s:%d/?authSource=admin",
		encodedUser, encodedPass,
		config.Archive.Host,
		config.Archive.Port,
	)
}

// ConnectArchive dials MongoDB, verifies the connection and makes sure the
// events collection carries its unique index.
func ConnectArchive(config c.Config) (*MongoArchive, error) {
	logger.DebugF("Connecting to archive database...")

	clientOptions := options.Client().ApplyURI(buildURI(config)).SetAppName(config.AppName)
	// pool size
	clientOptions.SetMinPoolSize(config.Archive.MinPoolSize)
	clientOptions.SetMaxPoolSize(config.Archive.MaxPoolSize)
	// timeouts
	connectTimeout := utils.ParseStringTime(config.Archive.ConnectTimeout)
	if connectTimeout > 0 {
		clientOptions.SetConnectTimeout(connectTimeout)
	}
	if config.Archive.UseTLS {
		clientOptions.SetTLSConfig(&tls.Config{InsecureSkipVerify: false})
	}
	clientOptions.SetPoolMonitor(&event.PoolMonitor{
		Event: func(evt *event.PoolEvent) {
			switch evt.Type {
			case event.ConnectionCreated:
				logger.DebugF("Archive connection created: %+v", evt)
			case event.ConnectionClosed:
				logger.DebugF("Archive connection closed: %+v", evt)
			}
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("error occured while connecting to archive: %w", err)
	}
	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("error occured while pinging archive: %w", err)
	}

	events := client.Database(config.Archive.Database).Collection(EventCollectionName)
	_, err = events.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "channel", Value: 1},
			{Key: "user", Value: 1},
			{Key: "time", Value: 1},
			{Key: "name", Value: 1},
		},
		Options: options.Index().SetUnique(true).SetName("events_identity_unique"),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("error occured while creating archive indexes: %w", err)
	}

	operationTimeout := utils.ParseStringTime(config.Archive.OperationTimeout)
	if operationTimeout <= 0 {
		operationTimeout = 5 * time.Second
	}

	archive := &MongoArchive{
		client:           client,
		events:           events,
		operationTimeout: operationTimeout,
		queue:            make(chan EventRecord, 256),
	}
	archive.wg.Add(1)
	go archive.startWorker()
	logger.InfoF("Archive connected, database %s", config.Archive.Database)
	return archive, nil
}

// recordFilter identifies a record by the same key the store de-duplicates on.
func recordFilter(record EventRecord) bson.D {
	return bson.D{
		{Key: "channel", Value: record.Channel},
		{Key: "user", Value: record.User},
		{Key: "time", Value: record.Event.Time},
		{Key: "name", Value: record.Event.Name},
	}
}

// Archive queues record for writing and never blocks. Records arriving
// after Invoke, or while the queue is full, are dropped.
func (ma *MongoArchive) Archive(record EventRecord) {
	ma.stateMu.RLock()
	defer ma.stateMu.RUnlock()
	if ma.closed {
		logger.DebugF("Archive closed, dropping event %d/%s", record.Event.Time, record.Event.Name)
		return
	}
	select {
	case ma.queue <- record:
	default:
		logger.WarnF("Archive queue full, dropping event %d/%s on %s", record.Event.Time, record.Event.Name, record.Channel)
	}
}

func (ma *MongoArchive) startWorker() {
	defer ma.wg.Done()
	for record := range ma.queue {
		if err := ma.save(record); err != nil {
			logger.WarnF("Unable to archive event %d/%s on %s: %v", record.Event.Time, record.Event.Name, record.Channel, err)
		}
	}
}

func (ma *MongoArchive) save(record EventRecord) error {
	if record.Channel == "" {
		return ErrChannelEmpty
	}
	ctx, cancel := context.WithTimeout(context.Background(), ma.operationTimeout)
	defer cancel()

	startTime := time.Now()
	_, err := ma.events.ReplaceOne(ctx, recordFilter(record), record, options.Replace().SetUpsert(true))
	logger.DebugF("archive upsert cost: %v", time.Since(startTime))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("unique key conflicts: %w", err)
		}
		return fmt.Errorf("database operation failed: %w", err)
	}
	return nil
}

// Invoke drains pending writes and disconnects. It is registered with the
// shutdown cleaner and is safe to call more than once.
func (ma *MongoArchive) Invoke(ctx context.Context) error {
	ma.stateMu.Lock()
	if ma.closed {
		ma.stateMu.Unlock()
		return ErrArchiveClosed
	}
	ma.closed = true
	close(ma.queue)
	ma.stateMu.Unlock()

	drained := make(chan struct{})
	go func() {
		ma.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		logger.Warn("Archive flush interrupted, pending events were not written")
	}

	logger.InfoF("Closing archive connection")
	disconnectCtx, cancel := context.WithTimeout(context.Background(), ma.operationTimeout)
	defer cancel()
	return ma.client.Disconnect(disconnectCtx)
}

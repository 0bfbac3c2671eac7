package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/logutils"
	"github.com/olric-data/olric"
	"github.com/olric-data/olric/config"
	"go.uber.org/zap"
)

// OlricBackend stores the status entry in an olric DMap, so every gate
// instance in the olric cluster reads and writes the same entry.
type OlricBackend struct {
	config *OlricConfig
	logger *zap.Logger
	db     *olric.Olric
	client *olric.EmbeddedClient
	dmap   olric.DMap
	ttl    time.Duration
}

// NewOlricBackend starts an embedded olric server, optionally joining a
// cluster, and opens the status DMap. Entries are written with ttl so stale
// values also expire inside olric.
func NewOlricBackend(ctx context.Context, cfg *OlricConfig, ttl time.Duration, logger *zap.Logger) (*OlricBackend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid olric configuration: %w", err)
	}

	b := &OlricBackend{
		config: cfg,
		logger: logger,
		ttl:    ttl,
	}

	started := make(chan struct{})
	olricCfg := b.createOlricConfig(func() { close(started) })

	logger.Info("Starting olric embedded server",
		zap.String("bind_addr", net.JoinHostPort(cfg.BindAddr, strconv.Itoa(cfg.BindPort))),
		zap.Bool("single_node", cfg.IsSingleNode()),
		zap.Strings("join_addrs", cfg.JoinAddrs),
	)

	db, err := olric.New(olricCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create olric instance: %w", err)
	}
	b.db = db

	startErr := make(chan error, 1)
	go func() {
		// Start blocks until the server shuts down.
		if err := db.Start(); err != nil {
			startErr <- err
		}
	}()

	startCtx, cancel := context.WithTimeout(ctx, cfg.StartTimeout)
	defer cancel()

	select {
	case <-started:
	case err := <-startErr:
		_ = db.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to start olric: %w", err)
	case <-startCtx.Done():
		_ = db.Shutdown(context.Background())
		return nil, fmt.Errorf("olric did not start: %w", startCtx.Err())
	}

	b.client = db.NewEmbeddedClient()

	dmap, err := b.client.NewDMap(cfg.DMapName)
	if err != nil {
		_ = db.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to create dmap: %w", err)
	}
	b.dmap = dmap

	logger.Info("Olric status cache initialized", zap.String("dmap", cfg.DMapName))

	return b, nil
}

// createOlricConfig creates an olric configuration from the OlricConfig.
func (b *OlricBackend) createOlricConfig(started func()) *config.Config {
	logFilter := &logutils.LevelFilter{
		Levels:   []logutils.LogLevel{"DEBUG", "INFO", "WARN", "ERROR"},
		MinLevel: logutils.LogLevel(b.config.LogLevel),
		Writer:   io.Discard,
	}

	if b.config.LogLevel == "DEBUG" || b.config.LogLevel == "INFO" {
		logFilter.Writer = os.Stdout
	}

	c := config.New("lan")
	c.BindAddr = b.config.BindAddr
	c.BindPort = b.config.BindPort
	c.KeepAlivePeriod = b.config.KeepAlivePeriod
	c.PartitionCount = b.config.PartitionCount
	c.ReplicaCount = b.config.ReplicationFactor
	c.ReadQuorum = 1
	c.WriteQuorum = 1
	c.MemberCountQuorum = int32(b.config.MemberCountQuorum)
	c.LogLevel = b.config.LogLevel
	c.Logger = log.New(logFilter, "", log.LstdFlags)
	c.JoinRetryInterval = b.config.JoinRetryInterval
	c.MaxJoinAttempts = b.config.MaxJoinAttempts
	c.Started = started

	if b.config.ReplicationMode == "sync" {
		c.ReplicationMode = config.SyncReplicationMode
	} else {
		c.ReplicationMode = config.AsyncReplicationMode
	}

	if len(b.config.JoinAddrs) > 0 {
		c.Peers = b.config.JoinAddrs
	}

	return c
}

// Load reads the status entry from the DMap.
func (b *OlricBackend) Load(ctx context.Context) (Entry, bool, error) {
	resp, err := b.dmap.Get(ctx, b.config.Key)
	if errors.Is(err, olric.ErrKeyNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("olric get: %w", err)
	}

	raw, err := resp.Byte()
	if err != nil {
		return Entry{}, false, fmt.Errorf("olric decode: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Entry{}, false, fmt.Errorf("failed to deserialize status entry: %w", err)
	}
	return entry, true, nil
}

// Save writes the status entry to the DMap.
func (b *OlricBackend) Save(ctx context.Context, entry Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to serialize status entry: %w", err)
	}

	if b.ttl > 0 {
		return b.dmap.Put(ctx, b.config.Key, raw, olric.EX(b.ttl))
	}
	return b.dmap.Put(ctx, b.config.Key, raw)
}

// Clear removes the status entry. Missing keys are not an error.
func (b *OlricBackend) Clear(ctx context.Context) error {
	_, err := b.dmap.Delete(ctx, b.config.Key)
	if err != nil && !errors.Is(err, olric.ErrKeyNotFound) {
		return err
	}
	return nil
}

// Ping verifies that the embedded olric server accepts connections.
func (b *OlricBackend) Ping(ctx context.Context) error {
	if b.db == nil {
		return fmt.Errorf("olric db is nil")
	}

	addr := net.JoinHostPort(b.config.BindAddr, strconv.Itoa(b.config.BindPort))
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to olric: %w", err)
	}
	return conn.Close()
}

// Members returns the number of cluster members.
func (b *OlricBackend) Members(ctx context.Context) (int, error) {
	members, err := b.client.Members(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get members: %w", err)
	}
	return len(members), nil
}

// Close shuts the embedded olric server down.
func (b *OlricBackend) Close(ctx context.Context) error {
	b.logger.Info("Shutting down olric status cache")

	if b.db == nil {
		return nil
	}

	if err := b.db.Shutdown(ctx); err != nil {
		b.logger.Error("Error shutting down olric", zap.Error(err))
		return err
	}

	return nil
}

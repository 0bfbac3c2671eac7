package cache

import (
	"fmt"
	"net"
	"time"
)

// OlricConfig holds the configuration for the olric-backed status cache.
type OlricConfig struct {
	// BindAddr is the address to bind the embedded olric server to.
	BindAddr string

	// BindPort is the port to bind the embedded olric server to.
	BindPort int

	// JoinAddrs lists peers to join. Empty means single-node mode.
	JoinAddrs []string

	// ReplicationMode is "sync" or "async".
	ReplicationMode string

	// ReplicationFactor is the number of replicas for each partition.
	ReplicationFactor int

	// PartitionCount is the number of partitions in the cluster.
	PartitionCount uint64

	// MemberCountQuorum is the number of members to wait for before serving.
	MemberCountQuorum int

	// JoinRetryInterval is the interval between join retry attempts.
	JoinRetryInterval time.Duration

	// MaxJoinAttempts is the maximum number of join attempts.
	MaxJoinAttempts int

	// LogLevel is the olric log level: DEBUG, INFO, WARN or ERROR.
	LogLevel string

	// KeepAlivePeriod is the period for TCP keep-alive probes.
	KeepAlivePeriod time.Duration

	// StartTimeout bounds how long NewOlricBackend waits for the server.
	StartTimeout time.Duration

	// DMapName is the distributed map holding the status entry.
	DMapName string

	// Key is the DMap key of the status entry.
	Key string
}

const (
	// DefaultBindAddr is the default bind address for olric
	DefaultBindAddr = "0.0.0.0"
	// DefaultBindPort is the default bind port for olric
	DefaultBindPort = 3320
	// DefaultReplicationMode is the default replication mode
	DefaultReplicationMode = "async"
	// DefaultReplicationFactor is the default replication factor for single-node
	DefaultReplicationFactor = 1
	// DefaultPartitionCount is the default number of partitions
	DefaultPartitionCount = 271
	// DefaultMemberCountQuorum is the default member count quorum
	DefaultMemberCountQuorum = 1
	// DefaultJoinRetryInterval is the default join retry interval
	DefaultJoinRetryInterval = 1 * time.Second
	// DefaultMaxJoinAttempts is the default max join attempts
	DefaultMaxJoinAttempts = 30
	// DefaultLogLevel is the default log level for olric
	DefaultLogLevel = "WARN"
	// DefaultKeepAlivePeriod is the default keep alive period
	DefaultKeepAlivePeriod = 30 * time.Second
	// DefaultStartTimeout is the default start timeout
	DefaultStartTimeout = 30 * time.Second
	// DefaultDMapName is the default DMap name
	DefaultDMapName = "maintenance-status"
	// DefaultKey is the default key of the status entry
	DefaultKey = "current"
)

// NewDefaultOlricConfig returns an OlricConfig with sensible defaults.
func NewDefaultOlricConfig() *OlricConfig {
	return &OlricConfig{
		BindAddr:          DefaultBindAddr,
		BindPort:          DefaultBindPort,
		JoinAddrs:         []string{},
		ReplicationMode:   DefaultReplicationMode,
		ReplicationFactor: DefaultReplicationFactor,
		PartitionCount:    DefaultPartitionCount,
		MemberCountQuorum: DefaultMemberCountQuorum,
		JoinRetryInterval: DefaultJoinRetryInterval,
		MaxJoinAttempts:   DefaultMaxJoinAttempts,
		LogLevel:          DefaultLogLevel,
		KeepAlivePeriod:   DefaultKeepAlivePeriod,
		StartTimeout:      DefaultStartTimeout,
		DMapName:          DefaultDMapName,
		Key:               DefaultKey,
	}
}

// Validate checks if the olric configuration is valid.
func (c *OlricConfig) Validate() error {
	if c.BindAddr == "" {
		return fmt.Errorf("bind address cannot be empty")
	}

	if net.ParseIP(c.BindAddr) == nil {
		return fmt.Errorf("bind address must be a valid IPv4 or IPv6 address, got: %s", c.BindAddr)
	}

	if c.BindPort < 1 || c.BindPort > 65535 {
		return fmt.Errorf("bind port must be between 1 and 65535, got: %d", c.BindPort)
	}

	if c.ReplicationMode != "sync" && c.ReplicationMode != "async" {
		return fmt.Errorf("replication mode must be sync or async, got: %s", c.ReplicationMode)
	}

	if c.ReplicationFactor < 1 {
		return fmt.Errorf("replication factor must be at least 1, got: %d", c.ReplicationFactor)
	}

	if c.PartitionCount < 1 {
		return fmt.Errorf("partition count must be at least 1, got: %d", c.PartitionCount)
	}

	if c.MemberCountQuorum < 1 {
		return fmt.Errorf("member count quorum must be at least 1, got: %d", c.MemberCountQuorum)
	}

	if c.JoinRetryInterval <= 0 {
		return fmt.Errorf("join retry interval must be positive, got: %v", c.JoinRetryInterval)
	}

	if c.MaxJoinAttempts < 1 {
		return fmt.Errorf("max join attempts must be at least 1, got: %d", c.MaxJoinAttempts)
	}

	validLogLevels := map[string]bool{
		"DEBUG": true,
		"INFO":  true,
		"WARN":  true,
		"ERROR": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be DEBUG, INFO, WARN, or ERROR)", c.LogLevel)
	}

	if c.KeepAlivePeriod <= 0 {
		return fmt.Errorf("keep alive period must be positive")
	}

	if c.StartTimeout <= 0 {
		return fmt.Errorf("start timeout must be positive")
	}

	if c.DMapName == "" {
		return fmt.Errorf("dmap name cannot be empty")
	}

	if c.Key == "" {
		return fmt.Errorf("key cannot be empty")
	}

	if len(c.JoinAddrs) > 0 && c.MemberCountQuorum > len(c.JoinAddrs)+1 {
		return fmt.Errorf("member count quorum (%d) cannot be greater than number of join addresses + 1 (%d)",
			c.MemberCountQuorum, len(c.JoinAddrs)+1)
	}

	return nil
}

// IsSingleNode returns true if this is configured for single-node mode.
func (c *OlricConfig) IsSingleNode() bool {
	return len(c.JoinAddrs) == 0
}

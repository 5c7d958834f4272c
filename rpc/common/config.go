package common

import (
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Shared transport tuning
// --------------------------------------------------------------------------

// SocketConf holds buffer settings for socket based transports (tcp, unix)
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds settings only used by the tcp transport
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// TableConfig describes one table hosted by the replica
type TableConfig struct {
	Name           string `yaml:"name"`
	AppID          int32  `yaml:"app_id"`
	PartitionCount int32  `yaml:"partition_count"`
}

// ServerTransportConfig holds the transport settings of the server
type ServerTransportConfig struct {
	// WorkersPerConn is the number of goroutines handling requests of a single connection
	WorkersPerConn int
	SocketConf     SocketConf
	TCPConf        TCPConf
}

// ServerConfig holds all configuration parameters of the development replica.
type ServerConfig struct {
	// Tables hosted by this replica
	Tables []TableConfig

	// NodeID identifies this replica in response envelopes
	NodeID string

	// Endpoint the server listens on
	Endpoint string

	// TimeoutSecond is the read/write deadline of a connection
	TimeoutSecond int64

	Transport ServerTransportConfig

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Endpoint)
	addField("Node ID", c.NodeID)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Workers Per Conn", strconv.Itoa(c.Transport.WorkersPerConn))
	addField("Write Buffer", fmt.Sprintf("%d bytes", c.Transport.SocketConf.WriteBufferSize))
	addField("Read Buffer", fmt.Sprintf("%d bytes", c.Transport.SocketConf.ReadBufferSize))

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	// Tables
	addSection("Tables")
	for _, table := range c.Tables {
		addField(table.Name, fmt.Sprintf("app id %d, %d partitions", table.AppID, table.PartitionCount))
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// ClientTransportConfig holds the transport settings of the client
type ClientTransportConfig struct {
	Endpoints              []string
	ConnectionsPerEndpoint int
	SocketConf             SocketConf
	TCPConf                TCPConf
}

// MetaType selects how the client resolves the partition layout of a table
type MetaType string

const (
	MetaTypeRPC    MetaType = "rpc"
	MetaTypeZK     MetaType = "zk"
	MetaTypeStatic MetaType = "static"
)

// ClientMetaConfig holds the settings of the metadata resolver
type ClientMetaConfig struct {
	Type MetaType
	// Endpoints of the meta service. For MetaTypeRPC an empty list means the data transport is used.
	Endpoints []string
	// ZKRoot is the znode below which tables are registered (MetaTypeZK)
	ZKRoot string
	// StaticPartitionCount and StaticAppID are returned by MetaTypeStatic
	StaticPartitionCount int32
	StaticAppID          int32
}

// ClientConfig holds all configuration parameters of a client.
type ClientConfig struct {
	// AppName is the table all operations of the client are addressed to
	AppName string
	// TimeoutMillisecond is the default per call timeout
	TimeoutMillisecond int
	Transport          ClientTransportConfig
	Meta               ClientMetaConfig
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("App Name", c.AppName)
	addField("Timeout", fmt.Sprintf("%d ms", c.TimeoutMillisecond))
	addField("Conns Per Endpoint", strconv.Itoa(max(1, c.Transport.ConnectionsPerEndpoint)))

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Transport.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	// Meta
	addSection("Meta")
	addField("Type", string(c.Meta.Type))
	switch c.Meta.Type {
	case MetaTypeZK:
		addField("Servers", strings.Join(c.Meta.Endpoints, ","))
		addField("Root", c.Meta.ZKRoot)
	case MetaTypeStatic:
		addField("Partition Count", strconv.Itoa(int(c.Meta.StaticPartitionCount)))
	default:
		if len(c.Meta.Endpoints) == 0 {
			addField("Endpoints", "(data transport)")
		} else {
			addField("Endpoints", strings.Join(c.Meta.Endpoints, ","))
		}
	}

	return sb.String()
}

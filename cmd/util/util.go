package util

import (
	"fmt"
	"strings"
	"time"

	"github.com/ValentinKolb/sKV/rpc/common"
	"github.com/ValentinKolb/sKV/rpc/meta"
	"github.com/ValentinKolb/sKV/rpc/serializer"
	"github.com/ValentinKolb/sKV/rpc/transport"
	"github.com/ValentinKolb/sKV/rpc/transport/http"
	"github.com/ValentinKolb/sKV/rpc/transport/tcp"
	"github.com/ValentinKolb/sKV/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables read by the cli
	EnvPrefix = "skv"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupRPCClientFlags adds common RPC connection flags to a command
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "app"
	cmd.PersistentFlags().String(key, "temp", WrapString("Name of the table all operations are addressed to"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, 5000, WrapString("The default timeout of a single call in milliseconds"))

	key = "transport-endpoints"
	cmd.PersistentFlags().String(key, "http://localhost:8080", WrapString("The address of the sKV replica. For transports that support load balancing, multiple endpoints can be specified as a comma-separated list"))

	key = "transport-conn-per-endpoint"
	cmd.PersistentFlags().Int(key, 1, WrapString("Simultaneous connections per endpoint - for transports that support this feature"))

	key = "transport-write-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the write buffer for the transport (in KB, ignored for http)"))

	key = "transport-read-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the read buffer for the transport (in KB, ignored for http)"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY for the transport (only for TCPConf)"))

	key = "transport-tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval for the transport (in seconds, only for TCPConf)"))

	key = "transport-tcp-linger"
	cmd.PersistentFlags().Int(key, 0, WrapString("The linger time for the transport (in seconds, only for TCPConf)"))

	key = "meta-type"
	cmd.PersistentFlags().String(key, string(common.MetaTypeRPC), WrapString("How the partition layout of the table is resolved (rpc, zk, static)"))

	key = "meta-endpoints"
	cmd.PersistentFlags().String(key, "", WrapString("Comma-separated meta endpoints. For rpc an empty value asks the replica over the data transport, for zk these are the ZooKeeper servers"))

	key = "meta-zk-root"
	cmd.PersistentFlags().String(key, meta.DefaultZKRoot, WrapString("The znode below which tables are registered (only for zk)"))

	key = "meta-partition-count"
	cmd.PersistentFlags().Int32(key, 8, WrapString("The partition count returned by the static resolver (only for static)"))
}

// InitClientConfig initializes configuration from environment variables
func InitClientConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	conf := &common.ClientConfig{
		AppName:            viper.GetString("app"),
		TimeoutMillisecond: viper.GetInt("timeout"),
		Transport: common.ClientTransportConfig{
			Endpoints:              splitList(viper.GetString("transport-endpoints")),
			ConnectionsPerEndpoint: viper.GetInt("transport-conn-per-endpoint"),
			SocketConf: common.SocketConf{
				WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
				ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
			},
			TCPConf: common.TCPConf{
				TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
				TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
				TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
			},
		},
		Meta: common.ClientMetaConfig{
			Type:                 common.MetaType(viper.GetString("meta-type")),
			Endpoints:            splitList(viper.GetString("meta-endpoints")),
			ZKRoot:               viper.GetString("meta-zk-root"),
			StaticPartitionCount: viper.GetInt32("meta-partition-count"),
		},
	}

	return conf
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	switch viper.GetString("serializer") {
	case "json":
		return serializer.NewJSONSerializer(), nil
	case "gob":
		return serializer.NewGOBSerializer(), nil
	case "binary":
		return serializer.NewBinarySerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}
}

// GetTransport creates transport based on configuration
func GetTransport() (transport.IRPCClientTransport, error) {
	switch viper.GetString("transport") {
	case "http":
		return http.NewHttpClientTransport(), nil
	case "tcp":
		return tcp.NewTCPClientTransport(), nil
	case "unix":
		return unix.NewUnixClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// GetResolver creates the meta resolver of config. A nil resolver without error
// tells the client to query the replica over its data transport.
func GetResolver(config *common.ClientConfig, s serializer.IRPCSerializer) (meta.IMetaResolver, error) {
	switch config.Meta.Type {
	case common.MetaTypeRPC, "":
		if len(config.Meta.Endpoints) == 0 {
			return nil, nil
		}
		t, err := GetTransport()
		if err != nil {
			return nil, err
		}
		metaConfig := *config
		metaConfig.Transport.Endpoints = config.Meta.Endpoints
		if err := t.Connect(metaConfig); err != nil {
			return nil, err
		}
		return meta.NewRPCResolver(t, s, true), nil
	case common.MetaTypeZK:
		if len(config.Meta.Endpoints) == 0 {
			return nil, fmt.Errorf("meta type zk needs at least one ZooKeeper server (--meta-endpoints)")
		}
		return meta.NewZKResolver(config.Meta.Endpoints, config.Meta.ZKRoot, 10*time.Second)
	case common.MetaTypeStatic:
		return meta.NewStaticResolver(config.Meta.StaticPartitionCount, config.Meta.StaticAppID), nil
	default:
		return nil, fmt.Errorf("invalid meta type %s", config.Meta.Type)
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// splitList splits a comma-separated list and drops empty entries
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

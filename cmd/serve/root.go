package serve

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	cmdUtil "github.com/ValentinKolb/sKV/cmd/util"
	"github.com/ValentinKolb/sKV/rpc/common"
	"github.com/ValentinKolb/sKV/rpc/meta"
	"github.com/ValentinKolb/sKV/rpc/server"
	"github.com/ValentinKolb/sKV/rpc/transport"
	"github.com/ValentinKolb/sKV/rpc/transport/http"
	"github.com/ValentinKolb/sKV/rpc/transport/tcp"
	"github.com/ValentinKolb/sKV/rpc/transport/unix"
	"github.com/go-zookeeper/zk"
	"github.com/goccy/go-yaml"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start a single node sKV development replica",
		Long:    `Start a single node sKV development replica with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is SKV_<flag> (e.g. SKV_LOG_LEVEL=debug)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

// tablesFile is the layout of the --tables-file yaml document
type tablesFile struct {
	Tables []common.TableConfig `yaml:"tables"`
}

func init() {
	// initialize viper
	cobra.OnInitialize(initConfig)

	// add flags
	key := "tables"
	ServeCmd.PersistentFlags().String(key, "temp:8", cmdUtil.WrapString("Comma-separated list of tables to serve. Format: NAME:PARTITIONS[:APPID], the app id defaults to the position in the list starting at 1"))

	key = "tables-file"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Path of a yaml file with a 'tables' list (name, app_id, partition_count). Replaces --tables if set"))

	key = "node-id"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Identifier of this replica reported in every response (default a random uuid)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Read and write deadline of a connection in seconds"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen (e.g. localhost:8080, /tmp/skv.sock, ...)"))

	key = "workers-per-conn"
	ServeCmd.PersistentFlags().Int(key, 64*1024, cmdUtil.WrapString("Maximum number of concurrent requests of a single connection (tcp and unix only)"))

	key = "transport-write-buffer"
	ServeCmd.PersistentFlags().Int(key, 512, cmdUtil.WrapString("The size of the write buffer for the transport (in KB, ignored for http)"))

	key = "transport-read-buffer"
	ServeCmd.PersistentFlags().Int(key, 512, cmdUtil.WrapString("The size of the read buffer for the transport (in KB, ignored for http)"))

	key = "transport-tcp-nodelay"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Whether to enable TCP_NODELAY for the transport (only for tcp)"))

	key = "transport-tcp-keepalive"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The keepalive interval for the transport (in seconds, only for tcp)"))

	key = "transport-tcp-linger"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The linger time for the transport (in seconds, only for tcp)"))

	key = "zk-servers"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Comma-separated ZooKeeper servers. If set, the served tables are published there for clients using the zk meta type"))

	key = "zk-root"
	ServeCmd.PersistentFlags().String(key, meta.DefaultZKRoot, cmdUtil.WrapString("The znode below which tables are published"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// parse tables
	if path := viper.GetString("tables-file"); path != "" {
		tables, err := readTablesFile(path)
		if err != nil {
			return err
		}
		serveCmdConfig.Tables = tables
	} else {
		tables, err := parseTables(viper.GetString("tables"))
		if err != nil {
			return err
		}
		serveCmdConfig.Tables = tables
	}

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.Transport = common.ServerTransportConfig{
		WorkersPerConn: viper.GetInt("workers-per-conn"),
		SocketConf: common.SocketConf{
			WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
			ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
		},
		TCPConf: common.TCPConf{
			TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
			TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
			TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
		},
	}

	// parse node id
	serveCmdConfig.NodeID = viper.GetString("node-id")
	if serveCmdConfig.NodeID == "" {
		serveCmdConfig.NodeID = uuid.NewString()
	}

	return common.InitLoggers(serveCmdConfig.LogLevel)
}

// run starts the sKV replica
func run(_ *cobra.Command, _ []string) error {

	// parse the serializer
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	// Parse the transport
	var t transport.IRPCServerTransport
	switch viper.GetString("transport") {
	case "http":
		t = http.NewHttpServerTransport()
	case "tcp":
		t = tcp.NewTCPServerTransport(serveCmdConfig.Transport.WorkersPerConn)
	case "unix":
		t = unix.NewUnixServerTransport(serveCmdConfig.Transport.WorkersPerConn)
	default:
		return fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}

	if servers := viper.GetString("zk-servers"); servers != "" {
		if err := publishTables(strings.Split(servers, ","), viper.GetString("zk-root"), serveCmdConfig.Tables); err != nil {
			return err
		}
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
		nil,
	)

	// stop on interrupt
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)
	go func() {
		if _, ok := <-sig; ok {
			server.Logger.Infof("shutting down")
			_ = serv.Close()
		}
	}()

	return serv.Serve()
}

// initConfig reads in serveCmdConfig file and ENV variables if set.
func initConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(cmdUtil.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// parseTables parses a list of NAME:PARTITIONS[:APPID] entries
func parseTables(s string) ([]common.TableConfig, error) {
	var tables []common.TableConfig
	for i, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("invalid table format: %s (expected NAME:PARTITIONS[:APPID])", entry)
		}

		partitions, err := strconv.ParseInt(parts[1], 10, 32)
		if err != nil || partitions <= 0 {
			return nil, fmt.Errorf("invalid partition count %s of table %s", parts[1], parts[0])
		}

		appID := int64(i + 1)
		if len(parts) == 3 {
			if appID, err = strconv.ParseInt(parts[2], 10, 32); err != nil {
				return nil, fmt.Errorf("invalid app id %s of table %s: %v", parts[2], parts[0], err)
			}
		}

		tables = append(tables, common.TableConfig{
			Name:           parts[0],
			AppID:          int32(appID),
			PartitionCount: int32(partitions),
		})
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("at least one table is required")
	}
	return tables, nil
}

// readTablesFile reads the table layout from a yaml file
func readTablesFile(path string) ([]common.TableConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tables file: %v", err)
	}
	var f tablesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse tables file %s: %v", path, err)
	}
	if len(f.Tables) == 0 {
		return nil, fmt.Errorf("tables file %s defines no tables", path)
	}
	return f.Tables, nil
}

// publishTables registers all tables in ZooKeeper
func publishTables(servers []string, root string, tables []common.TableConfig) error {
	conn, _, err := zk.Connect(servers, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to zookeeper: %v", err)
	}
	defer conn.Close()

	for _, table := range tables {
		if err := meta.PublishTable(conn, root, table); err != nil {
			return err
		}
		server.Logger.Infof("published table %s to zookeeper", table.Name)
	}
	return nil
}

package unix

import (
	"net"
	"os"

	"github.com/ValentinKolb/sKV/rpc/common"
	"github.com/ValentinKolb/sKV/rpc/transport"
	"github.com/ValentinKolb/sKV/rpc/transport/base"
	"github.com/cockroachdb/errors"
)

// defaultBufferSize is the frame buffer of a replica connection
const defaultBufferSize = 64 * 1024

type serverConnector struct{}

// NewUnixServerTransport creates the framed replica transport on a unix socket.
// The endpoint is the socket path, a stale socket file there is removed.
func NewUnixServerTransport(workersPerConn int) transport.IRPCServerTransport {
	return base.NewBaseServerTransport(serverConnector{}, defaultBufferSize, workersPerConn)
}

func (serverConnector) GetName() string {
	return "unix"
}

func (serverConnector) Listen(config common.ServerConfig) (net.Listener, error) {
	path := config.Endpoint
	if err := os.RemoveAll(path); err != nil {
		return nil, errors.Wrapf(err, "remove stale socket %s", path)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, errors.Wrapf(err, "unix listen on %s", path)
	}
	return listener, nil
}

func (serverConnector) UpgradeConnection(conn net.Conn, config common.ServerConfig) error {
	return upgradeUnixConn(conn, config.Transport.SocketConf)
}

// upgradeUnixConn applies the socket buffer sizes, it is shared by the client and the server side
func upgradeUnixConn(conn net.Conn, socketConf common.SocketConf) error {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return nil
	}
	if n := socketConf.WriteBufferSize; n > 0 {
		if err := unixConn.SetWriteBuffer(n); err != nil {
			return errors.Wrap(err, "write buffer")
		}
	}
	if n := socketConf.ReadBufferSize; n > 0 {
		if err := unixConn.SetReadBuffer(n); err != nil {
			return errors.Wrap(err, "read buffer")
		}
	}
	return nil
}

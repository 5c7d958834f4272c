package tcp

import (
	"net"
	"time"

	"github.com/ValentinKolb/sKV/rpc/common"
	"github.com/ValentinKolb/sKV/rpc/transport"
	"github.com/ValentinKolb/sKV/rpc/transport/base"
	"github.com/cockroachdb/errors"
)

// defaultBufferSize is the frame buffer of a replica connection
const defaultBufferSize = 512 * 1024

type serverConnector struct{}

// NewTCPServerTransport creates the framed replica transport on a TCP socket
func NewTCPServerTransport(workersPerConn int) transport.IRPCServerTransport {
	return base.NewBaseServerTransport(serverConnector{}, defaultBufferSize, workersPerConn)
}

func (serverConnector) GetName() string {
	return "tcp"
}

func (serverConnector) Listen(config common.ServerConfig) (net.Listener, error) {
	listener, err := net.Listen("tcp", config.Endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "tcp listen on %s", config.Endpoint)
	}
	return listener, nil
}

func (serverConnector) UpgradeConnection(conn net.Conn, config common.ServerConfig) error {
	return upgradeTCPConn(conn, config.Transport.SocketConf, config.Transport.TCPConf)
}

// upgradeTCPConn applies the socket and TCP options to conn, it is shared by
// the client and the server side. Non TCP connections are left alone.
func upgradeTCPConn(conn net.Conn, socketConf common.SocketConf, tcpConf common.TCPConf) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}

	if err := tcpConn.SetNoDelay(tcpConf.TCPNoDelay); err != nil {
		return errors.Wrap(err, "nodelay")
	}
	if n := socketConf.WriteBufferSize; n > 0 {
		if err := tcpConn.SetWriteBuffer(n); err != nil {
			return errors.Wrap(err, "write buffer")
		}
	}
	if n := socketConf.ReadBufferSize; n > 0 {
		if err := tcpConn.SetReadBuffer(n); err != nil {
			return errors.Wrap(err, "read buffer")
		}
	}
	if sec := tcpConf.TCPKeepAliveSec; sec > 0 {
		if err := tcpConn.SetKeepAlive(true); err != nil {
			return errors.Wrap(err, "keepalive")
		}
		if err := tcpConn.SetKeepAlivePeriod(time.Duration(sec) * time.Second); err != nil {
			return errors.Wrap(err, "keepalive period")
		}
	}
	if sec := tcpConf.TCPLingerSec; sec > 0 {
		if err := tcpConn.SetLinger(sec); err != nil {
			return errors.Wrap(err, "linger")
		}
	}
	return nil
}

package meta

import (
	"path"
	"strings"
	"time"

	"github.com/ValentinKolb/sKV/lib/errcode"
	"github.com/ValentinKolb/sKV/rpc/common"
	"github.com/cockroachdb/errors"
	"github.com/go-zookeeper/zk"
	"github.com/goccy/go-yaml"
)

// DefaultZKRoot is the znode below which tables are registered if no root is configured
const DefaultZKRoot = "/skv/tables"

// zkConn is the part of *zk.Conn used by the resolver
type zkConn interface {
	Get(path string) ([]byte, *zk.Stat, error)
	Close()
}

type zkResolver struct {
	conn zkConn
	root string
}

// NewZKResolver connects to the given ZooKeeper servers and resolves tables below root
func NewZKResolver(servers []string, root string, sessionTimeout time.Duration) (IMetaResolver, error) {
	if len(servers) == 0 {
		return nil, errors.New("no zookeeper servers provided")
	}
	conn, _, err := zk.Connect(servers, sessionTimeout)
	if err != nil {
		return nil, errors.Wrap(err, "zk connect")
	}
	return newZKResolver(conn, root), nil
}

func newZKResolver(conn zkConn, root string) *zkResolver {
	if root == "" {
		root = DefaultZKRoot
	}
	return &zkResolver{conn: conn, root: root}
}

func (r *zkResolver) QueryPartitionCount(appName string, timeout time.Duration, callback QueryCallback) {
	type result struct {
		table common.TableConfig
		err   error
	}
	done := make(chan result, 1)

	go func() {
		table, err := r.read(appName)
		done <- result{table, err}
	}()

	go func() {
		var timer <-chan time.Time
		if timeout > 0 {
			t := time.NewTimer(timeout)
			defer t.Stop()
			timer = t.C
		}

		select {
		case res := <-done:
			if res.err != nil {
				callback(-1, -1, res.err)
				return
			}
			callback(res.table.PartitionCount, res.table.AppID, nil)
		case <-timer:
			callback(-1, -1, errcode.NewTransportError(errcode.TransportTimeout,
				errors.Newf("zk query for table %q timed out", appName)))
		}
	}()
}

func (r *zkResolver) Close() error {
	r.conn.Close()
	return nil
}

// read fetches and decodes the znode of a table
func (r *zkResolver) read(appName string) (common.TableConfig, error) {
	var table common.TableConfig

	data, _, err := r.conn.Get(tablePath(r.root, appName))
	if errors.Is(err, zk.ErrNoNode) {
		return table, errcode.NewTransportError(errcode.TransportObjectNotFound,
			errors.Newf("table %q is not registered", appName))
	}
	if err != nil {
		return table, errcode.NewTransportError(errcode.TransportNetworkFailure, errors.Wrap(err, "zk get"))
	}

	if err := yaml.Unmarshal(data, &table); err != nil {
		Logger.Errorf("invalid table znode for %q: %v", appName, err)
		return table, errcode.NewTransportError(errcode.TransportInvalidState, errors.Wrap(err, "decoding table znode"))
	}
	if table.PartitionCount <= 0 {
		return table, errcode.NewTransportError(errcode.TransportInvalidState,
			errors.Newf("table %q has no partitions", appName))
	}
	return table, nil
}

func tablePath(root, appName string) string {
	return path.Join(root, appName)
}

// PublishTable writes the layout of table below root, creating missing parent znodes.
// An existing znode is overwritten.
func PublishTable(conn *zk.Conn, root string, table common.TableConfig) error {
	if root == "" {
		root = DefaultZKRoot
	}
	if err := ensurePath(conn, root); err != nil {
		return errors.Wrapf(err, "ensure path %s", root)
	}

	data, err := yaml.Marshal(table)
	if err != nil {
		return err
	}

	p := tablePath(root, table.Name)
	_, err = conn.Create(p, data, 0, zk.WorldACL(zk.PermAll))
	if errors.Is(err, zk.ErrNodeExists) {
		_, err = conn.Set(p, data, -1)
	}
	if err != nil {
		return errors.Wrapf(err, "publish table %s", table.Name)
	}

	Logger.Infof("published table %s to %s", table.Name, p)
	return nil
}

func ensurePath(conn *zk.Conn, p string) error {
	cur := ""
	for _, part := range strings.Split(p, "/") {
		if part == "" {
			continue
		}
		cur = cur + "/" + part
		exists, _, err := conn.Exists(cur)
		if err != nil {
			return err
		}
		if !exists {
			_, err = conn.Create(cur, nil, 0, zk.WorldACL(zk.PermAll))
			if err != nil && !errors.Is(err, zk.ErrNodeExists) {
				return err
			}
		}
	}
	return nil
}

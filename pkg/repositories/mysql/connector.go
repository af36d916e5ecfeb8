// Package mysql implements the target database collaborator for MySQL and
// MySQL-compatible servers.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/querypilot/querypilot/pkg/errors"
	"github.com/querypilot/querypilot/pkg/models"
	"github.com/querypilot/querypilot/pkg/repositories"
)

// ConnectorConfig carries the network timeouts applied to every session.
type ConnectorConfig struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// DefaultConnectorConfig mirrors the server defaults: short dial timeout,
// long statement timeouts to accommodate online DDL.
func DefaultConnectorConfig() ConnectorConfig {
	return ConnectorConfig{
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    5 * time.Minute,
		WriteTimeout:   5 * time.Minute,
	}
}

// Connector opens MySQL sessions against connection targets.
type Connector struct {
	cfg ConnectorConfig
}

// NewConnector creates a new connector.
func NewConnector(cfg ConnectorConfig) *Connector {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	return &Connector{cfg: cfg}
}

// Connect opens one session to the given host of the target. database
// overrides the target's default database when non-empty. The session is
// verified with a ping before it is handed out.
func (c *Connector) Connect(ctx context.Context, target *models.ConnectionTarget, host, database string) (repositories.Session, error) {
	if host == "" {
		host = target.Host
	}
	addr := host
	if !strings.Contains(addr, ":") {
		port := target.Port
		if port == 0 {
			port = 3306
		}
		addr = fmt.Sprintf("%s:%d", host, port)
	}
	if database == "" {
		database = target.Database
	}

	dsnCfg := mysql.NewConfig()
	dsnCfg.User = target.Username
	dsnCfg.Passwd = target.Password
	dsnCfg.Net = "tcp"
	dsnCfg.Addr = addr
	dsnCfg.DBName = database
	dsnCfg.Timeout = c.cfg.ConnectTimeout
	dsnCfg.ReadTimeout = c.cfg.ReadTimeout
	dsnCfg.WriteTimeout = c.cfg.WriteTimeout
	dsnCfg.ParseTime = true
	dsnCfg.MultiStatements = false

	db, err := sql.Open("mysql", dsnCfg.FormatDSN())
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeConnectionFailed, "failed to open connection to %s", addr)
	}

	// one session per request, no idle pool to leak
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, errors.CodeConnectionFailed, "target %s unreachable", addr)
	}

	return &session{db: db, addr: addr}, nil
}

var _ repositories.TargetConnector = (*Connector)(nil)

package database

import (
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/pkg/errors"
)

const (
	defaultMaxRetry = 6

	defaultConnectionMaxLifetime = 2 * time.Minute
	defaultConnectionMaxIdleTime = 30 * time.Second

	defaultDBPoolSize   = 5
	defaultIdlePoolSize = defaultDBPoolSize
)

type Settings struct {
	Host                  string
	Port                  string
	User                  string
	Password              string
	Database              string
	SSLModeDisable        bool
	CertPath              string
	ConnectionMaxLifetime time.Duration
	ConnectionMaxIdleTime time.Duration
	MaxIdleConnections    uint
	PoolSize              uint
}

// connectionString renders user:password@host:port/db?sslmode=..., without a scheme.
func connectionString(s Settings) (string, error) {
	if s.Host == "" || s.Database == "" {
		return "", errors.New("database host and name are required")
	}
	port := s.Port
	if port == "" {
		port = "5432"
	}
	connString := fmt.Sprintf("%s@%s/%s",
		url.UserPassword(s.User, s.Password).String(),
		net.JoinHostPort(s.Host, port),
		s.Database,
	)

	if s.SSLModeDisable {
		return connString + "?sslmode=disable", nil
	}

	// Without a CA bundle, encryption is still required.
	if s.CertPath == "" {
		return connString + "?sslmode=require", nil
	}

	if _, err := os.Stat(s.CertPath); errors.Is(err, os.ErrNotExist) {
		return "", errors.New("ssl mode was enabled but cert file not found")
	} else if err != nil {
		return "", err
	}

	return connString + "?sslmode=verify-ca&sslrootcert=" + url.QueryEscape(s.CertPath), nil
}

// DSN is the postgres:// URL used by both the driver and migrations.
func DSN(s Settings) (string, error) {
	c, err := connectionString(s)
	if err != nil {
		return "", err
	}
	return "postgres://" + c, nil
}

func configurePool(db *sql.DB, s Settings) *sql.DB {
	maxLifetime := s.ConnectionMaxLifetime
	if maxLifetime == 0 {
		maxLifetime = defaultConnectionMaxLifetime
	}
	maxIdleTime := s.ConnectionMaxIdleTime
	if maxIdleTime == 0 {
		maxIdleTime = defaultConnectionMaxIdleTime
	}
	poolSize := s.PoolSize
	if poolSize == 0 {
		poolSize = defaultDBPoolSize
	}
	maxIdle := s.MaxIdleConnections
	if maxIdle == 0 {
		maxIdle = defaultIdlePoolSize
	}

	db.SetMaxOpenConns(int(poolSize))
	db.SetMaxIdleConns(int(maxIdle))
	db.SetConnMaxLifetime(maxLifetime)
	db.SetConnMaxIdleTime(maxIdleTime)
	return db
}

// Package testutil provides a stub database/sql driver for postgres store
// tests so persistence can be exercised without a running server.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
)

var driverSeq atomic.Int64

// StubConn records statements and keeps bucket payloads in memory.
type StubConn struct {
	mu      sync.Mutex
	Buckets map[string][]byte
	Execs   []string
	closes  int

	FailPing   bool
	FailExec   bool
	FailQuery  bool
	FailBegin  bool
	FailCommit bool
}

// NewStubDB registers a sql.DB backed by an in-memory stub connection.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Buckets: make(map[string][]byte)}
	name := fmt.Sprintf("stubpg%d", driverSeq.Add(1))
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

// Payload returns the stored payload for a bucket.
func (c *StubConn) Payload(bucket string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.Buckets[bucket]
	return b, ok
}

// SetPayload seeds a bucket payload, simulating pre-existing state.
func (c *StubConn) SetPayload(bucket string, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Buckets[bucket] = payload
}

type stubDriver struct {
	conn *StubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) {
	return d.conn, nil
}

// Prepare implements driver.Conn.
func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }

// Close implements driver.Conn.
func (c *StubConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

// CloseCalls reports how many times the connection was closed.
func (c *StubConn) CloseCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(_ context.Context) error {
	if c.FailPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(_ context.Context, _ driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, fmt.Errorf("begin fail")
	}
	return &stubTx{conn: c}, nil
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, fmt.Errorf("exec fail")
	}
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "INSERT INTO STATE") {
		if len(args) != 2 {
			return nil, fmt.Errorf("expected bucket and payload, got %d args", len(args))
		}
		bucket, ok := args[0].Value.(string)
		if !ok {
			return nil, fmt.Errorf("bucket must be a string, got %T", args[0].Value)
		}
		payload, ok := args[1].Value.([]byte)
		if !ok {
			return nil, fmt.Errorf("payload must be bytes, got %T", args[1].Value)
		}
		c.Buckets[bucket] = append([]byte(nil), payload...)
	}
	return driver.RowsAffected(1), nil
}

// QueryContext implements driver.QueryerContext for the snapshot select.
func (c *StubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	if c.FailQuery {
		return nil, fmt.Errorf("query fail")
	}
	if !strings.Contains(strings.ToUpper(query), "FROM STATE") {
		return nil, fmt.Errorf("unexpected query %q", query)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	rows := &stubRows{}
	for bucket, payload := range c.Buckets {
		rows.buckets = append(rows.buckets, bucket)
		rows.payloads = append(rows.payloads, append([]byte(nil), payload...))
	}
	return rows, nil
}

type stubTx struct {
	conn *StubConn
}

func (t *stubTx) Commit() error {
	if t.conn.FailCommit {
		return fmt.Errorf("commit fail")
	}
	return nil
}

func (t *stubTx) Rollback() error { return nil }

type stubRows struct {
	buckets  []string
	payloads [][]byte
	idx      int
}

func (r *stubRows) Columns() []string { return []string{"bucket", "payload"} }

func (r *stubRows) Close() error { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.buckets) {
		return io.EOF
	}
	dest[0] = r.buckets[r.idx]
	dest[1] = r.payloads[r.idx]
	r.idx++
	return nil
}

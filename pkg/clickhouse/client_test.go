package clickhouse

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	ch "github.com/ClickHouse/clickhouse-go/v2"
)

func TestOptions(t *testing.T) {
	o := Options(
		WithAddr("ch", 9440),
		WithAuth("sensors", "reader", "secret"),
		WithAsyncInsert(true, false),
		WithMaxExecutionTime(30*time.Second),
	)

	if len(o.Addr) != 1 || o.Addr[0] != "ch:9440" {
		t.Fatalf("addr = %v", o.Addr)
	}
	if o.Auth.Database != "sensors" || o.Auth.Username != "reader" || o.Auth.Password != "secret" {
		t.Fatalf("auth = %+v", o.Auth)
	}
	if o.Protocol != ch.Native {
		t.Fatalf("protocol = %v", o.Protocol)
	}
	if o.Settings["async_insert"] != 1 || o.Settings["wait_for_async_insert"] != 0 {
		t.Fatalf("async settings = %v", o.Settings)
	}
	if o.Settings["max_execution_time"] != 30 {
		t.Fatalf("max_execution_time = %v", o.Settings["max_execution_time"])
	}
}

func TestOptionsDefaultsLeaveSettingsEmpty(t *testing.T) {
	o := Options(WithHTTP(true), WithAsyncInsert(false, true))
	if o.Protocol != ch.HTTP {
		t.Fatalf("protocol = %v", o.Protocol)
	}
	if len(o.Settings) != 0 {
		t.Fatalf("settings = %v", o.Settings)
	}
}

func TestMigrateStopsAtFirstFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	c := NewClientFromDB(db)
	defer c.Close()

	stmts := SampleSchema("sensors", "samples", 0)
	mock.ExpectExec("CREATE DATABASE IF NOT EXISTS sensors").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS sensors.samples").WillReturnError(errors.New("readonly"))

	err = c.Migrate(context.Background(), append(stmts, "SELECT 1")...)
	if err == nil || !strings.Contains(err.Error(), "step 2") {
		t.Fatalf("err = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSampleSchemaRetention(t *testing.T) {
	stmts := SampleSchema("sensors", "samples", 30*24*time.Hour)
	if len(stmts) != 2 || !strings.Contains(stmts[1], "INTERVAL 30 DAY") {
		t.Fatalf("unexpected schema: %v", stmts)
	}
	if strings.Contains(SampleSchema("sensors", "samples", 0)[1], "TTL") {
		t.Fatalf("no retention must not add a TTL")
	}
}

// Copyright 2026 Mandatevault Ltd.

// Package vaulttest contains useful helpers for testing the vault.
package vaulttest

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// A Tester is the test interface required by this package.
type Tester interface {
	Fatalf(format string, args ...interface{})
	Logf(format string, args ...interface{})
	Name() string
}

// A gormLogger is a gorm.Logger that is used in tests. It logs
// everything to the test.
type gormLogger struct {
	t     Tester
	level logger.LogLevel
}

// NewGormLogger returns a gorm logger.Interface that can be used in a
// test. All output is logged to the test.
func NewGormLogger(t Tester, l logger.LogLevel) logger.Interface {
	return gormLogger{t: t, level: l}
}

func (l gormLogger) LogMode(_ logger.LogLevel) logger.Interface {
	return l
}

func (l gormLogger) Info(_ context.Context, fmt string, args ...interface{}) {
	if l.level >= logger.Info {
		l.t.Logf(fmt, args...)
	}
}

func (l gormLogger) Warn(_ context.Context, fmt string, args ...interface{}) {
	if l.level >= logger.Warn {
		l.t.Logf(fmt, args...)
	}
}

func (l gormLogger) Error(_ context.Context, fmt string, args ...interface{}) {
	if l.level >= logger.Error {
		l.t.Logf(fmt, args...)
	}
}

func (l gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	sql, rows := fc()
	errS := "<nil>"
	if err != nil {
		errS = fmt.Sprintf("%q", err.Error())
	}
	l.Info(ctx, "sql:%q rows:%d, error:%s, duration:%0.3fms", sql, rows, errS, float64(time.Since(begin).Microseconds())/10e3)
}

var _ logger.Interface = gormLogger{}

var unsafeChars = regexp.MustCompile("[ .:;`'\"|<>~/\\\\?!@#$%^&*()[\\]{}=+-]")

var dbCount int64

// MemoryDB returns an in-memory SQLite database instance for tests.
// Each call opens a distinct database, so tests never share state.
func MemoryDB(t Tester, nowFunc func() time.Time) *gorm.DB {
	_, present := os.LookupEnv("TERSE")
	logLevel := logger.Info
	if present {
		logLevel = logger.Warn
	}
	cfg := gorm.Config{
		Logger:  NewGormLogger(t, logLevel),
		NowFunc: nowFunc,
	}

	name := strings.ToLower(unsafeChars.ReplaceAllString(t.Name(), "_"))
	dsn := fmt.Sprintf("file:%s%d?mode=memory&cache=shared", name, atomic.AddInt64(&dbCount, 1))
	gdb, err := gorm.Open(sqlite.Open(dsn), &cfg)
	if err != nil {
		t.Fatalf("error opening database: %s", err)
	}
	return gdb
}

package database

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const startedAtKey = "clinicflow:started_at"

// Instrument records the latency of every statement in queryDuration, labelled
// by operation and table, and logs statements slower than slowThreshold.
func Instrument(db *gorm.DB, queryDuration *prometheus.HistogramVec, log *zap.Logger, slowThreshold time.Duration) error {
	before := func(tx *gorm.DB) {
		tx.InstanceSet(startedAtKey, time.Now())
	}
	after := func(op string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			v, ok := tx.InstanceGet(startedAtKey)
			if !ok {
				return
			}
			started, ok := v.(time.Time)
			if !ok {
				return
			}
			elapsed := time.Since(started)
			queryDuration.WithLabelValues(op, tx.Statement.Table).Observe(elapsed.Seconds())

			if slowThreshold > 0 && elapsed > slowThreshold {
				log.Warn("slow query",
					zap.String("operation", op),
					zap.String("table", tx.Statement.Table),
					zap.Duration("duration", elapsed),
					zap.String("sql", tx.Statement.SQL.String()),
				)
			}
		}
	}

	cb := db.Callback()
	registrations := []struct {
		op     string
		before func(string, func(*gorm.DB)) error
		after  func(string, func(*gorm.DB)) error
	}{
		{"create", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}

	for _, r := range registrations {
		if err := r.before("clinicflow:before_"+r.op, before); err != nil {
			return fmt.Errorf("registering %s callback: %w", r.op, err)
		}
		if err := r.after("clinicflow:after_"+r.op, after(r.op)); err != nil {
			return fmt.Errorf("registering %s callback: %w", r.op, err)
		}
	}
	return nil
}

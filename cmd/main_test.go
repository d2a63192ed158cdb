package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/KotFed0t/sp500_loader/config"
	"github.com/KotFed0t/sp500_loader/internal/model"
	"github.com/KotFed0t/sp500_loader/internal/scheduler"
	"github.com/KotFed0t/sp500_loader/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_FlagOverrides(t *testing.T) {
	interval, symbolCap, collect = "1y", 5, true
	t.Cleanup(func() { interval, symbolCap, collect = "", 0, false })

	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, "1y", cfg.History.Interval)
	assert.Equal(t, 5, cfg.History.SymbolCap)
	assert.Equal(t, config.FailurePolicyCollect, cfg.History.FailurePolicy)
}

func TestWriteJSON_Table(t *testing.T) {
	var buf bytes.Buffer
	table := model.NewTable([]string{"Symbol", "Name"}, [][]string{{"AAPL"}, {"Apple Inc."}}, 1)

	require.NoError(t, writeJSON(&buf, table))
	assert.JSONEq(t, `{"columns":["Symbol","Name"],"rows":[["AAPL","Apple Inc."]]}`, buf.String())
}

func TestFailedSymbols(t *testing.T) {
	assert.Nil(t, failedSymbols(nil))
	assert.Equal(t, []string{"A", "B"}, failedSymbols(&service.BatchError{Failures: map[string]error{"B": service.ErrNotFound, "A": service.ErrNotFound}}))
}

func TestScheduleExport(t *testing.T) {
	noop := func(context.Context) error { return nil }

	tests := []struct {
		name    string
		jobs    config.Jobs
		wantErr bool
	}{
		{name: "interval", jobs: config.Jobs{ExportInterval: time.Hour}},
		{name: "cron", jobs: config.Jobs{ExportInterval: time.Hour, ExportCron: "0 30 6 * * 1-5"}},
		{name: "bad cron", jobs: config.Jobs{ExportInterval: time.Hour, ExportCron: "every morning"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched, err := scheduler.New()
			require.NoError(t, err)

			err = scheduleExport(sched, tt.jobs, noop)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

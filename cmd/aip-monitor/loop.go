package main

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/dreschagin/aip-monitor/internal/application/dto"
	"github.com/dreschagin/aip-monitor/pkg/logger"
)

type recorder interface {
	Record(ctx context.Context, echo bool) (dto.Echo, error)
}

// pollLoop вызывает Record один раз сразу и далее раз в interval.
// Ошибки записи логируются, цикл продолжается.
type pollLoop struct {
	recorder recorder
	interval time.Duration
	// cycles == 0 - до отмены ctx
	cycles  int
	echo    bool
	out     io.Writer
	onCycle func()
	logger  *logger.Logger
}

// Run возвращает число выполненных циклов
func (l pollLoop) Run(ctx context.Context) int {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	enc := json.NewEncoder(l.out)
	completed := 0

	for {
		if ctx.Err() != nil {
			return completed
		}

		echo, err := l.recorder.Record(ctx, l.echo)
		completed++
		if err != nil {
			l.logger.Error("Failed to record cycle", err, "cycle", completed)
		} else {
			if l.onCycle != nil {
				l.onCycle()
			}
			if records, ok := echo.Records(); ok {
				for _, r := range records {
					if err := enc.Encode(r); err != nil {
						l.logger.Warn("Failed to print echo", "error", err.Error())
						break
					}
				}
			}
		}

		if l.cycles > 0 && completed >= l.cycles {
			return completed
		}

		select {
		case <-ctx.Done():
			return completed
		case <-ticker.C:
		}
	}
}

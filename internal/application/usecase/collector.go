package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/dreschagin/aip-monitor/internal/application/dto"
	"github.com/dreschagin/aip-monitor/internal/application/port"
	"github.com/dreschagin/aip-monitor/internal/domain/entity"
	"github.com/dreschagin/aip-monitor/internal/domain/service"
	"github.com/dreschagin/aip-monitor/pkg/logger"
)

// Collector координирует цикл сбора: опрос источника, нормализацию и экспорт.
// Сам Collector не хранит историю, все состояние находится в источнике и экспортере.
type Collector struct {
	source   port.DeviceSource
	exporter port.Exporter
	observer port.CycleObserver
	logger   *logger.Logger
}

// Option настраивает Collector
type Option func(*Collector)

// WithObserver подключает наблюдателя за циклами (метрики самого процесса)
func WithObserver(observer port.CycleObserver) Option {
	return func(c *Collector) {
		c.observer = observer
	}
}

// NewCollector создает Collector и инициализирует экспортер схемой записи.
// Ошибка инициализации фатальна и оборачивается в port.ErrSinkInitialization.
func NewCollector(
	ctx context.Context,
	source port.DeviceSource,
	exporter port.Exporter,
	logger *logger.Logger,
	opts ...Option,
) (*Collector, error) {
	c := &Collector{
		source:   source,
		exporter: exporter,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}

	schema := append([]string(nil), entity.RecordFields...)
	if err := exporter.Initialize(ctx, schema); err != nil {
		return nil, fmt.Errorf("%w: %w", port.ErrSinkInitialization, err)
	}

	c.logger.Info("Collector initialized", "devices", len(source.Devices()))
	return c, nil
}

// Devices возвращает устройства источника
func (c *Collector) Devices() []entity.Device {
	return c.source.Devices()
}

// Record выполняет один цикл сбора.
// При echo=true возвращает записанную пачку, иначе пустой Echo.
func (c *Collector) Record(ctx context.Context, echo bool) (dto.Echo, error) {
	start := time.Now()

	// 1. Опрашиваем источник
	raws := c.source.Collect(ctx)

	// 2. Нормализуем каждое показание независимо, порядок сохраняется
	batch := service.NormalizeAll(raws)

	// 3. Экспортируем пачку
	err := c.exporter.Write(ctx, batch)
	if err != nil {
		err = fmt.Errorf("%w: %w", port.ErrSinkWrite, err)
	}

	if c.observer != nil {
		c.observer.ObserveCycle(len(batch), time.Since(start), err)
	}

	if err != nil {
		return dto.None(), err
	}

	c.logger.Debug("Cycle recorded", "records", len(batch), "duration", time.Since(start))

	if echo {
		return dto.Some(batch), nil
	}
	return dto.None(), nil
}

// Close сбрасывает и закрывает экспортер
func (c *Collector) Close(ctx context.Context) error {
	if err := c.exporter.Close(ctx); err != nil {
		return fmt.Errorf("failed to close exporter: %w", err)
	}
	return nil
}

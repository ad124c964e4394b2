package port

import (
	"context"

	"github.com/dreschagin/aip-monitor/internal/domain/entity"
	"github.com/dreschagin/aip-monitor/internal/domain/valueobject"
)

// DeviceSource определяет источник показаний ускорителей (Port)
// Реализации находятся в Infrastructure слое
type DeviceSource interface {
	// Devices возвращает устройства, обнаруженные при создании источника
	Devices() []entity.Device

	// Collect возвращает по одному показанию на каждое устройство в порядке Devices().
	// Ошибки опроса отдельных устройств превращаются в sentinel-показания.
	Collect(ctx context.Context) []valueobject.RawReading
}

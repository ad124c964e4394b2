package source

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/dreschagin/aip-monitor/internal/application/port"
	"github.com/dreschagin/aip-monitor/internal/domain/entity"
	"github.com/dreschagin/aip-monitor/internal/domain/service"
	"github.com/dreschagin/aip-monitor/internal/domain/valueobject"
	"github.com/dreschagin/aip-monitor/pkg/logger"
)

// Library - интерфейс драйвера ускорителей, перечисляющего устройства
type Library interface {
	DeviceList(ctx context.Context) ([]DeviceHandle, error)
}

// DeviceHandle возвращает текущее состояние одного устройства.
// Ключи совпадают с ключами valueobject.RawReading, любой ключ может отсутствовать.
type DeviceHandle interface {
	Info(ctx context.Context) (map[string]any, error)
}

// SDKSource опрашивает устройства через Library.
// Реализует интерфейс port.DeviceSource.
type SDKSource struct {
	handles  []DeviceHandle
	devices  []entity.Device
	now      func() time.Time
	logger   *logger.Logger
	warnings *rate.Sometimes
}

// NewSDKSource перечисляет устройства один раз при создании.
// Ошибка перечисления не фатальна: источник остается без устройств.
func NewSDKSource(ctx context.Context, lib Library, log *logger.Logger) *SDKSource {
	s := &SDKSource{
		now:      time.Now,
		logger:   log,
		warnings: &rate.Sometimes{First: 3, Interval: time.Minute},
	}

	handles, err := lib.DeviceList(ctx)
	if err != nil {
		log.Warn("Device enumeration failed, continuing without devices",
			"error", fmt.Errorf("%w: %w", port.ErrSourceUnavailable, err).Error())
		return s
	}

	s.handles = handles
	s.devices = make([]entity.Device, len(handles))
	for i, h := range handles {
		s.devices[i] = identify(ctx, i, h)
	}

	if len(s.devices) == 0 {
		log.Warn("No devices found", "error", port.ErrSourceUnavailable.Error())
	}
	return s
}

// identify строит Device по первому ответу устройства
func identify(ctx context.Context, position int, h DeviceHandle) entity.Device {
	d := entity.Device{
		Index:       position,
		UUID:        valueobject.Unknown,
		BusAddress:  valueobject.Unknown,
		Serial:      valueobject.Unknown,
		MemoryTotal: valueobject.Sentinel,
	}

	info, err := h.Info(ctx)
	if err != nil {
		return d
	}

	reading := valueobject.RawReading(info)
	if v, ok := reading.Lookup(valueobject.KeyIndex); ok {
		if idx := service.SanitizeIndex(v); idx >= 0 {
			d.Index = idx
		}
	}
	d.UUID = service.SanitizeText(lookupValue(reading, valueobject.KeyUUID))
	d.BusAddress = service.SanitizeText(lookupValue(reading, valueobject.KeyBus))
	d.Serial = service.SanitizeText(lookupValue(reading, valueobject.KeySerial))
	d.MemoryTotal = service.SanitizeNumber(lookupValue(reading, valueobject.KeyMemoryTotal))
	return d
}

// learnIdentity дополняет неизвестные поля устройства из успешного ответа,
// чтобы последующие сбои сохраняли идентичность устройства
func learnIdentity(d entity.Device, reading valueobject.RawReading) entity.Device {
	if d.UUID == valueobject.Unknown {
		d.UUID = service.SanitizeText(lookupValue(reading, valueobject.KeyUUID))
	}
	if d.BusAddress == valueobject.Unknown {
		d.BusAddress = service.SanitizeText(lookupValue(reading, valueobject.KeyBus))
	}
	if d.Serial == valueobject.Unknown {
		d.Serial = service.SanitizeText(lookupValue(reading, valueobject.KeySerial))
	}
	if d.MemoryTotal == valueobject.Sentinel {
		d.MemoryTotal = service.SanitizeNumber(lookupValue(reading, valueobject.KeyMemoryTotal))
	}
	return d
}

func lookupValue(r valueobject.RawReading, key string) any {
	v, _ := r.Lookup(key)
	return v
}

// Devices возвращает устройства, найденные при создании.
// Неизвестные при перечислении поля уточняются после первого успешного опроса.
func (s *SDKSource) Devices() []entity.Device {
	return s.devices
}

// Collect запрашивает состояние каждого устройства по порядку.
// Сбой одного устройства дает показание из sentinel'ов, остальные не затрагиваются.
func (s *SDKSource) Collect(ctx context.Context) []valueobject.RawReading {
	readings := make([]valueobject.RawReading, 0, len(s.handles))

	for i, h := range s.handles {
		timestamp := valueobject.FormatTimestamp(s.now())

		info, err := h.Info(ctx)
		if err != nil {
			device := s.devices[i]
			s.warnings.Do(func() {
				s.logger.Warn("Device query failed",
					"device", device.String(),
					"error", fmt.Errorf("%w: %w", port.ErrDeviceQuery, err).Error())
			})
			readings = append(readings, valueobject.FailedReading(s.devices[i].Identity(timestamp)))
			continue
		}

		reading := make(valueobject.RawReading, len(info)+1)
		for k, v := range info {
			reading[k] = v
		}
		if _, ok := reading.Lookup(valueobject.KeyTimestamp); !ok {
			reading[valueobject.KeyTimestamp] = timestamp
		}
		s.devices[i] = learnIdentity(s.devices[i], reading)
		readings = append(readings, reading)
	}

	return readings
}

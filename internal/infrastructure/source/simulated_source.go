package source

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/dreschagin/aip-monitor/internal/domain/entity"
	"github.com/dreschagin/aip-monitor/internal/domain/valueobject"
)

const (
	simulatedAmplitude = 1.0
	simulatedFrequency = 0.1
	simulatedNoise     = 0.5

	// DefaultMemoryTotal - объем памяти одного устройства в MiB
	DefaultMemoryTotal = 131072
)

// SimulatedDevice - устройство симулятора с номинальными значениями
type SimulatedDevice struct {
	entity.Device
	Temperature    float64
	Power          float64
	UtilizationAIP float64
	UtilizationMem float64
	MemoryUsed     float64
}

// DefaultFleet возвращает три устройства с типичными номинальными значениями
func DefaultFleet() []SimulatedDevice {
	return []SimulatedDevice{
		{
			Device: entity.Device{
				Index: 0, UUID: "01P4-HL3090A0-18-U2W736-22-04-01", BusAddress: "35:00.0",
				Serial: "AO22049929", MemoryTotal: DefaultMemoryTotal,
			},
			Temperature: 40, Power: 214, UtilizationAIP: 0, UtilizationMem: 0, MemoryUsed: 672,
		},
		{
			Device: entity.Device{
				Index: 1, UUID: "01P4-HL3090A0-18-U2Y674-12-04-01", BusAddress: "9a:00.0",
				Serial: "AO22049870", MemoryTotal: DefaultMemoryTotal,
			},
			Temperature: 39, Power: 214, UtilizationAIP: 0, UtilizationMem: 81, MemoryUsed: 106205,
		},
		{
			Device: entity.Device{
				Index: 2, UUID: "01P4-HL3090A0-18-U4P392-07-11-06", BusAddress: "21:00.0",
				Serial: "AO37061668", MemoryTotal: DefaultMemoryTotal,
			},
			Temperature: 41, Power: 214, UtilizationAIP: 0, UtilizationMem: 0, MemoryUsed: 672,
		},
	}
}

// SimulatedSource генерирует плавно меняющиеся показания без оборудования.
// Реализует интерфейс port.DeviceSource, никогда не возвращает ошибок.
type SimulatedSource struct {
	fleet   []SimulatedDevice
	devices []entity.Device
	noise   float64
	rng     *rand.Rand
	now     func() time.Time

	// t - номер цикла, увеличивается на 1 при каждом Collect
	t int
}

// SimulatedOption настраивает SimulatedSource
type SimulatedOption func(*SimulatedSource)

// WithFleet заменяет набор устройств
func WithFleet(fleet []SimulatedDevice) SimulatedOption {
	return func(s *SimulatedSource) {
		s.fleet = fleet
	}
}

// WithNoise задает амплитуду равномерного шума (0 отключает шум)
func WithNoise(noise float64) SimulatedOption {
	return func(s *SimulatedSource) {
		s.noise = math.Abs(noise)
	}
}

// WithSeed делает шум воспроизводимым. Seed 0 оставляет случайный генератор.
func WithSeed(seed uint64) SimulatedOption {
	return func(s *SimulatedSource) {
		if seed != 0 {
			s.rng = rand.New(rand.NewPCG(seed, seed))
		}
	}
}

// WithClock подменяет источник времени
func WithClock(now func() time.Time) SimulatedOption {
	return func(s *SimulatedSource) {
		s.now = now
	}
}

// NewSimulatedSource создает симулятор. По умолчанию используется DefaultFleet.
func NewSimulatedSource(opts ...SimulatedOption) *SimulatedSource {
	s := &SimulatedSource{
		fleet: DefaultFleet(),
		noise: simulatedNoise,
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.devices = make([]entity.Device, len(s.fleet))
	for i, d := range s.fleet {
		s.devices[i] = d.Device
	}
	return s
}

// Devices возвращает устройства симулятора
func (s *SimulatedSource) Devices() []entity.Device {
	return s.devices
}

// Collect генерирует по одному показанию на устройство
func (s *SimulatedSource) Collect(ctx context.Context) []valueobject.RawReading {
	timestamp := valueobject.FormatTimestamp(s.now())
	readings := make([]valueobject.RawReading, 0, len(s.fleet))

	for _, d := range s.fleet {
		phase := float64(s.t + d.Index)

		readings = append(readings, valueobject.RawReading{
			valueobject.KeyTimestamp:      timestamp,
			valueobject.KeyUUID:           d.UUID,
			valueobject.KeyBus:            d.BusAddress,
			valueobject.KeyTemperature:    s.fluctuate(d.Temperature, phase),
			valueobject.KeyUtilizationAIP: s.fluctuate(d.UtilizationAIP, phase),
			valueobject.KeyUtilizationMem: s.fluctuate(d.UtilizationMem, phase),
			valueobject.KeyMemoryTotal:    d.MemoryTotal,
			valueobject.KeyMemoryFree:     d.MemoryTotal - d.MemoryUsed,
			valueobject.KeyMemoryUsed:     d.MemoryUsed,
			valueobject.KeyPower:          s.fluctuate(d.Power, phase),
			valueobject.KeySerial:         d.Serial,
			valueobject.KeyIndex:          d.Index,
		})
	}

	s.t++
	return readings
}

func (s *SimulatedSource) fluctuate(base, phase float64) float64 {
	jitter := 0.0
	if s.noise > 0 {
		jitter = (s.rng.Float64()*2 - 1) * s.noise
	}
	return Fluctuate(base, simulatedAmplitude, simulatedFrequency, phase, jitter)
}

// Fluctuate вычисляет round(base + amplitude*sin(2π*frequency*t) + jitter).
// Половины округляются к четному.
func Fluctuate(base, amplitude, frequency, t, jitter float64) float64 {
	return math.RoundToEven(base + amplitude*math.Sin(2*math.Pi*frequency*t) + jitter)
}

package valueobject

import "time"

const (
	// Sentinel подставляется вместо недоступного или нечислового показания
	Sentinel = -1.0

	// Unknown подставляется вместо отсутствующего текстового поля
	Unknown = "unknown"

	// TimestampLayout - формат времени снятия показаний, общий для всех sink'ов
	TimestampLayout = "Mon Jan 02 15:04:05 UTC 2006"
)

// Ключи сырого показания. Источник заполняет те, что может получить,
// остальные достраиваются при нормализации.
const (
	KeyTimestamp      = "timestamp"
	KeyUUID           = "uuid"
	KeyBus            = "bus"
	KeyTemperature    = "temperature"
	KeyUtilizationAIP = "utilization_aip"
	KeyUtilizationMem = "utilization_mem"
	KeyMemoryTotal    = "memory_total"
	KeyMemoryFree     = "memory_free"
	KeyMemoryUsed     = "memory_used"
	KeyPower          = "power"
	KeySerial         = "serial"
	KeyIndex          = "index"
)

// RawReadingKeys перечисляет все ключи в порядке полей записи
var RawReadingKeys = []string{
	KeyTimestamp,
	KeyUUID,
	KeyBus,
	KeyTemperature,
	KeyUtilizationAIP,
	KeyUtilizationMem,
	KeyMemoryTotal,
	KeyMemoryFree,
	KeyMemoryUsed,
	KeyPower,
	KeySerial,
	KeyIndex,
}

// NumericKeys перечисляет ключи числовых показаний в порядке полей записи
var NumericKeys = []string{
	KeyTemperature,
	KeyUtilizationAIP,
	KeyUtilizationMem,
	KeyMemoryTotal,
	KeyMemoryFree,
	KeyMemoryUsed,
	KeyPower,
}

// RawReading представляет необработанное показание одного устройства (Value Object).
// Значения могут быть числами, строками с единицами ("45%", "62C") или sentinel'ами.
type RawReading map[string]any

// Lookup возвращает значение по ключу, nil считается отсутствующим
func (r RawReading) Lookup(key string) (any, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// FailedReading строит показание для устройства, опрос которого не удался:
// идентификация и время берутся из identity, все числовые ключи равны Sentinel
func FailedReading(identity RawReading) RawReading {
	reading := make(RawReading, len(RawReadingKeys))
	for key, v := range identity {
		reading[key] = v
	}
	for _, key := range NumericKeys {
		reading[key] = Sentinel
	}
	return reading
}

// FormatTimestamp форматирует время в UTC по TimestampLayout
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

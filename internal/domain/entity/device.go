package entity

import (
	"fmt"

	"github.com/dreschagin/aip-monitor/internal/domain/valueobject"
)

// Device описывает ускоритель, обнаруженный при создании источника.
// Index и BusAddress идентифицируют устройство в пределах сессии и не меняются.
type Device struct {
	Index      int
	UUID       string
	BusAddress string
	Serial     string
	// MemoryTotal в MiB
	MemoryTotal float64
}

// String возвращает короткое описание для логов
func (d Device) String() string {
	return fmt.Sprintf("aip%d(%s)", d.Index, d.BusAddress)
}

// Identity возвращает известные поля устройства как сырое показание,
// снятое в момент timestamp
func (d Device) Identity(timestamp string) valueobject.RawReading {
	return valueobject.RawReading{
		valueobject.KeyTimestamp: timestamp,
		valueobject.KeyUUID:      d.UUID,
		valueobject.KeyBus:       d.BusAddress,
		valueobject.KeySerial:    d.Serial,
		valueobject.KeyIndex:     d.Index,
	}
}

package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/dreschagin/aip-monitor/internal/application/port"
	"github.com/dreschagin/aip-monitor/internal/domain/entity"
	"github.com/dreschagin/aip-monitor/internal/domain/valueobject"
	"github.com/dreschagin/aip-monitor/pkg/logger"
)

const (
	// DefaultSMIPath - утилита управления ускорителями
	DefaultSMIPath = "hl-smi"

	// DefaultSMITimeout ограничивает один вызов утилиты
	DefaultSMITimeout = 10 * time.Second
)

// queryField связывает поле запроса утилиты с ключом сырого показания
type queryField struct {
	name string
	key  string
}

// Порядок совпадает с порядком колонок в ответе утилиты
var queryFields = []queryField{
	{"timestamp", valueobject.KeyTimestamp},
	{"uuid", valueobject.KeyUUID},
	{"bus_id", valueobject.KeyBus},
	{"temperature.aip", valueobject.KeyTemperature},
	{"utilization.aip", valueobject.KeyUtilizationAIP},
	{"utilization.memory", valueobject.KeyUtilizationMem},
	{"memory.total", valueobject.KeyMemoryTotal},
	{"memory.free", valueobject.KeyMemoryFree},
	{"memory.used", valueobject.KeyMemoryUsed},
	{"power.draw", valueobject.KeyPower},
	{"serial", valueobject.KeySerial},
	{"index", valueobject.KeyIndex},
}

var pciAddressPattern = regexp.MustCompile(`(?:[0-9a-fA-F]{4}:)?[0-9a-fA-F]{2}:[0-9a-fA-F]{2}\.[0-7]`)

// Runner запускает внешнюю команду и возвращает ее stdout
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner запускает команды через os/exec, ограничивая каждый вызов Timeout
type ExecRunner struct {
	Timeout time.Duration
}

// Run выполняет команду. Превышение Timeout возвращает context.DeadlineExceeded.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", name, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// CLISource опрашивает устройства через утилиту управления, по одному процессу
// на устройство, последовательно. Реализует интерфейс port.DeviceSource.
type CLISource struct {
	tool     string
	runner   Runner
	devices  []entity.Device
	now      func() time.Time
	logger   *logger.Logger
	warnings *rate.Sometimes
}

// NewCLISource перечисляет устройства вызовом "<tool> --list-aips".
// Если утилита недоступна, источник остается без устройств.
func NewCLISource(ctx context.Context, tool string, runner Runner, log *logger.Logger) *CLISource {
	if tool == "" {
		tool = DefaultSMIPath
	}

	s := &CLISource{
		tool:     tool,
		runner:   runner,
		now:      time.Now,
		logger:   log,
		warnings: &rate.Sometimes{First: 3, Interval: time.Minute},
	}

	out, err := runner.Run(ctx, tool, "--list-aips")
	if err != nil {
		log.Warn("Device enumeration failed, continuing without devices",
			"tool", tool,
			"error", fmt.Errorf("%w: %w", port.ErrSourceUnavailable, err).Error())
		return s
	}

	for i, addr := range ParsePCIAddresses(out) {
		s.devices = append(s.devices, entity.Device{
			Index:       i,
			UUID:        valueobject.Unknown,
			BusAddress:  addr,
			Serial:      valueobject.Unknown,
			MemoryTotal: valueobject.Sentinel,
		})
	}

	if len(s.devices) == 0 {
		log.Warn("No devices found", "tool", tool, "error", port.ErrSourceUnavailable.Error())
	}
	return s
}

// ParsePCIAddresses извлекает уникальные PCI-адреса из вывода утилиты в порядке появления
func ParsePCIAddresses(out []byte) []string {
	seen := make(map[string]struct{})
	var addrs []string
	for _, match := range pciAddressPattern.FindAll(out, -1) {
		addr := string(match)
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		addrs = append(addrs, addr)
	}
	return addrs
}

// Devices возвращает устройства, найденные при создании. UUID и серийный
// номер становятся известны после первого успешного опроса.
func (s *CLISource) Devices() []entity.Device {
	return s.devices
}

// Collect опрашивает устройства по очереди. Неудачный, зависший или
// некорректный ответ дает sentinel'ы в числовых полях, идентичность
// устройства и время опроса сохраняются.
func (s *CLISource) Collect(ctx context.Context) []valueobject.RawReading {
	readings := make([]valueobject.RawReading, 0, len(s.devices))

	for i, d := range s.devices {
		timestamp := valueobject.FormatTimestamp(s.now())

		reading, err := s.query(ctx, d.BusAddress)
		if err != nil {
			device := d
			s.warnings.Do(func() {
				s.logger.Warn("Device query failed",
					"device", device.String(),
					"error", fmt.Errorf("%w: %w", port.ErrDeviceQuery, err).Error())
			})
			readings = append(readings, valueobject.FailedReading(d.Identity(timestamp)))
			continue
		}

		s.devices[i] = learnIdentity(d, reading)
		readings = append(readings, reading)
	}

	return readings
}

func (s *CLISource) query(ctx context.Context, bus string) (valueobject.RawReading, error) {
	out, err := s.runner.Run(ctx, s.tool, QueryArgs(bus)...)
	if err != nil {
		return nil, err
	}
	return ParseQueryOutput(out)
}

// QueryArgs возвращает аргументы запроса одного устройства
func QueryArgs(bus string) []string {
	names := make([]string, len(queryFields))
	for i, f := range queryFields {
		names[i] = f.name
	}
	return []string{
		"--query-aip=" + strings.Join(names, ","),
		"--format=csv,noheader,nounits",
		"-i", bus,
	}
}

// ParseQueryOutput разбирает первую CSV-строку ответа позиционно
func ParseQueryOutput(out []byte) (valueobject.RawReading, error) {
	r := csv.NewReader(bytes.NewReader(out))
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	record, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty query output")
		}
		return nil, fmt.Errorf("malformed query output: %w", err)
	}
	if len(record) != len(queryFields) {
		return nil, fmt.Errorf("malformed query output: expected %d fields, got %d", len(queryFields), len(record))
	}

	reading := make(valueobject.RawReading, len(queryFields))
	for i, f := range queryFields {
		reading[f.key] = strings.TrimSpace(record[i])
	}
	return reading, nil
}

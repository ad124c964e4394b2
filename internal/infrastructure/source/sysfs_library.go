package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dreschagin/aip-monitor/internal/domain/valueobject"
)

// DefaultSysfsRoot - класс accel-устройств в sysfs
const DefaultSysfsRoot = "/sys/class/accel"

// SysfsLibrary реализует Library поверх атрибутов драйвера в sysfs:
// <root>/accelN/device/{pci_addr,serial_number,uuid} и hwmon этого устройства.
type SysfsLibrary struct {
	root string
}

// NewSysfsLibrary создает библиотеку с корнем root (пустой - DefaultSysfsRoot)
func NewSysfsLibrary(root string) *SysfsLibrary {
	if root == "" {
		root = DefaultSysfsRoot
	}
	return &SysfsLibrary{root: root}
}

// DeviceList находит устройства accelN, отсортированные по номеру
func (l *SysfsLibrary) DeviceList(ctx context.Context) ([]DeviceHandle, error) {
	if _, err := os.Stat(l.root); err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", l.root, err)
	}

	matches, err := filepath.Glob(filepath.Join(l.root, "accel*"))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", l.root, err)
	}

	devices := make([]*sysfsDevice, 0, len(matches))
	for _, path := range matches {
		index, err := strconv.Atoi(strings.TrimPrefix(filepath.Base(path), "accel"))
		if err != nil {
			continue
		}
		devices = append(devices, &sysfsDevice{
			index: index,
			dir:   filepath.Join(path, "device"),
		})
	}

	sort.Slice(devices, func(i, j int) bool {
		return devices[i].index < devices[j].index
	})

	handles := make([]DeviceHandle, len(devices))
	for i, d := range devices {
		handles[i] = d
	}
	return handles, nil
}

type sysfsDevice struct {
	index int
	dir   string
}

// Info читает атрибуты устройства. Отсутствующие атрибуты пропускаются,
// ошибка возвращается только если пропал сам каталог устройства.
func (d *sysfsDevice) Info(ctx context.Context) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(d.dir); err != nil {
		return nil, fmt.Errorf("device accel%d: %w", d.index, err)
	}

	info := map[string]any{
		valueobject.KeyIndex: d.index,
	}

	if v, ok := readAttr(d.dir, "pci_addr"); ok {
		info[valueobject.KeyBus] = shortBusID(v)
	}
	if v, ok := readAttr(d.dir, "serial_number"); ok {
		info[valueobject.KeySerial] = v
	}
	if v, ok := readAttr(d.dir, "uuid"); ok {
		info[valueobject.KeyUUID] = v
	}

	hwmon := d.hwmonDir()
	if hwmon == "" {
		return info, nil
	}

	// temp1_input в миллиградусах, power1_input в микроваттах
	if v, ok := readScaled(hwmon, "temp1_input", 1e3); ok {
		info[valueobject.KeyTemperature] = v
	}
	if v, ok := readScaled(hwmon, "power1_input", 1e6); ok {
		info[valueobject.KeyPower] = v
	}

	return info, nil
}

func (d *sysfsDevice) hwmonDir() string {
	matches, err := filepath.Glob(filepath.Join(d.dir, "hwmon", "hwmon*"))
	if err != nil || len(matches) == 0 {
		return ""
	}
	sort.Strings(matches)
	return matches[0]
}

func readAttr(dir, name string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return "", false
	}
	value := strings.TrimSpace(string(data))
	return value, value != ""
}

func readScaled(dir, name string, divisor float64) (float64, bool) {
	raw, ok := readAttr(dir, name)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v / divisor, true
}

// shortBusID отбрасывает PCI-домен: "0000:35:00.0" -> "35:00.0"
func shortBusID(addr string) string {
	parts := strings.Split(addr, ":")
	if len(parts) == 3 {
		return parts[1] + ":" + parts[2]
	}
	return addr
}

package hostinfo

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/host"
)

// Info описывает хост, на котором запущен монитор
type Info struct {
	Hostname      string
	HostID        string
	Platform      string
	KernelVersion string
}

// Lookup читает сведения о хосте через gopsutil. Если gopsutil недоступен,
// возвращается хотя бы имя хоста из ОС.
func Lookup(ctx context.Context) (Info, error) {
	stat, err := host.InfoWithContext(ctx)
	if err != nil {
		name, hostErr := os.Hostname()
		if hostErr != nil {
			return Info{}, fmt.Errorf("failed to get host info: %w", err)
		}
		return Info{Hostname: name}, nil
	}

	return Info{
		Hostname:      stat.Hostname,
		HostID:        stat.HostID,
		Platform:      strings.TrimSpace(stat.Platform + " " + stat.PlatformVersion),
		KernelVersion: stat.KernelVersion,
	}, nil
}

// RunName возвращает имя сессии удаленного лога: "<hostname>-<8 hex>"
func (i Info) RunName() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	name := sanitize(i.Hostname)
	if name == "" {
		return "run-" + suffix
	}
	return name + "-" + suffix
}

// Имена групп и потоков CloudWatch допускают ограниченный набор символов
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.':
			return r
		default:
			return '-'
		}
	}, strings.TrimSpace(s))
}

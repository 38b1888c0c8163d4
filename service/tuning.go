package service

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strings"

	"github.com/mahdipatriot/PacketTunnel/logger"
)

// TuningService applies the host knobs a raw-socket tunnel benefits from:
// larger socket buffers, forwarding, a modern qdisc and congestion control,
// and offloads disabled on the tunnel device.
type TuningService struct {
	SettingService
}

type TuningResult struct {
	Applied  []string `json:"applied"`
	Warnings []string `json:"warnings"`
}

func (s *TuningService) Apply() (*TuningResult, error) {
	result := &TuningResult{}

	cc, err := s.GetCongestionControl()
	if err != nil {
		return nil, err
	}
	if !s.congestionAvailable(cc) {
		result.Warnings = append(result.Warnings, fmt.Sprintf("congestion control %q unavailable, using cubic", cc))
		cc = "cubic"
	}
	qdisc, err := s.GetQdisc()
	if err != nil {
		return nil, err
	}

	sysctls := map[string]string{
		"net.core.rmem_max":               "16777216",
		"net.core.wmem_max":               "16777216",
		"net.core.rmem_default":           "1048576",
		"net.core.wmem_default":           "1048576",
		"net.ipv4.ip_forward":             "1",
		"net.ipv4.conf.all.rp_filter":     "0",
		"net.ipv4.tcp_congestion_control": cc,
		"net.core.default_qdisc":          qdisc,
	}

	keys := make([]string, 0, len(sysctls))
	for key := range sysctls {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := sysctls[key]
		err := writeSysctl(key, value)
		if err != nil {
			if key == "net.core.default_qdisc" && qdisc == "fq" {
				if writeSysctl(key, "fq_codel") == nil {
					result.Warnings = append(result.Warnings, "qdisc fq unavailable, using fq_codel")
					sysctls[key] = "fq_codel"
					result.Applied = append(result.Applied, key+" = fq_codel")
					continue
				}
			}
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", key, err))
			continue
		}
		result.Applied = append(result.Applied, key+" = "+value)
	}

	err = persistSysctls(sysctls, keys)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("persist sysctls: %v", err))
	} else {
		result.Applied = append(result.Applied, "wrote /etc/sysctl.d/99-packettunnel.conf")
	}

	deviceName, err := s.GetDeviceName()
	if err == nil {
		s.disableOffloads(deviceName, result)
	}
	s.balanceIRQs(result)

	for _, warning := range result.Warnings {
		logger.Warning("tuning: ", warning)
	}
	return result, nil
}

func (s *TuningService) congestionAvailable(cc string) bool {
	data, err := os.ReadFile("/proc/sys/net/ipv4/tcp_available_congestion_control")
	if err != nil {
		return false
	}
	for _, available := range strings.Fields(string(data)) {
		if available == cc {
			return true
		}
	}
	return false
}

func writeSysctl(key string, value string) error {
	procPath := "/proc/sys/" + strings.ReplaceAll(key, ".", "/")
	return os.WriteFile(procPath, []byte(value), 0o644)
}

func persistSysctls(sysctls map[string]string, keys []string) error {
	var b strings.Builder
	for _, key := range keys {
		fmt.Fprintf(&b, "%s = %s\n", key, sysctls[key])
	}
	return os.WriteFile("/etc/sysctl.d/99-packettunnel.conf", []byte(b.String()), 0o644)
}

// Offloads reassemble segments the manipulator has already rewritten, so
// they stay off on the tunnel device.
func (s *TuningService) disableOffloads(deviceName string, result *TuningResult) {
	out, err := exec.Command("ethtool", "-K", deviceName, "tso", "off", "gso", "off", "gro", "off").CombinedOutput()
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("ethtool %s: %v: %s", deviceName, err, strings.TrimSpace(string(out))))
		return
	}
	result.Applied = append(result.Applied, "offloads disabled on "+deviceName)
}

func (s *TuningService) balanceIRQs(result *TuningResult) {
	data, err := os.ReadFile("/proc/interrupts")
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("read interrupts: %v", err))
		return
	}
	cpus := runtime.NumCPU()
	if cpus < 2 {
		return
	}
	balanced := 0
	next := 0
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || !strings.HasSuffix(fields[0], ":") {
			continue
		}
		name := fields[len(fields)-1]
		if !strings.Contains(name, "eth") && !strings.Contains(name, "ens") && !strings.Contains(name, "enp") {
			continue
		}
		irq := strings.TrimSuffix(fields[0], ":")
		affinity := fmt.Sprintf("/proc/irq/%s/smp_affinity_list", irq)
		err := os.WriteFile(affinity, []byte(fmt.Sprintf("%d", next)), 0o644)
		if err != nil {
			continue
		}
		next = (next + 1) % cpus
		balanced++
	}
	if balanced > 0 {
		result.Applied = append(result.Applied, fmt.Sprintf("spread %d NIC interrupts across %d CPUs", balanced, cpus))
	}
}

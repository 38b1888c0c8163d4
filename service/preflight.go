package service

import (
	"fmt"
	"math/rand"
	"net"
	"os"
	"syscall"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/songgao/water"
	"github.com/vishvananda/netlink"
)

// PreflightService proves out the host capabilities a compiled document
// needs before the engine is asked to run it.
type PreflightService struct {
	SettingService
	EngineService *EngineService
}

type CheckResult struct {
	Name   string `json:"name"`
	Ok     bool   `json:"ok"`
	Detail string `json:"detail"`
}

// Run executes every check. remoteIP and port shape the raw-socket probe;
// both may be empty, which keeps the probe local.
func (s *PreflightService) Run(localIP string, remoteIP string, port int) []CheckResult {
	results := []CheckResult{
		s.checkTun(),
		s.checkDevice(),
		s.checkRawSocket(localIP, remoteIP, port),
		s.checkBinary(),
	}
	return results
}

func (s *PreflightService) checkTun() CheckResult {
	result := CheckResult{Name: "tun"}
	iface, err := water.New(water.Config{DeviceType: water.TUN})
	if err != nil {
		result.Detail = fmt.Sprintf("cannot open a TUN device: %v", err)
		return result
	}
	name := iface.Name()
	iface.Close()
	result.Ok = true
	result.Detail = fmt.Sprintf("opened and released %s", name)
	return result
}

func (s *PreflightService) checkDevice() CheckResult {
	result := CheckResult{Name: "device"}
	deviceName, err := s.GetDeviceName()
	if err != nil {
		result.Detail = err.Error()
		return result
	}
	_, err = netlink.LinkByName(deviceName)
	if err == nil {
		result.Detail = fmt.Sprintf("link %s already exists, the engine will fail to claim it", deviceName)
		return result
	}
	if _, notFound := err.(netlink.LinkNotFoundError); notFound {
		result.Ok = true
		result.Detail = fmt.Sprintf("link name %s is free", deviceName)
		return result
	}
	result.Detail = fmt.Sprintf("netlink: %v", err)
	return result
}

// checkRawSocket opens the same kind of socket the capture node uses and,
// when a remote is known, pushes one crafted SYN through it.
func (s *PreflightService) checkRawSocket(localIP string, remoteIP string, port int) CheckResult {
	result := CheckResult{Name: "raw-socket"}
	fd, err := syscall.Socket(syscall.AF_INET, syscall.SOCK_RAW, syscall.IPPROTO_RAW)
	if err != nil {
		result.Detail = fmt.Sprintf("cannot open a raw socket (requires CAP_NET_RAW): %v", err)
		return result
	}
	defer syscall.Close(fd)
	if err := syscall.SetsockoptInt(fd, syscall.IPPROTO_IP, syscall.IP_HDRINCL, 1); err != nil {
		result.Detail = fmt.Sprintf("cannot set IP_HDRINCL: %v", err)
		return result
	}
	if remoteIP == "" {
		result.Ok = true
		result.Detail = "raw socket opened"
		return result
	}

	dstIP := net.ParseIP(remoteIP).To4()
	if dstIP == nil {
		result.Detail = fmt.Sprintf("%q is not an IPv4 address", remoteIP)
		return result
	}
	srcIP := net.IPv4zero.To4()
	if localIP != "" {
		if parsed := net.ParseIP(localIP).To4(); parsed != nil {
			srcIP = parsed
		}
	}
	if port == 0 {
		port = 443
	}

	ipLayer := &layers.IPv4{
		Version:  4,
		IHL:      5,
		Id:       uint16(rand.Intn(65535)),
		Flags:    layers.IPv4DontFragment,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    srcIP,
		DstIP:    dstIP,
	}
	tcpLayer := &layers.TCP{
		SrcPort: layers.TCPPort(rand.Intn(65535-1024) + 1024),
		DstPort: layers.TCPPort(port),
		SYN:     true,
		Window:  14600,
		Seq:     rand.Uint32(),
	}
	tcpLayer.SetNetworkLayerForChecksum(ipLayer)

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		ComputeChecksums: true,
		FixLengths:       true,
	}
	if err := gopacket.SerializeLayers(buf, opts, ipLayer, tcpLayer); err != nil {
		result.Detail = fmt.Sprintf("failed to serialize probe: %v", err)
		return result
	}

	addr := syscall.SockaddrInet4{}
	copy(addr.Addr[:], dstIP)
	if err := syscall.Sendto(fd, buf.Bytes(), 0, &addr); err != nil {
		result.Detail = fmt.Sprintf("failed to send probe to %s:%d: %v", remoteIP, port, err)
		return result
	}
	result.Ok = true
	result.Detail = fmt.Sprintf("sent SYN probe to %s:%d", remoteIP, port)
	return result
}

func (s *PreflightService) checkBinary() CheckResult {
	result := CheckResult{Name: "engine-binary"}
	if s.EngineService == nil {
		result.Detail = "engine service unavailable"
		return result
	}
	binary, err := s.EngineService.binaryPath()
	if err != nil {
		result.Detail = err.Error()
		return result
	}
	if _, err := os.Stat(binary); err != nil {
		result.Detail = fmt.Sprintf("engine binary missing at %s", binary)
		return result
	}
	result.Ok = true
	result.Detail = binary
	return result
}

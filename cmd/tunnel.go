package cmd

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mahdipatriot/PacketTunnel/config"
	"github.com/mahdipatriot/PacketTunnel/database"
	"github.com/mahdipatriot/PacketTunnel/pipeline"
	"github.com/mahdipatriot/PacketTunnel/service"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// tunnelProfile mirrors the generate flags so a parameter set can live in a
// reusable YAML file.
type tunnelProfile struct {
	Role      string `yaml:"role"`
	Local     string `yaml:"local"`
	Remote    string `yaml:"remote"`
	Ports     []int  `yaml:"ports"`
	Device    string `yaml:"device,omitempty"`
	Cidr      string `yaml:"cidr,omitempty"`
	ProtoSwap int    `yaml:"protoswap,omitempty"`
}

func tunnelCmd(args []string) {
	if len(args) < 1 {
		showTunnelUsage()
		return
	}
	switch args[0] {
	case "generate":
		generateTunnel(args[1:])
	case "list":
		listTunnels()
	case "check":
		checkTunnel(args[1:])
	default:
		showTunnelUsage()
	}
}

func showTunnelUsage() {
	fmt.Print(`Usage: PacketTunnel tunnel <command> [options]

Commands:
    generate    compile a tunnel document from flags, a YAML profile or prompts
    list        list tunnels stored in the panel database
    check       validate an existing tunnel document file
`)
}

func generateTunnel(args []string) {
	genCmd := flag.NewFlagSet("generate", flag.ExitOnError)
	role := genCmd.String("role", "", "tunnel role, initiator or responder")
	local := genCmd.String("local", "", "local public IPv4 address")
	remote := genCmd.String("remote", "", "remote public IPv4 address")
	portsCsv := genCmd.String("ports", "", "comma separated TCP ports to forward (initiator only)")
	device := genCmd.String("device", "", "TUN device name")
	cidr := genCmd.String("cidr", "", "private transfer network CIDR")
	protoSwap := genCmd.Int("protoswap", 0, "replacement IP protocol number")
	profilePath := genCmd.String("f", "", "read parameters from a YAML profile")
	interactive := genCmd.Bool("i", false, "prompt for missing parameters")
	output := genCmd.String("o", "", "write the document to this path instead of stdout")
	genCmd.Parse(args)

	var ports []int
	if *portsCsv != "" {
		var err error
		ports, err = parsePorts(*portsCsv)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	}

	if *profilePath != "" {
		profile, err := loadProfile(*profilePath)
		if err != nil {
			fmt.Println("read profile failed:", err)
			os.Exit(1)
		}
		// Explicit flags win over the profile.
		if *role == "" {
			*role = profile.Role
		}
		if *local == "" {
			*local = profile.Local
		}
		if *remote == "" {
			*remote = profile.Remote
		}
		if len(ports) == 0 {
			ports = profile.Ports
		}
		if *device == "" {
			*device = profile.Device
		}
		if *cidr == "" {
			*cidr = profile.Cidr
		}
		if *protoSwap == 0 {
			*protoSwap = profile.ProtoSwap
		}
	}

	if *interactive {
		promptMissing(role, local, remote, &ports)
	}

	opts := pipeline.Options{
		DeviceName:  *device,
		PrivateCIDR: *cidr,
		ProtoSwap:   *protoSwap,
	}
	tunnelService := service.TunnelService{}
	doc, err := tunnelService.Compile(*role, *local, *remote, ports, opts)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	if *output == "" || *output == "-" {
		os.Stdout.Write(doc)
		return
	}
	if err := tunnelService.WriteDocument(*output, doc); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	fmt.Println("document written to", *output)
}

func promptMissing(role, local, remote *string, ports *[]int) {
	reader := bufio.NewReader(os.Stdin)
	if *role == "" {
		*role = ask(reader, "Role (initiator/responder): ")
	}
	if *local == "" {
		*local = ask(reader, "Local public IPv4: ")
	}
	if *remote == "" {
		*remote = ask(reader, "Remote public IPv4: ")
	}
	if *role == string(pipeline.RoleInitiator) && len(*ports) == 0 {
		fmt.Println("Forwarded TCP ports, one per line, 0 to finish:")
		for {
			answer := ask(reader, "> ")
			port, err := strconv.Atoi(answer)
			if err != nil {
				fmt.Println("not a number:", answer)
				continue
			}
			if port == 0 {
				break
			}
			*ports = append(*ports, port)
		}
	}
}

func ask(reader *bufio.Reader, prompt string) string {
	fmt.Print(prompt)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func loadProfile(path string) (*tunnelProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	profile := &tunnelProfile{}
	if err := yaml.Unmarshal(data, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func parsePorts(csv string) ([]int, error) {
	var ports []int
	for _, field := range strings.Split(csv, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		port, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("port %q is not a number", field)
		}
		ports = append(ports, port)
	}
	return ports, nil
}

func listTunnels() {
	err := database.InitDB(config.GetDBPath())
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	tunnelService := service.TunnelService{}
	tunnels, err := tunnelService.GetAll()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Name", "Role", "Local", "Remote", "Ports", "Enabled", "Document"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	for _, tunnel := range tunnels {
		table.Append([]string{
			strconv.FormatUint(uint64(tunnel.Id), 10),
			tunnel.Name,
			tunnel.Role,
			tunnel.LocalIP,
			tunnel.RemoteIP,
			joinPorts(tunnel.Ports),
			strconv.FormatBool(tunnel.Enable),
			tunnel.DocPath,
		})
	}
	table.Render()
}

func joinPorts(ports []int) string {
	fields := make([]string, len(ports))
	for i, port := range ports {
		fields[i] = strconv.Itoa(port)
	}
	return strings.Join(fields, ",")
}

func checkTunnel(args []string) {
	if len(args) < 1 {
		fmt.Println("usage: PacketTunnel tunnel check <document.json>")
		os.Exit(1)
	}
	doc, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	graph, err := pipeline.Decode(doc)
	if err != nil {
		fmt.Println("parse failed:", err)
		os.Exit(1)
	}
	violations := pipeline.Validate(graph)
	if len(violations) == 0 {
		fmt.Printf("%s: ok, %d nodes\n", args[0], len(graph.Nodes))
		return
	}
	for _, violation := range violations {
		fmt.Println(violation.String())
	}
	os.Exit(1)
}

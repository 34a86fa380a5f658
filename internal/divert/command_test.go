package divert

import (
	"testing"

	"github.com/veesix-networks/osvrouter/pkg/proto"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		command string
		want    Request
		wantErr string
	}{
		{
			name:    "full command",
			command: "arp,icmp4,tcp from GigabitEthernet0/8/0 as vpp0",
			want: Request{
				Protocols:  proto.BitARP | proto.BitICMP4 | proto.BitTCP,
				Interface:  "GigabitEthernet0/8/0",
				HostIfName: "vpp0",
			},
		},
		{
			name:    "single protocol",
			command: "arp from eth0 as tap0",
			want: Request{
				Protocols:  proto.BitARP,
				Interface:  "eth0",
				HostIfName: "tap0",
			},
		},
		{"empty", "", Request{}, "no protocols specified"},
		{"only unknown protocols", "bogus from eth0 as tap0", Request{}, "no protocols specified"},
		{"missing from clause", "arp", Request{}, "interface name is missing or invalid"},
		{"wrong keyword", "arp onto eth0 as tap0", Request{}, "interface name is missing or invalid"},
		{"missing interface", "arp from", Request{}, "interface name is missing or invalid"},
		{"missing as clause", "arp from eth0", Request{}, "host interface name is missing or invalid"},
		{"missing host name", "arp from eth0 as", Request{}, "host interface name is missing or invalid"},
		{"host name too long", "arp from eth0 as averylonghostname", Request{}, "host interface name is missing or invalid"},
		{"host name with slash", "arp from eth0 as a/b", Request{}, "host interface name is missing or invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.command)
			if tt.wantErr != "" {
				if err == nil || err.Error() != tt.wantErr {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCommand: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

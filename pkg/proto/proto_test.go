package proto

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Set
	}{
		{"single", "arp", BitARP},
		{"pair", "arp,tcp", BitARP | BitTCP},
		{"duplicates collapse", "tcp,arp,tcp", BitARP | BitTCP},
		{"order irrelevant", "tcp,arp", BitARP | BitTCP},
		{"unknown ignored", "tcp,bogus", BitTCP},
		{"all unknown", "bogus,nope", 0},
		{"empty", "", 0},
		{"case sensitive", "ARP,Tcp", 0},
		{"all six", "arp,icmp4,igmp4,ospf2,tcp,udp", BitARP | BitICMP4 | BitIGMP4 | BitOSPF2 | BitTCP | BitUDP},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Parse(tt.in); got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseIdempotentUnderReordering(t *testing.T) {
	if Parse("tcp,arp,tcp") != Parse("arp,tcp") {
		t.Error("duplicate tokens changed the parsed set")
	}
	if Parse("tcp,bogus") != Parse("tcp") {
		t.Error("unknown token changed the parsed set")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		set     Set
		wantErr string
	}{
		{"empty ok", 0, ""},
		{"arp alone ok", BitARP, ""},
		{"ospf2 alone", BitOSPF2, "ospf2 requires arp, icmp4, and igmp4"},
		{"ospf2 with arp only", BitOSPF2 | BitARP, "ospf2 requires arp, icmp4, and igmp4"},
		{"ospf2 satisfied", BitOSPF2 | BitARP | BitICMP4 | BitIGMP4, ""},
		{"tcp alone", BitTCP, "tcp requires arp and icmp4"},
		{"tcp satisfied", BitTCP | BitARP | BitICMP4, ""},
		{"udp without igmp4", BitUDP | BitARP | BitICMP4, "udp requires arp, icmp4, and igmp4"},
		{"udp satisfied", BitUDP | BitARP | BitICMP4 | BitIGMP4, ""},
		{"ospf2 reported before tcp", BitOSPF2 | BitTCP, "ospf2 requires arp, icmp4, and igmp4"},
		{"tcp reported before udp", BitTCP | BitUDP, "tcp requires arp and icmp4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.set)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate(%v) = %v, want nil", tt.set, err)
				}
				return
			}
			if err == nil || err.Error() != tt.wantErr {
				t.Fatalf("Validate(%v) = %v, want %q", tt.set, err, tt.wantErr)
			}
		})
	}
}

func TestSetString(t *testing.T) {
	s := BitARP | BitUDP
	if s.String() != "arp,udp" {
		t.Errorf("String() = %q, want %q", s.String(), "arp,udp")
	}
}

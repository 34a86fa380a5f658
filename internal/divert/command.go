package divert

import (
	"errors"
	"strings"

	"github.com/veesix-networks/osvrouter/pkg/proto"
)

var (
	errNoProtocols = errors.New("no protocols specified")
	errBadIfName   = errors.New("interface name is missing or invalid")
	errBadHostName = errors.New("host interface name is missing or invalid")
)

// Request is a parsed diversion command.
type Request struct {
	Protocols  proto.Set
	Interface  string
	HostIfName string
}

// ParseCommand parses `<protocol[,protocol...]> from <interface> as
// <host-if-name>`. Unknown protocol names are ignored; prerequisite
// validation happens at setup time.
func ParseCommand(command string) (Request, error) {
	tokens := strings.Fields(command)

	var req Request
	if len(tokens) < 1 {
		return req, errNoProtocols
	}
	req.Protocols = proto.Parse(tokens[0])
	if req.Protocols.Empty() {
		return req, errNoProtocols
	}

	if len(tokens) < 3 || tokens[1] != "from" || !validIfName(tokens[2]) {
		return req, errBadIfName
	}
	req.Interface = tokens[2]

	if len(tokens) < 5 || tokens[3] != "as" || !validHostIfName(tokens[4]) {
		return req, errBadHostName
	}
	req.HostIfName = tokens[4]

	return req, nil
}

func validIfName(name string) bool {
	return name != "" && name != "from" && name != "as"
}

// validHostIfName enforces kernel interface naming limits.
func validHostIfName(name string) bool {
	if name == "" || len(name) > 15 {
		return false
	}
	return !strings.ContainsAny(name, "/ ")
}
